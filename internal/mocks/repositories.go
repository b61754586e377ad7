package mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/article"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pin"
	"github.com/fekuna/omnipos-stock-service/internal/reservation"
	"github.com/fekuna/omnipos-stock-service/internal/reservation/dto"
)

type ArticleRepository struct {
	s *Store
}

var _ article.Repository = (*ArticleRepository)(nil)

func NewArticleRepository(s *Store) *ArticleRepository {
	return &ArticleRepository{s: s}
}

func (r *ArticleRepository) GetByID(_ context.Context, id string) (*model.Article, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.data.articles[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *ArticleRepository) GetByIDs(_ context.Context, ids []string) ([]model.Article, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	articles := []model.Article{}
	for _, id := range ids {
		if a, ok := r.s.data.articles[id]; ok {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

type ReservationRepository struct {
	s *Store
}

var _ reservation.Repository = (*ReservationRepository)(nil)

func NewReservationRepository(s *Store) *ReservationRepository {
	return &ReservationRepository{s: s}
}

func (r *ReservationRepository) Create(_ context.Context, res *model.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.reservations = append(r.s.data.reservations, *res)
	return nil
}

func (r *ReservationRepository) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, res := range r.s.data.reservations {
		if res.ID == id {
			return &res, nil
		}
	}
	return nil, nil
}

func (r *ReservationRepository) LockByID(ctx context.Context, id string) (*model.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *ReservationRepository) Update(_ context.Context, res *model.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.reservations {
		if r.s.data.reservations[i].ID == res.ID {
			r.s.data.reservations[i] = *res
			return nil
		}
	}
	return fmt.Errorf("reservation %s not found", res.ID)
}

func (r *ReservationRepository) List(_ context.Context, f *dto.Filters) ([]model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := []model.Reservation{}
	for _, res := range r.s.data.reservations {
		if f.TechnicianID != "" && res.TechnicianID != f.TechnicianID {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		items = append(items, res)
		if f.Limit > 0 && len(items) == f.Limit {
			break
		}
	}
	return items, nil
}

type PINRepository struct {
	s *Store
}

var _ pin.Repository = (*PINRepository)(nil)

func NewPINRepository(s *Store) *PINRepository {
	return &PINRepository{s: s}
}

func (r *PINRepository) Create(_ context.Context, p *model.PINCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.pins = append(r.s.data.pins, *p)
	return nil
}

func (r *PINRepository) FindUnused(_ context.Context, orderID, technicianID, pinHash string) (*model.PINCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.data.pins) - 1; i >= 0; i-- {
		p := r.s.data.pins[i]
		if p.OrderID == orderID && p.TechnicianID == technicianID && p.PinHash == pinHash && !p.IsUsed {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *PINRepository) MarkUsed(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.pins {
		if r.s.data.pins[i].ID == id {
			r.s.data.pins[i].IsUsed = true
			r.s.data.pins[i].UsedAt = &at
			return nil
		}
	}
	return fmt.Errorf("pin %s not found", id)
}

func (r *PINRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := make([]model.PINCode, 0, len(r.s.data.pins))
	for _, p := range r.s.data.pins {
		if p.ExpiresAt.Before(before) && !p.IsUsed {
			continue
		}
		kept = append(kept, p)
	}
	n := int64(len(r.s.data.pins) - len(kept))
	r.s.data.pins = kept
	return n, nil
}
