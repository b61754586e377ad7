package mocks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
	"github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockRepository struct {
	s *Store
}

var _ stock.Repository = (*StockRepository)(nil)

func NewStockRepository(s *Store) *StockRepository {
	return &StockRepository{s: s}
}

func (r *StockRepository) LockLevel(_ context.Context, key model.StockKey, now time.Time) (*model.StockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.data.levels[key]
	if !ok {
		l = model.StockLevel{
			BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			TechnicianID: key.TechnicianID,
			ArticleID:    key.ArticleID,
			Quantity:     decimal.Zero,
			ReservedQty:  decimal.Zero,
		}
		r.s.data.levels[key] = l
	}
	return &l, nil
}

func (r *StockRepository) ClaimEvent(_ context.Context, key string, _ time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.data.claimed[key] {
		return false, nil
	}
	r.s.data.claimed[key] = true
	return true, nil
}

func (r *StockRepository) ListLevels(_ context.Context, technicianID string, includeZero bool) ([]model.StockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	levels := []model.StockLevel{}
	for _, l := range r.s.data.levels {
		if l.TechnicianID != technicianID {
			continue
		}
		if !includeZero && !l.Quantity.IsPositive() {
			continue
		}
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].ArticleID < levels[j].ArticleID })
	return levels, nil
}

// UpdateLevel enforces the same checks as the stock_levels table.
func (r *StockRepository) UpdateLevel(_ context.Context, level *model.StockLevel) error {
	if level.Quantity.IsNegative() || level.ReservedQty.IsNegative() || level.ReservedQty.GreaterThan(level.Quantity) {
		return fmt.Errorf("stock_levels check violated: quantity %s reserved %s", level.Quantity, level.ReservedQty)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.levels[level.Key()]; !ok {
		return fmt.Errorf("stock level %s not found", level.ID)
	}
	r.s.data.levels[level.Key()] = *level
	return nil
}

// SeedLevel stores a level directly, outside any usecase.
func (r *StockRepository) SeedLevel(key model.StockKey, quantity, reserved decimal.Decimal) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	r.s.data.levels[key] = model.StockLevel{
		BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		TechnicianID: key.TechnicianID,
		ArticleID:    key.ArticleID,
		Quantity:     quantity,
		ReservedQty:  reserved,
	}
}

func (r *StockRepository) InsertMovement(_ context.Context, m *model.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.movements = append(r.s.data.movements, *m)
	return nil
}

func (r *StockRepository) GetMovement(_ context.Context, id string) (*model.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.data.movements {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

// TamperMovement rewrites a stored movement in place.
func (r *StockRepository) TamperMovement(id string, fn func(m *model.StockMovement)) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.movements {
		if r.s.data.movements[i].ID == id {
			fn(&r.s.data.movements[i])
		}
	}
}

func (r *StockRepository) ListMovements(_ context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	items := []model.StockMovement{}
	for _, m := range r.s.data.movements {
		switch {
		case f.TechnicianID != "" && m.TechnicianID != f.TechnicianID,
			f.ArticleID != "" && m.ArticleID != f.ArticleID,
			f.Reason != "" && m.Reason != f.Reason,
			f.LinkedOrderID != "" && (m.LinkedOrderID == nil || *m.LinkedOrderID != f.LinkedOrderID),
			f.StartDate != nil && m.CreatedAt.Before(*f.StartDate),
			f.EndDate != nil && !m.CreatedAt.Before(*f.EndDate):
			continue
		}
		items = append(items, m)
	}
	// newest first, insertion order breaks ties
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	total := len(items)
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.PageSize
		if start > total {
			start = total
		}
		end := start + f.PageSize
		if end > total {
			end = total
		}
		items = items[start:end]
	}
	return items, total, nil
}

func (r *StockRepository) LockThreshold(_ context.Context, key model.StockKey) (*model.Threshold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	th, ok := r.s.data.thresholds[key]
	if !ok {
		return nil, nil
	}
	return &th, nil
}

func (r *StockRepository) InsertThreshold(_ context.Context, th *model.Threshold) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := model.StockKey{TechnicianID: th.TechnicianID, ArticleID: th.ArticleID}
	if _, ok := r.s.data.thresholds[key]; ok {
		return fmt.Errorf("threshold for %v already exists", key)
	}
	r.s.data.thresholds[key] = *th
	return nil
}

func (r *StockRepository) UpdateThreshold(_ context.Context, th *model.Threshold) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.thresholds[model.StockKey{TechnicianID: th.TechnicianID, ArticleID: th.ArticleID}] = *th
	return nil
}

func (r *StockRepository) InsertAlert(_ context.Context, a *model.ThresholdAlert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.alerts = append(r.s.data.alerts, *a)
	return nil
}

func (r *StockRepository) LockAlert(_ context.Context, id string) (*model.ThresholdAlert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.data.alerts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *StockRepository) UpdateAlert(_ context.Context, a *model.ThresholdAlert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.alerts {
		if r.s.data.alerts[i].ID == a.ID {
			r.s.data.alerts[i] = *a
			return nil
		}
	}
	return fmt.Errorf("alert %s not found", a.ID)
}

func (r *StockRepository) ListAlerts(_ context.Context, f *dto.AlertFilters) ([]model.ThresholdAlert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	alerts := []model.ThresholdAlert{}
	for i := len(r.s.data.alerts) - 1; i >= 0; i-- {
		a := r.s.data.alerts[i]
		if f.TechnicianID != "" && a.TechnicianID != f.TechnicianID {
			continue
		}
		if f.Acknowledged != nil && a.Acknowledged != *f.Acknowledged {
			continue
		}
		alerts = append(alerts, a)
		if f.Limit > 0 && len(alerts) == f.Limit {
			break
		}
	}
	return alerts, nil
}
