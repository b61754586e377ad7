package mocks

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-stock-service/internal/cart"
	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type CartRepository struct {
	s *Store
}

var _ cart.Repository = (*CartRepository)(nil)

func NewCartRepository(s *Store) *CartRepository {
	return &CartRepository{s: s}
}

func (r *CartRepository) CreateDraft(_ context.Context, c *model.Cart) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.carts {
		if existing.TechnicianID == c.TechnicianID && existing.IsDraft() {
			return false, nil
		}
	}
	stored := *c
	stored.Lines = nil
	r.s.data.carts = append(r.s.data.carts, stored)
	return true, nil
}

func (r *CartRepository) GetDraft(_ context.Context, technicianID string) (*model.Cart, error) {
	return r.findCart(func(c *model.Cart) bool { return c.TechnicianID == technicianID && c.IsDraft() }), nil
}

func (r *CartRepository) LockDraft(ctx context.Context, technicianID string) (*model.Cart, error) {
	return r.GetDraft(ctx, technicianID)
}

func (r *CartRepository) LockByID(_ context.Context, id string) (*model.Cart, error) {
	return r.findCart(func(c *model.Cart) bool { return c.ID == id }), nil
}

func (r *CartRepository) findCart(match func(c *model.Cart) bool) *model.Cart {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.data.carts {
		if match(&c) {
			return &c
		}
	}
	return nil
}

func (r *CartRepository) UpdateCart(_ context.Context, c *model.Cart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.carts {
		if r.s.data.carts[i].ID == c.ID {
			stored := *c
			stored.Lines = nil
			r.s.data.carts[i] = stored
			return nil
		}
	}
	return fmt.Errorf("cart %s not found", c.ID)
}

func (r *CartRepository) ListLines(_ context.Context, cartID string) ([]model.CartLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lines := []model.CartLine{}
	for _, l := range r.s.data.cartLines {
		if l.CartID == cartID {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func (r *CartRepository) GetLine(_ context.Context, id string) (*model.CartLine, error) {
	return r.findLine(func(l *model.CartLine) bool { return l.ID == id }), nil
}

func (r *CartRepository) GetLineByArticle(_ context.Context, cartID, articleID string) (*model.CartLine, error) {
	return r.findLine(func(l *model.CartLine) bool { return l.CartID == cartID && l.ArticleID == articleID }), nil
}

func (r *CartRepository) findLine(match func(l *model.CartLine) bool) *model.CartLine {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.data.cartLines {
		if match(&l) {
			return &l
		}
	}
	return nil
}

func (r *CartRepository) InsertLine(_ context.Context, l *model.CartLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.cartLines = append(r.s.data.cartLines, *l)
	return nil
}

func (r *CartRepository) UpdateLine(_ context.Context, l *model.CartLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.cartLines {
		if r.s.data.cartLines[i].ID == l.ID {
			r.s.data.cartLines[i] = *l
			return nil
		}
	}
	return fmt.Errorf("cart line %s not found", l.ID)
}

func (r *CartRepository) DeleteLine(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.cartLines = filterLines(r.s.data.cartLines, func(l model.CartLine) bool { return l.ID != id })
	return nil
}

func (r *CartRepository) DeleteLines(_ context.Context, cartID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	before := len(r.s.data.cartLines)
	r.s.data.cartLines = filterLines(r.s.data.cartLines, func(l model.CartLine) bool { return l.CartID != cartID })
	return int64(before - len(r.s.data.cartLines)), nil
}

func filterLines(lines []model.CartLine, keep func(model.CartLine) bool) []model.CartLine {
	kept := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		if keep(l) {
			kept = append(kept, l)
		}
	}
	return kept
}
