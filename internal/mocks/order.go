package mocks

import (
	"context"
	"fmt"
	"sort"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
)

type OrderRepository struct {
	s *Store
}

var _ order.Repository = (*OrderRepository)(nil)

func NewOrderRepository(s *Store) *OrderRepository {
	return &OrderRepository{s: s}
}

func (r *OrderRepository) Create(_ context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *o
	stored.Lines = nil
	r.s.data.orders = append(r.s.data.orders, stored)
	r.s.data.orderLines = append(r.s.data.orderLines, o.Lines...)
	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, id string) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.data.orders {
		if o.ID == id {
			o.Lines = r.linesOf(o.ID)
			return &o, nil
		}
	}
	return nil, nil
}

func (r *OrderRepository) LockByID(ctx context.Context, id string) (*model.Order, error) {
	return r.GetByID(ctx, id)
}

// linesOf expects r.s.mu to be held.
func (r *OrderRepository) linesOf(orderID string) []model.OrderLine {
	lines := []model.OrderLine{}
	for _, l := range r.s.data.orderLines {
		if l.OrderID == orderID {
			lines = append(lines, l)
		}
	}
	return lines
}

func (r *OrderRepository) Update(_ context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.orders {
		if r.s.data.orders[i].ID == o.ID {
			stored := *o
			stored.Lines = nil
			r.s.data.orders[i] = stored
			return nil
		}
	}
	return fmt.Errorf("order %s not found", o.ID)
}

func (r *OrderRepository) UpdateLine(_ context.Context, l *model.OrderLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.orderLines {
		if r.s.data.orderLines[i].ID == l.ID {
			r.s.data.orderLines[i] = *l
			return nil
		}
	}
	return fmt.Errorf("order line %s not found", l.ID)
}

func (r *OrderRepository) ListByStatus(_ context.Context, statuses []model.OrderStatus, technicianID string) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	wanted := make(map[model.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	orders := []model.Order{}
	for _, o := range r.s.data.orders {
		if !wanted[o.Status] || (technicianID != "" && o.TechnicianID != technicianID) {
			continue
		}
		o.Lines = r.linesOf(o.ID)
		orders = append(orders, o)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Priority != orders[j].Priority {
			return orders[i].Priority > orders[j].Priority
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}
