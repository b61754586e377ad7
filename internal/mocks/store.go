// Package mocks holds in-memory stand-ins for the Postgres repositories,
// the transaction manager, the cache and the event publisher.
//
// A Store serializes transactions and restores a snapshot when the
// transaction function fails, so usecase tests observe the same
// all-or-nothing behavior as the database.
package mocks

import (
	"context"
	"sync"

	auditDTO "github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
)

type inTxKey struct{}

type storeData struct {
	levels       map[model.StockKey]model.StockLevel
	movements    []model.StockMovement
	thresholds   map[model.StockKey]model.Threshold
	alerts       []model.ThresholdAlert
	events       []model.AuditEvent
	head         auditDTO.ChainHead
	articles     map[string]model.Article
	carts        []model.Cart
	cartLines    []model.CartLine
	orders       []model.Order
	orderLines   []model.OrderLine
	reservations []model.Reservation
	pins         []model.PINCode
	claimed      map[string]bool
}

func (d *storeData) clone() storeData {
	cp := storeData{
		levels:       make(map[model.StockKey]model.StockLevel, len(d.levels)),
		movements:    append([]model.StockMovement(nil), d.movements...),
		thresholds:   make(map[model.StockKey]model.Threshold, len(d.thresholds)),
		alerts:       append([]model.ThresholdAlert(nil), d.alerts...),
		events:       append([]model.AuditEvent(nil), d.events...),
		head:         d.head,
		articles:     make(map[string]model.Article, len(d.articles)),
		carts:        append([]model.Cart(nil), d.carts...),
		cartLines:    append([]model.CartLine(nil), d.cartLines...),
		orders:       append([]model.Order(nil), d.orders...),
		orderLines:   append([]model.OrderLine(nil), d.orderLines...),
		reservations: append([]model.Reservation(nil), d.reservations...),
		pins:         append([]model.PINCode(nil), d.pins...),
		claimed:      make(map[string]bool, len(d.claimed)),
	}
	for k, v := range d.claimed {
		cp.claimed[k] = v
	}
	for k, v := range d.levels {
		cp.levels[k] = v
	}
	for k, v := range d.thresholds {
		cp.thresholds[k] = v
	}
	for k, v := range d.articles {
		cp.articles[k] = v
	}
	return cp
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data storeData

	auditErr error
}

func NewStore() *Store {
	return &Store{
		data: storeData{
			levels:     map[model.StockKey]model.StockLevel{},
			thresholds: map[model.StockKey]model.Threshold{},
			articles:   map[string]model.Article{},
			claimed:    map[string]bool{},
		},
	}
}

var _ postgres.Transactor = (*Store)(nil)

// WithinTx runs fn as one serialized unit. Nested calls join the outer unit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	txCtx, hooks := postgres.WithHooks(context.WithValue(ctx, inTxKey{}, true))
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				s.restore(snapshot)
				s.txMu.Unlock()
				panic(p)
			}
		}()
		return fn(txCtx)
	}()
	if err != nil {
		s.restore(snapshot)
		s.txMu.Unlock()
		return err
	}
	s.txMu.Unlock()

	hooks.Run(context.WithoutCancel(ctx))
	return nil
}

func (s *Store) restore(snapshot storeData) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}

// FailAuditAppend makes every following audit append fail with err until
// it is called again with nil.
func (s *Store) FailAuditAppend(err error) {
	s.mu.Lock()
	s.auditErr = err
	s.mu.Unlock()
}

func (s *Store) AddArticle(a model.Article) {
	s.mu.Lock()
	s.data.articles[a.ID] = a
	s.mu.Unlock()
}

// Level returns the stored level, or nil when the row does not exist.
func (s *Store) Level(key model.StockKey) *model.StockLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.data.levels[key]
	if !ok {
		return nil
	}
	return &l
}

func (s *Store) Movements() []model.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StockMovement(nil), s.data.movements...)
}

func (s *Store) Alerts() []model.ThresholdAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ThresholdAlert(nil), s.data.alerts...)
}

func (s *Store) AuditEvents() []model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEvent(nil), s.data.events...)
}

// TamperAuditEvent rewrites a stored event in place, bypassing the chain.
func (s *Store) TamperAuditEvent(seq int64, fn func(e *model.AuditEvent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.events {
		if s.data.events[i].Seq == seq {
			fn(&s.data.events[i])
			return true
		}
	}
	return false
}

// DeleteAuditEvent removes a stored event, leaving a gap in the chain.
func (s *Store) DeleteAuditEvent(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.data.events[:0]
	for _, e := range s.data.events {
		if e.Seq != seq {
			kept = append(kept, e)
		}
	}
	s.data.events = kept
}

func (s *Store) Carts() []model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Cart(nil), s.data.carts...)
}

func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Order(nil), s.data.orders...)
}

func (s *Store) PINs() []model.PINCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PINCode(nil), s.data.pins...)
}
