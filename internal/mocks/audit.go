package mocks

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-stock-service/internal/audit"
	"github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type AuditRepository struct {
	s *Store
}

var _ audit.Repository = (*AuditRepository)(nil)

func NewAuditRepository(s *Store) *AuditRepository {
	return &AuditRepository{s: s}
}

func (r *AuditRepository) LockHead(_ context.Context) (*dto.ChainHead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	head := r.s.data.head
	return &head, nil
}

func (r *AuditRepository) Append(_ context.Context, e *model.AuditEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.auditErr != nil {
		return r.s.auditErr
	}
	if e.Seq != r.s.data.head.LastSeq+1 {
		return fmt.Errorf("audit seq %d does not follow head %d", e.Seq, r.s.data.head.LastSeq)
	}
	r.s.data.events = append(r.s.data.events, *e)
	r.s.data.head = dto.ChainHead{LastSeq: e.Seq, LastHash: e.IntegrityHash}
	return nil
}

func (r *AuditRepository) GetByID(_ context.Context, id string) (*model.AuditEvent, error) {
	return r.find(func(e *model.AuditEvent) bool { return e.ID == id }), nil
}

func (r *AuditRepository) GetBySeq(_ context.Context, seq int64) (*model.AuditEvent, error) {
	return r.find(func(e *model.AuditEvent) bool { return e.Seq == seq }), nil
}

func (r *AuditRepository) find(match func(e *model.AuditEvent) bool) *model.AuditEvent {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.data.events {
		if match(&e) {
			return &e
		}
	}
	return nil
}

func (r *AuditRepository) ListRange(_ context.Context, fromSeq, toSeq int64, limit int) ([]model.AuditEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var events []model.AuditEvent
	for _, e := range r.s.data.events {
		if e.Seq < fromSeq || (toSeq > 0 && e.Seq > toSeq) {
			continue
		}
		events = append(events, e)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

func (r *AuditRepository) ListByEntity(_ context.Context, entityType, entityID string) ([]model.AuditEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var events []model.AuditEvent
	for _, e := range r.s.data.events {
		if e.EntityType == entityType && e.EntityID == entityID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (r *AuditRepository) ListByActor(_ context.Context, actorID string, limit int) ([]model.AuditEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var events []model.AuditEvent
	for i := len(r.s.data.events) - 1; i >= 0; i-- {
		e := r.s.data.events[i]
		if e.ActorID != actorID {
			continue
		}
		events = append(events, e)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}
