package audit

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type Repository interface {
	// LockHead locks the single chain head row until the transaction ends.
	LockHead(ctx context.Context) (*dto.ChainHead, error)
	// Append inserts e and moves the head to it.
	Append(ctx context.Context, e *model.AuditEvent) error

	GetByID(ctx context.Context, id string) (*model.AuditEvent, error)
	GetBySeq(ctx context.Context, seq int64) (*model.AuditEvent, error)
	ListRange(ctx context.Context, fromSeq, toSeq int64, limit int) ([]model.AuditEvent, error)
	ListByEntity(ctx context.Context, entityType, entityID string) ([]model.AuditEvent, error)
	ListByActor(ctx context.Context, actorID string, limit int) ([]model.AuditEvent, error)
}
