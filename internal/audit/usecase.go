package audit

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type UseCase interface {
	Log(ctx context.Context, input *dto.LogInput) (*model.AuditEvent, error)
	VerifyRecord(ctx context.Context, eventID string) (*dto.RecordVerification, error)
	VerifyChain(ctx context.Context, r dto.ChainRange) (*dto.ChainReport, error)
	GetEntityHistory(ctx context.Context, entityType, entityID string) ([]model.AuditEvent, error)
	GetActorActivity(ctx context.Context, actorID string, limit int) ([]model.AuditEvent, error)
}
