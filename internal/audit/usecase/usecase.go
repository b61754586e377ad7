package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/audit"
	"github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/audit/integrity"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/metrics"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	systemActor = "system"
	verifyBatch = 500

	reasonHashMismatch  = "hash mismatch"
	reasonBrokenLink    = "prev_hash does not match preceding record"
	reasonSequenceGap   = "sequence gap"
	reasonMissingPrev   = "preceding record not found"
	reasonAfterFailure  = "preceded by an unverified record"
	reasonNotFirstEmpty = "first record must have an empty prev_hash"
)

type auditUseCase struct {
	repo   audit.Repository
	tx     postgres.Transactor
	logger logger.ZapLogger
	now    func() time.Time
}

func NewAuditUseCase(repo audit.Repository, tx postgres.Transactor, log logger.ZapLogger) audit.UseCase {
	return &auditUseCase{
		repo:   repo,
		tx:     tx,
		logger: log,
		now:    time.Now,
	}
}

// Log appends one event to the chain. When ctx carries a transaction the
// event shares its fate, so a failed write aborts the caller's operation.
func (uc *auditUseCase) Log(ctx context.Context, input *dto.LogInput) (*model.AuditEvent, error) {
	before, err := integrity.EncodeData(input.Before)
	if err != nil {
		return nil, err
	}
	after, err := integrity.EncodeData(input.After)
	if err != nil {
		return nil, err
	}

	actor := input.ActorID
	if actor == "" {
		actor = auth.GetUserID(ctx)
	}
	if actor == "" {
		actor = systemActor
	}

	var event *model.AuditEvent
	err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		head, err := uc.repo.LockHead(ctx)
		if err != nil {
			return err
		}

		e := &model.AuditEvent{
			ID:         uuid.New().String(),
			Seq:        head.LastSeq + 1,
			ActorID:    actor,
			EntityType: input.EntityType,
			EntityID:   input.EntityID,
			Action:     input.Action,
			BeforeData: before,
			AfterData:  after,
			RequestID:  auth.GetRequestID(ctx),
			CreatedAt:  uc.now().UTC().Truncate(time.Microsecond),
			PrevHash:   head.LastHash,
		}
		if e.IntegrityHash, err = integrity.EventHash(e); err != nil {
			return err
		}
		if err := uc.repo.Append(ctx, e); err != nil {
			return err
		}

		event = e
		postgres.AfterCommit(ctx, func(context.Context) { metrics.AuditEvents.Inc() })
		return nil
	})
	if err != nil {
		uc.logger.Error("failed to write audit event",
			zap.String("entity_type", input.EntityType),
			zap.String("entity_id", input.EntityID),
			zap.String("action", input.Action),
			zap.Error(err),
		)
		return nil, err
	}
	return event, nil
}

func (uc *auditUseCase) VerifyRecord(ctx context.Context, eventID string) (*dto.RecordVerification, error) {
	e, err := uc.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperror.ErrNotFound.WithMessage("audit event %s not found", eventID)
	}

	ok, err := integrity.VerifyEvent(e)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.AuditVerificationFailures.Inc()
		uc.logger.Warn("audit record failed verification", zap.String("event_id", e.ID), zap.Int64("seq", e.Seq))
	}
	return &dto.RecordVerification{EventID: e.ID, Seq: e.Seq, Valid: ok}, nil
}

// VerifyChain walks the range in sequence order. A record counts as
// verified only when its own hash holds, it links to its predecessor and
// every earlier record in the range was verified.
func (uc *auditUseCase) VerifyChain(ctx context.Context, r dto.ChainRange) (*dto.ChainReport, error) {
	ctx, span := tracing.Start(ctx, "audit.VerifyChain",
		attribute.Int64("from_seq", r.FromSeq), attribute.Int64("to_seq", r.ToSeq))
	report, err := uc.verifyChain(ctx, r)
	tracing.End(span, err)
	return report, err
}

func (uc *auditUseCase) verifyChain(ctx context.Context, r dto.ChainRange) (*dto.ChainReport, error) {
	from := r.FromSeq
	if from < 1 {
		from = 1
	}
	report := &dto.ChainReport{Errors: []dto.ChainError{}}

	var (
		expectedPrev string
		prevSeq      = from - 1
		chainOK      = true
		started      bool
	)

	for {
		batch, err := uc.repo.ListRange(ctx, from, r.ToSeq, verifyBatch)
		if err != nil {
			return nil, err
		}

		for i := range batch {
			e := &batch[i]
			if !started {
				started = true
				prevSeq = e.Seq - 1
				if expectedPrev, err = uc.predecessorHash(ctx, e); err != nil {
					return nil, err
				}
			}

			reason, err := uc.checkLink(e, prevSeq, expectedPrev)
			if err != nil {
				return nil, err
			}
			report.TotalRecords++

			switch {
			case reason != "":
				chainOK = false
				report.Errors = append(report.Errors, dto.ChainError{Seq: e.Seq, EventID: e.ID, Reason: reason})
			case !chainOK:
				report.Errors = append(report.Errors, dto.ChainError{Seq: e.Seq, EventID: e.ID, Reason: reasonAfterFailure})
			default:
				report.VerifiedRecords++
			}

			expectedPrev = e.IntegrityHash
			prevSeq = e.Seq
		}

		if len(batch) < verifyBatch {
			break
		}
		from = batch[len(batch)-1].Seq + 1
	}

	report.Valid = len(report.Errors) == 0
	if !report.Valid {
		metrics.AuditVerificationFailures.Add(float64(len(report.Errors)))
		uc.logger.Warn("audit chain verification failed",
			zap.Int("total", report.TotalRecords),
			zap.Int("verified", report.VerifiedRecords),
			zap.Int64("first_failure_seq", report.Errors[0].Seq),
		)
	}
	return report, nil
}

// predecessorHash returns the hash the first record of a range must link to.
func (uc *auditUseCase) predecessorHash(ctx context.Context, first *model.AuditEvent) (string, error) {
	if first.Seq <= 1 {
		return "", nil
	}
	prev, err := uc.repo.GetBySeq(ctx, first.Seq-1)
	if err != nil {
		return "", err
	}
	if prev == nil {
		return "", apperror.ErrIntegrity.WithMessage("%s (seq %d)", reasonMissingPrev, first.Seq-1)
	}
	return prev.IntegrityHash, nil
}

func (uc *auditUseCase) checkLink(e *model.AuditEvent, prevSeq int64, expectedPrev string) (string, error) {
	if e.Seq != prevSeq+1 {
		return reasonSequenceGap, nil
	}
	if e.Seq == 1 && e.PrevHash != "" {
		return reasonNotFirstEmpty, nil
	}
	if e.PrevHash != expectedPrev {
		return reasonBrokenLink, nil
	}
	ok, err := integrity.VerifyEvent(e)
	if err != nil {
		return "", fmt.Errorf("failed to hash audit event %s: %w", e.ID, err)
	}
	if !ok {
		return reasonHashMismatch, nil
	}
	return "", nil
}

func (uc *auditUseCase) GetEntityHistory(ctx context.Context, entityType, entityID string) ([]model.AuditEvent, error) {
	return uc.repo.ListByEntity(ctx, entityType, entityID)
}

func (uc *auditUseCase) GetActorActivity(ctx context.Context, actorID string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	return uc.repo.ListByActor(ctx, actorID, limit)
}
