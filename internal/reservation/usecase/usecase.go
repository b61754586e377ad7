package usecase

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/audit"
	auditDTO "github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/audit/integrity"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-stock-service/internal/reservation"
	"github.com/fekuna/omnipos-stock-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
	stockDTO "github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type reservationUseCase struct {
	repo   reservation.Repository
	stock  stock.UseCase
	audit  audit.UseCase
	tx     postgres.Transactor
	logger logger.ZapLogger
	now    func() time.Time
}

func NewReservationUseCase(
	repo reservation.Repository,
	stockUC stock.UseCase,
	auditUC audit.UseCase,
	tx postgres.Transactor,
	log logger.ZapLogger,
) reservation.UseCase {
	return &reservationUseCase{
		repo:   repo,
		stock:  stockUC,
		audit:  auditUC,
		tx:     tx,
		logger: log,
		now:    time.Now,
	}
}

func (uc *reservationUseCase) clock() time.Time {
	return uc.now().UTC().Truncate(time.Microsecond)
}

func (uc *reservationUseCase) Create(ctx context.Context, input *dto.CreateInput) (*model.Reservation, error) {
	if !input.Quantity.IsPositive() || !model.HasQuantityScale(input.Quantity) {
		return nil, apperror.ErrInvalidQuantity.WithMessage("quantity %s is not valid", input.Quantity.String())
	}

	var r *model.Reservation
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := uc.clock()
		r = &model.Reservation{
			BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			TechnicianID: input.TechnicianID,
			ArticleID:    input.ArticleID,
			QtyReserved:  input.Quantity,
			ScheduledFor: input.ScheduledFor,
			Status:       model.ReservationPending,
			Notes:        input.Notes,
			CreatedBy:    input.ActorID,
		}
		if err := uc.repo.Create(ctx, r); err != nil {
			return err
		}
		return uc.log(ctx, r, "create_reservation", input.ActorID, nil)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Approve holds the quantity on the technician's stock level. It fails
// with apperror.ErrInsufficientAvailable when the stock cannot cover it.
func (uc *reservationUseCase) Approve(ctx context.Context, reservationID, approverID string) (*model.Reservation, error) {
	var r *model.Reservation
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if r, err = uc.lock(ctx, reservationID); err != nil {
			return err
		}
		if r.Status != model.ReservationPending {
			return apperror.ErrInvalidTransition.WithMessage("cannot approve reservation %s in status %s", r.ID, r.Status)
		}

		if _, err := uc.stock.Reserve(ctx, &stockDTO.ReserveInput{
			TechnicianID: r.TechnicianID,
			ArticleID:    r.ArticleID,
			Quantity:     r.QtyReserved,
			Reference:    "reservation:" + r.ID,
			ActorID:      approverID,
		}); err != nil {
			return err
		}

		before := statusState(r.Status)
		now := uc.clock()
		r.Status = model.ReservationApproved
		r.ApprovedBy = &approverID
		r.ApprovedAt = &now
		r.UpdatedAt = now
		if err := uc.repo.Update(ctx, r); err != nil {
			return err
		}
		return uc.log(ctx, r, "approve_reservation", approverID, before)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Cancel is idempotent. Cancelling an approved reservation gives back
// whatever part of its quantity is still reserved.
func (uc *reservationUseCase) Cancel(ctx context.Context, reservationID, actorID string) (*model.Reservation, error) {
	var r *model.Reservation
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if r, err = uc.lock(ctx, reservationID); err != nil {
			return err
		}

		switch r.Status {
		case model.ReservationCancelled:
			return nil
		case model.ReservationApproved:
			level, err := uc.stock.Level(ctx, r.Key())
			if err != nil {
				return err
			}
			// issues may already have consumed part of the hold
			if release := decimal.Min(r.QtyReserved, level.ReservedQty); release.IsPositive() {
				if _, err := uc.stock.Release(ctx, &stockDTO.ReserveInput{
					TechnicianID: r.TechnicianID,
					ArticleID:    r.ArticleID,
					Quantity:     release,
					Reference:    "reservation:" + r.ID,
					ActorID:      actorID,
				}); err != nil {
					return err
				}
			}
		}

		before := statusState(r.Status)
		r.Status = model.ReservationCancelled
		r.UpdatedAt = uc.clock()
		if err := uc.repo.Update(ctx, r); err != nil {
			return err
		}
		return uc.log(ctx, r, "cancel_reservation", actorID, before)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("reservation cancelled", zap.String("reservation_id", r.ID), zap.String("actor_id", actorID))
	return r, nil
}

func (uc *reservationUseCase) Get(ctx context.Context, reservationID string) (*model.Reservation, error) {
	r, err := uc.repo.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperror.ErrNotFound.WithMessage("reservation %s not found", reservationID)
	}
	return r, nil
}

func (uc *reservationUseCase) List(ctx context.Context, filters *dto.Filters) ([]model.Reservation, error) {
	if filters == nil {
		filters = &dto.Filters{}
	}
	return uc.repo.List(ctx, filters)
}

func (uc *reservationUseCase) lock(ctx context.Context, id string) (*model.Reservation, error) {
	r, err := uc.repo.LockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperror.ErrNotFound.WithMessage("reservation %s not found", id)
	}
	return r, nil
}

func (uc *reservationUseCase) log(ctx context.Context, r *model.Reservation, action, actorID string, before map[string]any) error {
	after := map[string]any{
		"status":        string(r.Status),
		"technician_id": r.TechnicianID,
		"article_id":    r.ArticleID,
		"qty_reserved":  integrity.FormatDecimal(r.QtyReserved),
	}
	if r.ScheduledFor != nil {
		after["scheduled_for"] = integrity.FormatTime(*r.ScheduledFor)
	}
	_, err := uc.audit.Log(ctx, &auditDTO.LogInput{
		ActorID:    actorID,
		EntityType: model.EntityReservation,
		EntityID:   r.ID,
		Action:     action,
		Before:     before,
		After:      after,
	})
	return err
}

func statusState(s model.ReservationStatus) map[string]any {
	return map[string]any{"status": string(s)}
}
