package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/audit"
	auditDTO "github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/audit/integrity"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/metrics"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/tracing"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
	"github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	systemActor = "system"

	eventThresholdAlert = "ThresholdAlert"
)

type Options struct {
	// AlertWindow is the minimum delay between two alerts for one (technician, article).
	AlertWindow time.Duration
	CacheTTL    time.Duration
}

type stockUseCase struct {
	repo      stock.Repository
	audit     audit.UseCase
	tx        postgres.Transactor
	cache     cache.Cache
	publisher broker.Publisher
	opts      Options
	logger    logger.ZapLogger
	now       func() time.Time
}

// NewStockUseCase wires the ledger. cache and publisher may be nil.
func NewStockUseCase(
	repo stock.Repository,
	auditUC audit.UseCase,
	tx postgres.Transactor,
	c cache.Cache,
	publisher broker.Publisher,
	opts Options,
	log logger.ZapLogger,
) stock.UseCase {
	if opts.AlertWindow <= 0 {
		opts.AlertWindow = 24 * time.Hour
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &stockUseCase{
		repo:      repo,
		audit:     auditUC,
		tx:        tx,
		cache:     c,
		publisher: publisher,
		opts:      opts,
		logger:    log,
		now:       time.Now,
	}
}

func (uc *stockUseCase) clock() time.Time {
	return uc.now().UTC().Truncate(time.Microsecond)
}

func validQuantity(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return apperror.ErrInvalidQuantity.WithMessage("quantity must be positive, got %s", qty.String())
	}
	if !model.HasQuantityScale(qty) {
		return apperror.ErrInvalidQuantity.WithMessage("quantity %s has more than %d decimal places", qty.String(), model.QuantityPlaces)
	}
	return nil
}

func (uc *stockUseCase) Issue(ctx context.Context, input *dto.IssueInput) (*model.StockMovement, error) {
	if err := validQuantity(input.Quantity); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "stock.Issue",
		attribute.String("technician_id", input.TechnicianID), attribute.String("article_id", input.ArticleID))

	var movement *model.StockMovement
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := uc.clock()
		level, err := uc.repo.LockLevel(ctx, model.StockKey{TechnicianID: input.TechnicianID, ArticleID: input.ArticleID}, now)
		if err != nil {
			return err
		}
		if input.SourceEventKey != "" {
			claimed, err := uc.repo.ClaimEvent(ctx, input.SourceEventKey, now)
			if err != nil {
				return err
			}
			if !claimed {
				return apperror.ErrDuplicateEvent.WithMessage("event %s was already applied", input.SourceEventKey)
			}
		}

		if input.Quantity.GreaterThan(level.Available()) {
			return apperror.ErrInsufficientStock.WithMessage("requested %s, available %s",
				integrity.FormatDecimal(input.Quantity), integrity.FormatDecimal(level.Available()))
		}

		before := levelState(level)
		level.Quantity = level.Quantity.Sub(input.Quantity)
		level.ReservedQty = level.ReservedQty.Sub(decimal.Min(input.Quantity, level.ReservedQty))
		level.UpdatedAt = now
		if err := uc.repo.UpdateLevel(ctx, level); err != nil {
			return err
		}

		movement = &model.StockMovement{
			TechnicianID:  input.TechnicianID,
			ArticleID:     input.ArticleID,
			Delta:         input.Quantity.Neg(),
			Reason:        model.MovementIssue,
			LinkedOrderID: input.LinkedOrderID,
			LocationText:  input.Location,
			Notes:         input.Notes,
			PerformedBy:   input.ActorID,
		}
		return uc.commitMovement(ctx, level, movement, "issue_stock", before, input.ActorID, now)
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("stock issued",
		zap.String("technician_id", input.TechnicianID),
		zap.String("article_id", input.ArticleID),
		zap.String("quantity", input.Quantity.String()),
		zap.String("movement_id", movement.ID),
	)
	return movement, nil
}

func (uc *stockUseCase) Receive(ctx context.Context, input *dto.ReceiveInput) (*model.StockMovement, error) {
	if err := validQuantity(input.Quantity); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "stock.Receive",
		attribute.String("technician_id", input.TechnicianID), attribute.String("article_id", input.ArticleID))

	var movement *model.StockMovement
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := uc.clock()
		level, err := uc.repo.LockLevel(ctx, model.StockKey{TechnicianID: input.TechnicianID, ArticleID: input.ArticleID}, now)
		if err != nil {
			return err
		}

		before := levelState(level)
		level.Quantity = level.Quantity.Add(input.Quantity)
		level.UpdatedAt = now
		if err := uc.repo.UpdateLevel(ctx, level); err != nil {
			return err
		}

		movement = &model.StockMovement{
			TechnicianID:  input.TechnicianID,
			ArticleID:     input.ArticleID,
			Delta:         input.Quantity,
			Reason:        model.MovementReceipt,
			LinkedOrderID: input.LinkedOrderID,
			Notes:         input.Notes,
			PerformedBy:   input.ActorID,
		}
		return uc.commitMovement(ctx, level, movement, "receive_stock", before, input.ActorID, now)
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (uc *stockUseCase) Adjust(ctx context.Context, input *dto.AdjustInput) (*model.StockMovement, error) {
	if input.NewQuantity.IsNegative() || !model.HasQuantityScale(input.NewQuantity) {
		return nil, apperror.ErrInvalidQuantity.WithMessage("new quantity %s is not valid", input.NewQuantity.String())
	}
	ctx, span := tracing.Start(ctx, "stock.Adjust",
		attribute.String("technician_id", input.TechnicianID), attribute.String("article_id", input.ArticleID))

	var movement *model.StockMovement
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := uc.clock()
		level, err := uc.repo.LockLevel(ctx, model.StockKey{TechnicianID: input.TechnicianID, ArticleID: input.ArticleID}, now)
		if err != nil {
			return err
		}

		if level.Quantity.Equal(input.NewQuantity) {
			return apperror.ErrNoChange.WithMessage("quantity is already %s", integrity.FormatDecimal(level.Quantity))
		}
		if input.NewQuantity.LessThan(level.ReservedQty) {
			return apperror.ErrInvalidQuantity.WithMessage("new quantity %s is below reserved %s",
				integrity.FormatDecimal(input.NewQuantity), integrity.FormatDecimal(level.ReservedQty))
		}

		before := levelState(level)
		delta := input.NewQuantity.Sub(level.Quantity)
		level.Quantity = input.NewQuantity
		level.UpdatedAt = now
		if err := uc.repo.UpdateLevel(ctx, level); err != nil {
			return err
		}

		movement = &model.StockMovement{
			TechnicianID: input.TechnicianID,
			ArticleID:    input.ArticleID,
			Delta:        delta,
			Reason:       model.MovementAdjust,
			Notes:        input.Reason,
			PerformedBy:  input.ActorID,
		}
		return uc.commitMovement(ctx, level, movement, "adjust_stock", before, input.ActorID, now)
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("stock adjusted",
		zap.String("technician_id", input.TechnicianID),
		zap.String("article_id", input.ArticleID),
		zap.String("delta", movement.Delta.String()),
		zap.String("actor_id", input.ActorID),
	)
	return movement, nil
}

func (uc *stockUseCase) Transfer(ctx context.Context, input *dto.TransferInput) (*dto.TransferResult, error) {
	if input.FromTechnicianID == input.ToTechnicianID {
		return nil, apperror.ErrSameTechnician
	}
	if err := validQuantity(input.Quantity); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "stock.Transfer",
		attribute.String("from_technician_id", input.FromTechnicianID),
		attribute.String("to_technician_id", input.ToTechnicianID),
		attribute.String("article_id", input.ArticleID))

	result := &dto.TransferResult{}
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := uc.clock()
		fromKey := model.StockKey{TechnicianID: input.FromTechnicianID, ArticleID: input.ArticleID}
		toKey := model.StockKey{TechnicianID: input.ToTechnicianID, ArticleID: input.ArticleID}

		levels, err := uc.lockSorted(ctx, []model.StockKey{fromKey, toKey}, now)
		if err != nil {
			return err
		}
		src, dst := levels[fromKey], levels[toKey]

		if input.Quantity.GreaterThan(src.Available()) {
			return apperror.ErrInsufficientStock.WithMessage("requested %s, available %s",
				integrity.FormatDecimal(input.Quantity), integrity.FormatDecimal(src.Available()))
		}

		srcBefore, dstBefore := levelState(src), levelState(dst)
		src.Quantity = src.Quantity.Sub(input.Quantity)
		src.ReservedQty = src.ReservedQty.Sub(decimal.Min(input.Quantity, src.ReservedQty))
		src.UpdatedAt = now
		dst.Quantity = dst.Quantity.Add(input.Quantity)
		dst.UpdatedAt = now
		if err := uc.repo.UpdateLevel(ctx, src); err != nil {
			return err
		}
		if err := uc.repo.UpdateLevel(ctx, dst); err != nil {
			return err
		}

		result.Out = &model.StockMovement{
			TechnicianID: input.FromTechnicianID,
			ArticleID:    input.ArticleID,
			Delta:        input.Quantity.Neg(),
			Reason:       model.MovementTransfer,
			Notes:        transferNote("to", input.ToTechnicianID, input.Notes),
			PerformedBy:  input.ActorID,
		}
		if err := uc.commitMovement(ctx, src, result.Out, "transfer_stock_out", srcBefore, input.ActorID, now); err != nil {
			return err
		}

		result.In = &model.StockMovement{
			TechnicianID: input.ToTechnicianID,
			ArticleID:    input.ArticleID,
			Delta:        input.Quantity,
			Reason:       model.MovementTransfer,
			Notes:        transferNote("from", input.FromTechnicianID, input.Notes),
			PerformedBy:  input.ActorID,
		}
		return uc.commitMovement(ctx, dst, result.In, "transfer_stock_in", dstBefore, input.ActorID, now)
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("stock transferred",
		zap.String("from_technician_id", input.FromTechnicianID),
		zap.String("to_technician_id", input.ToTechnicianID),
		zap.String("article_id", input.ArticleID),
		zap.String("quantity", input.Quantity.String()),
	)
	return result, nil
}

func transferNote(direction, technicianID, notes string) string {
	note := fmt.Sprintf("Transfer %s %s", direction, technicianID)
	if notes != "" {
		note += ": " + notes
	}
	return note
}

func (uc *stockUseCase) Reserve(ctx context.Context, input *dto.ReserveInput) (*model.StockLevel, error) {
	if err := validQuantity(input.Quantity); err != nil {
		return nil, err
	}

	var level *model.StockLevel
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := uc.clock()
		var err error
		level, err = uc.repo.LockLevel(ctx, model.StockKey{TechnicianID: input.TechnicianID, ArticleID: input.ArticleID}, now)
		if err != nil {
			return err
		}

		if input.Quantity.GreaterThan(level.Available()) {
			return apperror.ErrInsufficientAvailable.WithMessage("requested %s, available %s",
				integrity.FormatDecimal(input.Quantity), integrity.FormatDecimal(level.Available()))
		}

		before := levelState(level)
		level.ReservedQty = level.ReservedQty.Add(input.Quantity)
		level.UpdatedAt = now
		if err := uc.repo.UpdateLevel(ctx, level); err != nil {
			return err
		}
		return uc.commitLevelChange(ctx, level, "reserve_stock", before, input, now)
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}

func (uc *stockUseCase) Release(ctx context.Context, input *dto.ReserveInput) (*model.StockLevel, error) {
	if err := validQuantity(input.Quantity); err != nil {
		return nil, err
	}

	var level *model.StockLevel
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := uc.clock()
		var err error
		level, err = uc.repo.LockLevel(ctx, model.StockKey{TechnicianID: input.TechnicianID, ArticleID: input.ArticleID}, now)
		if err != nil {
			return err
		}

		if input.Quantity.GreaterThan(level.ReservedQty) {
			return apperror.ErrInvalidRelease.WithMessage("release %s, reserved %s",
				integrity.FormatDecimal(input.Quantity), integrity.FormatDecimal(level.ReservedQty))
		}

		before := levelState(level)
		level.ReservedQty = level.ReservedQty.Sub(input.Quantity)
		level.UpdatedAt = now
		if err := uc.repo.UpdateLevel(ctx, level); err != nil {
			return err
		}
		return uc.commitLevelChange(ctx, level, "release_stock", before, input, now)
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}

func (uc *stockUseCase) LockLevels(ctx context.Context, keys []model.StockKey) error {
	return uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := uc.lockSorted(ctx, keys, uc.clock())
		return err
	})
}

func (uc *stockUseCase) Available(ctx context.Context, key model.StockKey) (decimal.Decimal, error) {
	level, err := uc.Level(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return level.Available(), nil
}

func (uc *stockUseCase) Level(ctx context.Context, key model.StockKey) (*model.StockLevel, error) {
	var level *model.StockLevel
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		level, err = uc.repo.LockLevel(ctx, key, uc.clock())
		return err
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}

// lockSorted locks every distinct key in (technician, article) order.
func (uc *stockUseCase) lockSorted(ctx context.Context, keys []model.StockKey, now time.Time) (map[model.StockKey]*model.StockLevel, error) {
	sorted := make([]model.StockKey, 0, len(keys))
	seen := make(map[model.StockKey]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			sorted = append(sorted, k)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	levels := make(map[model.StockKey]*model.StockLevel, len(sorted))
	for _, k := range sorted {
		level, err := uc.repo.LockLevel(ctx, k, now)
		if err != nil {
			return nil, err
		}
		levels[k] = level
	}
	return levels, nil
}

// commitMovement seals and stores m, then runs the shared post-mutation
// steps. level must already hold its new values.
func (uc *stockUseCase) commitMovement(ctx context.Context, level *model.StockLevel, m *model.StockMovement, action string, before map[string]any, actorID string, now time.Time) error {
	m.ID = uuid.New().String()
	m.BalanceAfter = level.Quantity
	m.CreatedAt = now

	var err error
	if m.IntegrityHash, err = integrity.MovementHash(m); err != nil {
		return err
	}
	if err := uc.repo.InsertMovement(ctx, m); err != nil {
		return err
	}

	alert, err := uc.checkThreshold(ctx, level, now)
	if err != nil {
		return err
	}

	after := levelState(level)
	after["movement_id"] = m.ID
	after["delta"] = integrity.FormatDecimal(m.Delta)
	after["reason"] = string(m.Reason)
	if m.LinkedOrderID != nil {
		after["linked_order_id"] = *m.LinkedOrderID
	}
	if m.LocationText != "" {
		after["location"] = m.LocationText
	}
	if _, err := uc.audit.Log(ctx, &auditDTO.LogInput{
		ActorID:    actorID,
		EntityType: model.EntityStockMovement,
		EntityID:   m.ID,
		Action:     action,
		Before:     before,
		After:      after,
	}); err != nil {
		return err
	}
	if err := uc.logAlert(ctx, alert); err != nil {
		return err
	}

	reason := m.Reason
	technicianID := level.TechnicianID
	postgres.AfterCommit(ctx, func(ctx context.Context) {
		metrics.StockMovements.WithLabelValues(string(reason)).Inc()
		uc.invalidate(ctx, technicianID)
		uc.publishAlert(ctx, alert)
	})
	return nil
}

// commitLevelChange covers reservations, which change a level without a movement.
func (uc *stockUseCase) commitLevelChange(ctx context.Context, level *model.StockLevel, action string, before map[string]any, input *dto.ReserveInput, now time.Time) error {
	alert, err := uc.checkThreshold(ctx, level, now)
	if err != nil {
		return err
	}

	after := levelState(level)
	after["quantity_changed"] = integrity.FormatDecimal(input.Quantity)
	if input.Reference != "" {
		after["reference"] = input.Reference
	}
	if _, err := uc.audit.Log(ctx, &auditDTO.LogInput{
		ActorID:    input.ActorID,
		EntityType: model.EntityStockLevel,
		EntityID:   level.ID,
		Action:     action,
		Before:     before,
		After:      after,
	}); err != nil {
		return err
	}
	if err := uc.logAlert(ctx, alert); err != nil {
		return err
	}

	technicianID := level.TechnicianID
	postgres.AfterCommit(ctx, func(ctx context.Context) {
		uc.invalidate(ctx, technicianID)
		uc.publishAlert(ctx, alert)
	})
	return nil
}

// checkThreshold emits at most one alert per window while available stock
// sits at or below an active threshold.
func (uc *stockUseCase) checkThreshold(ctx context.Context, level *model.StockLevel, now time.Time) (*model.ThresholdAlert, error) {
	th, err := uc.repo.LockThreshold(ctx, level.Key())
	if err != nil {
		return nil, err
	}
	if th == nil || !th.Breached(level.Available()) {
		return nil, nil
	}
	if th.LastAlertSent != nil && now.Sub(*th.LastAlertSent) < uc.opts.AlertWindow {
		return nil, nil
	}

	alert := &model.ThresholdAlert{
		ID:             uuid.New().String(),
		TechnicianID:   level.TechnicianID,
		ArticleID:      level.ArticleID,
		CurrentStock:   level.Available(),
		ThresholdLevel: th.MinQty,
		AlertMethod:    model.AlertMethodEvent,
		AlertSentAt:    now,
	}
	if err := uc.repo.InsertAlert(ctx, alert); err != nil {
		return nil, err
	}

	th.LastAlertSent = &now
	th.UpdatedAt = now
	if err := uc.repo.UpdateThreshold(ctx, th); err != nil {
		return nil, err
	}
	return alert, nil
}

func (uc *stockUseCase) logAlert(ctx context.Context, alert *model.ThresholdAlert) error {
	if alert == nil {
		return nil
	}
	_, err := uc.audit.Log(ctx, &auditDTO.LogInput{
		ActorID:    systemActor,
		EntityType: model.EntityThresholdAlert,
		EntityID:   alert.ID,
		Action:     "threshold_alert",
		After: map[string]any{
			"technician_id":   alert.TechnicianID,
			"article_id":      alert.ArticleID,
			"current_stock":   integrity.FormatDecimal(alert.CurrentStock),
			"threshold_level": integrity.FormatDecimal(alert.ThresholdLevel),
		},
	})
	return err
}

func (uc *stockUseCase) publishAlert(ctx context.Context, alert *model.ThresholdAlert) {
	if alert == nil {
		return
	}
	metrics.ThresholdAlerts.Inc()
	uc.logger.Warn("stock below threshold",
		zap.String("technician_id", alert.TechnicianID),
		zap.String("article_id", alert.ArticleID),
		zap.String("available", alert.CurrentStock.String()),
		zap.String("threshold", alert.ThresholdLevel.String()),
	)
	if uc.publisher == nil {
		return
	}
	event := dto.AlertEvent{
		EventID:   uuid.New().String(),
		EventType: eventThresholdAlert,
		Payload:   alert,
		Timestamp: alert.AlertSentAt,
	}
	if err := uc.publisher.Publish(ctx, alert.TechnicianID, event); err != nil {
		uc.logger.Error("failed to publish threshold alert", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

func stockCacheKey(technicianID string, includeZero bool) string {
	return fmt.Sprintf("stock:%s:%t", technicianID, includeZero)
}

func (uc *stockUseCase) invalidate(ctx context.Context, technicianID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Delete(ctx, stockCacheKey(technicianID, true), stockCacheKey(technicianID, false)); err != nil {
		uc.logger.Error("failed to invalidate stock cache", zap.String("technician_id", technicianID), zap.Error(err))
	}
}

func (uc *stockUseCase) GetStock(ctx context.Context, technicianID string, includeZero bool) ([]dto.StockItem, error) {
	key := stockCacheKey(technicianID, includeZero)
	if uc.cache != nil {
		raw, err := uc.cache.Get(ctx, key)
		switch {
		case err == nil:
			var items []dto.StockItem
			if jsonErr := json.Unmarshal(raw, &items); jsonErr == nil {
				return items, nil
			}
			uc.logger.Warn("discarding malformed stock cache entry", zap.String("key", key))
		case !errors.Is(err, cache.ErrMiss):
			uc.logger.Warn("stock cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	levels, err := uc.repo.ListLevels(ctx, technicianID, includeZero)
	if err != nil {
		return nil, err
	}
	items := make([]dto.StockItem, 0, len(levels))
	for i := range levels {
		items = append(items, dto.NewStockItem(&levels[i]))
	}

	if uc.cache != nil {
		if raw, err := json.Marshal(items); err == nil {
			if err := uc.cache.Set(ctx, key, raw, uc.opts.CacheTTL); err != nil {
				uc.logger.Warn("stock cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return items, nil
}

func (uc *stockUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

func (uc *stockUseCase) VerifyMovement(ctx context.Context, movementID string) (bool, error) {
	m, err := uc.repo.GetMovement(ctx, movementID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, apperror.ErrNotFound.WithMessage("movement %s not found", movementID)
	}
	ok, err := integrity.VerifyMovement(m)
	if err != nil {
		return false, err
	}
	if !ok {
		uc.logger.Warn("stock movement failed integrity check", zap.String("movement_id", m.ID))
	}
	return ok, nil
}

func (uc *stockUseCase) SetThreshold(ctx context.Context, input *dto.SetThresholdInput) (*model.Threshold, error) {
	if input.MinQty.IsNegative() || !model.HasQuantityScale(input.MinQty) {
		return nil, apperror.ErrInvalidQuantity.WithMessage("threshold %s is not valid", input.MinQty.String())
	}

	var th *model.Threshold
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := uc.clock()
		key := model.StockKey{TechnicianID: input.TechnicianID, ArticleID: input.ArticleID}

		// the level row guards its threshold row
		if _, err := uc.repo.LockLevel(ctx, key, now); err != nil {
			return err
		}
		existing, err := uc.repo.LockThreshold(ctx, key)
		if err != nil {
			return err
		}

		var before map[string]any
		if existing == nil {
			th = &model.Threshold{
				BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
				TechnicianID: input.TechnicianID,
				ArticleID:    input.ArticleID,
				MinQty:       input.MinQty,
				IsActive:     input.IsActive,
			}
			if err := uc.repo.InsertThreshold(ctx, th); err != nil {
				return err
			}
		} else {
			before = thresholdState(existing)
			th = existing
			th.MinQty = input.MinQty
			th.IsActive = input.IsActive
			th.UpdatedAt = now
			if err := uc.repo.UpdateThreshold(ctx, th); err != nil {
				return err
			}
		}

		_, err = uc.audit.Log(ctx, &auditDTO.LogInput{
			ActorID:    input.ActorID,
			EntityType: model.EntityThreshold,
			EntityID:   th.ID,
			Action:     "set_threshold",
			Before:     before,
			After:      thresholdState(th),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return th, nil
}

func (uc *stockUseCase) ListAlerts(ctx context.Context, filters *dto.AlertFilters) ([]model.ThresholdAlert, error) {
	return uc.repo.ListAlerts(ctx, filters)
}

func (uc *stockUseCase) AcknowledgeAlert(ctx context.Context, alertID, actorID string) (*model.ThresholdAlert, error) {
	var alert *model.ThresholdAlert
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		alert, err = uc.repo.LockAlert(ctx, alertID)
		if err != nil {
			return err
		}
		if alert == nil {
			return apperror.ErrNotFound.WithMessage("alert %s not found", alertID)
		}
		if alert.Acknowledged {
			return apperror.ErrAlreadyAcknowledged
		}

		now := uc.clock()
		alert.Acknowledged = true
		alert.AcknowledgedBy = &actorID
		alert.AcknowledgedAt = &now
		if err := uc.repo.UpdateAlert(ctx, alert); err != nil {
			return err
		}

		_, err = uc.audit.Log(ctx, &auditDTO.LogInput{
			ActorID:    actorID,
			EntityType: model.EntityThresholdAlert,
			EntityID:   alert.ID,
			Action:     "acknowledge_alert",
			Before:     map[string]any{"acknowledged": false},
			After:      map[string]any{"acknowledged": true, "acknowledged_by": actorID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func levelState(l *model.StockLevel) map[string]any {
	return map[string]any{
		"technician_id": l.TechnicianID,
		"article_id":    l.ArticleID,
		"quantity":      integrity.FormatDecimal(l.Quantity),
		"reserved_qty":  integrity.FormatDecimal(l.ReservedQty),
		"available":     integrity.FormatDecimal(l.Available()),
	}
}

func thresholdState(th *model.Threshold) map[string]any {
	return map[string]any{
		"technician_id": th.TechnicianID,
		"article_id":    th.ArticleID,
		"min_qty":       integrity.FormatDecimal(th.MinQty),
		"is_active":     th.IsActive,
	}
}
