package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/audit"
	auditDTO "github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/audit/integrity"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/internal/pin"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/metrics"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/tracing"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
	stockDTO "github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const eventStatusChanged = "OrderStatusChanged"

type Options struct {
	// SignatureMaxSize bounds the decoded signature, in bytes.
	SignatureMaxSize int
}

type orderUseCase struct {
	repo      order.Repository
	stock     stock.UseCase
	pins      pin.UseCase
	audit     audit.UseCase
	tx        postgres.Transactor
	publisher broker.Publisher
	opts      Options
	logger    logger.ZapLogger
	now       func() time.Time
}

// NewOrderUseCase wires the workflow. publisher may be nil.
func NewOrderUseCase(
	repo order.Repository,
	stockUC stock.UseCase,
	pinUC pin.UseCase,
	auditUC audit.UseCase,
	tx postgres.Transactor,
	publisher broker.Publisher,
	opts Options,
	log logger.ZapLogger,
) order.UseCase {
	if opts.SignatureMaxSize <= 0 {
		opts.SignatureMaxSize = 50000
	}
	return &orderUseCase{
		repo:      repo,
		stock:     stockUC,
		pins:      pinUC,
		audit:     auditUC,
		tx:        tx,
		publisher: publisher,
		opts:      opts,
		logger:    log,
		now:       time.Now,
	}
}

func (uc *orderUseCase) clock() time.Time {
	return uc.now().UTC().Truncate(time.Microsecond)
}

// CreateFromCart must run inside the caller's transaction so the order
// and the submitted cart commit together.
func (uc *orderUseCase) CreateFromCart(ctx context.Context, cart *model.Cart, priority model.OrderPriority) (*model.Order, error) {
	if !priority.Valid() {
		return nil, apperror.ErrInvalidInput.WithMessage("priority %d is out of range", priority)
	}
	if len(cart.Lines) == 0 {
		return nil, apperror.ErrEmptyCart
	}

	var o *model.Order
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := uc.clock()
		o = &model.Order{
			BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			TechnicianID: cart.TechnicianID,
			CartID:       cart.ID,
			Status:       model.OrderSubmitted,
			Priority:     priority,
			Notes:        cart.Notes,
		}
		for i, cl := range cart.Lines {
			o.Lines = append(o.Lines, model.OrderLine{
				BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
				OrderID:      o.ID,
				Position:     i + 1,
				ArticleID:    cl.ArticleID,
				QtyRequested: cl.Quantity,
				QtyApproved:  decimal.Zero,
				QtyPrepared:  decimal.Zero,
			})
		}
		if err := uc.repo.Create(ctx, o); err != nil {
			return err
		}

		after := map[string]any{
			"status":          string(o.Status),
			"cart_id":         cart.ID,
			"priority":        int(priority),
			"total_items":     len(o.Lines),
			"total_requested": integrity.FormatDecimal(o.TotalRequested()),
		}
		if err := uc.logTransition(ctx, o, "create_demand", cart.TechnicianID, nil, after); err != nil {
			return err
		}
		uc.afterTransition(ctx, o, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (uc *orderUseCase) Get(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := uc.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperror.ErrNotFound.WithMessage("order %s not found", orderID)
	}
	return o, nil
}

func (uc *orderUseCase) GetForUser(ctx context.Context, user auth.UserContext, orderID string) (*model.Order, error) {
	o, err := uc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccess(user, o) {
		return nil, apperror.ErrForbidden.WithMessage("order %s belongs to another technician", orderID)
	}
	return o, nil
}

func (uc *orderUseCase) GetDemandsQueue(ctx context.Context, filters *dto.QueueFilters) ([]model.Order, error) {
	statuses := model.ActiveOrderStatuses
	technicianID := ""
	if filters != nil {
		if len(filters.Statuses) > 0 {
			statuses = filters.Statuses
		}
		technicianID = filters.TechnicianID
	}
	return uc.repo.ListByStatus(ctx, statuses, technicianID)
}

func (uc *orderUseCase) lock(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := uc.repo.LockByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperror.ErrNotFound.WithMessage("order %s not found", orderID)
	}
	return o, nil
}

func invalidTransition(o *model.Order, op string) error {
	return apperror.ErrInvalidTransition.WithMessage("cannot %s order %s in status %s", op, o.ID, o.Status)
}

func appendNote(notes, label, text string) string {
	if text == "" {
		return notes
	}
	entry := label + ": " + text
	if notes == "" {
		return entry
	}
	return notes + "\n" + entry
}

func (uc *orderUseCase) ApproveFull(ctx context.Context, orderID, approverID, notes string) (*model.Order, error) {
	var o *model.Order
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = uc.lock(ctx, orderID); err != nil {
			return err
		}
		if o.Status != model.OrderSubmitted {
			return invalidTransition(o, "approve")
		}

		now := uc.clock()
		for i := range o.Lines {
			l := &o.Lines[i]
			l.QtyApproved = l.QtyRequested
			l.UpdatedAt = now
			if err := uc.repo.UpdateLine(ctx, l); err != nil {
				return err
			}
		}

		from := o.Status
		o.Status = model.OrderApproved
		o.ApprovedBy = &approverID
		o.ApprovedAt = &now
		o.Notes = appendNote(o.Notes, "Approval notes", notes)
		o.UpdatedAt = now
		if err := uc.repo.Update(ctx, o); err != nil {
			return err
		}

		after := map[string]any{
			"status":         string(o.Status),
			"approved_by":    approverID,
			"total_approved": integrity.FormatDecimal(o.TotalApproved()),
		}
		if err := uc.logTransition(ctx, o, "approve_demand_full", approverID, statusState(from), after); err != nil {
			return err
		}
		uc.afterTransition(ctx, o, from)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (uc *orderUseCase) ApprovePartial(ctx context.Context, input *dto.ApprovePartialInput) (*model.Order, error) {
	var o *model.Order
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = uc.lock(ctx, input.OrderID); err != nil {
			return err
		}
		if o.Status != model.OrderSubmitted {
			return invalidTransition(o, "approve")
		}

		// validate everything before the first write
		for _, a := range input.Lines {
			l := o.Line(a.LineID)
			if l == nil {
				return apperror.ErrInvalidApproval.WithMessage("line %s is not part of order %s", a.LineID, o.ID)
			}
			if a.QtyApproved.IsNegative() || a.QtyApproved.GreaterThan(l.QtyRequested) || !model.HasQuantityScale(a.QtyApproved) {
				return apperror.ErrInvalidApproval.WithMessage("approved %s for line %s must be between 0 and %s",
					a.QtyApproved.String(), l.ID, integrity.FormatDecimal(l.QtyRequested))
			}
		}

		now := uc.clock()
		approvals := make([]map[string]any, 0, len(input.Lines))
		for _, a := range input.Lines {
			l := o.Line(a.LineID)
			l.QtyApproved = a.QtyApproved
			l.UpdatedAt = now
			if err := uc.repo.UpdateLine(ctx, l); err != nil {
				return err
			}
			approvals = append(approvals, map[string]any{
				"line_id":       l.ID,
				"article_id":    l.ArticleID,
				"qty_requested": integrity.FormatDecimal(l.QtyRequested),
				"qty_approved":  integrity.FormatDecimal(l.QtyApproved),
			})
		}

		from := o.Status
		o.Status = approvalOutcome(o)
		o.ApprovedBy = &input.ApproverID
		o.ApprovedAt = &now
		o.Notes = appendNote(o.Notes, "Approval notes", input.Notes)
		o.UpdatedAt = now
		if err := uc.repo.Update(ctx, o); err != nil {
			return err
		}

		after := map[string]any{
			"status":         string(o.Status),
			"approved_by":    input.ApproverID,
			"total_approved": integrity.FormatDecimal(o.TotalApproved()),
			"approvals":      approvals,
		}
		if err := uc.logTransition(ctx, o, "approve_demand_partial", input.ApproverID, statusState(from), after); err != nil {
			return err
		}
		uc.afterTransition(ctx, o, from)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// approvalOutcome is APPROVED when every line is fully approved, PARTIAL
// when anything is approved and REFUSED otherwise.
func approvalOutcome(o *model.Order) model.OrderStatus {
	full := true
	for _, l := range o.Lines {
		if !l.QtyApproved.Equal(l.QtyRequested) {
			full = false
			break
		}
	}
	switch {
	case full:
		return model.OrderApproved
	case o.TotalApproved().IsPositive():
		return model.OrderPartial
	default:
		return model.OrderRefused
	}
}

func (uc *orderUseCase) Refuse(ctx context.Context, orderID, actorID, reason string) (*model.Order, error) {
	var o *model.Order
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = uc.lock(ctx, orderID); err != nil {
			return err
		}
		if o.Status != model.OrderSubmitted {
			return invalidTransition(o, "refuse")
		}

		now := uc.clock()
		for i := range o.Lines {
			l := &o.Lines[i]
			l.QtyApproved = decimal.Zero
			l.UpdatedAt = now
			if err := uc.repo.UpdateLine(ctx, l); err != nil {
				return err
			}
		}

		from := o.Status
		o.Status = model.OrderRefused
		o.RefusalReason = reason
		o.ApprovedBy = &actorID
		o.ApprovedAt = &now
		o.UpdatedAt = now
		if err := uc.repo.Update(ctx, o); err != nil {
			return err
		}

		after := map[string]any{"status": string(o.Status), "refusal_reason": reason}
		if err := uc.logTransition(ctx, o, "refuse_demand", actorID, statusState(from), after); err != nil {
			return err
		}
		uc.afterTransition(ctx, o, from)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Prepare reserves approved quantities from the requesting technician's
// stock. A line short on stock is prepared with what is available and the
// gap is reported as its shortfall.
func (uc *orderUseCase) Prepare(ctx context.Context, orderID, preparerID string) (*dto.PrepareResult, error) {
	ctx, span := tracing.Start(ctx, "order.Prepare", attribute.String("order_id", orderID))

	var result *dto.PrepareResult
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := uc.lock(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CanBePrepared() {
			return invalidTransition(o, "prepare")
		}

		lines := linesByArticle(o, func(l *model.OrderLine) bool { return l.QtyApproved.IsPositive() })
		if err := uc.stock.LockLevels(ctx, lineKeys(o.TechnicianID, lines)); err != nil {
			return err
		}

		now := uc.clock()
		result = &dto.PrepareResult{Order: o, Lines: make([]dto.PreparedLine, 0, len(lines))}
		for _, l := range lines {
			key := model.StockKey{TechnicianID: o.TechnicianID, ArticleID: l.ArticleID}
			available, err := uc.stock.Available(ctx, key)
			if err != nil {
				return err
			}
			prepared := decimal.Max(decimal.Zero, decimal.Min(l.QtyApproved, available))
			if prepared.IsPositive() {
				if _, err := uc.stock.Reserve(ctx, &stockDTO.ReserveInput{
					TechnicianID: o.TechnicianID,
					ArticleID:    l.ArticleID,
					Quantity:     prepared,
					Reference:    "order:" + o.ID,
					ActorID:      preparerID,
				}); err != nil {
					return err
				}
			}

			l.QtyPrepared = prepared
			l.UpdatedAt = now
			if err := uc.repo.UpdateLine(ctx, l); err != nil {
				return err
			}
			result.Lines = append(result.Lines, dto.PreparedLine{
				LineID:      l.ID,
				ArticleID:   l.ArticleID,
				QtyApproved: l.QtyApproved,
				QtyPrepared: prepared,
				Shortfall:   l.QtyApproved.Sub(prepared),
			})
		}

		from := o.Status
		o.Status = model.OrderPrepared
		o.PreparedBy = &preparerID
		o.PreparedAt = &now
		o.UpdatedAt = now
		if err := uc.repo.Update(ctx, o); err != nil {
			return err
		}

		prepared := make([]map[string]any, 0, len(result.Lines))
		for _, pl := range result.Lines {
			prepared = append(prepared, map[string]any{
				"line_id":      pl.LineID,
				"article_id":   pl.ArticleID,
				"qty_prepared": integrity.FormatDecimal(pl.QtyPrepared),
				"shortfall":    integrity.FormatDecimal(pl.Shortfall),
			})
		}
		after := map[string]any{"status": string(o.Status), "prepared_by": preparerID, "lines": prepared}
		if err := uc.logTransition(ctx, o, "prepare_demand", preparerID, statusState(from), after); err != nil {
			return err
		}
		uc.afterTransition(ctx, o, from)
		return nil
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	if !result.Complete() {
		uc.logger.Warn("order prepared with shortfall", zap.String("order_id", orderID))
	}
	return result, nil
}

func (uc *orderUseCase) IssuePIN(ctx context.Context, orderID, actorID string) (*dto.IssuedPIN, error) {
	var issued *dto.IssuedPIN
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := uc.lock(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CanBeHandedOver() {
			return invalidTransition(o, "issue a pin for")
		}

		code, p, err := uc.pins.Issue(ctx, o.ID, o.TechnicianID)
		if err != nil {
			return err
		}
		issued = &dto.IssuedPIN{OrderID: o.ID, PIN: code, ExpiresAt: p.ExpiresAt}

		_, err = uc.audit.Log(ctx, &auditDTO.LogInput{
			ActorID:    actorID,
			EntityType: model.EntityOrder,
			EntityID:   o.ID,
			Action:     "issue_handover_pin",
			After:      map[string]any{"pin_id": p.ID, "expires_at": integrity.FormatTime(p.ExpiresAt)},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// Handover confirms receipt, books every prepared quantity into the
// technician's stock and closes the order in the same unit.
func (uc *orderUseCase) Handover(ctx context.Context, input *dto.HandoverInput) (*model.Order, error) {
	if input.Method != model.HandoverPIN && input.Method != model.HandoverSignature {
		return nil, apperror.ErrInvalidHandover.WithMessage("unknown handover method %q", input.Method)
	}
	ctx, span := tracing.Start(ctx, "order.Handover",
		attribute.String("order_id", input.OrderID), attribute.String("method", string(input.Method)))

	var o *model.Order
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = uc.lock(ctx, input.OrderID); err != nil {
			return err
		}
		if !o.CanBeHandedOver() {
			return invalidTransition(o, "hand over")
		}

		now := uc.clock()
		data := map[string]any{
			"method":       string(input.Method),
			"timestamp":    integrity.FormatTime(now),
			"device_info":  input.DeviceInfo,
			"performed_by": input.ActorID,
		}

		var usedPIN *model.PINCode
		switch input.Method {
		case model.HandoverPIN:
			if usedPIN, err = uc.pins.Verify(ctx, o.ID, o.TechnicianID, input.PIN); err != nil {
				return err
			}
			data["pin_verified"] = true
		case model.HandoverSignature:
			if err := uc.validateSignature(input.SignatureData); err != nil {
				return err
			}
			data["signature_data"] = input.SignatureData
		}

		lines := linesByArticle(o, func(l *model.OrderLine) bool { return l.QtyPrepared.IsPositive() })
		if err := uc.stock.LockLevels(ctx, lineKeys(o.TechnicianID, lines)); err != nil {
			return err
		}
		movements := make([]string, 0, len(lines))
		for _, l := range lines {
			orderID := o.ID
			m, err := uc.stock.Receive(ctx, &stockDTO.ReceiveInput{
				TechnicianID:  o.TechnicianID,
				ArticleID:     l.ArticleID,
				Quantity:      l.QtyPrepared,
				LinkedOrderID: &orderID,
				Notes:         "Handover via " + string(input.Method),
				ActorID:       input.ActorID,
			})
			if err != nil {
				return err
			}
			movements = append(movements, m.ID)
		}

		if usedPIN != nil {
			if err := uc.pins.MarkUsed(ctx, usedPIN); err != nil {
				return err
			}
		}

		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		method := input.Method
		o.Status = model.OrderHandedOver
		o.HandoverMethod = &method
		o.HandoverData = types.NullJSONText{JSONText: raw, Valid: true}
		o.HandedOverAt = &now
		o.UpdatedAt = now
		if err := uc.repo.Update(ctx, o); err != nil {
			return err
		}
		after := map[string]any{"status": string(o.Status), "method": string(method), "movement_ids": movements}
		if err := uc.logTransition(ctx, o, "handover_demand", input.ActorID, statusState(model.OrderPrepared), after); err != nil {
			return err
		}
		uc.afterTransition(ctx, o, model.OrderPrepared)

		return uc.close(ctx, o, input.ActorID, "", now)
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("order handed over",
		zap.String("order_id", o.ID),
		zap.String("technician_id", o.TechnicianID),
		zap.String("method", string(input.Method)),
	)
	return o, nil
}

func (uc *orderUseCase) validateSignature(data string) error {
	if strings.TrimSpace(data) == "" {
		return apperror.ErrInvalidSignature.WithMessage("signature is required")
	}
	payload := data
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return apperror.ErrInvalidSignature.WithMessage("signature data uri must be base64 encoded")
		}
		payload = body
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return apperror.ErrInvalidSignature.WithMessage("signature is not valid base64")
	}
	if len(decoded) == 0 {
		return apperror.ErrInvalidSignature.WithMessage("signature is empty")
	}
	if len(decoded) > uc.opts.SignatureMaxSize {
		return apperror.ErrInvalidSignature.WithMessage("signature is %d bytes, limit is %d", len(decoded), uc.opts.SignatureMaxSize)
	}
	return nil
}

// Close finalises a handed-over order. A non-empty reason is kept in the
// order notes and in the audit record.
func (uc *orderUseCase) Close(ctx context.Context, orderID, actorID, reason string) (*model.Order, error) {
	var o *model.Order
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = uc.lock(ctx, orderID); err != nil {
			return err
		}
		if o.Status != model.OrderHandedOver {
			return invalidTransition(o, "close")
		}
		return uc.close(ctx, o, actorID, reason, uc.clock())
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (uc *orderUseCase) close(ctx context.Context, o *model.Order, actorID, reason string, now time.Time) error {
	from := o.Status
	o.Status = model.OrderClosed
	o.Notes = appendNote(o.Notes, "Closure reason", reason)
	o.ClosedAt = &now
	o.UpdatedAt = now
	if err := uc.repo.Update(ctx, o); err != nil {
		return err
	}
	after := map[string]any{"status": string(o.Status), "reason": reason}
	if err := uc.logTransition(ctx, o, "close_demand", actorID, statusState(from), after); err != nil {
		return err
	}
	uc.afterTransition(ctx, o, from)
	return nil
}

func (uc *orderUseCase) logTransition(ctx context.Context, o *model.Order, action, actorID string, before, after map[string]any) error {
	_, err := uc.audit.Log(ctx, &auditDTO.LogInput{
		ActorID:    actorID,
		EntityType: model.EntityOrder,
		EntityID:   o.ID,
		Action:     action,
		Before:     before,
		After:      after,
	})
	return err
}

// afterTransition queues the metric and the status event for commit.
func (uc *orderUseCase) afterTransition(ctx context.Context, o *model.Order, from model.OrderStatus) {
	entry := dto.StatusChangedEntry{OrderID: o.ID, TechnicianID: o.TechnicianID, From: from, To: o.Status}
	postgres.AfterCommit(ctx, func(ctx context.Context) {
		metrics.OrderTransitions.WithLabelValues(string(entry.To)).Inc()
		if uc.publisher == nil {
			return
		}
		event := dto.StatusChangedEvent{
			EventID:   uuid.New().String(),
			EventType: eventStatusChanged,
			Payload:   entry,
			Timestamp: uc.clock(),
		}
		if err := uc.publisher.Publish(ctx, entry.OrderID, event); err != nil {
			uc.logger.Error("failed to publish order status", zap.String("order_id", entry.OrderID), zap.Error(err))
		}
	})
}

func statusState(s model.OrderStatus) map[string]any {
	return map[string]any{"status": string(s)}
}

// linesByArticle returns the matching lines sorted by article so row locks
// follow the global (technician, article) order.
func linesByArticle(o *model.Order, keep func(*model.OrderLine) bool) []*model.OrderLine {
	lines := make([]*model.OrderLine, 0, len(o.Lines))
	for i := range o.Lines {
		if keep(&o.Lines[i]) {
			lines = append(lines, &o.Lines[i])
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ArticleID < lines[j].ArticleID })
	return lines
}

func lineKeys(technicianID string, lines []*model.OrderLine) []model.StockKey {
	keys := make([]model.StockKey, 0, len(lines))
	for _, l := range lines {
		keys = append(keys, model.StockKey{TechnicianID: technicianID, ArticleID: l.ArticleID})
	}
	return keys
}
