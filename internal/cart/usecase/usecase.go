package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/article"
	"github.com/fekuna/omnipos-stock-service/internal/audit"
	auditDTO "github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/audit/integrity"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/cart"
	"github.com/fekuna/omnipos-stock-service/internal/cart/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cartUseCase struct {
	repo     cart.Repository
	articles article.Repository
	orders   order.UseCase
	audit    audit.UseCase
	tx       postgres.Transactor
	logger   logger.ZapLogger
	now      func() time.Time
}

func NewCartUseCase(
	repo cart.Repository,
	articles article.Repository,
	orders order.UseCase,
	auditUC audit.UseCase,
	tx postgres.Transactor,
	log logger.ZapLogger,
) cart.UseCase {
	return &cartUseCase{
		repo:     repo,
		articles: articles,
		orders:   orders,
		audit:    auditUC,
		tx:       tx,
		logger:   log,
		now:      time.Now,
	}
}

func (uc *cartUseCase) clock() time.Time {
	return uc.now().UTC().Truncate(time.Microsecond)
}

func (uc *cartUseCase) GetOrCreateDraft(ctx context.Context, technicianID string) (*model.Cart, error) {
	var c *model.Cart
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if c, err = uc.ensureDraft(ctx, technicianID); err != nil {
			return err
		}
		c.Lines, err = uc.repo.ListLines(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ensureDraft locks the technician's draft, creating it first if needed.
func (uc *cartUseCase) ensureDraft(ctx context.Context, technicianID string) (*model.Cart, error) {
	c, err := uc.repo.LockDraft(ctx, technicianID)
	if err != nil || c != nil {
		return c, err
	}

	now := uc.clock()
	draft := &model.Cart{
		BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		TechnicianID: technicianID,
		Status:       model.CartDraft,
	}
	created, err := uc.repo.CreateDraft(ctx, draft)
	if err != nil {
		return nil, err
	}
	if created {
		if err := uc.log(ctx, model.EntityCart, draft.ID, "create_cart", technicianID, nil,
			map[string]any{"status": string(draft.Status), "technician_id": technicianID}); err != nil {
			return nil, err
		}
	}

	if c, err = uc.repo.LockDraft(ctx, technicianID); err != nil {
		return nil, err
	}
	if c == nil {
		// the concurrent draft was submitted between insert and lock
		return nil, apperror.ErrDuplicateDraft.WithMessage("draft cart of %s changed concurrently", technicianID)
	}
	return c, nil
}

func (uc *cartUseCase) AddLine(ctx context.Context, input *dto.AddLineInput) (*model.CartLine, error) {
	if !input.Quantity.IsPositive() || !model.HasQuantityScale(input.Quantity) {
		return nil, apperror.ErrInvalidQuantity.WithMessage("quantity %s is not valid", input.Quantity.String())
	}
	a, err := uc.articles.GetByID(ctx, input.ArticleID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.ErrNotFound.WithMessage("article %s not found", input.ArticleID)
	}
	if !a.IsActive {
		return nil, apperror.ErrInactiveArticle.WithMessage("article %s is not active", a.Reference)
	}

	var line *model.CartLine
	err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := uc.ensureDraft(ctx, input.TechnicianID)
		if err != nil {
			return err
		}
		now := uc.clock()

		existing, err := uc.repo.GetLineByArticle(ctx, c.ID, input.ArticleID)
		if err != nil {
			return err
		}
		if existing != nil {
			before := lineState(existing)
			existing.Quantity = existing.Quantity.Add(input.Quantity)
			if input.Notes != "" {
				existing.Notes = input.Notes
			}
			existing.UpdatedAt = now
			if err := uc.repo.UpdateLine(ctx, existing); err != nil {
				return err
			}
			line = existing
			if err := uc.log(ctx, model.EntityCartLine, line.ID, "update_cart_line", input.TechnicianID, before, lineState(line)); err != nil {
				return err
			}
		} else {
			line = &model.CartLine{
				BaseModel: model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
				CartID:    c.ID,
				ArticleID: input.ArticleID,
				Quantity:  input.Quantity,
				Notes:     input.Notes,
			}
			if err := uc.repo.InsertLine(ctx, line); err != nil {
				return err
			}
			if err := uc.log(ctx, model.EntityCartLine, line.ID, "add_to_cart", input.TechnicianID, nil, lineState(line)); err != nil {
				return err
			}
		}

		c.UpdatedAt = now
		return uc.repo.UpdateCart(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// SetLineQuantity returns a nil line when the quantity removed it.
func (uc *cartUseCase) SetLineQuantity(ctx context.Context, input *dto.SetLineQuantityInput) (*model.CartLine, error) {
	if input.Quantity.IsNegative() {
		return nil, apperror.ErrInvalidQuantity.WithMessage("quantity %s is negative", input.Quantity.String())
	}
	remove := input.Quantity.IsZero()
	if !remove && !model.HasQuantityScale(input.Quantity) {
		return nil, apperror.ErrInvalidQuantity.WithMessage("quantity %s is not valid", input.Quantity.String())
	}

	var line *model.CartLine
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, c, err := uc.ownedLine(ctx, input.TechnicianID, input.LineID)
		if err != nil {
			return err
		}
		now := uc.clock()
		before := lineState(l)

		if remove {
			if err := uc.repo.DeleteLine(ctx, l.ID); err != nil {
				return err
			}
			if err := uc.log(ctx, model.EntityCartLine, l.ID, "remove_from_cart", input.TechnicianID, before, nil); err != nil {
				return err
			}
		} else {
			l.Quantity = input.Quantity
			l.UpdatedAt = now
			if err := uc.repo.UpdateLine(ctx, l); err != nil {
				return err
			}
			if err := uc.log(ctx, model.EntityCartLine, l.ID, "update_cart_line", input.TechnicianID, before, lineState(l)); err != nil {
				return err
			}
			line = l
		}

		c.UpdatedAt = now
		return uc.repo.UpdateCart(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (uc *cartUseCase) RemoveLine(ctx context.Context, technicianID, lineID string) error {
	_, err := uc.SetLineQuantity(ctx, &dto.SetLineQuantityInput{
		TechnicianID: technicianID,
		LineID:       lineID,
		Quantity:     decimal.Zero,
	})
	return err
}

// ownedLine locks the cart holding lineID. A line of another technician is
// reported as missing.
func (uc *cartUseCase) ownedLine(ctx context.Context, technicianID, lineID string) (*model.CartLine, *model.Cart, error) {
	notFound := apperror.ErrNotFound.WithMessage("cart line %s not found", lineID)

	l, err := uc.repo.GetLine(ctx, lineID)
	if err != nil {
		return nil, nil, err
	}
	if l == nil {
		return nil, nil, notFound
	}
	c, err := uc.repo.LockByID(ctx, l.CartID)
	if err != nil {
		return nil, nil, err
	}
	if c == nil || !auth.CanAccess(auth.UserContext{UserID: technicianID, Role: auth.RoleTech}, c) {
		return nil, nil, notFound
	}
	if !c.IsDraft() {
		return nil, nil, apperror.ErrCartLocked
	}

	// re-read under the cart lock
	if l, err = uc.repo.GetLine(ctx, lineID); err != nil {
		return nil, nil, err
	}
	if l == nil {
		return nil, nil, notFound
	}
	return l, c, nil
}

func (uc *cartUseCase) Clear(ctx context.Context, technicianID string) error {
	return uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := uc.repo.LockDraft(ctx, technicianID)
		if err != nil || c == nil {
			return err
		}
		n, err := uc.repo.DeleteLines(ctx, c.ID)
		if err != nil {
			return err
		}
		c.UpdatedAt = uc.clock()
		if err := uc.repo.UpdateCart(ctx, c); err != nil {
			return err
		}
		return uc.log(ctx, model.EntityCart, c.ID, "clear_cart", technicianID,
			map[string]any{"lines_count": n}, map[string]any{"lines_count": 0})
	})
}

func (uc *cartUseCase) GetSummary(ctx context.Context, technicianID string) (*dto.CartSummary, error) {
	summary := &dto.CartSummary{TotalQuantity: decimal.Zero, Lines: []dto.SummaryLine{}}

	c, err := uc.repo.GetDraft(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return summary, nil
	}
	lines, err := uc.repo.ListLines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	articles, err := uc.articleMap(ctx, lines)
	if err != nil {
		return nil, err
	}

	summary.CartID = c.ID
	summary.Status = string(c.Status)
	summary.TotalItems = len(lines)
	for _, l := range lines {
		sl := dto.SummaryLine{LineID: l.ID, ArticleID: l.ArticleID, Quantity: l.Quantity, Notes: l.Notes}
		if a, ok := articles[l.ArticleID]; ok {
			sl.Reference, sl.Name, sl.Unit = a.Reference, a.Name, a.Unit
		}
		summary.Lines = append(summary.Lines, sl)
		summary.TotalQuantity = summary.TotalQuantity.Add(l.Quantity)
	}
	return summary, nil
}

// Submit turns the draft into an order. The cart, the order and their
// audit events commit together or not at all.
func (uc *cartUseCase) Submit(ctx context.Context, input *dto.SubmitInput) (*model.Order, error) {
	priority := input.Priority
	if priority == 0 {
		priority = model.PriorityNormal
	}

	var o *model.Order
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := uc.repo.LockDraft(ctx, input.TechnicianID)
		if err != nil {
			return err
		}
		if c == nil {
			return apperror.ErrEmptyCart.WithMessage("technician %s has no draft cart", input.TechnicianID)
		}
		if c.Lines, err = uc.repo.ListLines(ctx, c.ID); err != nil {
			return err
		}
		if len(c.Lines) == 0 {
			return apperror.ErrEmptyCart
		}
		if err := uc.checkActive(ctx, c.Lines); err != nil {
			return err
		}

		if input.Notes != "" {
			c.Notes = input.Notes
		}
		if o, err = uc.orders.CreateFromCart(ctx, c, priority); err != nil {
			return err
		}

		now := uc.clock()
		c.Status = model.CartSubmitted
		c.SubmittedAt = &now
		c.UpdatedAt = now
		if err := uc.repo.UpdateCart(ctx, c); err != nil {
			return err
		}
		return uc.log(ctx, model.EntityCart, c.ID, "submit_cart", input.TechnicianID,
			map[string]any{"status": string(model.CartDraft)},
			map[string]any{
				"status":         string(c.Status),
				"order_id":       o.ID,
				"total_items":    len(c.Lines),
				"total_quantity": integrity.FormatDecimal(c.TotalQuantity()),
			})
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("cart submitted",
		zap.String("technician_id", input.TechnicianID),
		zap.String("order_id", o.ID),
		zap.Int("lines", len(o.Lines)),
	)
	return o, nil
}

func (uc *cartUseCase) checkActive(ctx context.Context, lines []model.CartLine) error {
	articles, err := uc.articleMap(ctx, lines)
	if err != nil {
		return err
	}
	var inactive []string
	for _, l := range lines {
		if a, ok := articles[l.ArticleID]; !ok || !a.IsActive {
			inactive = append(inactive, l.ArticleID)
		}
	}
	if len(inactive) > 0 {
		sort.Strings(inactive)
		return apperror.ErrInactiveArticleInCart.WithMessage("inactive articles: %s", strings.Join(inactive, ", "))
	}
	return nil
}

func (uc *cartUseCase) articleMap(ctx context.Context, lines []model.CartLine) (map[string]model.Article, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ArticleID)
	}
	articles, err := uc.articles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	m := make(map[string]model.Article, len(articles))
	for _, a := range articles {
		m[a.ID] = a
	}
	return m, nil
}

func (uc *cartUseCase) log(ctx context.Context, entityType, entityID, action, actorID string, before, after map[string]any) error {
	_, err := uc.audit.Log(ctx, &auditDTO.LogInput{
		ActorID:    actorID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Before:     before,
		After:      after,
	})
	return err
}

func lineState(l *model.CartLine) map[string]any {
	return map[string]any{
		"cart_id":    l.CartID,
		"article_id": l.ArticleID,
		"quantity":   integrity.FormatDecimal(l.Quantity),
		"notes":      l.Notes,
	}
}
