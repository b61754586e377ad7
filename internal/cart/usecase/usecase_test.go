package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	auditUsecase "github.com/fekuna/omnipos-stock-service/internal/audit/usecase"
	"github.com/fekuna/omnipos-stock-service/internal/cart/dto"
	"github.com/fekuna/omnipos-stock-service/internal/mocks"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	orderUsecase "github.com/fekuna/omnipos-stock-service/internal/order/usecase"
	pinUsecase "github.com/fekuna/omnipos-stock-service/internal/pin/usecase"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	stockUsecase "github.com/fekuna/omnipos-stock-service/internal/stock/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	techA   = "tech-a"
	techB   = "tech-b"
	cable   = "art-cable"
	fuse    = "art-fuse"
	retired = "art-retired"
)

type fixture struct {
	store *mocks.Store
	uc    *cartUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := mocks.NewStore()
	log := logger.NewNop()

	store.AddArticle(model.Article{ID: cable, Reference: "CBL-01", Name: "Cat6 cable", Unit: "m", IsActive: true})
	store.AddArticle(model.Article{ID: fuse, Reference: "FUS-10", Name: "Fuse 10A", Unit: "pcs", IsActive: true})
	store.AddArticle(model.Article{ID: retired, Reference: "OLD-99", Name: "Legacy plug", Unit: "pcs", IsActive: false})

	auditUC := auditUsecase.NewAuditUseCase(mocks.NewAuditRepository(store), store, log)
	stockUC := stockUsecase.NewStockUseCase(mocks.NewStockRepository(store), auditUC, store, nil, nil, stockUsecase.Options{}, log)
	pinUC := pinUsecase.NewPINUseCase(mocks.NewPINRepository(store), pinUsecase.Options{Iterations: 10}, log)
	orderUC := orderUsecase.NewOrderUseCase(mocks.NewOrderRepository(store), stockUC, pinUC, auditUC, store, nil,
		orderUsecase.Options{}, log)

	uc := NewCartUseCase(mocks.NewCartRepository(store), mocks.NewArticleRepository(store), orderUC, auditUC, store, log).(*cartUseCase)
	return &fixture{store: store, uc: uc}
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) add(t *testing.T, tech, article, q string) *model.CartLine {
	t.Helper()
	l, err := f.uc.AddLine(context.Background(), &dto.AddLineInput{TechnicianID: tech, ArticleID: article, Quantity: qty(q)})
	require.NoError(t, err)
	return l
}

func (f *fixture) actions() []string {
	var actions []string
	for _, e := range f.store.AuditEvents() {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestGetOrCreateDraft_SingleDraftPerTechnician(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.GetOrCreateDraft(ctx, techA)
	require.NoError(t, err)
	assert.Equal(t, model.CartDraft, first.Status)
	assert.Empty(t, first.Lines)

	again, err := f.uc.GetOrCreateDraft(ctx, techA)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := f.uc.GetOrCreateDraft(ctx, techB)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	assert.Len(t, f.store.Carts(), 2)
	assert.Equal(t, []string{"create_cart", "create_cart"}, f.actions())
}

func TestGetOrCreateDraft_Concurrent(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.uc.GetOrCreateDraft(context.Background(), techA)
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, f.store.Carts(), 1)
}

func TestAddLine_MergesSameArticle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.add(t, techA, cable, "2.5")
	second, err := f.uc.AddLine(ctx, &dto.AddLineInput{TechnicianID: techA, ArticleID: cable, Quantity: qty("1.5"), Notes: "for site 4"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Quantity.Equal(qty("4")))
	assert.Equal(t, "for site 4", second.Notes)

	// empty notes keep the previous ones
	third := f.add(t, techA, cable, "1")
	assert.Equal(t, "for site 4", third.Notes)

	c, err := f.uc.GetOrCreateDraft(ctx, techA)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, []string{"create_cart", "add_to_cart", "update_cart_line", "update_cart_line"}, f.actions())
}

func TestAddLine_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		article string
		q       string
		want    error
	}{
		{"zero quantity", cable, "0", apperror.ErrInvalidQuantity},
		{"negative quantity", cable, "-1", apperror.ErrInvalidQuantity},
		{"too many decimals", cable, "1.234", apperror.ErrInvalidQuantity},
		{"unknown article", "art-ghost", "1", apperror.ErrNotFound},
		{"inactive article", retired, "1", apperror.ErrInactiveArticle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.AddLine(ctx, &dto.AddLineInput{TechnicianID: techA, ArticleID: tc.article, Quantity: qty(tc.q)})
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.store.Carts())
}

func TestSetLineQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.add(t, techA, cable, "3")

	updated, err := f.uc.SetLineQuantity(ctx, &dto.SetLineQuantityInput{TechnicianID: techA, LineID: l.ID, Quantity: qty("7")})
	require.NoError(t, err)
	assert.True(t, updated.Quantity.Equal(qty("7")))

	removed, err := f.uc.SetLineQuantity(ctx, &dto.SetLineQuantityInput{TechnicianID: techA, LineID: l.ID, Quantity: decimal.Zero})
	require.NoError(t, err)
	assert.Nil(t, removed)

	summary, err := f.uc.GetSummary(ctx, techA)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalItems)

	_, err = f.uc.SetLineQuantity(ctx, &dto.SetLineQuantityInput{TechnicianID: techA, LineID: l.ID, Quantity: qty("1")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSetLineQuantity_NegativeIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.add(t, techA, cable, "3")

	_, err := f.uc.SetLineQuantity(ctx, &dto.SetLineQuantityInput{TechnicianID: techA, LineID: l.ID, Quantity: qty("-1")})
	assert.ErrorIs(t, err, apperror.ErrInvalidQuantity)

	summary, err := f.uc.GetSummary(ctx, techA)
	require.NoError(t, err)
	assert.True(t, summary.TotalQuantity.Equal(qty("3")))
}

func TestSetLineQuantity_OtherTechniciansLineIsNotFound(t *testing.T) {
	f := newFixture(t)
	l := f.add(t, techA, cable, "3")

	_, err := f.uc.SetLineQuantity(context.Background(), &dto.SetLineQuantityInput{TechnicianID: techB, LineID: l.ID, Quantity: qty("9")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	err = f.uc.RemoveLine(context.Background(), techB, l.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	summary, err := f.uc.GetSummary(context.Background(), techA)
	require.NoError(t, err)
	assert.True(t, summary.TotalQuantity.Equal(qty("3")))
}

func TestSetLineQuantity_SubmittedCartIsLocked(t *testing.T) {
	f := newFixture(t)
	l := f.add(t, techA, cable, "3")
	_, err := f.uc.Submit(context.Background(), &dto.SubmitInput{TechnicianID: techA})
	require.NoError(t, err)

	_, err = f.uc.SetLineQuantity(context.Background(), &dto.SetLineQuantityInput{TechnicianID: techA, LineID: l.ID, Quantity: qty("1")})
	assert.ErrorIs(t, err, apperror.ErrCartLocked)
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	f.add(t, techA, cable, "3")
	f.add(t, techA, fuse, "2")

	require.NoError(t, f.uc.Clear(context.Background(), techA))
	summary, err := f.uc.GetSummary(context.Background(), techA)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalItems)
	assert.NotEmpty(t, summary.CartID)

	events := f.store.AuditEvents()
	last := events[len(events)-1]
	assert.Equal(t, "clear_cart", last.Action)
	assert.JSONEq(t, `{"lines_count":2}`, string(last.BeforeData.JSONText))

	// clearing without a draft is a no-op
	require.NoError(t, f.uc.Clear(context.Background(), techB))
}

func TestGetSummary(t *testing.T) {
	f := newFixture(t)

	empty, err := f.uc.GetSummary(context.Background(), techA)
	require.NoError(t, err)
	assert.Empty(t, empty.CartID)
	assert.Empty(t, empty.Lines)
	assert.True(t, empty.TotalQuantity.IsZero())

	f.add(t, techA, cable, "2.5")
	f.add(t, techA, fuse, "4")
	summary, err := f.uc.GetSummary(context.Background(), techA)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalItems)
	assert.True(t, summary.TotalQuantity.Equal(qty("6.5")))

	byArticle := map[string]dto.SummaryLine{}
	for _, l := range summary.Lines {
		byArticle[l.ArticleID] = l
	}
	assert.Equal(t, "CBL-01", byArticle[cable].Reference)
	assert.Equal(t, "pcs", byArticle[fuse].Unit)
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	f.add(t, techA, cable, "2")
	f.add(t, techA, fuse, "5")

	o, err := f.uc.Submit(context.Background(), &dto.SubmitInput{TechnicianID: techA, Notes: "urgent job"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderSubmitted, o.Status)
	assert.Equal(t, model.PriorityNormal, o.Priority)
	assert.Equal(t, "urgent job", o.Notes)
	assert.Len(t, o.Lines, 2)

	carts := f.store.Carts()
	require.Len(t, carts, 1)
	assert.Equal(t, model.CartSubmitted, carts[0].Status)
	assert.NotNil(t, carts[0].SubmittedAt)
	assert.Equal(t, carts[0].ID, o.CartID)

	// next add starts a fresh draft
	l := f.add(t, techA, cable, "1")
	assert.NotEqual(t, carts[0].ID, l.CartID)
}

func TestSubmit_KeepsExplicitPriority(t *testing.T) {
	f := newFixture(t)
	f.add(t, techA, cable, "2")

	o, err := f.uc.Submit(context.Background(), &dto.SubmitInput{TechnicianID: techA, Priority: model.PriorityUrgent})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityUrgent, o.Priority)
}

func TestSubmit_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Submit(context.Background(), &dto.SubmitInput{TechnicianID: techA})
	assert.ErrorIs(t, err, apperror.ErrEmptyCart)

	_, err = f.uc.GetOrCreateDraft(context.Background(), techA)
	require.NoError(t, err)
	_, err = f.uc.Submit(context.Background(), &dto.SubmitInput{TechnicianID: techA})
	assert.ErrorIs(t, err, apperror.ErrEmptyCart)
	assert.Empty(t, f.store.Orders())
}

func TestSubmit_ArticleDeactivatedAfterAdd(t *testing.T) {
	f := newFixture(t)
	f.add(t, techA, cable, "2")
	f.add(t, techA, fuse, "1")
	f.store.AddArticle(model.Article{ID: fuse, Reference: "FUS-10", Name: "Fuse 10A", Unit: "pcs", IsActive: false})

	_, err := f.uc.Submit(context.Background(), &dto.SubmitInput{TechnicianID: techA})
	assert.ErrorIs(t, err, apperror.ErrInactiveArticleInCart)
	assert.Contains(t, err.Error(), fuse)
	assert.Equal(t, model.CartDraft, f.store.Carts()[0].Status)
}

func TestSubmit_AuditFailureLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	f.add(t, techA, cable, "2")
	eventsBefore := len(f.store.AuditEvents())

	boom := errors.New("audit store unavailable")
	f.store.FailAuditAppend(boom)
	_, err := f.uc.Submit(context.Background(), &dto.SubmitInput{TechnicianID: techA})
	assert.ErrorIs(t, err, boom)
	f.store.FailAuditAppend(nil)

	assert.Empty(t, f.store.Orders())
	assert.Equal(t, model.CartDraft, f.store.Carts()[0].Status)
	assert.Len(t, f.store.AuditEvents(), eventsBefore)
}
