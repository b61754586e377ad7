package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	orderCols = []string{"id", "technician_id", "cart_id", "status", "priority", "notes", "refusal_reason",
		"approved_by", "approved_at", "prepared_by", "prepared_at", "handover_method", "handover_data",
		"handed_over_at", "closed_at", "created_at", "updated_at"}
	lineCols = []string{"id", "order_id", "position", "article_id", "qty_requested", "qty_approved", "qty_prepared", "created_at", "updated_at"}
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

func orderRow(rows *sqlmock.Rows, id string, status model.OrderStatus, priority int, at time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "tech-1", "cart-"+id, string(status), priority, "", "",
		nil, nil, nil, nil, nil, nil, nil, nil, at, at)
}

func TestListByStatus_GroupsLines(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)
	at := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

	orders := sqlmock.NewRows(orderCols)
	orderRow(orders, "o-urgent", model.OrderSubmitted, int(model.PriorityUrgent), at)
	orderRow(orders, "o-normal", model.OrderApproved, int(model.PriorityNormal), at)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE status IN ($1, $2) AND technician_id = $3 ORDER BY priority DESC, created_at ASC`)).
		WithArgs("SUBMITTED", "APPROVED", "tech-1").
		WillReturnRows(orders)

	lines := sqlmock.NewRows(lineCols).
		AddRow("l2", "o-normal", 1, "art-cable", "2.00", "2.00", "0.00", at, at).
		AddRow("l3", "o-urgent", 1, "art-fuse", "1.50", "0.00", "0.00", at, at).
		AddRow("l1", "o-urgent", 2, "art-cable", "5.00", "0.00", "0.00", at, at)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM order_lines WHERE order_id IN ($1, $2) ORDER BY order_id, position`)).
		WithArgs("o-urgent", "o-normal").
		WillReturnRows(lines)

	got, err := repo.ListByStatus(context.Background(), []model.OrderStatus{model.OrderSubmitted, model.OrderApproved}, "tech-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.PriorityUrgent, got[0].Priority)
	assert.Len(t, got[0].Lines, 2)
	assert.Len(t, got[1].Lines, 1)
	assert.Equal(t, []int{1, 2}, []int{got[0].Lines[0].Position, got[0].Lines[1].Position})
	assert.Equal(t, "1.5", got[0].Lines[0].QtyRequested.String())
	assert.False(t, got[0].HandoverData.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_KeepsCartLineOrder(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)
	at := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

	o := &model.Order{
		BaseModel:    model.BaseModel{ID: "o-1", CreatedAt: at, UpdatedAt: at},
		TechnicianID: "tech-1",
		CartID:       "cart-1",
		Status:       model.OrderSubmitted,
		Priority:     model.PriorityNormal,
		Lines: []model.OrderLine{
			{BaseModel: model.BaseModel{ID: "l-b", CreatedAt: at, UpdatedAt: at}, OrderID: "o-1", Position: 1, ArticleID: "art-fuse"},
			{BaseModel: model.BaseModel{ID: "l-a", CreatedAt: at, UpdatedAt: at}, OrderID: "o-1", Position: 2, ArticleID: "art-cable"},
		},
	}

	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_lines`).
		WithArgs("l-b", "o-1", 1, "art-fuse", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), at, at,
			"l-a", "o-1", 2, "art-cable", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), at, at).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByStatus_NoStatuses(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	got, err := repo.ListByStatus(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(orderCols))

	o, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, o)
	assert.NoError(t, mock.ExpectationsWereMet())
}
