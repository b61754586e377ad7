package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "seq", "actor_id", "entity_type", "entity_id", "action", "before_data", "after_data",
	"request_id", "created_at", "prev_hash", "integrity_hash"}

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

func TestLockHead(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT last_seq, last_hash FROM audit_chain_head WHERE id = 1 FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq", "last_hash"}).AddRow(41, "abc"))

	head, err := repo.LockHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(41), head.LastSeq)
	assert.Equal(t, "abc", head.LastHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockHead_LockTimeout(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	mock.ExpectQuery(`SELECT last_seq, last_hash FROM audit_chain_head`).
		WillReturnError(&pgconn.PgError{Code: "55P03"})

	_, err := repo.LockHead(context.Background())
	assert.ErrorIs(t, err, apperror.ErrLockTimeout)
}

func TestAppend_InsertsAndMovesHead(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	e := &model.AuditEvent{
		ID:            "evt-1",
		Seq:           42,
		ActorID:       "tech-1",
		EntityType:    model.EntityStockMovement,
		EntityID:      "mv-1",
		Action:        "issue_stock",
		AfterData:     types.NullJSONText{JSONText: types.JSONText(`{"delta":"-1.00"}`), Valid: true},
		CreatedAt:     at,
		PrevHash:      "abc",
		IntegrityHash: "def",
	}

	mock.ExpectExec(`INSERT INTO audit_events`).
		WithArgs("evt-1", int64(42), "tech-1", model.EntityStockMovement, "mv-1", "issue_stock",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "", at, "abc", "def").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE audit_chain_head SET last_seq = $1, last_hash = $2 WHERE id = 1`)).
		WithArgs(int64(42), "def").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBySeq_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM audit_events WHERE seq = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns))

	e, err := repo.GetBySeq(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRange(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(columns).
		AddRow("e3", 3, "tech-1", "Cart", "c-1", "create_cart", nil, []byte(`{"status":"DRAFT"}`), "", at, "h2", "h3").
		AddRow("e4", 4, "tech-1", "Cart", "c-1", "clear_cart", nil, nil, "req-9", at, "h3", "h4")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM audit_events WHERE seq >= $1 AND seq <= $2 ORDER BY seq ASC LIMIT 500`)).
		WithArgs(int64(3), int64(9)).
		WillReturnRows(rows)

	events, err := repo.ListRange(context.Background(), 3, 9, 500)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].AfterData.Valid)
	assert.False(t, events[1].AfterData.Valid)
	assert.Equal(t, "req-9", events[1].RequestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRange_OpenEnded(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM audit_events WHERE seq >= $1 ORDER BY seq ASC`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(columns))

	events, err := repo.ListRange(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
