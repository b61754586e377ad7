package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

var key = model.StockKey{TechnicianID: "tech-1", ArticleID: "art-cable"}

func TestLockLevel_CreatesThenLocks(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (technician_id, article_id) DO NOTHING`)).
		WithArgs(sqlmock.AnyArg(), "tech-1", "art-cable", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM stock_levels\s+WHERE technician_id = \$1 AND article_id = \$2 FOR UPDATE`).
		WithArgs("tech-1", "art-cable").
		WillReturnRows(sqlmock.NewRows([]string{"id", "technician_id", "article_id", "quantity", "reserved_qty", "created_at", "updated_at"}).
			AddRow("lvl-1", "tech-1", "art-cable", "12.50", "2.00", now, now))

	level, err := repo.LockLevel(context.Background(), key, now)
	require.NoError(t, err)
	assert.Equal(t, "10.5", level.Available().String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockLevel_LockTimeout(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	mock.ExpectExec(`INSERT INTO stock_levels`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM stock_levels`).WillReturnError(&pgconn.PgError{Code: "55P03"})

	_, err := repo.LockLevel(context.Background(), key, time.Now())
	assert.ErrorIs(t, err, apperror.ErrLockTimeout)
	assert.True(t, apperror.Retryable(err))
}

func TestListMovements_FiltersAndPages(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)
	at := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM stock_movements WHERE technician_id = $1 AND reason = $2`)).
		WithArgs("tech-1", "ISSUE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	mock.ExpectPrepare(regexp.QuoteMeta(`WHERE technician_id = $1 AND reason = $2 ORDER BY created_at DESC, id LIMIT 2 OFFSET 2`))
	mock.ExpectQuery(`FROM stock_movements`).
		WithArgs("tech-1", "ISSUE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "technician_id", "article_id", "delta", "reason", "linked_order_id",
			"balance_after", "location_text", "notes", "performed_by", "created_at", "integrity_hash"}).
			AddRow("mv-3", "tech-1", "art-cable", "-1.00", "ISSUE", nil, "4.00", "site 12", "", "tech-1", at, "h"))

	items, total, err := repo.ListMovements(context.Background(), &dto.MovementFilters{
		TechnicianID: "tech-1",
		Reason:       model.MovementIssue,
		Page:         2,
		PageSize:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].LinkedOrderID)
	assert.Equal(t, "-1", items[0].Delta.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimEvent(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"first delivery", 1, true},
		{"redelivery", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewPGRepository(db)
			now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

			mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO consumed_events (event_key, created_at) VALUES ($1, $2) ON CONFLICT (event_key) DO NOTHING`)).
				WithArgs("evt-1/0", now).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.ClaimEvent(context.Background(), "evt-1/0", now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
