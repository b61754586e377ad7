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

func draft() *model.Cart {
	at := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	return &model.Cart{
		BaseModel:    model.BaseModel{ID: "cart-1", CreatedAt: at, UpdatedAt: at},
		TechnicianID: "tech-1",
		Status:       model.CartDraft,
	}
}

func TestCreateDraft(t *testing.T) {
	cases := []struct {
		name     string
		affected int64
		created  bool
	}{
		{"inserted", 1, true},
		{"draft already exists", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewPGRepository(db)

			mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (technician_id) WHERE status = 'DRAFT' DO NOTHING`)).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			created, err := repo.CreateDraft(context.Background(), draft())
			require.NoError(t, err)
			assert.Equal(t, tc.created, created)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateDraft_UniqueViolation(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	mock.ExpectExec(`INSERT INTO carts`).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.CreateDraft(context.Background(), draft())
	assert.ErrorIs(t, err, apperror.ErrDuplicateDraft)
}

func TestDeleteLines_ReportsCount(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cart_lines WHERE cart_id = $1`)).
		WithArgs("cart-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteLines(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
