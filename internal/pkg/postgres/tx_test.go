package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/omnipos-stock-service/internal/apperror"
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

func TestWithinTx_CommitsAndRunsHooks(t *testing.T) {
	db, mock := setupMockDB(t)
	m := NewTxManager(db, 2*time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '2000ms'`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE stock_levels SET quantity = $1`)).WithArgs("5").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var ran []string
	err := m.WithinTx(context.Background(), func(ctx context.Context) error {
		AfterCommit(ctx, func(context.Context) { ran = append(ran, "hook") })
		_, err := Conn(ctx, db).ExecContext(ctx, `UPDATE stock_levels SET quantity = $1`, "5")
		ran = append(ran, "work")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "hook"}, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollbackSkipsHooks(t *testing.T) {
	db, mock := setupMockDB(t)
	m := NewTxManager(db, 0)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	hookRan := false
	err := m.WithinTx(context.Background(), func(ctx context.Context) error {
		AfterCommit(ctx, func(context.Context) { hookRan = true })
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, hookRan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_NestedCallsJoin(t *testing.T) {
	db, mock := setupMockDB(t)
	m := NewTxManager(db, 0)

	mock.ExpectBegin()
	mock.ExpectCommit()

	hooks := 0
	err := m.WithinTx(context.Background(), func(ctx context.Context) error {
		outer := Conn(ctx, db)
		return m.WithinTx(ctx, func(inner context.Context) error {
			assert.Same(t, outer, Conn(inner, db))
			AfterCommit(inner, func(context.Context) { hooks++ })
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, hooks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_PanicRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	m := NewTxManager(db, 0)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = m.WithinTx(context.Background(), func(context.Context) error { panic("bad state") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_CommitLockFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	m := NewTxManager(db, 0)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: codeSerializationFailure})

	err := m.WithinTx(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, apperror.ErrLockTimeout)
}

func TestAfterCommit_OutsideTransactionRunsNow(t *testing.T) {
	ran := false
	AfterCommit(context.Background(), func(context.Context) { ran = true })
	assert.True(t, ran)
}

func TestConn_WithoutTransaction(t *testing.T) {
	db, _ := setupMockDB(t)
	assert.Same(t, db, Conn(context.Background(), db))
}

func TestTranslateError(t *testing.T) {
	for _, code := range []string{codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure} {
		err := TranslateError(fmt.Errorf("update: %w", &pgconn.PgError{Code: code}))
		assert.ErrorIs(t, err, apperror.ErrLockTimeout, code)
		assert.True(t, apperror.Retryable(err), code)
	}

	unique := &pgconn.PgError{Code: codeUniqueViolation}
	assert.Same(t, unique, TranslateError(unique))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", unique)))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
	assert.NoError(t, TranslateError(nil))
}
