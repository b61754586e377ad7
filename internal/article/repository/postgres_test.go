package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
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

func TestGetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, reference, name, unit, is_active FROM articles WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference", "name", "unit", "is_active"}))

	a, err := repo.GetByID(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDs_ExpandsInClause(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPGRepository(db)

	rows := sqlmock.NewRows([]string{"id", "reference", "name", "unit", "is_active"}).
		AddRow("a1", "REF-1", "Cable", "m", true).
		AddRow("a2", "REF-2", "Screw", "pcs", false)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, reference, name, unit, is_active FROM articles WHERE id IN ($1, $2)`)).
		WithArgs("a1", "a2").
		WillReturnRows(rows)

	articles, err := repo.GetByIDs(context.Background(), []string{"a1", "a2"})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.False(t, articles[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
