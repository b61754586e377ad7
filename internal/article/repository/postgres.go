package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Article, error) {
	var a model.Article
	query := `SELECT id, reference, name, unit, is_active FROM articles WHERE id = $1`
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &a, nil
}

func (r *PGRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Article, error) {
	if len(ids) == 0 {
		return []model.Article{}, nil
	}

	query, args, err := sqlx.In(`SELECT id, reference, name, unit, is_active FROM articles WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	conn := postgres.Conn(ctx, r.DB)

	var articles []model.Article
	if err := conn.SelectContext(ctx, &articles, conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	return articles, nil
}
