package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/jmoiron/sqlx"
)

const (
	cartColumns = `id, technician_id, status, notes, submitted_at, created_at, updated_at`
	lineColumns = `id, cart_id, article_id, quantity, notes, created_at, updated_at`
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) CreateDraft(ctx context.Context, c *model.Cart) (bool, error) {
	query := `
        INSERT INTO carts (` + cartColumns + `)
        VALUES (:id, :technician_id, :status, :notes, :submitted_at, :created_at, :updated_at)
        ON CONFLICT (technician_id) WHERE status = 'DRAFT' DO NOTHING
    `
	res, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, c)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return false, apperror.ErrDuplicateDraft.Wrap(err)
		}
		return false, fmt.Errorf("failed to create cart: %w", postgres.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepository) GetDraft(ctx context.Context, technicianID string) (*model.Cart, error) {
	return r.getCart(ctx, `SELECT `+cartColumns+` FROM carts WHERE technician_id = $1 AND status = 'DRAFT'`, technicianID)
}

func (r *PGRepository) LockDraft(ctx context.Context, technicianID string) (*model.Cart, error) {
	return r.getCart(ctx, `SELECT `+cartColumns+` FROM carts WHERE technician_id = $1 AND status = 'DRAFT' FOR UPDATE`, technicianID)
}

func (r *PGRepository) LockByID(ctx context.Context, id string) (*model.Cart, error) {
	return r.getCart(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGRepository) getCart(ctx context.Context, query, arg string) (*model.Cart, error) {
	var c model.Cart
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &c, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cart: %w", postgres.TranslateError(err))
	}
	return &c, nil
}

func (r *PGRepository) UpdateCart(ctx context.Context, c *model.Cart) error {
	query := `
        UPDATE carts
        SET status = :status, notes = :notes, submitted_at = :submitted_at, updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("failed to update cart: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) ListLines(ctx context.Context, cartID string) ([]model.CartLine, error) {
	lines := []model.CartLine{}
	query := `SELECT ` + lineColumns + ` FROM cart_lines WHERE cart_id = $1 ORDER BY created_at, id`
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &lines, query, cartID); err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	return lines, nil
}

func (r *PGRepository) GetLine(ctx context.Context, id string) (*model.CartLine, error) {
	return r.getLine(ctx, `SELECT `+lineColumns+` FROM cart_lines WHERE id = $1`, id)
}

func (r *PGRepository) GetLineByArticle(ctx context.Context, cartID, articleID string) (*model.CartLine, error) {
	return r.getLine(ctx, `SELECT `+lineColumns+` FROM cart_lines WHERE cart_id = $1 AND article_id = $2`, cartID, articleID)
}

func (r *PGRepository) getLine(ctx context.Context, query string, args ...interface{}) (*model.CartLine, error) {
	var l model.CartLine
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &l, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cart line: %w", err)
	}
	return &l, nil
}

func (r *PGRepository) InsertLine(ctx context.Context, l *model.CartLine) error {
	query := `
        INSERT INTO cart_lines (` + lineColumns + `)
        VALUES (:id, :cart_id, :article_id, :quantity, :notes, :created_at, :updated_at)
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("failed to add cart line: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) UpdateLine(ctx context.Context, l *model.CartLine) error {
	query := `UPDATE cart_lines SET quantity = :quantity, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("failed to update cart line: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) DeleteLine(ctx context.Context, id string) error {
	if _, err := postgres.Conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete cart line: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) DeleteLines(ctx context.Context, cartID string) (int64, error) {
	res, err := postgres.Conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", postgres.TranslateError(err))
	}
	return res.RowsAffected()
}
