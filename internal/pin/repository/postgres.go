package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PGRepository) Create(ctx context.Context, p *model.PINCode) error {
	query := `
        INSERT INTO pin_codes (id, technician_id, order_id, pin_hash, expires_at, is_used, used_at, created_at)
        VALUES (:id, :technician_id, :order_id, :pin_hash, :expires_at, :is_used, :used_at, :created_at)
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to create pin: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) FindUnused(ctx context.Context, orderID, technicianID, pinHash string) (*model.PINCode, error) {
	var p model.PINCode
	query := `
        SELECT id, technician_id, order_id, pin_hash, expires_at, is_used, used_at, created_at
        FROM pin_codes
        WHERE order_id = $1 AND technician_id = $2 AND pin_hash = $3 AND is_used = false
        ORDER BY created_at DESC
        LIMIT 1
        FOR UPDATE
    `
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &p, query, orderID, technicianID, pinHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pin: %w", postgres.TranslateError(err))
	}
	return &p, nil
}

func (r *PGRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE pin_codes SET is_used = true, used_at = $2 WHERE id = $1`
	if _, err := postgres.Conn(ctx, r.DB).ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark pin used: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := postgres.Conn(ctx, r.DB).ExecContext(ctx,
		`DELETE FROM pin_codes WHERE expires_at < $1 AND is_used = false`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pins: %w", err)
	}
	return res.RowsAffected()
}
