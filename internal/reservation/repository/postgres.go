package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-stock-service/internal/reservation/dto"
	"github.com/jmoiron/sqlx"
)

const reservationColumns = `id, technician_id, article_id, qty_reserved, scheduled_for, status, notes,
	created_by, approved_by, approved_at, created_at, updated_at`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, res *model.Reservation) error {
	query := `
        INSERT INTO reservations (` + reservationColumns + `)
        VALUES (
            :id, :technician_id, :article_id, :qty_reserved, :scheduled_for, :status, :notes,
            :created_by, :approved_by, :approved_at, :created_at, :updated_at
        )
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("failed to create reservation: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
}

func (r *PGRepository) LockByID(ctx context.Context, id string) (*model.Reservation, error) {
	return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGRepository) getOne(ctx context.Context, query, id string) (*model.Reservation, error) {
	var res model.Reservation
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reservation: %w", postgres.TranslateError(err))
	}
	return &res, nil
}

func (r *PGRepository) Update(ctx context.Context, res *model.Reservation) error {
	query := `
        UPDATE reservations
        SET status = :status, notes = :notes, approved_by = :approved_by, approved_at = :approved_at,
            updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("failed to update reservation: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) List(ctx context.Context, f *dto.Filters) ([]model.Reservation, error) {
	conditions := []string{}
	args := []interface{}{}

	if f.TechnicianID != "" {
		args = append(args, f.TechnicianID)
		conditions = append(conditions, fmt.Sprintf("technician_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_for ASC NULLS LAST, created_at ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	items := []model.Reservation{}
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return items, nil
}
