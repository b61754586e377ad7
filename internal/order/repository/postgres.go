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

const (
	orderColumns = `id, technician_id, cart_id, status, priority, notes, refusal_reason,
	approved_by, approved_at, prepared_by, prepared_at, handover_method, handover_data,
	handed_over_at, closed_at, created_at, updated_at`
	lineColumns = `id, order_id, position, article_id, qty_requested, qty_approved, qty_prepared, created_at, updated_at`
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, o *model.Order) error {
	conn := postgres.Conn(ctx, r.DB)

	query := `
        INSERT INTO orders (` + orderColumns + `)
        VALUES (
            :id, :technician_id, :cart_id, :status, :priority, :notes, :refusal_reason,
            :approved_by, :approved_at, :prepared_by, :prepared_at, :handover_method, :handover_data,
            :handed_over_at, :closed_at, :created_at, :updated_at
        )
    `
	if _, err := conn.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("failed to create order: %w", postgres.TranslateError(err))
	}
	if len(o.Lines) == 0 {
		return nil
	}

	linesQuery := `
        INSERT INTO order_lines (` + lineColumns + `)
        VALUES (:id, :order_id, :position, :article_id, :qty_requested, :qty_approved, :qty_prepared, :created_at, :updated_at)
    `
	if _, err := conn.NamedExecContext(ctx, linesQuery, o.Lines); err != nil {
		return fmt.Errorf("failed to create order lines: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *PGRepository) LockByID(ctx context.Context, id string) (*model.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGRepository) getOne(ctx context.Context, query, id string) (*model.Order, error) {
	conn := postgres.Conn(ctx, r.DB)

	var o model.Order
	if err := conn.GetContext(ctx, &o, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", postgres.TranslateError(err))
	}

	o.Lines = []model.OrderLine{}
	linesQuery := `SELECT ` + lineColumns + ` FROM order_lines WHERE order_id = $1 ORDER BY position`
	if err := conn.SelectContext(ctx, &o.Lines, linesQuery, id); err != nil {
		return nil, fmt.Errorf("failed to get order lines: %w", err)
	}
	return &o, nil
}

func (r *PGRepository) Update(ctx context.Context, o *model.Order) error {
	query := `
        UPDATE orders
        SET status = :status, priority = :priority, notes = :notes, refusal_reason = :refusal_reason,
            approved_by = :approved_by, approved_at = :approved_at,
            prepared_by = :prepared_by, prepared_at = :prepared_at,
            handover_method = :handover_method, handover_data = :handover_data,
            handed_over_at = :handed_over_at, closed_at = :closed_at, updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("failed to update order: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) UpdateLine(ctx context.Context, l *model.OrderLine) error {
	query := `
        UPDATE order_lines
        SET qty_approved = :qty_approved, qty_prepared = :qty_prepared, updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("failed to update order line: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) ListByStatus(ctx context.Context, statuses []model.OrderStatus, technicianID string) ([]model.Order, error) {
	if len(statuses) == 0 {
		return []model.Order{}, nil
	}
	conn := postgres.Conn(ctx, r.DB)

	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	base := `SELECT ` + orderColumns + ` FROM orders WHERE status IN (?)`
	args := []interface{}{names}
	if technicianID != "" {
		base += ` AND technician_id = ?`
		args = append(args, technicianID)
	}
	base += ` ORDER BY priority DESC, created_at ASC`

	query, inArgs, err := sqlx.In(base, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build queue query: %w", err)
	}

	orders := []model.Order{}
	if err := conn.SelectContext(ctx, &orders, r.DB.Rebind(query), inArgs...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[string]*model.Order, len(orders))
	for i := range orders {
		orders[i].Lines = []model.OrderLine{}
		ids = append(ids, orders[i].ID)
		byID[orders[i].ID] = &orders[i]
	}

	linesQuery, linesArgs, err := sqlx.In(`SELECT `+lineColumns+` FROM order_lines WHERE order_id IN (?) ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build order lines query: %w", err)
	}
	var lines []model.OrderLine
	if err := conn.SelectContext(ctx, &lines, r.DB.Rebind(linesQuery), linesArgs...); err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}
	for _, l := range lines {
		if o, ok := byID[l.OrderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return orders, nil
}
