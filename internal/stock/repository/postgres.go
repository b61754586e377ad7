package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	levelColumns    = `id, technician_id, article_id, quantity, reserved_qty, created_at, updated_at`
	movementColumns = `id, technician_id, article_id, delta, reason, linked_order_id, balance_after,
	location_text, notes, performed_by, created_at, integrity_hash`
	thresholdColumns = `id, technician_id, article_id, min_qty, is_active, last_alert_sent, created_at, updated_at`
	alertColumns     = `id, technician_id, article_id, current_stock, threshold_level, alert_method,
	alert_sent_at, acknowledged, acknowledged_by, acknowledged_at`
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) LockLevel(ctx context.Context, key model.StockKey, now time.Time) (*model.StockLevel, error) {
	conn := postgres.Conn(ctx, r.DB)

	insertQuery := `
        INSERT INTO stock_levels (id, technician_id, article_id, quantity, reserved_qty, created_at, updated_at)
        VALUES ($1, $2, $3, 0, 0, $4, $4)
        ON CONFLICT (technician_id, article_id) DO NOTHING
    `
	if _, err := conn.ExecContext(ctx, insertQuery, uuid.New().String(), key.TechnicianID, key.ArticleID, now); err != nil {
		return nil, fmt.Errorf("failed to create stock level: %w", postgres.TranslateError(err))
	}

	var level model.StockLevel
	lockQuery := `SELECT ` + levelColumns + ` FROM stock_levels
        WHERE technician_id = $1 AND article_id = $2 FOR UPDATE`
	if err := conn.GetContext(ctx, &level, lockQuery, key.TechnicianID, key.ArticleID); err != nil {
		return nil, fmt.Errorf("failed to lock stock level: %w", postgres.TranslateError(err))
	}
	return &level, nil
}

func (r *PGRepository) ListLevels(ctx context.Context, technicianID string, includeZero bool) ([]model.StockLevel, error) {
	query := `SELECT ` + levelColumns + ` FROM stock_levels WHERE technician_id = $1`
	if !includeZero {
		query += ` AND quantity > 0`
	}
	query += ` ORDER BY article_id`

	levels := []model.StockLevel{}
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &levels, query, technicianID); err != nil {
		return nil, fmt.Errorf("failed to list stock levels: %w", err)
	}
	return levels, nil
}

func (r *PGRepository) UpdateLevel(ctx context.Context, level *model.StockLevel) error {
	query := `
        UPDATE stock_levels
        SET quantity = :quantity, reserved_qty = :reserved_qty, updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, level); err != nil {
		return fmt.Errorf("failed to update stock level: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) InsertMovement(ctx context.Context, m *model.StockMovement) error {
	query := `
        INSERT INTO stock_movements (` + movementColumns + `)
        VALUES (
            :id, :technician_id, :article_id, :delta, :reason, :linked_order_id, :balance_after,
            :location_text, :notes, :performed_by, :created_at, :integrity_hash
        )
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to log movement: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) GetMovement(ctx context.Context, id string) (*model.StockMovement, error) {
	var m model.StockMovement
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE id = $1`
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}
	return &m, nil
}

func (r *PGRepository) ClaimEvent(ctx context.Context, key string, now time.Time) (bool, error) {
	query := `INSERT INTO consumed_events (event_key, created_at) VALUES ($1, $2) ON CONFLICT (event_key) DO NOTHING`
	res, err := postgres.Conn(ctx, r.DB).ExecContext(ctx, query, key, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", postgres.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.TechnicianID != "" {
		conditions = append(conditions, "technician_id = :technician_id")
		args["technician_id"] = f.TechnicianID
	}
	if f.ArticleID != "" {
		conditions = append(conditions, "article_id = :article_id")
		args["article_id"] = f.ArticleID
	}
	if f.Reason != "" {
		conditions = append(conditions, "reason = :reason")
		args["reason"] = string(f.Reason)
	}
	if f.LinkedOrderID != "" {
		conditions = append(conditions, "linked_order_id = :linked_order_id")
		args["linked_order_id"] = f.LinkedOrderID
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at < :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM stock_movements"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count movements: %w", err)
	}

	query := "SELECT " + movementColumns + " FROM stock_movements" + whereClause + " ORDER BY created_at DESC, id"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	items := []model.StockMovement{}
	if err := nstmt.SelectContext(ctx, &items, args); err != nil {
		return nil, 0, fmt.Errorf("failed to list movements: %w", err)
	}
	return items, count, nil
}

func (r *PGRepository) LockThreshold(ctx context.Context, key model.StockKey) (*model.Threshold, error) {
	var th model.Threshold
	query := `SELECT ` + thresholdColumns + ` FROM thresholds
        WHERE technician_id = $1 AND article_id = $2 FOR UPDATE`
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &th, query, key.TechnicianID, key.ArticleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock threshold: %w", postgres.TranslateError(err))
	}
	return &th, nil
}

func (r *PGRepository) InsertThreshold(ctx context.Context, th *model.Threshold) error {
	query := `
        INSERT INTO thresholds (` + thresholdColumns + `)
        VALUES (:id, :technician_id, :article_id, :min_qty, :is_active, :last_alert_sent, :created_at, :updated_at)
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, th); err != nil {
		return fmt.Errorf("failed to create threshold: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) UpdateThreshold(ctx context.Context, th *model.Threshold) error {
	query := `
        UPDATE thresholds
        SET min_qty = :min_qty, is_active = :is_active, last_alert_sent = :last_alert_sent, updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, th); err != nil {
		return fmt.Errorf("failed to update threshold: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) InsertAlert(ctx context.Context, a *model.ThresholdAlert) error {
	query := `
        INSERT INTO threshold_alerts (` + alertColumns + `)
        VALUES (
            :id, :technician_id, :article_id, :current_stock, :threshold_level, :alert_method,
            :alert_sent_at, :acknowledged, :acknowledged_by, :acknowledged_at
        )
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to create alert: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) LockAlert(ctx context.Context, id string) (*model.ThresholdAlert, error) {
	var a model.ThresholdAlert
	query := `SELECT ` + alertColumns + ` FROM threshold_alerts WHERE id = $1 FOR UPDATE`
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock alert: %w", postgres.TranslateError(err))
	}
	return &a, nil
}

func (r *PGRepository) UpdateAlert(ctx context.Context, a *model.ThresholdAlert) error {
	query := `
        UPDATE threshold_alerts
        SET acknowledged = :acknowledged, acknowledged_by = :acknowledged_by, acknowledged_at = :acknowledged_at
        WHERE id = :id
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to update alert: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) ListAlerts(ctx context.Context, f *dto.AlertFilters) ([]model.ThresholdAlert, error) {
	conditions := []string{}
	args := []interface{}{}

	if f.TechnicianID != "" {
		args = append(args, f.TechnicianID)
		conditions = append(conditions, fmt.Sprintf("technician_id = $%d", len(args)))
	}
	if f.Acknowledged != nil {
		args = append(args, *f.Acknowledged)
		conditions = append(conditions, fmt.Sprintf("acknowledged = $%d", len(args)))
	}

	query := `SELECT ` + alertColumns + ` FROM threshold_alerts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY alert_sent_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	alerts := []model.ThresholdAlert{}
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}
