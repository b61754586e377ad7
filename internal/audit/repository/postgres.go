package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-stock-service/internal/audit/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/postgres"
	"github.com/jmoiron/sqlx"
)

const eventColumns = `id, seq, actor_id, entity_type, entity_id, action, before_data, after_data,
	request_id, created_at, prev_hash, integrity_hash`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) LockHead(ctx context.Context) (*dto.ChainHead, error) {
	var head dto.ChainHead
	query := `SELECT last_seq, last_hash FROM audit_chain_head WHERE id = 1 FOR UPDATE`
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &head, query); err != nil {
		return nil, fmt.Errorf("failed to lock audit chain head: %w", postgres.TranslateError(err))
	}
	return &head, nil
}

func (r *PGRepository) Append(ctx context.Context, e *model.AuditEvent) error {
	conn := postgres.Conn(ctx, r.DB)

	insertQuery := `
        INSERT INTO audit_events (` + eventColumns + `)
        VALUES (
            :id, :seq, :actor_id, :entity_type, :entity_id, :action, :before_data, :after_data,
            :request_id, :created_at, :prev_hash, :integrity_hash
        )
    `
	if _, err := conn.NamedExecContext(ctx, insertQuery, e); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", postgres.TranslateError(err))
	}

	headQuery := `UPDATE audit_chain_head SET last_seq = $1, last_hash = $2 WHERE id = 1`
	if _, err := conn.ExecContext(ctx, headQuery, e.Seq, e.IntegrityHash); err != nil {
		return fmt.Errorf("failed to move audit chain head: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.AuditEvent, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM audit_events WHERE id = $1`, id)
}

func (r *PGRepository) GetBySeq(ctx context.Context, seq int64) (*model.AuditEvent, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM audit_events WHERE seq = $1`, seq)
}

func (r *PGRepository) getOne(ctx context.Context, query string, arg interface{}) (*model.AuditEvent, error) {
	var e model.AuditEvent
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &e, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}
	return &e, nil
}

func (r *PGRepository) ListRange(ctx context.Context, fromSeq, toSeq int64, limit int) ([]model.AuditEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM audit_events WHERE seq >= $1`
	args := []interface{}{fromSeq}
	if toSeq > 0 {
		query += ` AND seq <= $2`
		args = append(args, toSeq)
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var events []model.AuditEvent
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}

func (r *PGRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]model.AuditEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM audit_events
        WHERE entity_type = $1 AND entity_id = $2 ORDER BY seq ASC`

	var events []model.AuditEvent
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &events, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("failed to list entity history: %w", err)
	}
	return events, nil
}

func (r *PGRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]model.AuditEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM audit_events WHERE actor_id = $1 ORDER BY seq DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var events []model.AuditEvent
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &events, query, actorID); err != nil {
		return nil, fmt.Errorf("failed to list actor activity: %w", err)
	}
	return events, nil
}
