// Package integrity computes the SHA-256 digests that make stock movements
// and audit events tamper evident.
//
// A digest covers the canonical JSON form of a record: object keys sorted,
// absent values encoded as null, decimals fixed to two places and
// timestamps in UTC with microsecond precision. The same record therefore
// hashes identically before and after a database round trip.
package integrity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

const DecimalPlaces = 2

func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}

func FormatDecimal(d decimal.Decimal) string {
	return d.StringFixed(DecimalPlaces)
}

// Digest hashes the canonical JSON encoding of fields.
func Digest(fields map[string]any) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode canonical form: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// EncodeData turns a payload into the canonical JSON stored on an audit
// event. A nil map is stored as SQL NULL.
func EncodeData(data map[string]any) (types.NullJSONText, error) {
	if data == nil {
		return types.NullJSONText{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return types.NullJSONText{}, fmt.Errorf("failed to encode audit data: %w", err)
	}
	v, err := decode(raw)
	if err != nil {
		return types.NullJSONText{}, err
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return types.NullJSONText{}, fmt.Errorf("failed to encode audit data: %w", err)
	}
	return types.NullJSONText{JSONText: types.JSONText(canonical), Valid: true}, nil
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode audit data: %w", err)
	}
	return v, nil
}

func decodeNullable(j types.NullJSONText) (any, error) {
	if !j.Valid || len(j.JSONText) == 0 {
		return nil, nil
	}
	return decode(j.JSONText)
}

func EventHash(e *model.AuditEvent) (string, error) {
	before, err := decodeNullable(e.BeforeData)
	if err != nil {
		return "", err
	}
	after, err := decodeNullable(e.AfterData)
	if err != nil {
		return "", err
	}
	return Digest(map[string]any{
		"id":          e.ID,
		"seq":         e.Seq,
		"actor_id":    e.ActorID,
		"entity_type": e.EntityType,
		"entity_id":   e.EntityID,
		"action":      e.Action,
		"before_data": before,
		"after_data":  after,
		"request_id":  e.RequestID,
		"timestamp":   FormatTime(e.CreatedAt),
		"prev_hash":   e.PrevHash,
	})
}

func MovementHash(m *model.StockMovement) (string, error) {
	var linked any
	if m.LinkedOrderID != nil {
		linked = *m.LinkedOrderID
	}
	return Digest(map[string]any{
		"id":              m.ID,
		"technician_id":   m.TechnicianID,
		"article_id":      m.ArticleID,
		"delta":           FormatDecimal(m.Delta),
		"reason":          string(m.Reason),
		"linked_order_id": linked,
		"balance_after":   FormatDecimal(m.BalanceAfter),
		"location_text":   m.LocationText,
		"notes":           m.Notes,
		"performed_by":    m.PerformedBy,
		"timestamp":       FormatTime(m.CreatedAt),
	})
}

// VerifyEvent recomputes e's hash and compares it with the stored one.
func VerifyEvent(e *model.AuditEvent) (bool, error) {
	h, err := EventHash(e)
	if err != nil {
		return false, err
	}
	return h == e.IntegrityHash, nil
}

func VerifyMovement(m *model.StockMovement) (bool, error) {
	h, err := MovementHash(m)
	if err != nil {
		return false, err
	}
	return h == m.IntegrityHash, nil
}
