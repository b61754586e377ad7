package integrity

import (
	"testing"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMovement() *model.StockMovement {
	order := "order-1"
	return &model.StockMovement{
		ID:            "mv-1",
		TechnicianID:  "tech-1",
		ArticleID:     "art-1",
		Delta:         decimal.RequireFromString("-10"),
		Reason:        model.MovementIssue,
		LinkedOrderID: &order,
		BalanceAfter:  decimal.RequireFromString("40"),
		PerformedBy:   "tech-1",
		CreatedAt:     time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC),
	}
}

func TestDigestIsKeyOrderIndependent(t *testing.T) {
	a, err := Digest(map[string]any{"b": 1, "a": "x", "c": nil})
	require.NoError(t, err)
	b, err := Digest(map[string]any{"c": nil, "a": "x", "b": 1})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestMovementHashStableAcrossRepresentations(t *testing.T) {
	m := sampleMovement()
	h1, err := MovementHash(m)
	require.NoError(t, err)

	// what a database round trip produces: scale 2, microseconds, another zone
	m2 := *m
	m2.Delta = decimal.RequireFromString("-10.00")
	m2.BalanceAfter = decimal.RequireFromString("40.00")
	m2.CreatedAt = m.CreatedAt.Truncate(time.Microsecond).In(time.FixedZone("CET", 3600))
	h2, err := MovementHash(&m2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestVerifyMovementDetectsTampering(t *testing.T) {
	m := sampleMovement()
	h, err := MovementHash(m)
	require.NoError(t, err)
	m.IntegrityHash = h

	ok, err := VerifyMovement(m)
	require.NoError(t, err)
	assert.True(t, ok)

	m.BalanceAfter = decimal.RequireFromString("400")
	ok, err = VerifyMovement(m)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEncodeDataNilIsNull(t *testing.T) {
	j, err := EncodeData(nil)
	require.NoError(t, err)
	assert.False(t, j.Valid)
}

func TestEventHashSurvivesReencoding(t *testing.T) {
	data, err := EncodeData(map[string]any{"quantity": "7.50", "status": "DRAFT", "nested": map[string]any{"z": 1, "a": 2.5}})
	require.NoError(t, err)

	e := &model.AuditEvent{
		ID: "ev-1", Seq: 1, ActorID: "tech-1", EntityType: model.EntityCart, EntityID: "cart-1",
		Action: "create_cart", AfterData: data, CreatedAt: time.Now(),
	}
	h1, err := EventHash(e)
	require.NoError(t, err)

	// jsonb normalizes whitespace and key order
	e.AfterData = types.NullJSONText{JSONText: types.JSONText(`{"status": "DRAFT", "nested": {"a": 2.5, "z": 1}, "quantity": "7.50"}`), Valid: true}
	h2, err := EventHash(e)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestEventHashCoversPrevHash(t *testing.T) {
	e := &model.AuditEvent{ID: "ev-1", Seq: 2, Action: "x", CreatedAt: time.Now(), PrevHash: "aaa"}
	h1, err := EventHash(e)
	require.NoError(t, err)

	e.PrevHash = "bbb"
	h2, err := EventHash(e)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}
