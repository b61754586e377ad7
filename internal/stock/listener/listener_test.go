package listener

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
	"github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// issuer fails each article with the queued errors before succeeding.
type issuer struct {
	stock.UseCase
	mu       sync.Mutex
	failures map[string][]error
	issued   []dto.IssueInput
	calls    int
}

func (s *issuer) Issue(_ context.Context, input *dto.IssueInput) (*model.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if queued := s.failures[input.ArticleID]; len(queued) > 0 {
		s.failures[input.ArticleID] = queued[1:]
		return nil, queued[0]
	}
	s.issued = append(s.issued, *input)
	return &model.StockMovement{ID: "mv"}, nil
}

// reader serves msgs once, then cancels the listener.
type reader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *reader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *reader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func message(t *testing.T, offset int64, eventType string, items ...ConsumedItemPayload) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(StockConsumedEvent{
		EventID:   "evt-1",
		EventType: eventType,
		Payload:   ConsumedPayload{TechnicianID: "tech-1", Location: "site 12", Items: items},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: raw}
}

func run(t *testing.T, uc *issuer, msgs ...kafka.Message) *reader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &reader{msgs: msgs, cancel: cancel}
	l := NewConsumptionListener(r, uc, logger.NewNop())
	l.backoff = time.Millisecond

	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
	return r
}

func item(article, q string) ConsumedItemPayload {
	return ConsumedItemPayload{ArticleID: article, Quantity: decimal.RequireFromString(q)}
}

func TestListener_IssuesEveryItem(t *testing.T) {
	uc := &issuer{failures: map[string][]error{}}
	r := run(t, uc, message(t, 7, eventStockConsumed, item("art-cable", "2.5"), item("art-fuse", "1")))

	require.Len(t, uc.issued, 2)
	assert.Equal(t, "site 12", uc.issued[0].Location)
	assert.Equal(t, "tech-1", uc.issued[0].ActorID)
	assert.True(t, uc.issued[0].Quantity.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, []int64{7}, r.committed)
}

func TestListener_RetriesLockContention(t *testing.T) {
	uc := &issuer{failures: map[string][]error{
		"art-cable": {apperror.ErrLockTimeout, apperror.ErrLockTimeout},
	}}
	run(t, uc, message(t, 1, eventStockConsumed, item("art-cable", "1")))

	assert.Equal(t, 3, uc.calls)
	assert.Len(t, uc.issued, 1)
}

func TestListener_GivesUpAfterMaxAttempts(t *testing.T) {
	uc := &issuer{failures: map[string][]error{
		"art-cable": {apperror.ErrLockTimeout, apperror.ErrLockTimeout, apperror.ErrLockTimeout, apperror.ErrLockTimeout},
	}}
	r := run(t, uc, message(t, 1, eventStockConsumed, item("art-cable", "1"), item("art-fuse", "1")))

	assert.Equal(t, maxAttempts+1, uc.calls)
	require.Len(t, uc.issued, 1)
	assert.Equal(t, "art-fuse", uc.issued[0].ArticleID)
	assert.Equal(t, []int64{1}, r.committed)
}

func TestListener_BusinessRejectionIsNotRetried(t *testing.T) {
	uc := &issuer{failures: map[string][]error{"art-cable": {apperror.ErrInsufficientStock}}}
	run(t, uc, message(t, 1, eventStockConsumed, item("art-cable", "9")))

	assert.Equal(t, 1, uc.calls)
	assert.Empty(t, uc.issued)
}

func TestListener_KeysEachItemByEvent(t *testing.T) {
	uc := &issuer{failures: map[string][]error{"art-cable": {apperror.ErrDuplicateEvent}}}
	r := run(t, uc, message(t, 3, eventStockConsumed, item("art-cable", "1"), item("art-fuse", "2")))

	assert.Equal(t, 2, uc.calls)
	require.Len(t, uc.issued, 1)
	assert.Equal(t, "evt-1/1", uc.issued[0].SourceEventKey)
	assert.Equal(t, []int64{3}, r.committed)
}

func TestListener_SkipsForeignAndMalformedMessages(t *testing.T) {
	uc := &issuer{failures: map[string][]error{}}
	r := run(t, uc,
		kafka.Message{Offset: 1, Value: []byte("{not json")},
		message(t, 2, "StockCounted", item("art-cable", "1")),
	)

	assert.Zero(t, uc.calls)
	assert.Equal(t, []int64{1, 2}, r.committed)
}

func TestIssueWithRetry_StopsOnCancel(t *testing.T) {
	uc := &issuer{failures: map[string][]error{"art-cable": {apperror.ErrLockTimeout, apperror.ErrLockTimeout}}}
	l := NewConsumptionListener(nil, uc, logger.NewNop())
	l.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.issueWithRetry(ctx, &dto.IssueInput{ArticleID: "art-cable", Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperror.ErrLockTimeout)
	assert.True(t, errors.Is(err, context.Canceled))
}
