package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
	"github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	eventStockConsumed = "StockConsumed"
	maxAttempts        = 3
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ConsumptionListener turns consumption reports from field devices into
// ISSUE movements.
type ConsumptionListener struct {
	consumer MessageReader
	uc       stock.UseCase
	logger   logger.ZapLogger
	backoff  time.Duration
}

func NewConsumptionListener(consumer MessageReader, uc stock.UseCase, logger logger.ZapLogger) *ConsumptionListener {
	return &ConsumptionListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
		backoff:  time.Second,
	}
}

func (l *ConsumptionListener) Start(ctx context.Context) {
	l.logger.Info("Starting stock consumption listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping stock consumption listener")
			return
		default:
			msg, err := l.consumer.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(l.backoff)
				continue
			}
			l.processMessage(ctx, msg.Value)
			if err := l.consumer.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				l.logger.Error("Failed to commit kafka offset", zap.Int64("offset", msg.Offset), zap.Error(err))
			}
		}
	}
}

type StockConsumedEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   ConsumedPayload `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type ConsumedPayload struct {
	TechnicianID string                `json:"technician_id"`
	Location     string                `json:"location"`
	Items        []ConsumedItemPayload `json:"items"`
}

type ConsumedItemPayload struct {
	ArticleID string          `json:"article_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Notes     string          `json:"notes"`
}

func (l *ConsumptionListener) processMessage(ctx context.Context, value []byte) {
	var event StockConsumedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}
	if event.EventType != eventStockConsumed {
		return
	}

	l.logger.Info("Processing StockConsumed event",
		zap.String("event_id", event.EventID),
		zap.String("technician_id", event.Payload.TechnicianID),
	)

	for i, item := range event.Payload.Items {
		input := &dto.IssueInput{
			TechnicianID: event.Payload.TechnicianID,
			ArticleID:    item.ArticleID,
			Quantity:     item.Quantity,
			Location:     event.Payload.Location,
			Notes:        item.Notes,
			ActorID:      event.Payload.TechnicianID,
		}
		if event.EventID != "" {
			input.SourceEventKey = fmt.Sprintf("%s/%d", event.EventID, i)
		}
		err := l.issueWithRetry(ctx, input)
		if errors.Is(err, apperror.ErrDuplicateEvent) {
			l.logger.Info("Skipping already applied consumption",
				zap.String("event_id", event.EventID),
				zap.String("article_id", item.ArticleID),
			)
			continue
		}
		if err != nil {
			l.logger.Error("Failed to issue consumed stock",
				zap.String("event_id", event.EventID),
				zap.String("article_id", item.ArticleID),
				zap.Error(err),
			)
		}
	}
}

// issueWithRetry retries only lock contention; business rejections are final.
func (l *ConsumptionListener) issueWithRetry(ctx context.Context, input *dto.IssueInput) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err = l.uc.Issue(ctx, input)
		if err == nil || !apperror.Retryable(err) {
			return err
		}
		l.logger.Warn("Retrying stock issue after lock contention", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(l.backoff * time.Duration(attempt)):
		}
	}
	return err
}
