package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pin"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
)

const keyLength = 32

type Options struct {
	Length     int
	Expiry     time.Duration
	Salt       string
	Iterations int
}

type pinUseCase struct {
	repo   pin.Repository
	opts   Options
	logger logger.ZapLogger
	now    func() time.Time
}

func NewPINUseCase(repo pin.Repository, opts Options, log logger.ZapLogger) pin.UseCase {
	if opts.Length <= 0 {
		opts.Length = 6
	}
	if opts.Expiry <= 0 {
		opts.Expiry = 15 * time.Minute
	}
	if opts.Iterations <= 0 {
		opts.Iterations = 100000
	}
	return &pinUseCase{repo: repo, opts: opts, logger: log, now: time.Now}
}

func (uc *pinUseCase) hash(code string) string {
	key := pbkdf2.Key([]byte(code), []byte(uc.opts.Salt), uc.opts.Iterations, keyLength, sha256.New)
	return hex.EncodeToString(key)
}

func (uc *pinUseCase) generate() (string, error) {
	digits := make([]byte, uc.opts.Length)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate pin: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

func (uc *pinUseCase) Issue(ctx context.Context, orderID, technicianID string) (string, *model.PINCode, error) {
	code, err := uc.generate()
	if err != nil {
		return "", nil, err
	}

	now := uc.now().UTC()
	p := &model.PINCode{
		ID:           uuid.New().String(),
		TechnicianID: technicianID,
		OrderID:      orderID,
		PinHash:      uc.hash(code),
		ExpiresAt:    now.Add(uc.opts.Expiry),
		CreatedAt:    now,
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		return "", nil, err
	}

	uc.logger.Info("handover pin issued", zap.String("order_id", orderID), zap.Time("expires_at", p.ExpiresAt))
	return code, p, nil
}

func (uc *pinUseCase) Verify(ctx context.Context, orderID, technicianID, code string) (*model.PINCode, error) {
	if code == "" {
		return nil, apperror.ErrInvalidPin.WithMessage("pin is required")
	}
	p, err := uc.repo.FindUnused(ctx, orderID, technicianID, uc.hash(code))
	if err != nil {
		return nil, err
	}
	if p == nil {
		uc.logger.Warn("invalid handover pin", zap.String("order_id", orderID))
		return nil, apperror.ErrInvalidPin
	}
	if p.Expired(uc.now()) {
		return nil, apperror.ErrExpiredPin
	}
	return p, nil
}

func (uc *pinUseCase) MarkUsed(ctx context.Context, p *model.PINCode) error {
	now := uc.now().UTC()
	if err := uc.repo.MarkUsed(ctx, p.ID, now); err != nil {
		return err
	}
	p.IsUsed = true
	p.UsedAt = &now
	return nil
}

func (uc *pinUseCase) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := uc.repo.DeleteExpired(ctx, uc.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.logger.Info("expired pins removed", zap.Int64("count", n))
	}
	return n, nil
}
