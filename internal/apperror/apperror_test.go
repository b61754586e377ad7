package apperror_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestIsMatchesByCode(t *testing.T) {
	err := apperror.ErrInsufficientStock.WithMessage("need %s, have %s", "10.00", "3.00")
	wrapped := fmt.Errorf("issue failed: %w", err)

	assert.True(t, errors.Is(wrapped, apperror.ErrInsufficientStock))
	assert.False(t, errors.Is(wrapped, apperror.ErrInsufficientAvailable))
	assert.Contains(t, wrapped.Error(), "need 10.00")
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := apperror.ErrLockTimeout.Wrap(cause)

	assert.ErrorIs(t, err, apperror.ErrLockTimeout)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, apperror.ErrLockTimeout.Err)
}

func TestRetryable(t *testing.T) {
	assert.True(t, apperror.Retryable(apperror.ErrLockTimeout))
	assert.True(t, apperror.Retryable(fmt.Errorf("x: %w", apperror.ErrDuplicateDraft)))
	assert.False(t, apperror.Retryable(apperror.ErrInsufficientStock))
	assert.False(t, apperror.Retryable(errors.New("boom")))
	assert.False(t, apperror.Retryable(nil))
}

func TestGRPCStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{apperror.ErrInvalidQuantity, codes.InvalidArgument},
		{apperror.ErrCartLocked, codes.FailedPrecondition},
		{apperror.ErrNotFound, codes.NotFound},
		{apperror.ErrForbidden, codes.PermissionDenied},
		{apperror.ErrIntegrity, codes.DataLoss},
		{apperror.ErrLockTimeout, codes.Aborted},
		{apperror.ErrRateLimited, codes.ResourceExhausted},
		{errors.New("plain"), codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, apperror.GRPCStatus(tc.err).Code(), tc.err.Error())
	}
}
