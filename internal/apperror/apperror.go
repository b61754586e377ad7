package apperror

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindBusinessRule
	KindNotFound
	KindPermission
	KindIntegrity
	KindConcurrency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindIntegrity:
		return "integrity"
	case KindConcurrency:
		return "concurrency"
	default:
		return "internal"
	}
}

// Error is a classified failure. Two errors match under errors.Is when
// their codes are equal, so a sentinel still matches after WithMessage or Wrap.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy that records err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrInvalidInput          = New(KindValidation, "INVALID_INPUT", "request is malformed")
	ErrInvalidQuantity       = New(KindValidation, "INVALID_QUANTITY", "quantity is not valid for this operation")
	ErrInvalidApproval       = New(KindValidation, "INVALID_APPROVAL", "approved quantity is out of range")
	ErrInvalidHandover       = New(KindValidation, "INVALID_HANDOVER_METHOD", "unknown handover method")
	ErrInvalidSignature      = New(KindValidation, "INVALID_SIGNATURE", "signature is missing, malformed or too large")
	ErrInsufficientStock     = New(KindBusinessRule, "INSUFFICIENT_STOCK", "requested quantity exceeds available stock")
	ErrInsufficientAvailable = New(KindBusinessRule, "INSUFFICIENT_AVAILABLE", "requested reservation exceeds available stock")
	ErrNoChange              = New(KindBusinessRule, "NO_CHANGE", "new quantity equals current quantity")
	ErrSameTechnician        = New(KindBusinessRule, "SAME_TECHNICIAN", "source and destination technician are the same")
	ErrInvalidRelease        = New(KindBusinessRule, "INVALID_RELEASE", "release exceeds reserved quantity")
	ErrInactiveArticle       = New(KindBusinessRule, "INACTIVE_ARTICLE", "article is not active")
	ErrInactiveArticleInCart = New(KindBusinessRule, "INACTIVE_ARTICLE_IN_CART", "cart contains inactive articles")
	ErrCartLocked            = New(KindBusinessRule, "CART_LOCKED", "cart is no longer a draft")
	ErrEmptyCart             = New(KindBusinessRule, "EMPTY_CART", "cart has no lines")
	ErrInvalidTransition     = New(KindBusinessRule, "INVALID_TRANSITION", "operation not allowed in the current status")
	ErrInvalidPin            = New(KindBusinessRule, "INVALID_PIN", "pin does not match")
	ErrExpiredPin            = New(KindBusinessRule, "EXPIRED_PIN", "pin has expired")
	ErrAlreadyAcknowledged   = New(KindBusinessRule, "ALREADY_ACKNOWLEDGED", "alert already acknowledged")
	ErrDuplicateEvent        = New(KindBusinessRule, "DUPLICATE_EVENT", "event was already applied")
	ErrNotFound              = New(KindNotFound, "NOT_FOUND", "resource not found")
	ErrForbidden             = New(KindPermission, "FORBIDDEN", "actor may not access this resource")
	ErrIntegrity             = New(KindIntegrity, "INTEGRITY_VIOLATION", "integrity check failed")
	ErrDuplicateDraft        = New(KindConcurrency, "DUPLICATE_DRAFT", "technician already has a draft cart")
	ErrLockTimeout           = New(KindConcurrency, "LOCK_TIMEOUT", "could not acquire lock in time")
	ErrRateLimited           = New(KindConcurrency, "RATE_LIMITED", "too many requests")
	ErrInternal              = New(KindInternal, "INTERNAL", "internal error")
)

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the whole operation.
func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindConcurrency
}

func GRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		return status.New(codes.Internal, "internal error")
	}

	code := codes.Internal
	switch appErr.Kind {
	case KindValidation:
		code = codes.InvalidArgument
	case KindBusinessRule:
		code = codes.FailedPrecondition
	case KindNotFound:
		code = codes.NotFound
	case KindPermission:
		code = codes.PermissionDenied
	case KindIntegrity:
		code = codes.DataLoss
	case KindConcurrency:
		code = codes.Aborted
		if errors.Is(appErr, ErrRateLimited) {
			code = codes.ResourceExhausted
		}
	}
	return status.New(code, appErr.Code+": "+appErr.Message)
}
