package auth

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"google.golang.org/grpc/metadata"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleTech  Role = "TECH"
)

const (
	HeaderUserID    = "x-user-id"
	HeaderUserRole  = "x-user-role"
	HeaderRequestID = "x-request-id"
)

type UserContext struct {
	UserID    string
	Role      Role
	RequestID string
}

type userContextKey struct{}

func WithUser(ctx context.Context, u UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// GetUser returns the actor placed in ctx by the interceptor, falling back
// to incoming gRPC metadata.
func GetUser(ctx context.Context) (UserContext, bool) {
	if u, ok := ctx.Value(userContextKey{}).(UserContext); ok {
		return u, true
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return UserContext{}, false
	}
	u := UserContext{
		UserID:    first(md, HeaderUserID),
		Role:      Role(first(md, HeaderUserRole)),
		RequestID: first(md, HeaderRequestID),
	}
	return u, u.UserID != ""
}

func GetUserID(ctx context.Context) string {
	u, _ := GetUser(ctx)
	return u.UserID
}

func GetRequestID(ctx context.Context) string {
	u, _ := GetUser(ctx)
	return u.RequestID
}

// CanAccess reports whether u may read or act on a record owned by a technician.
// Admins see everything, technicians only their own records.
func CanAccess(u UserContext, record model.Owned) bool {
	if u.Role == RoleAdmin {
		return true
	}
	return u.UserID != "" && u.UserID == record.OwnerID()
}

// RequireAdmin rejects every caller that is not an admin.
func RequireAdmin(u UserContext) error {
	if u.Role != RoleAdmin {
		return apperror.ErrForbidden.WithMessage("operation requires the %s role", RoleAdmin)
	}
	return nil
}

// ActingTechnician resolves whose stock a call works on. Technicians always
// act on their own records; admins must name the technician.
func ActingTechnician(u UserContext, requested string) (string, error) {
	if u.UserID == "" {
		return "", apperror.ErrForbidden.WithMessage("caller is not identified")
	}
	if u.Role == RoleAdmin {
		if requested == "" {
			return "", apperror.ErrInvalidInput.WithMessage("technician_id is required")
		}
		return requested, nil
	}
	if requested != "" && requested != u.UserID {
		return "", apperror.ErrForbidden.WithMessage("technician %s may not act for %s", u.UserID, requested)
	}
	return u.UserID, nil
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
