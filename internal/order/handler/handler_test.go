package handler

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUseCase struct {
	order.UseCase

	owner    string
	closed   []string
	handover *dto.HandoverInput
	queue    *dto.QueueFilters
}

func (s *stubUseCase) GetForUser(_ context.Context, user auth.UserContext, orderID string) (*model.Order, error) {
	o := &model.Order{BaseModel: model.BaseModel{ID: orderID}, TechnicianID: s.owner}
	if !auth.CanAccess(user, o) {
		return nil, apperror.ErrForbidden
	}
	return o, nil
}

func (s *stubUseCase) GetDemandsQueue(_ context.Context, filters *dto.QueueFilters) ([]model.Order, error) {
	s.queue = filters
	return nil, nil
}

func (s *stubUseCase) Handover(_ context.Context, input *dto.HandoverInput) (*model.Order, error) {
	s.handover = input
	return &model.Order{BaseModel: model.BaseModel{ID: input.OrderID}, Status: model.OrderClosed}, nil
}

func (s *stubUseCase) Close(_ context.Context, orderID, actorID, reason string) (*model.Order, error) {
	s.closed = []string{orderID, actorID, reason}
	return &model.Order{BaseModel: model.BaseModel{ID: orderID}, Status: model.OrderClosed}, nil
}

func withUser(id string, role auth.Role) context.Context {
	return auth.WithUser(context.Background(), auth.UserContext{UserID: id, Role: role})
}

func TestClose_PassesReason(t *testing.T) {
	uc := &stubUseCase{}
	h := NewOrderHandler(uc, logger.NewNop())

	_, err := h.Close(withUser("tech-a", auth.RoleTech), &ReasonRequest{OrderID: "ord-1", Reason: "done"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Nil(t, uc.closed)

	o, err := h.Close(withUser("admin-1", auth.RoleAdmin), &ReasonRequest{OrderID: "ord-1", Reason: "delivered on site"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderClosed, o.Status)
	assert.Equal(t, []string{"ord-1", "admin-1", "delivered on site"}, uc.closed)
}

func TestHandover_ChecksOwnership(t *testing.T) {
	uc := &stubUseCase{owner: "tech-a"}
	h := NewOrderHandler(uc, logger.NewNop())

	_, err := h.Handover(withUser("tech-b", auth.RoleTech), &HandoverRequest{OrderID: "ord-1", Method: model.HandoverPIN, PIN: "123456"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Nil(t, uc.handover)

	_, err = h.Handover(withUser("tech-a", auth.RoleTech), &HandoverRequest{OrderID: "ord-1", Method: model.HandoverPIN, PIN: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "tech-a", uc.handover.ActorID)
	assert.Equal(t, "123456", uc.handover.PIN)
}

func TestGetDemandsQueue_TechnicianSeesOwnOrders(t *testing.T) {
	uc := &stubUseCase{}
	h := NewOrderHandler(uc, logger.NewNop())

	_, err := h.GetDemandsQueue(withUser("tech-a", auth.RoleTech), &QueueRequest{})
	require.NoError(t, err)
	assert.Equal(t, "tech-a", uc.queue.TechnicianID)

	_, err = h.GetDemandsQueue(withUser("admin-1", auth.RoleAdmin), &QueueRequest{})
	require.NoError(t, err)
	assert.Empty(t, uc.queue.TechnicianID)
}
