package handler

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/grpcjson"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const ServiceName = "omnipos.stock.v1.OrderService"

type OrderServer interface {
	GetOrder(ctx context.Context, req *OrderRequest) (*model.Order, error)
	GetDemandsQueue(ctx context.Context, req *QueueRequest) (*OrdersResponse, error)
	ApproveFull(ctx context.Context, req *ApproveFullRequest) (*model.Order, error)
	ApprovePartial(ctx context.Context, req *ApprovePartialRequest) (*model.Order, error)
	Refuse(ctx context.Context, req *ReasonRequest) (*model.Order, error)
	Prepare(ctx context.Context, req *OrderRequest) (*dto.PrepareResult, error)
	IssuePIN(ctx context.Context, req *OrderRequest) (*dto.IssuedPIN, error)
	Handover(ctx context.Context, req *HandoverRequest) (*model.Order, error)
	Close(ctx context.Context, req *ReasonRequest) (*model.Order, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.Unary(ServiceName, "GetOrder", OrderServer.GetOrder),
		grpcjson.Unary(ServiceName, "GetDemandsQueue", OrderServer.GetDemandsQueue),
		grpcjson.Unary(ServiceName, "ApproveFull", OrderServer.ApproveFull),
		grpcjson.Unary(ServiceName, "ApprovePartial", OrderServer.ApprovePartial),
		grpcjson.Unary(ServiceName, "Refuse", OrderServer.Refuse),
		grpcjson.Unary(ServiceName, "Prepare", OrderServer.Prepare),
		grpcjson.Unary(ServiceName, "IssuePIN", OrderServer.IssuePIN),
		grpcjson.Unary(ServiceName, "Handover", OrderServer.Handover),
		grpcjson.Unary(ServiceName, "Close", OrderServer.Close),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/stock/v1/order.json",
}

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type QueueRequest struct {
	Statuses     []model.OrderStatus `json:"statuses"`
	TechnicianID string              `json:"technician_id"`
}

type OrdersResponse struct {
	Items []model.Order `json:"items"`
}

type ApproveFullRequest struct {
	OrderID string `json:"order_id"`
	Notes   string `json:"notes"`
}

type LineApproval struct {
	LineID      string          `json:"line_id"`
	QtyApproved decimal.Decimal `json:"qty_approved"`
}

type ApprovePartialRequest struct {
	OrderID string         `json:"order_id"`
	Lines   []LineApproval `json:"lines"`
	Notes   string         `json:"notes"`
}

// ReasonRequest serves refusals and closures.
type ReasonRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type HandoverRequest struct {
	OrderID       string               `json:"order_id"`
	Method        model.HandoverMethod `json:"method"`
	PIN           string               `json:"pin"`
	SignatureData string               `json:"signature_data"`
	DeviceInfo    map[string]any       `json:"device_info"`
}

var _ OrderServer = (*OrderHandler)(nil)

type OrderHandler struct {
	uc     order.UseCase
	logger logger.ZapLogger
}

func NewOrderHandler(uc order.UseCase, log logger.ZapLogger) *OrderHandler {
	return &OrderHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *OrderHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *OrderHandler) GetOrder(ctx context.Context, req *OrderRequest) (*model.Order, error) {
	user, _ := auth.GetUser(ctx)
	return h.uc.GetForUser(ctx, user, req.OrderID)
}

func (h *OrderHandler) GetDemandsQueue(ctx context.Context, req *QueueRequest) (*OrdersResponse, error) {
	user, _ := auth.GetUser(ctx)
	filters := &dto.QueueFilters{Statuses: req.Statuses, TechnicianID: req.TechnicianID}
	if user.Role != auth.RoleAdmin {
		technicianID, err := auth.ActingTechnician(user, req.TechnicianID)
		if err != nil {
			return nil, err
		}
		filters.TechnicianID = technicianID
	}

	orders, err := h.uc.GetDemandsQueue(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &OrdersResponse{Items: orders}, nil
}

func (h *OrderHandler) ApproveFull(ctx context.Context, req *ApproveFullRequest) (*model.Order, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}
	return h.uc.ApproveFull(ctx, req.OrderID, user.UserID, req.Notes)
}

func (h *OrderHandler) ApprovePartial(ctx context.Context, req *ApprovePartialRequest) (*model.Order, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}

	lines := make([]dto.LineApproval, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = dto.LineApproval{LineID: l.LineID, QtyApproved: l.QtyApproved}
	}
	return h.uc.ApprovePartial(ctx, &dto.ApprovePartialInput{
		OrderID:    req.OrderID,
		ApproverID: user.UserID,
		Lines:      lines,
		Notes:      req.Notes,
	})
}

func (h *OrderHandler) Refuse(ctx context.Context, req *ReasonRequest) (*model.Order, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}
	return h.uc.Refuse(ctx, req.OrderID, user.UserID, req.Reason)
}

func (h *OrderHandler) Prepare(ctx context.Context, req *OrderRequest) (*dto.PrepareResult, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}

	result, err := h.uc.Prepare(ctx, req.OrderID, user.UserID)
	if err != nil {
		return nil, err
	}
	if !result.Complete() {
		h.logger.Warn("Order prepared with shortfall", zap.String("order_id", req.OrderID))
	}
	return result, nil
}

func (h *OrderHandler) IssuePIN(ctx context.Context, req *OrderRequest) (*dto.IssuedPIN, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}
	return h.uc.IssuePIN(ctx, req.OrderID, user.UserID)
}

func (h *OrderHandler) Handover(ctx context.Context, req *HandoverRequest) (*model.Order, error) {
	user, _ := auth.GetUser(ctx)
	if _, err := h.uc.GetForUser(ctx, user, req.OrderID); err != nil {
		return nil, err
	}

	return h.uc.Handover(ctx, &dto.HandoverInput{
		OrderID:       req.OrderID,
		ActorID:       user.UserID,
		Method:        req.Method,
		PIN:           req.PIN,
		SignatureData: req.SignatureData,
		DeviceInfo:    req.DeviceInfo,
	})
}

func (h *OrderHandler) Close(ctx context.Context, req *ReasonRequest) (*model.Order, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}
	return h.uc.Close(ctx, req.OrderID, user.UserID, req.Reason)
}
