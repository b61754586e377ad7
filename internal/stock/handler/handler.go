package handler

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/grpcjson"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
	"github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const ServiceName = "omnipos.stock.v1.StockService"

type StockServer interface {
	Issue(ctx context.Context, req *IssueRequest) (*model.StockMovement, error)
	Receive(ctx context.Context, req *ReceiveRequest) (*model.StockMovement, error)
	Adjust(ctx context.Context, req *AdjustRequest) (*model.StockMovement, error)
	Transfer(ctx context.Context, req *TransferRequest) (*dto.TransferResult, error)
	GetStock(ctx context.Context, req *GetStockRequest) (*StockResponse, error)
	ListMovements(ctx context.Context, req *ListMovementsRequest) (*MovementsResponse, error)
	VerifyMovement(ctx context.Context, req *VerifyMovementRequest) (*VerifyMovementResponse, error)
	SetThreshold(ctx context.Context, req *SetThresholdRequest) (*model.Threshold, error)
	ListAlerts(ctx context.Context, req *ListAlertsRequest) (*AlertsResponse, error)
	AcknowledgeAlert(ctx context.Context, req *AcknowledgeAlertRequest) (*model.ThresholdAlert, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StockServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.Unary(ServiceName, "Issue", StockServer.Issue),
		grpcjson.Unary(ServiceName, "Receive", StockServer.Receive),
		grpcjson.Unary(ServiceName, "Adjust", StockServer.Adjust),
		grpcjson.Unary(ServiceName, "Transfer", StockServer.Transfer),
		grpcjson.Unary(ServiceName, "GetStock", StockServer.GetStock),
		grpcjson.Unary(ServiceName, "ListMovements", StockServer.ListMovements),
		grpcjson.Unary(ServiceName, "VerifyMovement", StockServer.VerifyMovement),
		grpcjson.Unary(ServiceName, "SetThreshold", StockServer.SetThreshold),
		grpcjson.Unary(ServiceName, "ListAlerts", StockServer.ListAlerts),
		grpcjson.Unary(ServiceName, "AcknowledgeAlert", StockServer.AcknowledgeAlert),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/stock/v1/stock.json",
}

type IssueRequest struct {
	TechnicianID  string          `json:"technician_id"`
	ArticleID     string          `json:"article_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Location      string          `json:"location"`
	LinkedOrderID string          `json:"linked_order_id"`
	Notes         string          `json:"notes"`
}

type ReceiveRequest struct {
	TechnicianID  string          `json:"technician_id"`
	ArticleID     string          `json:"article_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	LinkedOrderID string          `json:"linked_order_id"`
	Notes         string          `json:"notes"`
}

type AdjustRequest struct {
	TechnicianID string          `json:"technician_id"`
	ArticleID    string          `json:"article_id"`
	NewQuantity  decimal.Decimal `json:"new_quantity"`
	Reason       string          `json:"reason"`
}

type TransferRequest struct {
	FromTechnicianID string          `json:"from_technician_id"`
	ToTechnicianID   string          `json:"to_technician_id"`
	ArticleID        string          `json:"article_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	Notes            string          `json:"notes"`
}

type GetStockRequest struct {
	TechnicianID string `json:"technician_id"`
	IncludeZero  bool   `json:"include_zero"`
}

type StockResponse struct {
	Items []dto.StockItem `json:"items"`
}

type ListMovementsRequest struct {
	TechnicianID  string `json:"technician_id"`
	ArticleID     string `json:"article_id"`
	Reason        string `json:"reason"`
	LinkedOrderID string `json:"linked_order_id"`
	Page          int    `json:"page"`
	PageSize      int    `json:"page_size"`
}

type MovementsResponse struct {
	Items []model.StockMovement `json:"items"`
	Total int                   `json:"total"`
}

type VerifyMovementRequest struct {
	MovementID string `json:"movement_id"`
}

type VerifyMovementResponse struct {
	MovementID string `json:"movement_id"`
	Valid      bool   `json:"valid"`
}

type SetThresholdRequest struct {
	TechnicianID string          `json:"technician_id"`
	ArticleID    string          `json:"article_id"`
	MinQty       decimal.Decimal `json:"min_qty"`
	IsActive     bool            `json:"is_active"`
}

type ListAlertsRequest struct {
	TechnicianID string `json:"technician_id"`
	Acknowledged *bool  `json:"acknowledged"`
	Limit        int    `json:"limit"`
}

type AlertsResponse struct {
	Items []model.ThresholdAlert `json:"items"`
}

type AcknowledgeAlertRequest struct {
	AlertID string `json:"alert_id"`
}

var _ StockServer = (*StockHandler)(nil)

type StockHandler struct {
	uc     stock.UseCase
	logger logger.ZapLogger
}

func NewStockHandler(uc stock.UseCase, log logger.ZapLogger) *StockHandler {
	return &StockHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *StockHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *StockHandler) Issue(ctx context.Context, req *IssueRequest) (*model.StockMovement, error) {
	user, _ := auth.GetUser(ctx)
	technicianID, err := auth.ActingTechnician(user, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	return h.uc.Issue(ctx, &dto.IssueInput{
		TechnicianID:  technicianID,
		ArticleID:     req.ArticleID,
		Quantity:      req.Quantity,
		Location:      req.Location,
		LinkedOrderID: optional(req.LinkedOrderID),
		Notes:         req.Notes,
		ActorID:       user.UserID,
	})
}

func (h *StockHandler) Receive(ctx context.Context, req *ReceiveRequest) (*model.StockMovement, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}

	return h.uc.Receive(ctx, &dto.ReceiveInput{
		TechnicianID:  req.TechnicianID,
		ArticleID:     req.ArticleID,
		Quantity:      req.Quantity,
		LinkedOrderID: optional(req.LinkedOrderID),
		Notes:         req.Notes,
		ActorID:       user.UserID,
	})
}

func (h *StockHandler) Adjust(ctx context.Context, req *AdjustRequest) (*model.StockMovement, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}

	return h.uc.Adjust(ctx, &dto.AdjustInput{
		TechnicianID: req.TechnicianID,
		ArticleID:    req.ArticleID,
		NewQuantity:  req.NewQuantity,
		Reason:       req.Reason,
		ActorID:      user.UserID,
	})
}

func (h *StockHandler) Transfer(ctx context.Context, req *TransferRequest) (*dto.TransferResult, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}

	return h.uc.Transfer(ctx, &dto.TransferInput{
		FromTechnicianID: req.FromTechnicianID,
		ToTechnicianID:   req.ToTechnicianID,
		ArticleID:        req.ArticleID,
		Quantity:         req.Quantity,
		Notes:            req.Notes,
		ActorID:          user.UserID,
	})
}

func (h *StockHandler) GetStock(ctx context.Context, req *GetStockRequest) (*StockResponse, error) {
	user, _ := auth.GetUser(ctx)
	technicianID, err := auth.ActingTechnician(user, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	items, err := h.uc.GetStock(ctx, technicianID, req.IncludeZero)
	if err != nil {
		return nil, err
	}
	return &StockResponse{Items: items}, nil
}

func (h *StockHandler) ListMovements(ctx context.Context, req *ListMovementsRequest) (*MovementsResponse, error) {
	user, _ := auth.GetUser(ctx)
	technicianID, err := listScope(user, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	filters := &dto.MovementFilters{
		TechnicianID:  technicianID,
		ArticleID:     req.ArticleID,
		Reason:        model.MovementReason(req.Reason),
		LinkedOrderID: req.LinkedOrderID,
		Page:          req.Page,
		PageSize:      req.PageSize,
	}

	items, total, err := h.uc.ListMovements(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &MovementsResponse{Items: items, Total: total}, nil
}

func (h *StockHandler) VerifyMovement(ctx context.Context, req *VerifyMovementRequest) (*VerifyMovementResponse, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}

	valid, err := h.uc.VerifyMovement(ctx, req.MovementID)
	if err != nil {
		return nil, err
	}
	if !valid {
		h.logger.Warn("Movement failed integrity verification", zap.String("movement_id", req.MovementID))
	}
	return &VerifyMovementResponse{MovementID: req.MovementID, Valid: valid}, nil
}

func (h *StockHandler) SetThreshold(ctx context.Context, req *SetThresholdRequest) (*model.Threshold, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}

	return h.uc.SetThreshold(ctx, &dto.SetThresholdInput{
		TechnicianID: req.TechnicianID,
		ArticleID:    req.ArticleID,
		MinQty:       req.MinQty,
		IsActive:     req.IsActive,
		ActorID:      user.UserID,
	})
}

func (h *StockHandler) ListAlerts(ctx context.Context, req *ListAlertsRequest) (*AlertsResponse, error) {
	user, _ := auth.GetUser(ctx)
	technicianID, err := listScope(user, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	alerts, err := h.uc.ListAlerts(ctx, &dto.AlertFilters{
		TechnicianID: technicianID,
		Acknowledged: req.Acknowledged,
		Limit:        req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &AlertsResponse{Items: alerts}, nil
}

func (h *StockHandler) AcknowledgeAlert(ctx context.Context, req *AcknowledgeAlertRequest) (*model.ThresholdAlert, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}
	return h.uc.AcknowledgeAlert(ctx, req.AlertID, user.UserID)
}

// listScope lets admins list across technicians when none is named.
func listScope(user auth.UserContext, requested string) (string, error) {
	if user.Role == auth.RoleAdmin && requested == "" {
		return "", nil
	}
	return auth.ActingTechnician(user, requested)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
