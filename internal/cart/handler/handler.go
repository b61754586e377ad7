package handler

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/cart"
	"github.com/fekuna/omnipos-stock-service/internal/cart/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/grpcjson"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const ServiceName = "omnipos.stock.v1.CartService"

type CartServer interface {
	GetCart(ctx context.Context, req *CartRequest) (*model.Cart, error)
	GetSummary(ctx context.Context, req *CartRequest) (*dto.CartSummary, error)
	AddLine(ctx context.Context, req *AddLineRequest) (*model.CartLine, error)
	SetLineQuantity(ctx context.Context, req *SetLineQuantityRequest) (*LineResponse, error)
	RemoveLine(ctx context.Context, req *LineRequest) (*grpcjson.Empty, error)
	Clear(ctx context.Context, req *CartRequest) (*grpcjson.Empty, error)
	Submit(ctx context.Context, req *SubmitRequest) (*model.Order, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CartServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.Unary(ServiceName, "GetCart", CartServer.GetCart),
		grpcjson.Unary(ServiceName, "GetSummary", CartServer.GetSummary),
		grpcjson.Unary(ServiceName, "AddLine", CartServer.AddLine),
		grpcjson.Unary(ServiceName, "SetLineQuantity", CartServer.SetLineQuantity),
		grpcjson.Unary(ServiceName, "RemoveLine", CartServer.RemoveLine),
		grpcjson.Unary(ServiceName, "Clear", CartServer.Clear),
		grpcjson.Unary(ServiceName, "Submit", CartServer.Submit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/stock/v1/cart.json",
}

// CartRequest addresses the caller's draft; admins name the technician.
type CartRequest struct {
	TechnicianID string `json:"technician_id"`
}

type AddLineRequest struct {
	TechnicianID string          `json:"technician_id"`
	ArticleID    string          `json:"article_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Notes        string          `json:"notes"`
}

type SetLineQuantityRequest struct {
	TechnicianID string          `json:"technician_id"`
	LineID       string          `json:"line_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type LineRequest struct {
	TechnicianID string `json:"technician_id"`
	LineID       string `json:"line_id"`
}

// LineResponse carries a nil line when the update removed it.
type LineResponse struct {
	Line    *model.CartLine `json:"line"`
	Removed bool            `json:"removed"`
}

type SubmitRequest struct {
	TechnicianID string              `json:"technician_id"`
	Notes        string              `json:"notes"`
	Priority     model.OrderPriority `json:"priority"`
}

var _ CartServer = (*CartHandler)(nil)

type CartHandler struct {
	uc     cart.UseCase
	logger logger.ZapLogger
}

func NewCartHandler(uc cart.UseCase, log logger.ZapLogger) *CartHandler {
	return &CartHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *CartHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *CartHandler) GetCart(ctx context.Context, req *CartRequest) (*model.Cart, error) {
	technicianID, err := technician(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}
	return h.uc.GetOrCreateDraft(ctx, technicianID)
}

func (h *CartHandler) GetSummary(ctx context.Context, req *CartRequest) (*dto.CartSummary, error) {
	technicianID, err := technician(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}
	return h.uc.GetSummary(ctx, technicianID)
}

func (h *CartHandler) AddLine(ctx context.Context, req *AddLineRequest) (*model.CartLine, error) {
	technicianID, err := technician(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	return h.uc.AddLine(ctx, &dto.AddLineInput{
		TechnicianID: technicianID,
		ArticleID:    req.ArticleID,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	})
}

func (h *CartHandler) SetLineQuantity(ctx context.Context, req *SetLineQuantityRequest) (*LineResponse, error) {
	technicianID, err := technician(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	line, err := h.uc.SetLineQuantity(ctx, &dto.SetLineQuantityInput{
		TechnicianID: technicianID,
		LineID:       req.LineID,
		Quantity:     req.Quantity,
	})
	if err != nil {
		return nil, err
	}
	return &LineResponse{Line: line, Removed: line == nil}, nil
}

func (h *CartHandler) RemoveLine(ctx context.Context, req *LineRequest) (*grpcjson.Empty, error) {
	technicianID, err := technician(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}
	if err := h.uc.RemoveLine(ctx, technicianID, req.LineID); err != nil {
		return nil, err
	}
	return &grpcjson.Empty{}, nil
}

func (h *CartHandler) Clear(ctx context.Context, req *CartRequest) (*grpcjson.Empty, error) {
	technicianID, err := technician(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}
	if err := h.uc.Clear(ctx, technicianID); err != nil {
		return nil, err
	}
	return &grpcjson.Empty{}, nil
}

func (h *CartHandler) Submit(ctx context.Context, req *SubmitRequest) (*model.Order, error) {
	technicianID, err := technician(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	o, err := h.uc.Submit(ctx, &dto.SubmitInput{
		TechnicianID: technicianID,
		Notes:        req.Notes,
		Priority:     req.Priority,
	})
	if err != nil {
		return nil, err
	}
	h.logger.Info("Cart submitted", zap.String("technician_id", technicianID), zap.String("order_id", o.ID))
	return o, nil
}

func technician(ctx context.Context, requested string) (string, error) {
	user, _ := auth.GetUser(ctx)
	return auth.ActingTechnician(user, requested)
}
