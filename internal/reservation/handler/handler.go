package handler

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/grpcjson"
	"github.com/fekuna/omnipos-stock-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/internal/reservation"
	"github.com/fekuna/omnipos-stock-service/internal/reservation/dto"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
)

const ServiceName = "omnipos.stock.v1.ReservationService"

type ReservationServer interface {
	Create(ctx context.Context, req *CreateRequest) (*model.Reservation, error)
	Approve(ctx context.Context, req *ReservationRequest) (*model.Reservation, error)
	Cancel(ctx context.Context, req *ReservationRequest) (*model.Reservation, error)
	Get(ctx context.Context, req *ReservationRequest) (*model.Reservation, error)
	List(ctx context.Context, req *ListRequest) (*ReservationsResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReservationServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcjson.Unary(ServiceName, "Create", ReservationServer.Create),
		grpcjson.Unary(ServiceName, "Approve", ReservationServer.Approve),
		grpcjson.Unary(ServiceName, "Cancel", ReservationServer.Cancel),
		grpcjson.Unary(ServiceName, "Get", ReservationServer.Get),
		grpcjson.Unary(ServiceName, "List", ReservationServer.List),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/stock/v1/reservation.json",
}

type CreateRequest struct {
	TechnicianID string          `json:"technician_id"`
	ArticleID    string          `json:"article_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	ScheduledFor *time.Time      `json:"scheduled_for"`
	Notes        string          `json:"notes"`
}

type ReservationRequest struct {
	ReservationID string `json:"reservation_id"`
}

type ListRequest struct {
	TechnicianID string                  `json:"technician_id"`
	Status       model.ReservationStatus `json:"status"`
	Limit        int                     `json:"limit"`
}

type ReservationsResponse struct {
	Items []model.Reservation `json:"items"`
}

var _ ReservationServer = (*ReservationHandler)(nil)

type ReservationHandler struct {
	uc     reservation.UseCase
	logger logger.ZapLogger
}

func NewReservationHandler(uc reservation.UseCase, log logger.ZapLogger) *ReservationHandler {
	return &ReservationHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *ReservationHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *ReservationHandler) Create(ctx context.Context, req *CreateRequest) (*model.Reservation, error) {
	user, _ := auth.GetUser(ctx)
	technicianID, err := auth.ActingTechnician(user, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	return h.uc.Create(ctx, &dto.CreateInput{
		TechnicianID: technicianID,
		ArticleID:    req.ArticleID,
		Quantity:     req.Quantity,
		ScheduledFor: req.ScheduledFor,
		Notes:        req.Notes,
		ActorID:      user.UserID,
	})
}

func (h *ReservationHandler) Approve(ctx context.Context, req *ReservationRequest) (*model.Reservation, error) {
	user, _ := auth.GetUser(ctx)
	if err := auth.RequireAdmin(user); err != nil {
		return nil, err
	}
	return h.uc.Approve(ctx, req.ReservationID, user.UserID)
}

func (h *ReservationHandler) Cancel(ctx context.Context, req *ReservationRequest) (*model.Reservation, error) {
	user, _ := auth.GetUser(ctx)
	if _, err := h.owned(ctx, user, req.ReservationID); err != nil {
		return nil, err
	}
	return h.uc.Cancel(ctx, req.ReservationID, user.UserID)
}

func (h *ReservationHandler) Get(ctx context.Context, req *ReservationRequest) (*model.Reservation, error) {
	user, _ := auth.GetUser(ctx)
	return h.owned(ctx, user, req.ReservationID)
}

func (h *ReservationHandler) List(ctx context.Context, req *ListRequest) (*ReservationsResponse, error) {
	user, _ := auth.GetUser(ctx)
	filters := &dto.Filters{TechnicianID: req.TechnicianID, Status: req.Status, Limit: req.Limit}
	if user.Role != auth.RoleAdmin {
		technicianID, err := auth.ActingTechnician(user, req.TechnicianID)
		if err != nil {
			return nil, err
		}
		filters.TechnicianID = technicianID
	}

	items, err := h.uc.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ReservationsResponse{Items: items}, nil
}

func (h *ReservationHandler) owned(ctx context.Context, user auth.UserContext, id string) (*model.Reservation, error) {
	r, err := h.uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccess(user, r) {
		return nil, apperror.ErrForbidden.WithMessage("reservation %s belongs to another technician", id)
	}
	return r, nil
}
