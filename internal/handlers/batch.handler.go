package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
)

type BatchService interface {
	Issue(ctx context.Context, actorID int64, req model.BatchCreateRequest) (*model.Batch, error)
	Coupons(ctx context.Context, f model.CouponFilter) ([]*model.Coupon, int64, error)
}

type BatchHandler struct {
	svc BatchService
}

func RegisterBatchRoutes(g *router.Group, h *BatchHandler) {
	g.POST("/batches", h.Create)
	g.GET("/batches/{id}/coupons", h.Coupons)
}

func NewBatchHandler(svc BatchService) *BatchHandler {
	return &BatchHandler{svc: svc}
}

type createBatchRequest struct {
	Name             string     `json:"name" validate:"required,max=255"`
	Branch           string     `json:"branch" validate:"max=255"`
	Brand            string     `json:"brand" validate:"max=255"`
	Product          string     `json:"product" validate:"max=255"`
	RedeemablePoints int64      `json:"redeemable_points" validate:"gte=0"`
	Value            int64      `json:"value" validate:"gte=0"`
	Quantity         int        `json:"quantity" validate:"required,min=1,max=10000"`
	ExpiresAt        *time.Time `json:"expires_at"`
}

func (h *BatchHandler) Create(ctx *xhttp.RequestCtx) {
	a, ok := actor(ctx)
	if !ok {
		return
	}
	var req createBatchRequest
	if !bind(ctx, &req) {
		return
	}

	batch, err := h.svc.Issue(ctx, a.AccountID, model.BatchCreateRequest{
		Name:             req.Name,
		Branch:           req.Branch,
		Brand:            req.Brand,
		Product:          req.Product,
		RedeemablePoints: req.RedeemablePoints,
		Value:            req.Value,
		Quantity:         req.Quantity,
		ExpiresAt:        req.ExpiresAt,
	})
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, batch)
}

// Coupons lists the printable codes of a batch; only the super user sees them.
func (h *BatchHandler) Coupons(ctx *xhttp.RequestCtx) {
	a, ok := actor(ctx)
	if !ok {
		return
	}
	if model.Role(a.Role) != model.RoleSuperUser {
		writeAppError(ctx, apperr.Forbidden("Only the super user can list coupons"))
		return
	}
	id, ok := pathInt64(ctx, "id")
	if !ok {
		return
	}

	items, total, err := h.svc.Coupons(ctx, model.CouponFilter{
		BatchID: id,
		Limit:   queryInt(ctx, "limit"),
		Offset:  queryInt(ctx, "offset"),
	})
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Coupon]{Items: items, Total: total})
}
