package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/paint-rewards/internal/model"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
)

type RedemptionService interface {
	Redeem(ctx context.Context, channel model.Channel, raw string, actorID int64) (*model.RedemptionResult, error)
}

type RedemptionHandler struct {
	svc RedemptionService
}

func RegisterRedemptionRoutes(g *router.Group, h *RedemptionHandler) {
	g.POST("/coupons/redeem", h.Redeem)
}

func NewRedemptionHandler(svc RedemptionService) *RedemptionHandler {
	return &RedemptionHandler{svc: svc}
}

type redeemRequest struct {
	// Code is the raw scanned text: a bare code or a URL carrying it.
	Code    string `json:"code" validate:"required,max=2048"`
	Channel string `json:"channel" validate:"required,oneof=points cash"`
}

func (h *RedemptionHandler) Redeem(ctx *xhttp.RequestCtx) {
	a, ok := actor(ctx)
	if !ok {
		return
	}
	var req redeemRequest
	if !bind(ctx, &req) {
		return
	}

	res, err := h.svc.Redeem(ctx, model.Channel(req.Channel), req.Code, a.AccountID)
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}
