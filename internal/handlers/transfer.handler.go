package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/paint-rewards/internal/model"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
)

type TransferService interface {
	Transfer(ctx context.Context, fromID, amount int64) (*model.TransferResult, error)
}

type TransferHandler struct {
	svc TransferService
}

func RegisterTransferRoutes(g *router.Group, h *TransferHandler) {
	g.POST("/transfers", h.Transfer)
}

func NewTransferHandler(svc TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

type transferRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// Transfer moves points up the chain: painter to dealer, dealer to the super user.
func (h *TransferHandler) Transfer(ctx *xhttp.RequestCtx) {
	a, ok := actor(ctx)
	if !ok {
		return
	}
	var req transferRequest
	if !bind(ctx, &req) {
		return
	}

	res, err := h.svc.Transfer(ctx, a.AccountID, req.Amount)
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, res)
}
