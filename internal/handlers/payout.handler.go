package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/paint-rewards/internal/model"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
)

const WebhookSignatureHeader = "x-webhook-signature"

type PayoutService interface {
	Withdraw(ctx context.Context, accountID, amount int64) (*model.PayoutTransaction, error)
	HandleWebhook(ctx context.Context, body []byte, signature string, status model.ProviderStatus) (*model.PayoutTransaction, error)
}

type PayoutHandler struct {
	svc PayoutService
}

// RegisterPayoutRoutes mounts the payout endpoints; the webhook path must be
// left out of bearer auth.
func RegisterPayoutRoutes(g *router.Group, h *PayoutHandler) {
	g.POST("/payouts/withdraw", h.Withdraw)
	g.POST("/payouts/webhook", h.Webhook)
}

func NewPayoutHandler(svc PayoutService) *PayoutHandler {
	return &PayoutHandler{svc: svc}
}

type withdrawRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type webhookRequest struct {
	TransferID        string `json:"transfer_id" validate:"required"`
	Status            string `json:"status" validate:"required"`
	SubStatus         string `json:"sub_status"`
	ReferenceID       string `json:"reference_id"`
	StatusDescription string `json:"status_description"`
}

type webhookResponse struct {
	TransferID string             `json:"transfer_id"`
	Status     model.PayoutStatus `json:"status"`
}

func (h *PayoutHandler) Withdraw(ctx *xhttp.RequestCtx) {
	a, ok := actor(ctx)
	if !ok {
		return
	}
	var req withdrawRequest
	if !bind(ctx, &req) {
		return
	}

	payout, err := h.svc.Withdraw(ctx, a.AccountID, req.Amount)
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, payout)
}

// Webhook applies a provider status callback. The raw body is what the
// signature covers.
func (h *PayoutHandler) Webhook(ctx *xhttp.RequestCtx) {
	var req webhookRequest
	if !bind(ctx, &req) {
		return
	}

	payout, err := h.svc.HandleWebhook(ctx, ctx.PostBody(), string(ctx.Request.Header.Peek(WebhookSignatureHeader)), model.ProviderStatus{
		TransferID:  req.TransferID,
		Status:      req.Status,
		SubStatus:   req.SubStatus,
		Reference:   req.ReferenceID,
		Description: req.StatusDescription,
	})
	if err != nil {
		writeAppError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, webhookResponse{TransferID: payout.TransferID, Status: payout.Status})
}
