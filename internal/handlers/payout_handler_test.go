package handlers

import (
	"encoding/json"
	"testing"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestPayoutHandler_Withdraw(t *testing.T) {
	t.Run("pending payout is returned", func(t *testing.T) {
		svc := new(MockPayoutService)
		h := NewPayoutHandler(svc)
		svc.On("Withdraw", mock.Anything, int64(7), int64(300)).
			Return(&model.PayoutTransaction{TransferID: "PO-1", Amount: 300, Status: model.PayoutStatusPending}, nil).Once()

		ctx := asActor(setupTestContext("POST", "/api/v1/payouts/withdraw", []byte(`{"amount":300}`)), 7, model.RolePainter)
		h.Withdraw(ctx)

		assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Body()), `"status":"PENDING"`)
	})

	t.Run("insufficient cash", func(t *testing.T) {
		svc := new(MockPayoutService)
		h := NewPayoutHandler(svc)
		svc.On("Withdraw", mock.Anything, int64(7), int64(300)).Return(nil, apperr.InsufficientBalance("Insufficient balance")).Once()

		ctx := asActor(setupTestContext("POST", "/api/v1/payouts/withdraw", []byte(`{"amount":300}`)), 7, model.RolePainter)
		h.Withdraw(ctx)

		assert.Equal(t, fasthttp.StatusUnprocessableEntity, ctx.Response.StatusCode())
	})
}

func TestPayoutHandler_Webhook(t *testing.T) {
	body := []byte(`{"transfer_id":"PO-1","status":"SUCCESS","sub_status":"COMPLETED","reference_id":"BANK-1"}`)

	t.Run("applies the status without an actor", func(t *testing.T) {
		svc := new(MockPayoutService)
		h := NewPayoutHandler(svc)
		svc.On("HandleWebhook", mock.Anything, body, "c2lnbmF0dXJl", model.ProviderStatus{
			TransferID: "PO-1", Status: "SUCCESS", SubStatus: "COMPLETED", Reference: "BANK-1",
		}).Return(&model.PayoutTransaction{TransferID: "PO-1", Status: model.PayoutStatusSuccess}, nil).Once()

		ctx := setupTestContext("POST", "/api/v1/payouts/webhook", body)
		ctx.Request.Header.Set(WebhookSignatureHeader, "c2lnbmF0dXJl")
		h.Webhook(ctx)

		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		var resp webhookResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, model.PayoutStatusSuccess, resp.Status)
		svc.AssertExpectations(t)
	})

	t.Run("bad signature", func(t *testing.T) {
		svc := new(MockPayoutService)
		h := NewPayoutHandler(svc)
		svc.On("HandleWebhook", mock.Anything, body, "", mock.Anything).Return(nil, apperr.Forbidden("invalid webhook signature")).Once()

		ctx := setupTestContext("POST", "/api/v1/payouts/webhook", body)
		h.Webhook(ctx)

		assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
	})

	t.Run("unknown transfer", func(t *testing.T) {
		svc := new(MockPayoutService)
		h := NewPayoutHandler(svc)
		svc.On("HandleWebhook", mock.Anything, body, "", mock.Anything).Return(nil, apperr.NotFound("Payout not found")).Once()

		ctx := setupTestContext("POST", "/api/v1/payouts/webhook", body)
		h.Webhook(ctx)

		assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	})

	t.Run("missing transfer id", func(t *testing.T) {
		h := NewPayoutHandler(new(MockPayoutService))
		ctx := setupTestContext("POST", "/api/v1/payouts/webhook", []byte(`{"status":"SUCCESS"}`))
		h.Webhook(ctx)
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	})
}
