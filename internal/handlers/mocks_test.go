package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nimasrn/paint-rewards/internal/model"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func asActor(ctx *xhttp.RequestCtx, id int64, role model.Role) *xhttp.RequestCtx {
	xhttp.WithActor(ctx, xhttp.Actor{AccountID: id, Role: string(role)})
	return ctx
}

func decodeError(t *testing.T, ctx *xhttp.RequestCtx) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	return resp
}

type MockRedemptionService struct{ mock.Mock }

func (m *MockRedemptionService) Redeem(ctx context.Context, channel model.Channel, raw string, actorID int64) (*model.RedemptionResult, error) {
	args := m.Called(ctx, channel, raw, actorID)
	res, _ := args.Get(0).(*model.RedemptionResult)
	return res, args.Error(1)
}

type MockTransferService struct{ mock.Mock }

func (m *MockTransferService) Transfer(ctx context.Context, fromID, amount int64) (*model.TransferResult, error) {
	args := m.Called(ctx, fromID, amount)
	res, _ := args.Get(0).(*model.TransferResult)
	return res, args.Error(1)
}

type MockLedgerService struct{ mock.Mock }

func (m *MockLedgerService) List(ctx context.Context, f model.LedgerFilter) ([]*model.LedgerEntry, int64, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]*model.LedgerEntry)
	return items, args.Get(1).(int64), args.Error(2)
}

type MockBatchService struct{ mock.Mock }

func (m *MockBatchService) Issue(ctx context.Context, actorID int64, req model.BatchCreateRequest) (*model.Batch, error) {
	args := m.Called(ctx, actorID, req)
	res, _ := args.Get(0).(*model.Batch)
	return res, args.Error(1)
}

func (m *MockBatchService) Coupons(ctx context.Context, f model.CouponFilter) ([]*model.Coupon, int64, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]*model.Coupon)
	return items, args.Get(1).(int64), args.Error(2)
}

type MockPayoutService struct{ mock.Mock }

func (m *MockPayoutService) Withdraw(ctx context.Context, accountID, amount int64) (*model.PayoutTransaction, error) {
	args := m.Called(ctx, accountID, amount)
	res, _ := args.Get(0).(*model.PayoutTransaction)
	return res, args.Error(1)
}

func (m *MockPayoutService) HandleWebhook(ctx context.Context, body []byte, signature string, status model.ProviderStatus) (*model.PayoutTransaction, error) {
	args := m.Called(ctx, body, signature, status)
	res, _ := args.Get(0).(*model.PayoutTransaction)
	return res, args.Error(1)
}

type MockOrderService struct{ mock.Mock }

func (m *MockOrderService) CreateOrder(ctx context.Context, dealerID int64, items []model.OrderItemRequest) (*model.Order, error) {
	args := m.Called(ctx, dealerID, items)
	res, _ := args.Get(0).(*model.Order)
	return res, args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*model.Order)
	return res, args.Error(1)
}

func (m *MockOrderService) VerifyOrder(ctx context.Context, orderID, actorID int64) (*model.Order, error) {
	args := m.Called(ctx, orderID, actorID)
	res, _ := args.Get(0).(*model.Order)
	return res, args.Error(1)
}

func (m *MockOrderService) RetrySync(ctx context.Context, orderID, actorID int64) (*model.Order, error) {
	args := m.Called(ctx, orderID, actorID)
	res, _ := args.Get(0).(*model.Order)
	return res, args.Error(1)
}
