package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/paint-rewards/internal/handlers"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/processor"
	"github.com/nimasrn/paint-rewards/internal/queue"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/internal/services"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
	"github.com/nimasrn/paint-rewards/test/fixtures"
	"github.com/nimasrn/paint-rewards/test/helpers"
)

const webhookSecret = "e2e-webhook-secret"

type MockErpClient struct {
	mock.Mock
}

func (m *MockErpClient) LookupAccountID(ctx context.Context, code string) (int64, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockErpClient) PushSalesVoucher(ctx context.Context, v *model.SalesVoucher) (string, error) {
	args := m.Called(ctx, v)
	return args.String(0), args.Error(1)
}

type MockPayoutProvider struct {
	mock.Mock
}

func (m *MockPayoutProvider) Initiate(ctx context.Context, req model.PayoutInitiation) (*model.ProviderStatus, error) {
	args := m.Called(ctx, req)
	if s := args.Get(0); s != nil {
		return s.(*model.ProviderStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPayoutProvider) Status(ctx context.Context, transferID string) (*model.ProviderStatus, error) {
	args := m.Called(ctx, transferID)
	if s := args.Get(0); s != nil {
		return s.(*model.ProviderStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

type TestEnvironment struct {
	Accounts *repository.AccountRepository
	Orders   *repository.OrderRepository
	Payouts  *repository.PayoutRepository
	Erp      *MockErpClient
	Provider *MockPayoutProvider
	Client   *helpers.Client

	SuperUser *model.Account
	Executive *model.Account
	Dealer    *model.Account
	Painter   *model.Account
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	_, adapter := helpers.SetupTestRedis(t)

	queueConfig := queue.QueueConfig{
		Name:              "test:erp_sync",
		ConsumerGroup:     "test-group",
		ConsumerName:      "api",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      20 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}
	publisher, err := queue.NewQueue(adapter, queueConfig)
	require.NoError(t, err)

	env := &TestEnvironment{
		Accounts: repository.NewAccountRepository(db),
		Orders:   repository.NewOrderRepository(db),
		Payouts:  repository.NewPayoutRepository(db),
		Erp:      &MockErpClient{},
		Provider: &MockPayoutProvider{},
	}
	couponRepo := repository.NewCouponRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	counterRepo := repository.NewDailyCounterRepository(db)

	env.SuperUser = helpers.CreateTestAccount(t, db, fixtures.SuperUser)
	env.Executive = helpers.CreateTestAccount(t, db, fixtures.SalesExecutive)
	env.Dealer = helpers.CreateTestAccount(t, db, fixtures.Dealer(env.Executive.ID))
	env.Painter = helpers.CreateTestAccount(t, db, fixtures.Painter)

	redemption := services.NewRedemptionService(db, env.Accounts, couponRepo, ledgerRepo, fixtures.BypassMobile)
	transfer := services.NewTransferService(db, env.Accounts, ledgerRepo, counterRepo, model.SuperUserRef{Mobile: fixtures.SuperUserMobile}, time.UTC)
	batches := services.NewBatchService(env.Accounts, couponRepo, "https://rewards.test/scan")
	ledger := services.NewLedgerService(ledgerRepo)
	payouts := services.NewPayoutService(db, env.Accounts, ledgerRepo, env.Payouts, env.Provider, time.Second).
		WithWebhookSecret(webhookSecret).
		WithWebhookMarker(adapter)
	orders := services.NewOrderService(env.Accounts, env.Orders, publisher, env.Erp, time.Second)

	verifier := xhttp.NewJWTVerifier("e2e-jwt-secret")
	s := xhttp.CreateServer()
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.AuthMiddleware(verifier, "/health", "/payouts/webhook"))

	g := s.Router.Group("/api/v1")
	handlers.RegisterRedemptionRoutes(g, handlers.NewRedemptionHandler(redemption))
	handlers.RegisterTransferRoutes(g, handlers.NewTransferHandler(transfer))
	handlers.RegisterLedgerRoutes(g, handlers.NewLedgerHandler(ledger))
	handlers.RegisterBatchRoutes(g, handlers.NewBatchHandler(batches))
	handlers.RegisterPayoutRoutes(g, handlers.NewPayoutHandler(payouts))
	handlers.RegisterOrderRoutes(g, handlers.NewOrderHandler(orders))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"postgres": db.Ping,
	}))
	env.Client = helpers.StartServer(t, s, verifier)

	workerQueue := queueConfig
	workerQueue.ConsumerName = "worker"
	svc, err := processor.NewProcessorService(adapter, processor.ServiceConfig{
		Queue:             workerQueue,
		Consumers:         1,
		Workers:           2,
		ProcessingTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	svc.RegisterProcessor(processor.NewErpSyncProcessor(orders, processor.NewIdempotencyService(adapter, processor.DefaultIdempotencyConfig())))
	require.NoError(t, svc.Start())

	t.Cleanup(func() {
		svc.Stop()
		_ = publisher.Stop(time.Second)
	})
	return env
}

func as(acc *model.Account) xhttp.Actor {
	return xhttp.Actor{AccountID: acc.ID, Role: string(acc.Role)}
}

type couponView struct {
	Code    string `json:"code"`
	ScanURL string `json:"scan_url"`
}

type ledgerView struct {
	Narration  model.Narration `json:"narration"`
	Balance    int64           `json:"balance"`
	UniqueCode *string         `json:"unique_code"`
}

type transferView struct {
	UniqueCode       *string `json:"unique_code"`
	SenderBalance    int64   `json:"sender_balance"`
	RecipientBalance int64   `json:"recipient_balance"`
}

func issueCoupons(t *testing.T, env *TestEnvironment, quantity int) []couponView {
	t.Helper()

	var batch model.Batch
	status := env.Client.Do("POST", "/api/v1/batches", as(env.SuperUser), fixtures.NewBatchRequest(quantity), &batch)
	require.Equal(t, 201, status)

	var list struct {
		Items []couponView `json:"items"`
		Total int64        `json:"total"`
	}
	status = env.Client.Do("GET", fmt.Sprintf("/api/v1/batches/%d/coupons?limit=100", batch.ID), as(env.SuperUser), nil, &list)
	require.Equal(t, 200, status)
	require.Len(t, list.Items, quantity)
	assert.Equal(t, int64(quantity), list.Total)
	return list.Items
}

func TestE2E_HealthIsPublic(t *testing.T) {
	env := setupE2EEnvironment(t)

	var body struct {
		Status string `json:"status"`
	}
	status := env.Client.Do("GET", "/api/v1/health", xhttp.Actor{}, nil, &body)
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", body.Status)

	status = env.Client.Do("GET", "/api/v1/ledger", xhttp.Actor{}, nil, nil)
	assert.Equal(t, 401, status)
}

func TestE2E_PointsTravelFromCouponToSuperUser(t *testing.T) {
	env := setupE2EEnvironment(t)
	coupons := issueCoupons(t, env, 25)

	status := env.Client.Do("GET", "/api/v1/batches/1/coupons", as(env.Painter), nil, nil)
	assert.Equal(t, 403, status)

	for i, c := range coupons {
		var res struct {
			Credited int64 `json:"credited"`
			Balance  int64 `json:"balance"`
		}
		status := env.Client.Do("POST", "/api/v1/coupons/redeem", as(env.Painter), map[string]string{
			"code":    c.ScanURL,
			"channel": "points",
		}, &res)
		require.Equal(t, 200, status)
		assert.Equal(t, int64(40), res.Credited)
		assert.Equal(t, int64(40*(i+1)), res.Balance)
	}

	status = env.Client.Do("POST", "/api/v1/coupons/redeem", as(env.Painter), map[string]string{
		"code":    coupons[0].Code,
		"channel": "points",
	}, nil)
	assert.Equal(t, 409, status)

	var toDealer transferView
	status = env.Client.Do("POST", "/api/v1/transfers", as(env.Painter), map[string]int64{"amount": 1000}, &toDealer)
	require.Equal(t, 201, status)
	assert.Nil(t, toDealer.UniqueCode)
	assert.Equal(t, int64(0), toDealer.SenderBalance)
	assert.Equal(t, int64(1000), toDealer.RecipientBalance)

	status = env.Client.Do("POST", "/api/v1/transfers", as(env.Dealer), map[string]int64{"amount": 500}, nil)
	assert.Equal(t, 400, status)

	var toSuper transferView
	status = env.Client.Do("POST", "/api/v1/transfers", as(env.Dealer), map[string]int64{"amount": 1000}, &toSuper)
	require.Equal(t, 201, status)
	require.NotNil(t, toSuper.UniqueCode)
	assert.True(t, strings.HasPrefix(*toSuper.UniqueCode, "DLR001_"), *toSuper.UniqueCode)
	assert.True(t, strings.HasSuffix(*toSuper.UniqueCode, "_1"), *toSuper.UniqueCode)

	var ledger struct {
		Items []ledgerView `json:"items"`
	}
	status = env.Client.Do("GET", "/api/v1/ledger?kind=points", as(env.SuperUser), nil, &ledger)
	require.Equal(t, 200, status)
	require.Len(t, ledger.Items, 1)
	assert.Equal(t, model.NarrationTransferIn, ledger.Items[0].Narration)
	assert.Equal(t, int64(1000), ledger.Items[0].Balance)
	require.NotNil(t, ledger.Items[0].UniqueCode)
	assert.Equal(t, *toSuper.UniqueCode, *ledger.Items[0].UniqueCode)

	painter, err := env.Accounts.GetByID(context.Background(), env.Painter.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), painter.RewardPoints)
}

func TestE2E_VerifiedOrderReachesERP(t *testing.T) {
	env := setupE2EEnvironment(t)

	env.Erp.On("LookupAccountID", mock.Anything, "DLR001").Return(int64(501), nil)
	env.Erp.On("PushSalesVoucher", mock.Anything, mock.MatchedBy(func(v *model.SalesVoucher) bool {
		return v.Header.CustomerAC == 501 && len(v.Body) == 2 && v.Header.SalesMan == 7
	})).Return("SI/0001", nil).Once()

	var order model.Order
	status := env.Client.Do("POST", "/api/v1/orders", as(env.Dealer), fixtures.NewOrderRequest(), &order)
	require.Equal(t, 201, status)
	assert.Equal(t, model.OrderStatusCreated, order.Status)

	status = env.Client.Do("POST", fmt.Sprintf("/api/v1/orders/%d/verify", order.ID), as(env.Painter), nil, nil)
	assert.Equal(t, 403, status)

	status = env.Client.Do("POST", fmt.Sprintf("/api/v1/orders/%d/verify", order.ID), as(env.Executive), nil, &order)
	require.Equal(t, 200, status)
	assert.Equal(t, model.OrderStatusVerified, order.Status)

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		o, err := env.Orders.GetByID(context.Background(), order.ID)
		return err == nil && o.SyncStatus == model.SyncStatusSuccess
	}, "order was not synced to the ERP")

	status = env.Client.Do("GET", fmt.Sprintf("/api/v1/orders/%d", order.ID), as(env.Dealer), nil, &order)
	require.Equal(t, 200, status)
	assert.Equal(t, "SI/0001", order.VoucherNo)

	status = env.Client.Do("POST", fmt.Sprintf("/api/v1/orders/%d/sync", order.ID), as(env.SuperUser), nil, nil)
	assert.Equal(t, 409, status)

	env.Erp.AssertExpectations(t)
}

func TestE2E_CashWithdrawalSettledByWebhook(t *testing.T) {
	env := setupE2EEnvironment(t)
	coupons := issueCoupons(t, env, 1)

	status := env.Client.Do("POST", "/api/v1/coupons/redeem", as(env.Painter), map[string]string{
		"code":    coupons[0].Code,
		"channel": "cash",
	}, nil)
	require.Equal(t, 200, status)

	env.Provider.On("Initiate", mock.Anything, mock.MatchedBy(func(req model.PayoutInitiation) bool {
		return req.Amount == 1500 && req.Beneficiary == fixtures.Painter.PayoutBeneficiary
	})).Return(&model.ProviderStatus{Status: model.ProviderStatusReceived, Reference: "REF-1"}, nil).Once()

	var payout model.PayoutTransaction
	status = env.Client.Do("POST", "/api/v1/payouts/withdraw", as(env.Painter), map[string]int64{"amount": 1500}, &payout)
	require.Equal(t, 201, status)
	assert.Equal(t, model.PayoutStatusReceived, payout.Status)
	require.NotEmpty(t, payout.TransferID)

	status = env.Client.Do("POST", "/api/v1/payouts/withdraw", as(env.Painter), map[string]int64{"amount": 1}, nil)
	assert.Equal(t, 422, status)

	body, err := json.Marshal(map[string]string{
		"transfer_id":  payout.TransferID,
		"status":       model.ProviderStatusSuccess,
		"sub_status":   model.ProviderSubStatusDone,
		"reference_id": "REF-1",
	})
	require.NoError(t, err)

	status = env.Client.DoRaw("POST", "/api/v1/payouts/webhook", xhttp.Actor{}, body,
		map[string]string{handlers.WebhookSignatureHeader: "bogus"}, nil)
	assert.Equal(t, 403, status)

	signed := map[string]string{handlers.WebhookSignatureHeader: services.SignWebhook(webhookSecret, body)}
	for i := 0; i < 2; i++ {
		var res struct {
			Status model.PayoutStatus `json:"status"`
		}
		status = env.Client.DoRaw("POST", "/api/v1/payouts/webhook", xhttp.Actor{}, body, signed, &res)
		require.Equal(t, 200, status)
		assert.Equal(t, model.PayoutStatusSuccess, res.Status)
	}

	stored, err := env.Payouts.GetByTransferID(context.Background(), payout.TransferID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutStatusSuccess, stored.Status)

	painter, err := env.Accounts.GetByID(context.Background(), env.Painter.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), painter.Cash)

	env.Provider.AssertExpectations(t)
}
