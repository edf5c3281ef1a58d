package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

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

type orderSetup struct {
	*fixture
	svc       *OrderService
	jobs      *MockJobPublisher
	erp       *MockErpClient
	dealer    *model.Account
	exec      *model.Account
	superUser *model.Account
}

func newOrderSetup(t *testing.T) *orderSetup {
	f := newFixture(t)
	exec := f.account(t, model.Account{Mobile: "9400000001", Role: model.RoleSalesExecutive})
	dealer := f.account(t, model.Account{
		Mobile: "9200000001", Role: model.RoleDealer, DealerCode: "DL01", SalesExecutiveID: &exec.ID,
		ErpAccountID: 501, ErpBranchID: 2, ErpSalesmanID: 3, ErpDistrictID: 4,
	})
	su := f.account(t, model.Account{Mobile: superUserMobile, Role: model.RoleSuperUser})
	jobs := new(MockJobPublisher)
	erp := new(MockErpClient)
	return &orderSetup{
		fixture:   f,
		svc:       NewOrderService(f.accounts, f.orders, jobs, erp, time.Second),
		jobs:      jobs,
		erp:       erp,
		dealer:    dealer,
		exec:      exec,
		superUser: su,
	}
}

var sampleItems = []model.OrderItemRequest{{ItemID: 11, Quantity: 2, Rate: 450}}

func TestOrderService_CreateOrder(t *testing.T) {
	s := newOrderSetup(t)
	ctx := context.Background()

	order, err := s.svc.CreateOrder(ctx, s.dealer.ID, sampleItems)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCreated, order.Status)

	_, err = s.svc.CreateOrder(ctx, s.exec.ID, sampleItems)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = s.svc.CreateOrder(ctx, s.dealer.ID, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestOrderService_VerifyOrder(t *testing.T) {
	s := newOrderSetup(t)
	ctx := context.Background()
	order, err := s.svc.CreateOrder(ctx, s.dealer.ID, sampleItems)
	require.NoError(t, err)

	stranger := s.account(t, model.Account{Mobile: "9400000002", Role: model.RoleSalesExecutive})
	_, err = s.svc.VerifyOrder(ctx, order.ID, stranger.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = s.svc.VerifyOrder(ctx, order.ID, s.dealer.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	s.jobs.On("PublishJSON", mock.Anything, mock.AnythingOfType("model.ErpSyncJob"), mock.Anything).Return("1-0", nil).Once()

	verified, err := s.svc.VerifyOrder(ctx, order.ID, s.exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusVerified, verified.Status)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, s.exec.ID, *verified.VerifiedBy)

	_, err = s.svc.VerifyOrder(ctx, order.ID, s.superUser.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = s.svc.VerifyOrder(ctx, 999, s.superUser.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOrderService_VerifyKeepsOrderWhenQueueFails(t *testing.T) {
	s := newOrderSetup(t)
	ctx := context.Background()
	order, err := s.svc.CreateOrder(ctx, s.dealer.ID, sampleItems)
	require.NoError(t, err)

	s.jobs.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("redis down")).Once()

	verified, err := s.svc.VerifyOrder(ctx, order.ID, s.superUser.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusVerified, verified.Status)
	assert.Equal(t, model.SyncStatusFailed, verified.SyncStatus)
	assert.Contains(t, verified.SyncError, "redis down")
}

func TestOrderService_SyncToERP(t *testing.T) {
	s := newOrderSetup(t)
	ctx := context.Background()
	order, err := s.svc.CreateOrder(ctx, s.dealer.ID, sampleItems)
	require.NoError(t, err)

	err = s.svc.SyncToERP(ctx, order.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	s.jobs.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return("1-0", nil)
	_, err = s.svc.VerifyOrder(ctx, order.ID, s.superUser.ID)
	require.NoError(t, err)

	s.erp.On("PushSalesVoucher", mock.Anything, mock.MatchedBy(func(v *model.SalesVoucher) bool {
		return v.Header.CustomerAC == 501 && v.Header.Branch == 2 && v.Header.SalesMan == 3 &&
			v.Header.District == 4 && len(v.Body) == 1 && v.Body[0].Item == 11 && v.Body[0].Quantity == 2
	})).Return("", apperr.ExternalService("voucher rejected", errors.New("result 0"))).Once()

	err = s.svc.SyncToERP(ctx, order.ID)
	assert.Equal(t, apperr.KindExternalService, apperr.KindOf(err))

	got, err := s.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusVerified, got.Status)
	assert.Equal(t, model.SyncStatusFailed, got.SyncStatus)

	// retry path
	_, err = s.svc.RetrySync(ctx, order.ID, s.exec.ID)
	require.NoError(t, err)

	s.erp.On("PushSalesVoucher", mock.Anything, mock.Anything).Return("SV-77", nil).Once()
	require.NoError(t, s.svc.SyncToERP(ctx, order.ID))

	got, err = s.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSuccess, got.SyncStatus)
	assert.Equal(t, "SV-77", got.VoucherNo)

	// already synced orders are not pushed twice
	require.NoError(t, s.svc.SyncToERP(ctx, order.ID))
	s.erp.AssertNumberOfCalls(t, "PushSalesVoucher", 2)

	_, err = s.svc.RetrySync(ctx, order.ID, s.exec.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestOrderService_SyncResolvesMissingErpAccount(t *testing.T) {
	s := newOrderSetup(t)
	ctx := context.Background()
	dealer := s.account(t, model.Account{Mobile: "9200000002", Role: model.RoleDealer, DealerCode: "DL02"})
	order, err := s.svc.CreateOrder(ctx, dealer.ID, sampleItems)
	require.NoError(t, err)

	s.jobs.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return("1-0", nil)
	_, err = s.svc.VerifyOrder(ctx, order.ID, s.superUser.ID)
	require.NoError(t, err)

	s.erp.On("LookupAccountID", mock.Anything, "DL02").Return(int64(0), nil).Once()
	err = s.svc.SyncToERP(ctx, order.ID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	s.erp.AssertNotCalled(t, "PushSalesVoucher", mock.Anything, mock.Anything)

	_, err = s.svc.RetrySync(ctx, order.ID, s.superUser.ID)
	require.NoError(t, err)

	s.erp.On("LookupAccountID", mock.Anything, "DL02").Return(int64(808), nil).Once()
	s.erp.On("PushSalesVoucher", mock.Anything, mock.MatchedBy(func(v *model.SalesVoucher) bool {
		return v.Header.CustomerAC == 808
	})).Return("SV-1", nil).Once()
	require.NoError(t, s.svc.SyncToERP(ctx, order.ID))
}
