package processor

import (
	"context"
	"testing"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderSyncer struct {
	mock.Mock
}

func (m *MockOrderSyncer) SyncToERP(ctx context.Context, orderID int64) error {
	return m.Called(ctx, orderID).Error(0)
}

func newTestErpProcessor(t *testing.T, maxRetries int) (*ErpSyncProcessor, *MockOrderSyncer, *IdempotencyService) {
	_, adapter := setupTestRedis(t)

	cfg := DefaultIdempotencyConfig()
	cfg.MaxRetries = maxRetries
	idem := NewIdempotencyService(adapter, cfg)

	syncer := new(MockOrderSyncer)
	return NewErpSyncProcessor(syncer, idem), syncer, idem
}

func jobMessage(body string) *queue.Message {
	return &queue.Message{ID: "1-0", Data: []byte(body)}
}

func TestErpSyncProcessor_Success(t *testing.T) {
	ctx := context.Background()
	p, syncer, idem := newTestErpProcessor(t, 3)
	syncer.On("SyncToERP", mock.Anything, int64(42)).Return(nil).Once()

	require.NoError(t, p.Process(ctx, jobMessage(`{"order_id":42}`)))

	processed, err := idem.IsProcessed(ctx, "42")
	require.NoError(t, err)
	assert.True(t, processed)

	// a duplicate delivery does not reach the ERP again
	require.NoError(t, p.Process(ctx, jobMessage(`{"order_id":42}`)))
	syncer.AssertExpectations(t)
	assert.Equal(t, "erp_sync", p.GetType())
}

func TestErpSyncProcessor_ExternalFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	p, syncer, idem := newTestErpProcessor(t, 2)
	syncer.On("SyncToERP", mock.Anything, int64(8)).
		Return(apperr.ExternalService("erp voucher push failed", assert.AnError)).Twice()

	assert.Error(t, p.Process(ctx, jobMessage(`{"order_id":8}`)))
	assert.Error(t, p.Process(ctx, jobMessage(`{"order_id":8}`)))

	// budget spent: acked, counter cleared for a manual retry
	assert.NoError(t, p.Process(ctx, jobMessage(`{"order_id":8}`)))
	count, err := idem.GetRetryCount(ctx, "8")
	require.NoError(t, err)
	assert.Zero(t, count)

	syncer.AssertExpectations(t)
}

func TestErpSyncProcessor_BusinessErrorIsAcked(t *testing.T) {
	ctx := context.Background()
	p, syncer, idem := newTestErpProcessor(t, 3)
	syncer.On("SyncToERP", mock.Anything, int64(3)).Return(apperr.Validation("dealer has no ERP account")).Once()

	assert.NoError(t, p.Process(ctx, jobMessage(`{"order_id":3}`)))

	processed, err := idem.IsProcessed(ctx, "3")
	require.NoError(t, err)
	assert.False(t, processed)
	syncer.AssertExpectations(t)
}

func TestErpSyncProcessor_MalformedJob(t *testing.T) {
	p, syncer, _ := newTestErpProcessor(t, 3)

	assert.NoError(t, p.Process(context.Background(), jobMessage(`not json`)))
	assert.NoError(t, p.Process(context.Background(), jobMessage(`{"order_id":0}`)))
	syncer.AssertNotCalled(t, "SyncToERP", mock.Anything, mock.Anything)
}

func TestErpSyncProcessor_ConcurrentDeliveryIsRedelivered(t *testing.T) {
	ctx := context.Background()
	p, syncer, idem := newTestErpProcessor(t, 3)

	held, err := idem.AcquireProcessingLock(ctx, "11")
	require.NoError(t, err)

	assert.Error(t, p.Process(ctx, jobMessage(`{"order_id":11}`)))
	syncer.AssertNotCalled(t, "SyncToERP", mock.Anything, mock.Anything)

	require.NoError(t, idem.ReleaseLock(ctx, held))
}
