package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/queue"
	"github.com/nimasrn/paint-rewards/pkg/logger"
)

type OrderSyncer interface {
	SyncToERP(ctx context.Context, orderID int64) error
}

// ErpSyncProcessor pushes verified orders to the ERP. Jobs are keyed by
// order so two deliveries for the same order never run at once.
type ErpSyncProcessor struct {
	orders      OrderSyncer
	idempotency *IdempotencyService
}

func NewErpSyncProcessor(orders OrderSyncer, idempotency *IdempotencyService) *ErpSyncProcessor {
	return &ErpSyncProcessor{
		orders:      orders,
		idempotency: idempotency,
	}
}

func (p *ErpSyncProcessor) GetType() string {
	return "erp_sync"
}

// Process returns nil to ack the message and an error to have it redelivered.
func (p *ErpSyncProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var job model.ErpSyncJob
	if err := msg.Decode(&job); err != nil || job.OrderID <= 0 {
		// a malformed job never succeeds
		logger.Error("dropping malformed erp sync job", "message_id", msg.ID, "error", err)
		return nil
	}

	jobID := strconv.FormatInt(job.OrderID, 10)
	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, jobID)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		logger.Info("order already synced, skipping", "order_id", job.OrderID)
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		// the order stays FAILED and can be retried by hand
		logger.Error("erp sync gave up", "order_id", job.OrderID, "error", err)
		p.idempotency.ResetRetries(ctx, jobID)
		return nil
	case errors.Is(err, ErrLockAcquireFailed):
		return fmt.Errorf("order %d is being synced by another worker", job.OrderID)
	case err != nil:
		return err
	}
	defer p.idempotency.ReleaseLock(ctx, procCtx)

	logger.Info("syncing order to erp",
		"order_id", job.OrderID,
		"message_id", msg.ID,
		"retry_count", procCtx.RetryCount)

	err = p.orders.SyncToERP(ctx, job.OrderID)
	if err == nil {
		if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
			logger.Error("failed to mark erp sync success", "order_id", job.OrderID, "error", markErr)
		}
		return nil
	}

	if apperr.KindOf(err).IsBusiness() {
		// outcome already recorded on the order, retrying changes nothing
		logger.Warn("erp sync rejected", "order_id", job.OrderID, "error", err)
		return nil
	}

	if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
		logger.Error("failed to mark erp sync failure", "order_id", job.OrderID, "error", markErr)
	}
	return err
}
