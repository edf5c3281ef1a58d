package processor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/nimasrn/paint-rewards/pkg/prom"
)

const reconcileLockKey = "payout:reconcile:lock"

type PayoutReconcileService interface {
	PendingPayouts(ctx context.Context, limit int) ([]*model.PayoutTransaction, error)
	Reconcile(ctx context.Context, payout *model.PayoutTransaction, maxAttempts int) (model.PayoutStatus, error)
}

type Locker interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key string, value []byte) (bool, error)
	ExpireIfValue(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

type ReconcilerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
	// LockTTL bounds how long a crashed run can block other instances. A live
	// run renews the lock every LockTTL/3, so a long batch keeps it.
	LockTTL time.Duration
}

type ReconcileSummary struct {
	Checked  int
	Resolved int
	Failed   int
	Skipped  bool
}

// PayoutReconciler polls the provider for payouts stuck in PENDING or
// RECEIVED. Runs never overlap, neither inside one process nor across
// processes sharing the lock.
type PayoutReconciler struct {
	payouts PayoutReconcileService
	locker  Locker
	config  ReconcilerConfig
	running atomic.Bool
}

func NewPayoutReconciler(payouts PayoutReconcileService, locker Locker, config ReconcilerConfig) *PayoutReconciler {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Minute
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 2
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 5 * time.Minute
	}

	return &PayoutReconciler{
		payouts: payouts,
		locker:  locker,
		config:  config,
	}
}

// Run ticks until ctx is cancelled.
func (r *PayoutReconciler) Run(ctx context.Context) {
	logger.Info("payout reconciler started", "interval", r.config.Interval, "max_attempts", r.config.MaxAttempts)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("payout reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				logger.Error("payout reconcile run failed", "error", err)
			}
		}
	}
}

// RunOnce reconciles one batch of non-terminal payouts.
func (r *PayoutReconciler) RunOnce(ctx context.Context) (ReconcileSummary, error) {
	var summary ReconcileSummary

	if !r.running.CompareAndSwap(false, true) {
		logger.Info("payout reconcile still running, skipping tick")
		summary.Skipped = true
		return summary, nil
	}
	defer r.running.Store(false)

	token := []byte(uuid.NewString())
	acquired, err := r.locker.SetNX(ctx, reconcileLockKey, token, r.config.LockTTL)
	if err != nil {
		return summary, err
	}
	if !acquired {
		logger.Info("payout reconcile held by another instance, skipping tick")
		summary.Skipped = true
		return summary, nil
	}
	defer func() {
		if _, err := r.locker.DelIfValue(context.Background(), reconcileLockKey, token); err != nil {
			logger.Warn("failed to release reconcile lock", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	renewed := make(chan struct{})
	go r.holdLock(runCtx, cancel, token, renewed)
	defer func() {
		cancel()
		<-renewed
	}()
	ctx = runCtx

	start := time.Now()
	defer func() { prom.ObservePayoutReconcileRun(time.Since(start).Seconds()) }()

	pending, err := r.payouts.PendingPayouts(ctx, r.config.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, payout := range pending {
		if ctx.Err() != nil {
			break
		}
		summary.Checked++

		status, err := r.payouts.Reconcile(ctx, payout, r.config.MaxAttempts)
		if err != nil {
			summary.Failed++
			logger.Warn("payout reconcile failed", "transfer_id", payout.TransferID, "error", err)
			continue
		}
		if status.Terminal() {
			summary.Resolved++
		}
	}

	logger.Info("payout reconcile run finished",
		"checked", summary.Checked,
		"resolved", summary.Resolved,
		"failed", summary.Failed,
		"duration", time.Since(start))

	return summary, nil
}

// holdLock renews the reconcile lock until ctx ends. Losing the lock cancels
// the run so two instances never reconcile at the same time.
func (r *PayoutReconciler) holdLock(ctx context.Context, cancel context.CancelFunc, token []byte, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.config.LockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := r.locker.ExpireIfValue(ctx, reconcileLockKey, token, r.config.LockTTL)
			if err != nil {
				logger.Warn("failed to renew reconcile lock", "error", err)
				continue
			}
			if !ok {
				logger.Error("reconcile lock lost, stopping run")
				cancel()
				return
			}
		}
	}
}
