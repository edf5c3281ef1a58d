package services

import (
	"context"
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
)

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	GetByMobile(ctx context.Context, mobile string) (*model.Account, error)
	GetByDealerCode(ctx context.Context, dealerCode string) (*model.Account, error)
	CreditPoints(ctx context.Context, id, n int64) (int64, error)
	DebitPoints(ctx context.Context, id, n int64) (int64, error)
	CreditCash(ctx context.Context, id, n int64) (int64, error)
	DebitCash(ctx context.Context, id, n int64) (int64, error)
}

type CouponRepository interface {
	CreateBatchWithCoupons(ctx context.Context, batch *model.Batch, codes []string) (*model.Batch, error)
	GetBatch(ctx context.Context, id int64) (*model.Batch, error)
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	ClaimChannel(ctx context.Context, code string, ch model.Channel, mobile string, at time.Time) error
	ListByBatch(ctx context.Context, f model.CouponFilter) ([]*model.Coupon, int64, error)
}

type LedgerRepository interface {
	Append(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, error)
	ListByAccount(ctx context.Context, f model.LedgerFilter) ([]*model.LedgerEntry, int64, error)
	MaxSequenceForDay(ctx context.Context, mmddyy string) (int64, error)
}

type DailySequence interface {
	Next(ctx context.Context, day string, seed func(ctx context.Context) (int64, error)) (int64, error)
}

type PayoutRepository interface {
	Create(ctx context.Context, p *model.PayoutTransaction) (*model.PayoutTransaction, error)
	GetByTransferID(ctx context.Context, transferID string) (*model.PayoutTransaction, error)
	ListNonTerminal(ctx context.Context, limit int) ([]*model.PayoutTransaction, error)
	MarkReceived(ctx context.Context, transferID, reference string) (bool, error)
	MarkTerminal(ctx context.Context, transferID string, status model.PayoutStatus, description string) (bool, error)
	IncrementAttempts(ctx context.Context, transferID string) (int, error)
}

type OrderRepository interface {
	Create(ctx context.Context, dealerID int64, items []model.OrderItemRequest) (*model.Order, error)
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	MarkVerified(ctx context.Context, id, actorID int64, at time.Time) error
	SetSyncResult(ctx context.Context, id int64, status model.SyncStatus, voucherNo, syncErr string) error
	ResetFailedSync(ctx context.Context, id int64) error
}
