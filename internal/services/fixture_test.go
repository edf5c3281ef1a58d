package services

import (
	"context"
	"testing"

	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/pkg/pg"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db       *pg.DB
	accounts *repository.AccountRepository
	coupons  *repository.CouponRepository
	ledger   *repository.LedgerRepository
	counters *repository.DailyCounterRepository
	payouts  *repository.PayoutRepository
	orders   *repository.OrderRepository
}

func newFixture(t *testing.T) *fixture {
	db := repository.SetupTestDB(t)
	return &fixture{
		db:       db,
		accounts: repository.NewAccountRepository(db),
		coupons:  repository.NewCouponRepository(db),
		ledger:   repository.NewLedgerRepository(db),
		counters: repository.NewDailyCounterRepository(db),
		payouts:  repository.NewPayoutRepository(db),
		orders:   repository.NewOrderRepository(db),
	}
}

func (f *fixture) account(t *testing.T, acc model.Account) *model.Account {
	t.Helper()
	created, err := f.accounts.Create(context.Background(), &acc)
	require.NoError(t, err)
	return created
}

func (f *fixture) reload(t *testing.T, id int64) *model.Account {
	t.Helper()
	acc, err := f.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func (f *fixture) entries(t *testing.T, accountID int64) []*model.LedgerEntry {
	t.Helper()
	entries, _, err := f.ledger.ListByAccount(context.Background(), model.LedgerFilter{AccountID: accountID, Limit: 1000})
	require.NoError(t, err)
	return entries
}
