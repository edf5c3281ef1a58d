package services

import (
	"context"

	"github.com/nimasrn/paint-rewards/internal/model"
)

type LedgerService struct {
	ledger LedgerRepository
}

func NewLedgerService(ledger LedgerRepository) *LedgerService {
	return &LedgerService{ledger: ledger}
}

// List returns the account's own entries; newest first unless the filter says otherwise.
func (s *LedgerService) List(ctx context.Context, f model.LedgerFilter) ([]*model.LedgerEntry, int64, error) {
	entries, total, err := s.ledger.ListByAccount(ctx, f)
	if err != nil {
		err = translate(err)
		report("list ledger", err, "account_id", f.AccountID)
		return nil, 0, err
	}
	return entries, total, nil
}
