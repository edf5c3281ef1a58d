package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/pkg/prom"
)

const (
	dealerTransferUnit = 1000

	routePainterToDealer   = "painter_dealer"
	routeDealerToSuperUser = "dealer_superuser"
	routeUnknown           = "unknown"
	counterDayLayout       = "2006-01-02"
	uniqueCodeDayLayout    = "010206"
)

type TransferService struct {
	tx        Transactor
	accounts  AccountRepository
	ledger    LedgerRepository
	sequence  DailySequence
	superUser model.SuperUserRef
	loc       *time.Location
	now       func() time.Time
}

// NewTransferService wires the engine. loc decides which calendar day a
// transfer code belongs to; nil means UTC.
func NewTransferService(tx Transactor, accounts AccountRepository, ledger LedgerRepository, sequence DailySequence, superUser model.SuperUserRef, loc *time.Location) *TransferService {
	if loc == nil {
		loc = time.UTC
	}
	return &TransferService{
		tx:        tx,
		accounts:  accounts,
		ledger:    ledger,
		sequence:  sequence,
		superUser: superUser,
		loc:       loc,
		now:       time.Now,
	}
}

func (s *TransferService) WithClock(now func() time.Time) *TransferService {
	s.now = now
	return s
}

// Transfer moves amount points from the sender to the recipient implied by
// the sender's role.
func (s *TransferService) Transfer(ctx context.Context, fromID, amount int64) (*model.TransferResult, error) {
	route := routeUnknown
	result, err := s.transfer(ctx, fromID, amount, &route)
	prom.IncTransfer(route, resultLabel(err))
	if err != nil {
		report("transfer", err, "account_id", fromID, "amount", amount)
		return nil, err
	}
	return result, nil
}

func (s *TransferService) transfer(ctx context.Context, fromID, amount int64, route *string) (*model.TransferResult, error) {
	if amount <= 0 {
		return nil, apperr.Validation("Amount must be a positive integer")
	}

	sender, err := s.accounts.GetByID(ctx, fromID)
	if err != nil {
		return nil, translate(err)
	}
	if !sender.Active() {
		return nil, apperr.Forbidden("Account is inactive")
	}

	recipient, err := s.resolveRecipient(ctx, sender, amount)
	if err != nil {
		return nil, err
	}
	if sender.Role == model.RoleDealer {
		*route = routeDealerToSuperUser
	} else {
		*route = routePainterToDealer
	}

	result := &model.TransferResult{From: sender, To: recipient, Amount: amount}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := s.now()

		var code *string
		if sender.Role == model.RoleDealer {
			c, err := s.nextUniqueCode(ctx, sender.DealerCode, now)
			if err != nil {
				return err
			}
			code = &c
		}

		senderBalance, err := s.accounts.DebitPoints(ctx, sender.ID, amount)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return apperr.InsufficientBalance("Insufficient reward points")
			}
			return translate(err)
		}
		recipientBalance, err := s.accounts.CreditPoints(ctx, recipient.ID, amount)
		if err != nil {
			return translate(err)
		}

		out, err := s.ledger.Append(ctx, &model.LedgerEntry{
			AccountID:   sender.ID,
			Kind:        model.LedgerKindPoints,
			Narration:   model.NarrationTransferOut,
			Description: "Transferred to " + recipient.Mobile,
			Amount:      -amount,
			Balance:     senderBalance,
			Side:        model.SideDebit,
			UniqueCode:  code,
			CreatedAt:   now,
		})
		if err != nil {
			return translate(err)
		}
		in, err := s.ledger.Append(ctx, &model.LedgerEntry{
			AccountID:   recipient.ID,
			Kind:        model.LedgerKindPoints,
			Narration:   model.NarrationTransferIn,
			Description: "Received from " + sender.Mobile,
			Amount:      amount,
			Balance:     recipientBalance,
			Side:        model.SideCredit,
			UniqueCode:  code,
			CreatedAt:   now,
		})
		if err != nil {
			return translate(err)
		}

		result.UniqueCode = code
		result.SenderBalance = senderBalance
		result.RecipientBalance = recipientBalance
		result.Entries = []*model.LedgerEntry{out, in}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

func (s *TransferService) resolveRecipient(ctx context.Context, sender *model.Account, amount int64) (*model.Account, error) {
	switch sender.Role {
	case model.RolePainter:
		if sender.ParentDealerCode == "" {
			return nil, apperr.NotFound("Dealer not found")
		}
		dealer, err := s.accounts.GetByDealerCode(ctx, sender.ParentDealerCode)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return nil, apperr.NotFound("Dealer not found")
			}
			return nil, translate(err)
		}
		return dealer, nil

	case model.RoleDealer:
		if amount < dealerTransferUnit || amount%dealerTransferUnit != 0 {
			return nil, apperr.Validation("Amount must be a multiple of 1000 and at least 1000")
		}
		if sender.DealerCode == "" {
			return nil, apperr.Validation("Dealer code is not set")
		}
		if !s.superUser.Configured() {
			return nil, apperr.Configuration("super user is not configured")
		}
		su, err := s.accounts.GetByMobile(ctx, s.superUser.Mobile)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return nil, apperr.Configuration("configured super user account does not exist")
			}
			return nil, translate(err)
		}
		return su, nil
	}
	return nil, apperr.Forbidden("Role not permitted to transfer points")
}

// nextUniqueCode returns {dealerCode}_{MMDDYY}_{seq} where seq is the global
// counter of the current day in the configured zone.
func (s *TransferService) nextUniqueCode(ctx context.Context, dealerCode string, now time.Time) (string, error) {
	local := now.In(s.loc)
	mmddyy := local.Format(uniqueCodeDayLayout)

	seq, err := s.sequence.Next(ctx, local.Format(counterDayLayout), func(ctx context.Context) (int64, error) {
		return s.ledger.MaxSequenceForDay(ctx, mmddyy)
	})
	if err != nil {
		return "", apperr.Internal("next transfer sequence", err)
	}
	return fmt.Sprintf("%s_%s_%d", dealerCode, mmddyy, seq), nil
}
