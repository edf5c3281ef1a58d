package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/pkg/prom"
)

// codeQueryKeys are the only query parameters that can carry a coupon code;
// any other parameter is ignored and the path is used instead.
var codeQueryKeys = []string{"uid", "code", "udid"}

type RedemptionService struct {
	tx           Transactor
	accounts     AccountRepository
	coupons      CouponRepository
	ledger       LedgerRepository
	bypassMobile string
	now          func() time.Time
}

// NewRedemptionService builds the engine. bypassMobile names the review
// identity allowed to re-run bookkeeping on claimed coupons; empty disables it.
func NewRedemptionService(tx Transactor, accounts AccountRepository, coupons CouponRepository, ledger LedgerRepository, bypassMobile string) *RedemptionService {
	return &RedemptionService{
		tx:           tx,
		accounts:     accounts,
		coupons:      coupons,
		ledger:       ledger,
		bypassMobile: strings.TrimSpace(bypassMobile),
		now:          time.Now,
	}
}

func (s *RedemptionService) WithClock(now func() time.Time) *RedemptionService {
	s.now = now
	return s
}

// Redeem claims one channel of a coupon for the acting account, credits the
// batch's value and appends the ledger entry, all in one transaction.
func (s *RedemptionService) Redeem(ctx context.Context, channel model.Channel, raw string, actorID int64) (*model.RedemptionResult, error) {
	result, err := s.redeem(ctx, channel, raw, actorID)
	prom.IncRedemption(string(channel), resultLabel(err))
	if err != nil {
		report("redeem", err, "channel", channel, "input", raw, "account_id", actorID)
		return nil, err
	}
	return result, nil
}

func (s *RedemptionService) redeem(ctx context.Context, channel model.Channel, raw string, actorID int64) (*model.RedemptionResult, error) {
	if !channel.Valid() {
		return nil, apperr.Validation("channel must be points or cash")
	}
	code := ExtractCode(raw)
	if code == "" {
		return nil, apperr.Validation("code is required")
	}

	var result *model.RedemptionResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := s.now()

		coupon, err := s.coupons.GetByCode(ctx, code)
		if err != nil {
			return translate(err)
		}
		batch := coupon.Batch
		if batch == nil {
			if batch, err = s.coupons.GetBatch(ctx, coupon.BatchID); err != nil {
				return translate(err)
			}
		}
		if batch.Expired(now) {
			return apperr.Validation("Coupon expired")
		}

		credit := batch.RedeemablePoints
		if channel == model.ChannelCash {
			credit = batch.Value
		}
		if credit <= 0 {
			return apperr.Validation(fmt.Sprintf("Coupon has no %s value", channel))
		}

		account, err := s.accounts.GetByID(ctx, actorID)
		if err != nil {
			return translate(err)
		}
		if !account.Active() {
			return apperr.Forbidden("Account is inactive")
		}

		bypass := false
		if err := s.coupons.ClaimChannel(ctx, code, channel, account.Mobile, now); err != nil {
			if !errors.Is(err, repository.ErrCouponAlreadyRedeemed) || !s.isBypass(account) {
				return translate(err)
			}
			bypass = true
		}

		var balance int64
		if channel == model.ChannelCash {
			balance, err = s.accounts.CreditCash(ctx, account.ID, credit)
		} else {
			balance, err = s.accounts.CreditPoints(ctx, account.ID, credit)
		}
		if err != nil {
			return translate(err)
		}

		narration := model.NarrationQRScan
		if bypass {
			narration = model.NarrationQRScanReview
		}
		entry, err := s.ledger.Append(ctx, &model.LedgerEntry{
			AccountID:   account.ID,
			Kind:        ledgerKindFor(channel),
			Narration:   narration,
			Description: "Scanned QR " + code,
			Amount:      credit,
			Balance:     balance,
			Side:        model.SideCredit,
			CreatedAt:   now,
		})
		if err != nil {
			return translate(err)
		}

		// refresh so the caller sees the claim it just made
		if !bypass {
			if coupon, err = s.coupons.GetByCode(ctx, code); err != nil {
				return translate(err)
			}
		}
		coupon.Batch = batch

		result = &model.RedemptionResult{
			Coupon:        coupon,
			Channel:       channel,
			Credited:      credit,
			Balance:       balance,
			LedgerEntryID: entry.ID,
			Bypass:        bypass,
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

func (s *RedemptionService) isBypass(account *model.Account) bool {
	return s.bypassMobile != "" && account.Mobile == s.bypassMobile
}

func ledgerKindFor(ch model.Channel) model.LedgerKind {
	if ch == model.ChannelCash {
		return model.LedgerKindCash
	}
	return model.LedgerKindPoints
}

// ExtractCode pulls the coupon code out of a scanned value. URLs are read
// from their query first, then from the last path segment, then from a
// key=value suffix of that segment. Anything else is returned trimmed.
func ExtractCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if u, err := url.Parse(raw); err == nil && (u.Scheme != "" || u.RawQuery != "") {
		q := u.Query()
		for _, key := range codeQueryKeys {
			if v := strings.TrimSpace(q.Get(key)); v != "" {
				return v
			}
		}
		raw = u.Path
	}

	segment := strings.TrimRight(raw, "/")
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	if i := strings.LastIndex(segment, "="); i >= 0 && i < len(segment)-1 {
		segment = segment[i+1:]
	}
	return segment
}
