package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/nimasrn/paint-rewards/pkg/prom"
)

const webhookMarkerTTL = 24 * time.Hour

type PayoutProvider interface {
	Initiate(ctx context.Context, req model.PayoutInitiation) (*model.ProviderStatus, error)
	Status(ctx context.Context, transferID string) (*model.ProviderStatus, error)
}

// WebhookMarker remembers deliveries that were already applied.
type WebhookMarker interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

type PayoutService struct {
	tx            Transactor
	accounts      AccountRepository
	ledger        LedgerRepository
	payouts       PayoutRepository
	provider      PayoutProvider
	marker        WebhookMarker
	webhookSecret []byte
	callTimeout   time.Duration
	newTransferID func() string
}

func NewPayoutService(tx Transactor, accounts AccountRepository, ledger LedgerRepository, payouts PayoutRepository, provider PayoutProvider, callTimeout time.Duration) *PayoutService {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &PayoutService{
		tx:            tx,
		accounts:      accounts,
		ledger:        ledger,
		payouts:       payouts,
		provider:      provider,
		callTimeout:   callTimeout,
		newTransferID: uuid.NewString,
	}
}

// WithWebhookSecret enables signature checks on incoming webhooks.
func (s *PayoutService) WithWebhookSecret(secret string) *PayoutService {
	if secret != "" {
		s.webhookSecret = []byte(secret)
	}
	return s
}

func (s *PayoutService) WithWebhookMarker(marker WebhookMarker) *PayoutService {
	s.marker = marker
	return s
}

// Withdraw debits cash and records a PENDING payout in one transaction, then
// asks the provider to start the transfer. A provider failure leaves the
// payout PENDING for reconciliation and is not returned to the caller.
func (s *PayoutService) Withdraw(ctx context.Context, accountID, amount int64) (*model.PayoutTransaction, error) {
	if amount <= 0 {
		return nil, apperr.Validation("Amount must be a positive integer")
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, translate(err)
	}
	if !account.Active() {
		return nil, apperr.Forbidden("Account is inactive")
	}
	if account.PayoutBeneficiary == "" {
		return nil, apperr.Validation("Payout beneficiary is not set")
	}

	transferID := s.newTransferID()
	var payout *model.PayoutTransaction
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		balance, err := s.accounts.DebitCash(ctx, account.ID, amount)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return apperr.InsufficientBalance("Insufficient cash balance")
			}
			return translate(err)
		}

		if _, err := s.ledger.Append(ctx, &model.LedgerEntry{
			AccountID:   account.ID,
			Kind:        model.LedgerKindCash,
			Narration:   model.NarrationPayoutDebit,
			Description: "Withdrawal " + transferID,
			Amount:      -amount,
			Balance:     balance,
			Side:        model.SideDebit,
		}); err != nil {
			return translate(err)
		}

		payout, err = s.payouts.Create(ctx, &model.PayoutTransaction{
			TransferID: transferID,
			AccountID:  account.ID,
			Amount:     amount,
			Status:     model.PayoutStatusPending,
		})
		return err
	})
	if err != nil {
		err = translate(err)
		report("withdraw", err, "account_id", accountID, "amount", amount)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	status, err := s.provider.Initiate(callCtx, model.PayoutInitiation{
		TransferID:  transferID,
		Amount:      amount,
		Beneficiary: account.PayoutBeneficiary,
		Remarks:     "Reward cash withdrawal",
	})
	if err != nil {
		logger.Error("payout initiate failed, left pending", "transfer_id", transferID, "account_id", accountID, "error", err)
		return payout, nil
	}

	if resolved, ok := status.Resolve(); ok {
		updated, _, err := s.ApplyStatus(ctx, transferID, resolved, status.Description)
		if err != nil {
			logger.Error("payout immediate status not applied", "transfer_id", transferID, "error", err)
			return payout, nil
		}
		return updated, nil
	}
	if _, err := s.payouts.MarkReceived(ctx, transferID, status.Reference); err != nil {
		logger.Error("payout mark received failed", "transfer_id", transferID, "error", err)
		return payout, nil
	}
	return s.reload(ctx, payout)
}

// ApplyStatus records a provider status. Terminal states are applied through a
// compare-and-set so only the first one wins; a REJECTED or FAILED payout
// refunds its cash in the same transaction. applied is false for no-ops.
func (s *PayoutService) ApplyStatus(ctx context.Context, transferID string, status model.PayoutStatus, description string) (*model.PayoutTransaction, bool, error) {
	if !status.Valid() {
		return nil, false, apperr.Validation("unknown payout status " + string(status))
	}

	payout, err := s.payouts.GetByTransferID(ctx, transferID)
	if err != nil {
		return nil, false, translate(err)
	}

	if !status.Terminal() {
		applied := false
		if status == model.PayoutStatusReceived && payout.Status == model.PayoutStatusPending {
			if applied, err = s.payouts.MarkReceived(ctx, transferID, ""); err != nil {
				return nil, false, translate(err)
			}
		}
		updated, err := s.reload(ctx, payout)
		return updated, applied, err
	}

	applied := false
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.payouts.MarkTerminal(ctx, transferID, status, description)
		if err != nil || !ok {
			return err
		}
		applied = true

		if !status.Refundable() {
			return nil
		}
		balance, err := s.accounts.CreditCash(ctx, payout.AccountID, payout.Amount)
		if err != nil {
			return err
		}
		_, err = s.ledger.Append(ctx, &model.LedgerEntry{
			AccountID:   payout.AccountID,
			Kind:        model.LedgerKindCash,
			Narration:   model.NarrationPayoutRefund,
			Description: fmt.Sprintf("Refund for payout %s (%s)", transferID, status),
			Amount:      payout.Amount,
			Balance:     balance,
			Side:        model.SideCredit,
		})
		return err
	})
	if err != nil {
		err = translate(err)
		report("apply payout status", err, "transfer_id", transferID, "status", status)
		return nil, false, err
	}

	if applied {
		logger.Info("payout reached terminal status", "transfer_id", transferID, "status", status, "description", description)
	}
	updated, err := s.reload(ctx, payout)
	return updated, applied, err
}

// HandleWebhook verifies and applies a provider callback. Repeated deliveries
// are answered without touching the database when the marker store has seen them.
func (s *PayoutService) HandleWebhook(ctx context.Context, body []byte, signature string, status model.ProviderStatus) (*model.PayoutTransaction, error) {
	if !s.VerifySignature(body, signature) {
		return nil, apperr.Forbidden("invalid webhook signature")
	}
	if status.TransferID == "" {
		return nil, apperr.Validation("transfer_id is required")
	}

	target, ok := status.Resolve()
	if !ok {
		switch status.Status {
		case model.ProviderStatusReceived:
			target = model.PayoutStatusReceived
		case model.ProviderStatusFailed:
			target = model.PayoutStatusFailed
		default:
			target = model.PayoutStatusPending
		}
	}

	key := "payout:webhook:" + status.TransferID + ":" + string(target)
	if s.marker != nil && target.Terminal() {
		fresh, err := s.marker.SetNX(ctx, key, []byte(status.Status), webhookMarkerTTL)
		if err != nil {
			logger.Warn("webhook marker unavailable", "transfer_id", status.TransferID, "error", err)
		} else if !fresh {
			payout, err := s.payouts.GetByTransferID(ctx, status.TransferID)
			if err != nil {
				err = translate(err)
				report("load payout", err, "transfer_id", status.TransferID)
				return nil, err
			}
			return payout, nil
		}
	}

	payout, _, err := s.ApplyStatus(ctx, status.TransferID, target, status.Description)
	if err != nil && s.marker != nil && target.Terminal() {
		if delErr := s.marker.Del(ctx, key); delErr != nil {
			logger.Warn("webhook marker cleanup failed", "key", key, "error", delErr)
		}
	}
	return payout, err
}

// VerifySignature checks a base64 HMAC-SHA256 of body. Without a configured
// secret every body is accepted.
func (s *PayoutService) VerifySignature(body []byte, signature string) bool {
	if len(s.webhookSecret) == 0 {
		return true
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.webhookSecret)
	mac.Write(body)
	return hmac.Equal(given, mac.Sum(nil))
}

// SignWebhook produces the signature VerifySignature expects.
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Reconcile polls the provider for one non-terminal payout. Undecided payouts
// consume one persisted attempt; reaching maxAttempts forces FAILED.
func (s *PayoutService) Reconcile(ctx context.Context, payout *model.PayoutTransaction, maxAttempts int) (model.PayoutStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	status, err := s.provider.Status(callCtx, payout.TransferID)
	cancel()

	if err == nil {
		if resolved, ok := status.Resolve(); ok {
			updated, _, err := s.ApplyStatus(ctx, payout.TransferID, resolved, status.Description)
			if err != nil {
				return payout.Status, err
			}
			prom.IncPayoutReconciled(string(updated.Status))
			return updated.Status, nil
		}
	} else {
		logger.Warn("payout status query failed", "transfer_id", payout.TransferID, "error", err)
	}

	attempts, err := s.payouts.IncrementAttempts(ctx, payout.TransferID)
	if err != nil {
		if errors.Is(err, repository.ErrPayoutNotPending) {
			current, err := s.payouts.GetByTransferID(ctx, payout.TransferID)
			if err != nil {
				return payout.Status, translate(err)
			}
			return current.Status, nil
		}
		return payout.Status, translate(err)
	}

	if attempts < maxAttempts {
		prom.IncPayoutReconciled("retry")
		return payout.Status, nil
	}

	desc := fmt.Sprintf("no terminal status after %d reconciliation attempts", attempts)
	updated, _, err := s.ApplyStatus(ctx, payout.TransferID, model.PayoutStatusFailed, desc)
	if err != nil {
		return payout.Status, err
	}
	prom.IncPayoutReconciled(string(updated.Status))
	return updated.Status, nil
}

func (s *PayoutService) PendingPayouts(ctx context.Context, limit int) ([]*model.PayoutTransaction, error) {
	payouts, err := s.payouts.ListNonTerminal(ctx, limit)
	if err != nil {
		return nil, translate(err)
	}
	return payouts, nil
}

func (s *PayoutService) reload(ctx context.Context, payout *model.PayoutTransaction) (*model.PayoutTransaction, error) {
	updated, err := s.payouts.GetByTransferID(ctx, payout.TransferID)
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}
