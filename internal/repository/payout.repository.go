package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrPayoutNotFound    = errors.New("payout transaction not found")
	ErrDuplicateTransfer = errors.New("payout transfer id already exists")
	ErrPayoutNotPending  = errors.New("payout transaction is already terminal")
)

type PayoutRepository struct {
	*pg.DB
}

func NewPayoutRepository(db *pg.DB) *PayoutRepository {
	return &PayoutRepository{
		db,
	}
}

func (r *PayoutRepository) Create(ctx context.Context, p *model.PayoutTransaction) (*model.PayoutTransaction, error) {
	entity := toPayoutEntity(p)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if pg.IsDuplicateKey(err) {
			return nil, ErrDuplicateTransfer
		}
		return nil, err
	}

	return toPayoutModel(entity), nil
}

func (r *PayoutRepository) GetByTransferID(ctx context.Context, transferID string) (*model.PayoutTransaction, error) {
	var entity PayoutTransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("transfer_id = ?", transferID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}

	return toPayoutModel(&entity), nil
}

// ListNonTerminal returns PENDING and RECEIVED payouts, oldest first.
func (r *PayoutRepository) ListNonTerminal(ctx context.Context, limit int) ([]*model.PayoutTransaction, error) {
	if limit <= 0 {
		limit = 500
	}

	var entities []*PayoutTransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status IN ?", statusStrings(model.NonTerminalPayoutStatuses)).
		Order("id ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	return toPayoutModels(entities), nil
}

// MarkReceived moves a PENDING payout to RECEIVED after the provider accepted it.
func (r *PayoutRepository) MarkReceived(ctx context.Context, transferID, reference string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&PayoutTransactionEntity{}).
		Where("transfer_id = ? AND status = ?", transferID, string(model.PayoutStatusPending)).
		Updates(receivedUpdates(reference))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkTerminal is the compare-and-set into a terminal state. It reports false
// when the payout had already left PENDING/RECEIVED.
func (r *PayoutRepository) MarkTerminal(ctx context.Context, transferID string, status model.PayoutStatus, description string) (bool, error) {
	if !status.Terminal() {
		return false, errors.New("status is not terminal: " + string(status))
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&PayoutTransactionEntity{}).
		Where("transfer_id = ?", transferID).
		Where("status IN ?", statusStrings(model.NonTerminalPayoutStatuses)).
		Updates(map[string]interface{}{
			"status":             string(status),
			"status_description": description,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementAttempts bumps the persisted reconcile counter and returns it.
func (r *PayoutRepository) IncrementAttempts(ctx context.Context, transferID string) (int, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&PayoutTransactionEntity{}).
		Where("transfer_id = ?", transferID).
		Where("status IN ?", statusStrings(model.NonTerminalPayoutStatuses)).
		Update("reconcile_attempts", gorm.Expr("reconcile_attempts + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrPayoutNotPending
	}

	var attempts int
	err := r.Write(ctx).WithContext(ctx).
		Model(&PayoutTransactionEntity{}).
		Select("reconcile_attempts").
		Where("transfer_id = ?", transferID).
		Scan(&attempts).
		Error
	return attempts, err
}

func statusStrings(statuses []model.PayoutStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func receivedUpdates(reference string) map[string]interface{} {
	updates := map[string]interface{}{"status": string(model.PayoutStatusReceived)}
	if reference != "" {
		updates["provider_reference"] = reference
	}
	return updates
}
