package repository

import (
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
)

type PayoutTransactionEntity struct {
	ID                int64     `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	TransferID        string    `db:"transfer_id"        gorm:"column:transfer_id;not null;uniqueIndex"`
	AccountID         int64     `db:"account_id"         gorm:"column:account_id;not null;index"`
	Amount            int64     `db:"amount"             gorm:"column:amount;not null"`
	Status            string    `db:"status"             gorm:"column:status;not null;index"`
	StatusDescription string    `db:"status_description" gorm:"column:status_description;not null;default:''"`
	ProviderReference string    `db:"provider_reference" gorm:"column:provider_reference;not null;default:''"`
	ReconcileAttempts int       `db:"reconcile_attempts" gorm:"column:reconcile_attempts;not null;default:0"`
	CreatedAt         time.Time `db:"created_at"         gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `db:"updated_at"         gorm:"column:updated_at;autoUpdateTime"`
}

func (PayoutTransactionEntity) TableName() string {
	return "payout_transactions"
}

func toPayoutEntity(m *model.PayoutTransaction) *PayoutTransactionEntity {
	if m == nil {
		return nil
	}
	return &PayoutTransactionEntity{
		ID:                m.ID,
		TransferID:        m.TransferID,
		AccountID:         m.AccountID,
		Amount:            m.Amount,
		Status:            string(m.Status),
		StatusDescription: m.StatusDescription,
		ProviderReference: m.ProviderReference,
		ReconcileAttempts: m.ReconcileAttempts,
	}
}

func toPayoutModel(e *PayoutTransactionEntity) *model.PayoutTransaction {
	if e == nil {
		return nil
	}
	return &model.PayoutTransaction{
		ID:                e.ID,
		TransferID:        e.TransferID,
		AccountID:         e.AccountID,
		Amount:            e.Amount,
		Status:            model.PayoutStatus(e.Status),
		StatusDescription: e.StatusDescription,
		ProviderReference: e.ProviderReference,
		ReconcileAttempts: e.ReconcileAttempts,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func toPayoutModels(entities []*PayoutTransactionEntity) []*model.PayoutTransaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.PayoutTransaction, len(entities))
	for i, e := range entities {
		models[i] = toPayoutModel(e)
	}
	return models
}
