package repository

import (
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
)

type LedgerEntryEntity struct {
	ID          int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	AccountID   int64     `db:"account_id"  gorm:"column:account_id;not null;index:idx_ledger_entries_account_created"`
	Kind        string    `db:"kind"        gorm:"column:kind;not null"`
	Narration   string    `db:"narration"   gorm:"column:narration;not null"`
	Description string    `db:"description" gorm:"column:description;not null;default:''"`
	Amount      int64     `db:"amount"      gorm:"column:amount;not null"`
	Balance     int64     `db:"balance"     gorm:"column:balance;not null"`
	Side        string    `db:"side"        gorm:"column:side;not null;uniqueIndex:idx_ledger_unique_code_side,priority:2"`
	UniqueCode  *string   `db:"unique_code" gorm:"column:unique_code;uniqueIndex:idx_ledger_unique_code_side,priority:1"`
	CreatedAt   time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime;index:idx_ledger_entries_account_created"`
}

func (LedgerEntryEntity) TableName() string {
	return "ledger_entries"
}

type DailyCounterEntity struct {
	Day string `db:"day" gorm:"primaryKey;column:day"`
	Seq int64  `db:"seq" gorm:"column:seq;not null;default:0"`
}

func (DailyCounterEntity) TableName() string {
	return "daily_counters"
}

func toLedgerEntryEntity(m *model.LedgerEntry) *LedgerEntryEntity {
	if m == nil {
		return nil
	}
	return &LedgerEntryEntity{
		ID:          m.ID,
		AccountID:   m.AccountID,
		Kind:        string(m.Kind),
		Narration:   string(m.Narration),
		Description: m.Description,
		Amount:      m.Amount,
		Balance:     m.Balance,
		Side:        string(m.Side),
		UniqueCode:  m.UniqueCode,
		CreatedAt:   m.CreatedAt,
	}
}

func toLedgerEntryModel(e *LedgerEntryEntity) *model.LedgerEntry {
	if e == nil {
		return nil
	}
	return &model.LedgerEntry{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Kind:        model.LedgerKind(e.Kind),
		Narration:   model.Narration(e.Narration),
		Description: e.Description,
		Amount:      e.Amount,
		Balance:     e.Balance,
		Side:        model.LedgerSide(e.Side),
		UniqueCode:  e.UniqueCode,
		CreatedAt:   e.CreatedAt,
	}
}

func toLedgerEntryModels(entities []*LedgerEntryEntity) []*model.LedgerEntry {
	if entities == nil {
		return nil
	}
	models := make([]*model.LedgerEntry, len(entities))
	for i, e := range entities {
		models[i] = toLedgerEntryModel(e)
	}
	return models
}
