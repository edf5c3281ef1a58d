package repository

import (
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
)

type AccountEntity struct {
	ID                int64     `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	Mobile            string    `db:"mobile"             gorm:"column:mobile;not null;uniqueIndex"`
	Name              string    `db:"name"               gorm:"column:name;not null;default:''"`
	Role              string    `db:"role"               gorm:"column:role;not null"`
	Status            string    `db:"status"             gorm:"column:status;not null;default:active"`
	RewardPoints      int64     `db:"reward_points"      gorm:"column:reward_points;not null;default:0"`
	Cash              int64     `db:"cash"               gorm:"column:cash;not null;default:0"`
	DealerCode        *string   `db:"dealer_code"        gorm:"column:dealer_code;uniqueIndex"`
	ParentDealerCode  *string   `db:"parent_dealer_code" gorm:"column:parent_dealer_code;index"`
	SalesExecutiveID  *int64    `db:"sales_executive_id" gorm:"column:sales_executive_id"`
	PayoutBeneficiary string    `db:"payout_beneficiary" gorm:"column:payout_beneficiary;not null;default:''"`
	ErpAccountID      int64     `db:"erp_account_id"     gorm:"column:erp_account_id;not null;default:0"`
	ErpBranchID       int64     `db:"erp_branch_id"      gorm:"column:erp_branch_id;not null;default:0"`
	ErpSalesmanID     int64     `db:"erp_salesman_id"    gorm:"column:erp_salesman_id;not null;default:0"`
	ErpDistrictID     int64     `db:"erp_district_id"    gorm:"column:erp_district_id;not null;default:0"`
	CreatedAt         time.Time `db:"created_at"         gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `db:"updated_at"         gorm:"column:updated_at;autoUpdateTime"`
}

func (AccountEntity) TableName() string {
	return "accounts"
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toAccountEntity(m *model.Account) *AccountEntity {
	if m == nil {
		return nil
	}
	status := m.Status
	if status == "" {
		status = model.AccountStatusActive
	}
	return &AccountEntity{
		ID:                m.ID,
		Mobile:            m.Mobile,
		Name:              m.Name,
		Role:              string(m.Role),
		Status:            string(status),
		RewardPoints:      m.RewardPoints,
		Cash:              m.Cash,
		DealerCode:        optionalString(m.DealerCode),
		ParentDealerCode:  optionalString(m.ParentDealerCode),
		SalesExecutiveID:  m.SalesExecutiveID,
		PayoutBeneficiary: m.PayoutBeneficiary,
		ErpAccountID:      m.ErpAccountID,
		ErpBranchID:       m.ErpBranchID,
		ErpSalesmanID:     m.ErpSalesmanID,
		ErpDistrictID:     m.ErpDistrictID,
	}
}

func toAccountModel(e *AccountEntity) *model.Account {
	if e == nil {
		return nil
	}
	return &model.Account{
		ID:                e.ID,
		Mobile:            e.Mobile,
		Name:              e.Name,
		Role:              model.Role(e.Role),
		Status:            model.AccountStatus(e.Status),
		RewardPoints:      e.RewardPoints,
		Cash:              e.Cash,
		DealerCode:        derefString(e.DealerCode),
		ParentDealerCode:  derefString(e.ParentDealerCode),
		SalesExecutiveID:  e.SalesExecutiveID,
		PayoutBeneficiary: e.PayoutBeneficiary,
		ErpAccountID:      e.ErpAccountID,
		ErpBranchID:       e.ErpBranchID,
		ErpSalesmanID:     e.ErpSalesmanID,
		ErpDistrictID:     e.ErpDistrictID,
		CreatedAt:         e.CreatedAt,
	}
}
