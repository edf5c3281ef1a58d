package model

import "time"

type Role string

const (
	RolePainter        Role = "Painter"
	RoleDealer         Role = "Dealer"
	RoleSalesExecutive Role = "SalesExecutive"
	RoleSuperUser      Role = "SuperUser"
)

func (r Role) Valid() bool {
	switch r {
	case RolePainter, RoleDealer, RoleSalesExecutive, RoleSuperUser:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// Account carries the balance cache; RewardPoints and Cash (paise) never go negative.
type Account struct {
	ID                int64         `json:"id"`
	Mobile            string        `json:"mobile"`
	Name              string        `json:"name"`
	Role              Role          `json:"role"`
	Status            AccountStatus `json:"status"`
	RewardPoints      int64         `json:"reward_points"`
	Cash              int64         `json:"cash"`
	DealerCode        string        `json:"dealer_code,omitempty"`
	ParentDealerCode  string        `json:"parent_dealer_code,omitempty"`
	SalesExecutiveID  *int64        `json:"sales_executive_id,omitempty"`
	PayoutBeneficiary string        `json:"payout_beneficiary,omitempty"`
	ErpAccountID      int64         `json:"erp_account_id,omitempty"`
	ErpBranchID       int64         `json:"erp_branch_id,omitempty"`
	ErpSalesmanID     int64         `json:"erp_salesman_id,omitempty"`
	ErpDistrictID     int64         `json:"erp_district_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

func (a *Account) Active() bool {
	return a.Status == AccountStatusActive
}

// SuperUserRef identifies the single account receiving dealer transfers.
// It is resolved from configuration at startup and injected where needed.
type SuperUserRef struct {
	Mobile string
}

func (r SuperUserRef) Configured() bool {
	return r.Mobile != ""
}
