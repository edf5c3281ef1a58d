package fixtures

import (
	"github.com/nimasrn/paint-rewards/internal/model"
)

const (
	SuperUserMobile = "9000000000"
	BypassMobile    = "9999999999"
)

var (
	SuperUser = model.Account{
		Mobile: SuperUserMobile,
		Name:   "Head Office",
		Role:   model.RoleSuperUser,
		Status: model.AccountStatusActive,
	}

	SalesExecutive = model.Account{
		Mobile: "9100000010",
		Name:   "Field Executive",
		Role:   model.RoleSalesExecutive,
		Status: model.AccountStatusActive,
	}

	Painter = model.Account{
		Mobile: "9100000001",
		Name:   "Ravi Painter",
		Role:   model.RolePainter,
		Status: model.AccountStatusActive,
		// painters forward points to the dealer they buy from
		ParentDealerCode:  "DLR001",
		PayoutBeneficiary: "HDFC0001234:50100012345678",
	}

	InactivePainter = model.Account{
		Mobile: "9100000002",
		Name:   "Dormant Painter",
		Role:   model.RolePainter,
		Status: model.AccountStatusInactive,
	}
)

// Dealer returns a dealer reporting to the given sales executive. The ERP
// ids match what a provisioned Focus8 customer master would carry.
func Dealer(salesExecutiveID int64) model.Account {
	return model.Account{
		Mobile:           "9200000001",
		Name:             "Colour House",
		Role:             model.RoleDealer,
		Status:           model.AccountStatusActive,
		DealerCode:       "DLR001",
		SalesExecutiveID: &salesExecutiveID,
		ErpBranchID:      3,
		ErpSalesmanID:    7,
		ErpDistrictID:    11,
	}
}

func NewBatchRequest(quantity int) map[string]any {
	return map[string]any{
		"name":              "Weathercoat 20L",
		"brand":             "Weathercoat",
		"product":           "Exterior Emulsion",
		"redeemable_points": 40,
		"value":             1500,
		"quantity":          quantity,
	}
}

func NewOrderRequest() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"item_id": 101, "quantity": 4, "rate": 2450.5},
			{"item_id": 205, "quantity": 10, "rate": 380},
		},
	}
}
