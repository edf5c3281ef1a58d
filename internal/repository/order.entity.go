package repository

import (
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
)

type OrderEntity struct {
	ID         int64              `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	DealerID   int64              `db:"dealer_id"   gorm:"column:dealer_id;not null;index"`
	Status     string             `db:"status"      gorm:"column:status;not null"`
	VerifiedBy *int64             `db:"verified_by" gorm:"column:verified_by"`
	VerifiedAt *time.Time         `db:"verified_at" gorm:"column:verified_at"`
	SyncStatus string             `db:"sync_status" gorm:"column:sync_status;not null;default:PENDING"`
	SyncError  string             `db:"sync_error"  gorm:"column:sync_error;not null;default:''"`
	VoucherNo  string             `db:"voucher_no"  gorm:"column:voucher_no;not null;default:''"`
	Items      []*OrderItemEntity `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time          `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (OrderEntity) TableName() string {
	return "orders"
}

type OrderItemEntity struct {
	ID       int64   `db:"id"       gorm:"primaryKey;autoIncrement;column:id"`
	OrderID  int64   `db:"order_id" gorm:"column:order_id;not null;index"`
	ItemID   int64   `db:"item_id"  gorm:"column:item_id;not null"`
	Quantity int     `db:"quantity" gorm:"column:quantity;not null"`
	Rate     float64 `db:"rate"     gorm:"column:rate;type:numeric(12,2);not null;default:0"`
}

func (OrderItemEntity) TableName() string {
	return "order_items"
}

func toOrderModel(e *OrderEntity) *model.Order {
	if e == nil {
		return nil
	}
	items := make([]*model.OrderItem, len(e.Items))
	for i, it := range e.Items {
		items[i] = &model.OrderItem{
			ID:       it.ID,
			OrderID:  it.OrderID,
			ItemID:   it.ItemID,
			Quantity: it.Quantity,
			Rate:     it.Rate,
		}
	}
	return &model.Order{
		ID:         e.ID,
		DealerID:   e.DealerID,
		Status:     model.OrderStatus(e.Status),
		VerifiedBy: e.VerifiedBy,
		VerifiedAt: e.VerifiedAt,
		SyncStatus: model.SyncStatus(e.SyncStatus),
		SyncError:  e.SyncError,
		VoucherNo:  e.VoucherNo,
		Items:      items,
		CreatedAt:  e.CreatedAt,
	}
}
