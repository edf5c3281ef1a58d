package model

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "CREATED"
	OrderStatusVerified OrderStatus = "VERIFIED"
)

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusFailed  SyncStatus = "FAILED"
)

type Order struct {
	ID         int64        `json:"id"`
	DealerID   int64        `json:"dealer_id"`
	Status     OrderStatus  `json:"status"`
	VerifiedBy *int64       `json:"verified_by,omitempty"`
	VerifiedAt *time.Time   `json:"verified_at,omitempty"`
	SyncStatus SyncStatus   `json:"sync_status"`
	SyncError  string       `json:"sync_error,omitempty"`
	VoucherNo  string       `json:"voucher_no,omitempty"`
	Items      []*OrderItem `json:"items"`
	CreatedAt  time.Time    `json:"created_at"`
}

type OrderItem struct {
	ID       int64   `json:"id"`
	OrderID  int64   `json:"order_id"`
	ItemID   int64   `json:"item_id"`
	Quantity int     `json:"quantity"`
	Rate     float64 `json:"rate"`
}

type OrderItemRequest struct {
	ItemID   int64
	Quantity int
	Rate     float64
}

func ValidateOrderItems(items []OrderItemRequest) error {
	if len(items) == 0 {
		return errors.New("order must contain at least one item")
	}
	for _, it := range items {
		if it.ItemID <= 0 {
			return errors.New("item id is required")
		}
		if it.Quantity <= 0 {
			return errors.New("quantity must be positive")
		}
		if it.Rate < 0 {
			return errors.New("rate cannot be negative")
		}
	}
	return nil
}

// ErpSyncJob is the queue payload asking the processor to push an order to the ERP.
type ErpSyncJob struct {
	OrderID   int64     `json:"order_id"`
	Requested time.Time `json:"requested"`
}
