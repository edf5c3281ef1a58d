package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/pkg/pg"
	"gorm.io/gorm"
)

const maxSyncErrorLen = 512

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderStateChanged = errors.New("order is not in the expected state")
)

type OrderRepository struct {
	*pg.DB
}

func NewOrderRepository(db *pg.DB) *OrderRepository {
	return &OrderRepository{
		db,
	}
}

// Create stores the order and its items in one statement group.
func (r *OrderRepository) Create(ctx context.Context, dealerID int64, items []model.OrderItemRequest) (*model.Order, error) {
	entity := &OrderEntity{
		DealerID:   dealerID,
		Status:     string(model.OrderStatusCreated),
		SyncStatus: string(model.SyncStatusPending),
		Items:      make([]*OrderItemEntity, len(items)),
	}
	for i, it := range items {
		entity.Items[i] = &OrderItemEntity{ItemID: it.ItemID, Quantity: it.Quantity, Rate: it.Rate}
	}

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		return r.Write(ctx).WithContext(ctx).Create(entity).Error
	})
	if err != nil {
		return nil, err
	}

	return toOrderModel(entity), nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var entity OrderEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return toOrderModel(&entity), nil
}

// MarkVerified moves CREATED to VERIFIED; any other current state yields
// ErrOrderStateChanged.
func (r *OrderRepository) MarkVerified(ctx context.Context, id, actorID int64, at time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("id = ? AND status = ?", id, string(model.OrderStatusCreated)).
		Updates(map[string]interface{}{
			"status":      string(model.OrderStatusVerified),
			"verified_by": actorID,
			"verified_at": at,
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrOrderStateChanged
	}
	return nil
}

// SetSyncResult records the ERP push outcome without touching verification.
func (r *OrderRepository) SetSyncResult(ctx context.Context, id int64, status model.SyncStatus, voucherNo, syncErr string) error {
	if len(syncErr) > maxSyncErrorLen {
		syncErr = syncErr[:maxSyncErrorLen]
	}
	result := r.Write(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status": string(status),
			"voucher_no":  voucherNo,
			"sync_error":  syncErr,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ResetFailedSync puts a FAILED sync back to PENDING so it can be queued again.
func (r *OrderRepository) ResetFailedSync(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("id = ? AND status = ? AND sync_status = ?", id, string(model.OrderStatusVerified), string(model.SyncStatusFailed)).
		Updates(map[string]interface{}{
			"sync_status": string(model.SyncStatusPending),
			"sync_error":  "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrOrderStateChanged
	}
	return nil
}
