package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/pkg/pg"
	"gorm.io/gorm"
)

const couponInsertBatchSize = 500

var (
	ErrCouponNotFound        = errors.New("coupon not found")
	ErrCouponAlreadyRedeemed = errors.New("coupon already redeemed")
	ErrDuplicateCouponCode   = errors.New("coupon code already exists")
	ErrBatchNotFound         = errors.New("batch not found")
)

type CouponRepository struct {
	*pg.DB
}

func NewCouponRepository(db *pg.DB) *CouponRepository {
	return &CouponRepository{
		db,
	}
}

// CreateBatchWithCoupons inserts the batch and one coupon per code. Either
// everything is stored or nothing is.
func (r *CouponRepository) CreateBatchWithCoupons(ctx context.Context, batch *model.Batch, codes []string) (*model.Batch, error) {
	entity := toBatchEntity(batch)

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
			return err
		}

		coupons := make([]*CouponEntity, len(codes))
		for i, code := range codes {
			coupons[i] = &CouponEntity{Code: code, BatchID: entity.ID}
		}
		return r.Write(ctx).WithContext(ctx).CreateInBatches(coupons, couponInsertBatchSize).Error
	})
	if err != nil {
		if pg.IsDuplicateKey(err) {
			return nil, ErrDuplicateCouponCode
		}
		return nil, err
	}

	return toBatchModel(entity), nil
}

func (r *CouponRepository) GetBatch(ctx context.Context, id int64) (*model.Batch, error) {
	var entity BatchEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return toBatchModel(&entity), nil
}

// GetByCode loads the coupon together with its batch.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var entity CouponEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Batch").
		Where("code = ?", code).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	return toCouponModel(&entity), nil
}

// ClaimChannel sets the channel's redeemer if and only if it is still empty.
// This single conditional statement is the serialization point for scans of
// the same coupon.
func (r *CouponRepository) ClaimChannel(ctx context.Context, code string, ch model.Channel, mobile string, at time.Time) error {
	byCol, atCol := "points_redeemed_by", "points_redeemed_at"
	if ch == model.ChannelCash {
		byCol, atCol = "cash_redeemed_by", "cash_redeemed_at"
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&CouponEntity{}).
		Where("code = ?", code).
		Where(byCol + " IS NULL").
		Updates(map[string]interface{}{
			byCol: mobile,
			atCol: at,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByCode(ctx, code); err != nil {
			return err
		}
		return ErrCouponAlreadyRedeemed
	}

	return nil
}

func (r *CouponRepository) ListByBatch(ctx context.Context, f model.CouponFilter) ([]*model.Coupon, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&CouponEntity{}).Where("batch_id = ?", f.BatchID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*CouponEntity
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCouponModels(entities), total, nil
}
