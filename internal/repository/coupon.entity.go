package repository

import (
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
)

type BatchEntity struct {
	ID               int64      `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	Name             string     `db:"name"              gorm:"column:name;not null"`
	Branch           string     `db:"branch"            gorm:"column:branch;not null;default:''"`
	Brand            string     `db:"brand"             gorm:"column:brand;not null;default:''"`
	Product          string     `db:"product"           gorm:"column:product;not null;default:''"`
	RedeemablePoints int64      `db:"redeemable_points" gorm:"column:redeemable_points;not null;default:0"`
	Value            int64      `db:"value"             gorm:"column:value;not null;default:0"`
	Quantity         int        `db:"quantity"          gorm:"column:quantity;not null"`
	ExpiresAt        *time.Time `db:"expires_at"        gorm:"column:expires_at"`
	CreatedBy        int64      `db:"created_by"        gorm:"column:created_by;not null"`
	CreatedAt        time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (BatchEntity) TableName() string {
	return "batches"
}

type CouponEntity struct {
	ID               int64        `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	Code             string       `db:"code"               gorm:"column:code;not null;uniqueIndex"`
	BatchID          int64        `db:"batch_id"           gorm:"column:batch_id;not null;index"`
	Batch            *BatchEntity `gorm:"foreignKey:BatchID;references:ID"`
	PointsRedeemedBy *string      `db:"points_redeemed_by" gorm:"column:points_redeemed_by"`
	PointsRedeemedAt *time.Time   `db:"points_redeemed_at" gorm:"column:points_redeemed_at"`
	CashRedeemedBy   *string      `db:"cash_redeemed_by"   gorm:"column:cash_redeemed_by"`
	CashRedeemedAt   *time.Time   `db:"cash_redeemed_at"   gorm:"column:cash_redeemed_at"`
	CreatedAt        time.Time    `db:"created_at"         gorm:"column:created_at;autoCreateTime"`
}

func (CouponEntity) TableName() string {
	return "coupons"
}

func toBatchEntity(m *model.Batch) *BatchEntity {
	if m == nil {
		return nil
	}
	return &BatchEntity{
		ID:               m.ID,
		Name:             m.Name,
		Branch:           m.Branch,
		Brand:            m.Brand,
		Product:          m.Product,
		RedeemablePoints: m.RedeemablePoints,
		Value:            m.Value,
		Quantity:         m.Quantity,
		ExpiresAt:        m.ExpiresAt,
		CreatedBy:        m.CreatedBy,
	}
}

func toBatchModel(e *BatchEntity) *model.Batch {
	if e == nil {
		return nil
	}
	return &model.Batch{
		ID:               e.ID,
		Name:             e.Name,
		Branch:           e.Branch,
		Brand:            e.Brand,
		Product:          e.Product,
		RedeemablePoints: e.RedeemablePoints,
		Value:            e.Value,
		Quantity:         e.Quantity,
		ExpiresAt:        e.ExpiresAt,
		CreatedBy:        e.CreatedBy,
		CreatedAt:        e.CreatedAt,
	}
}

func toCouponModel(e *CouponEntity) *model.Coupon {
	if e == nil {
		return nil
	}
	return &model.Coupon{
		ID:               e.ID,
		Code:             e.Code,
		BatchID:          e.BatchID,
		Batch:            toBatchModel(e.Batch),
		PointsRedeemedBy: e.PointsRedeemedBy,
		PointsRedeemedAt: e.PointsRedeemedAt,
		CashRedeemedBy:   e.CashRedeemedBy,
		CashRedeemedAt:   e.CashRedeemedAt,
	}
}

func toCouponModels(entities []*CouponEntity) []*model.Coupon {
	if entities == nil {
		return nil
	}
	models := make([]*model.Coupon, len(entities))
	for i, e := range entities {
		models[i] = toCouponModel(e)
	}
	return models
}
