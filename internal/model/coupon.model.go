package model

import (
	"errors"
	"net/url"
	"time"
)

const MaxBatchQuantity = 10000

type Channel string

const (
	ChannelPoints Channel = "points"
	ChannelCash   Channel = "cash"
)

func (c Channel) Valid() bool {
	return c == ChannelPoints || c == ChannelCash
}

type Batch struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Branch           string     `json:"branch"`
	Brand            string     `json:"brand"`
	Product          string     `json:"product"`
	RedeemablePoints int64      `json:"redeemable_points"`
	Value            int64      `json:"value"`
	Quantity         int        `json:"quantity"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	CreatedBy        int64      `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (b *Batch) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// Coupon is one physical QR-coded unit. Each channel is claimed at most once.
type Coupon struct {
	ID               int64      `json:"id"`
	Code             string     `json:"code"`
	BatchID          int64      `json:"batch_id"`
	Batch            *Batch     `json:"-"`
	PointsRedeemedBy *string    `json:"points_redeemed_by,omitempty"`
	PointsRedeemedAt *time.Time `json:"points_redeemed_at,omitempty"`
	CashRedeemedBy   *string    `json:"cash_redeemed_by,omitempty"`
	CashRedeemedAt   *time.Time `json:"cash_redeemed_at,omitempty"`
	ScanURL          string     `json:"scan_url,omitempty"`
}

// RedeemedBy returns the mobile that claimed the channel, nil while unclaimed.
func (c *Coupon) RedeemedBy(ch Channel) *string {
	if ch == ChannelCash {
		return c.CashRedeemedBy
	}
	return c.PointsRedeemedBy
}

// BuildScanURL renders the URL printed into the QR image.
func BuildScanURL(base, code string) string {
	if base == "" {
		return code
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?uid=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("uid", code)
	u.RawQuery = q.Encode()
	return u.String()
}

type BatchCreateRequest struct {
	Name             string
	Branch           string
	Brand            string
	Product          string
	RedeemablePoints int64
	Value            int64
	Quantity         int
	ExpiresAt        *time.Time
	CreatedBy        int64
}

func (r BatchCreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Quantity < 1 || r.Quantity > MaxBatchQuantity {
		return errors.New("quantity must be between 1 and 10000")
	}
	if r.RedeemablePoints < 0 || r.Value < 0 {
		return errors.New("redeemable points and value cannot be negative")
	}
	if r.RedeemablePoints == 0 && r.Value == 0 {
		return errors.New("batch must carry points or cash value")
	}
	return nil
}

type CouponFilter struct {
	BatchID int64
	Limit   int
	Offset  int
}
