package services

import (
	"context"
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/pkg/logger"
)

const couponCodeLength = 12

var couponEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type BatchService struct {
	accounts AccountRepository
	coupons  CouponRepository
	baseURL  string
	newCode  func() string
}

func NewBatchService(accounts AccountRepository, coupons CouponRepository, couponBaseURL string) *BatchService {
	return &BatchService{
		accounts: accounts,
		coupons:  coupons,
		baseURL:  couponBaseURL,
		newCode:  NewCouponCode,
	}
}

// NewCouponCode derives a 12 character upper-case base32 code from a random uuid.
func NewCouponCode() string {
	id := uuid.New()
	return strings.ToUpper(couponEncoding.EncodeToString(id[:]))[:couponCodeLength]
}

// Issue creates a batch and its coupons. Only the super user may issue, and a
// code collision fails the whole batch.
func (s *BatchService) Issue(ctx context.Context, actorID int64, req model.BatchCreateRequest) (*model.Batch, error) {
	actor, err := s.accounts.GetByID(ctx, actorID)
	if err != nil {
		return nil, translate(err)
	}
	if actor.Role != model.RoleSuperUser || !actor.Active() {
		return nil, apperr.Forbidden("Only the super user can issue batches")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.CreatedBy = actor.ID
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	codes := make([]string, 0, req.Quantity)
	seen := make(map[string]struct{}, req.Quantity)
	for len(codes) < req.Quantity {
		code := s.newCode()
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	batch, err := s.coupons.CreateBatchWithCoupons(ctx, &model.Batch{
		Name:             req.Name,
		Branch:           req.Branch,
		Brand:            req.Brand,
		Product:          req.Product,
		RedeemablePoints: req.RedeemablePoints,
		Value:            req.Value,
		Quantity:         req.Quantity,
		ExpiresAt:        req.ExpiresAt,
		CreatedBy:        req.CreatedBy,
	}, codes)
	if err != nil {
		err = translate(err)
		report("issue batch", err, "quantity", req.Quantity, "actor_id", actorID)
		return nil, err
	}

	logger.Info("batch issued", "batch_id", batch.ID, "quantity", batch.Quantity, "actor_id", actorID)
	return batch, nil
}

// Coupons lists a batch's coupons with their scan URLs.
func (s *BatchService) Coupons(ctx context.Context, f model.CouponFilter) ([]*model.Coupon, int64, error) {
	if _, err := s.coupons.GetBatch(ctx, f.BatchID); err != nil {
		err = translate(err)
		report("get batch", err, "batch_id", f.BatchID)
		return nil, 0, err
	}
	coupons, total, err := s.coupons.ListByBatch(ctx, f)
	if err != nil {
		err = translate(err)
		report("list coupons", err, "batch_id", f.BatchID)
		return nil, 0, err
	}
	for _, c := range coupons {
		c.ScanURL = model.BuildScanURL(s.baseURL, c.Code)
	}
	return coupons, total, nil
}
