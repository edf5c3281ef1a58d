package services

import (
	"errors"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/pkg/logger"
)

// translate maps repository sentinels onto the shared taxonomy. Errors that are
// already classified pass through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		return apperr.NotFound("Account not found")
	case errors.Is(err, repository.ErrCouponNotFound):
		return apperr.NotFound("Coupon not found")
	case errors.Is(err, repository.ErrBatchNotFound):
		return apperr.NotFound("Batch not found")
	case errors.Is(err, repository.ErrPayoutNotFound):
		return apperr.NotFound("Payout not found")
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperr.NotFound("Order not found")
	case errors.Is(err, repository.ErrCouponAlreadyRedeemed):
		return apperr.Conflict("Coupon already redeemed")
	case errors.Is(err, repository.ErrDuplicateUniqueCode):
		return apperr.Conflict("transfer code collision")
	case errors.Is(err, repository.ErrDuplicateCouponCode):
		return apperr.Conflict("coupon code collision")
	case errors.Is(err, repository.ErrInsufficientBalance):
		return apperr.InsufficientBalance("Insufficient balance")
	}
	return apperr.Internal("internal error", err)
}

// report logs system faults; expected business outcomes stay out of the error log.
func report(op string, err error, values ...any) {
	if err == nil {
		return
	}
	kind := apperr.KindOf(err)
	if kind.IsBusiness() {
		return
	}
	logger.Error(op+" failed", append(values, "kind", string(kind), "error", err)...)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}
