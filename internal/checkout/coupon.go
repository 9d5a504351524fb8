package checkout

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/model"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrCouponUnknown   = errors.New("coupon code not recognised")
	ErrCouponInactive  = errors.New("coupon not active")
	ErrCouponExhausted = errors.New("coupon already used up")
	ErrCouponMinimum   = errors.New("order below coupon minimum")
)

// couponMessage is the shopper facing text for a coupon rejection.
func couponMessage(code string, err error) string {
	switch {
	case errors.Is(err, ErrCouponUnknown):
		return fmt.Sprintf("The coupon code %q is not valid.", code)
	case errors.Is(err, ErrCouponInactive):
		return fmt.Sprintf("The coupon code %q is not active at this time.", code)
	case errors.Is(err, ErrCouponExhausted):
		return fmt.Sprintf("The coupon code %q has already been used the maximum number of times.", code)
	case errors.Is(err, ErrCouponMinimum):
		return fmt.Sprintf("Your order does not meet the minimum amount for coupon %q.", code)
	}
	return "The coupon could not be applied."
}

func (s *serviceImpl) validateCoupon(ctx context.Context, code string, customerID uint, subtotal decimal.Decimal) (*model.Coupon, error) {
	coupon, err := s.couponRepo.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponUnknown
		}
		return nil, fmt.Errorf("find coupon %s: %w", code, err)
	}

	now := s.now()
	if !coupon.Active ||
		(!coupon.StartDate.IsZero() && now.Before(coupon.StartDate)) ||
		(!coupon.ExpireDate.IsZero() && now.After(coupon.ExpireDate)) {
		return nil, ErrCouponInactive
	}

	if coupon.UsesPerCoupon > 0 {
		used, err := s.couponRepo.CountRedemptions(ctx, coupon.ID)
		if err != nil {
			return nil, fmt.Errorf("count coupon %s redemptions: %w", code, err)
		}
		if used >= int64(coupon.UsesPerCoupon) {
			return nil, ErrCouponExhausted
		}
	}
	if coupon.UsesPerUser > 0 && customerID != 0 {
		used, err := s.couponRepo.CountCustomerRedemptions(ctx, coupon.ID, customerID)
		if err != nil {
			return nil, fmt.Errorf("count coupon %s redemptions: %w", code, err)
		}
		if used >= int64(coupon.UsesPerUser) {
			return nil, ErrCouponExhausted
		}
	}

	if coupon.MinimumOrder.IsPositive() && subtotal.LessThan(coupon.MinimumOrder) {
		return nil, ErrCouponMinimum
	}

	return coupon, nil
}

func isCouponRejection(err error) bool {
	return errors.Is(err, ErrCouponUnknown) ||
		errors.Is(err, ErrCouponInactive) ||
		errors.Is(err, ErrCouponExhausted) ||
		errors.Is(err, ErrCouponMinimum)
}
