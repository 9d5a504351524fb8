package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
)

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	CountRedemptions(ctx context.Context, couponID uint) (int64, error)
	CountCustomerRedemptions(ctx context.Context, couponID, customerID uint) (int64, error)
	Redeem(ctx context.Context, tx *gorm.DB, couponID, customerID, orderID uint) error
}

type couponRepoImpl struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepoImpl{
		db: db,
	}
}

func (r *couponRepoImpl) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}

	return &coupon, nil
}

func (r *couponRepoImpl) CountRedemptions(ctx context.Context, couponID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CouponRedeemTrack{}).
		Where("coupon_id = ?", couponID).
		Count(&count).Error

	return count, err
}

func (r *couponRepoImpl) CountCustomerRedemptions(ctx context.Context, couponID, customerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CouponRedeemTrack{}).
		Where("coupon_id = ? AND customer_id = ?", couponID, customerID).
		Count(&count).Error

	return count, err
}

func (r *couponRepoImpl) Redeem(ctx context.Context, tx *gorm.DB, couponID, customerID, orderID uint) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(&model.CouponRedeemTrack{
		CouponID:   couponID,
		CustomerID: customerID,
		OrderID:    orderID,
		RedeemedAt: time.Now(),
	}).Error
}
