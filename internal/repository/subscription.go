package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionRepository interface {
	GetPlanByScheduleKey(ctx context.Context, key string) (*model.PayPalPlan, error)
	SavePlan(ctx context.Context, plan *model.PayPalPlan) error

	CreateProfile(ctx context.Context, tx *gorm.DB, profile *model.RecurringProfile) error
	GetByProfileID(ctx context.Context, profileID string) (*model.RecurringProfile, error)
	UpdateStatus(ctx context.Context, profileID, status string, next *time.Time) error
	NextAwaitingApproval(ctx context.Context, orderID uint, exclude string) (*model.RecurringProfile, error)
	ListByCustomer(ctx context.Context, customerID uint) ([]*model.RecurringProfile, error)
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{
		db: db,
	}
}

func (r *subscriptionRepoImpl) GetPlanByScheduleKey(ctx context.Context, key string) (*model.PayPalPlan, error) {
	var plan model.PayPalPlan
	err := r.db.WithContext(ctx).
		Where("schedule_key = ?", key).
		First(&plan).
		Error

	if err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *subscriptionRepoImpl) SavePlan(ctx context.Context, plan *model.PayPalPlan) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(plan).Error
}

func (r *subscriptionRepoImpl) CreateProfile(ctx context.Context, tx *gorm.DB, profile *model.RecurringProfile) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(profile).Error
}

func (r *subscriptionRepoImpl) GetByProfileID(ctx context.Context, profileID string) (*model.RecurringProfile, error) {
	var profile model.RecurringProfile
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		First(&profile).
		Error

	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *subscriptionRepoImpl) UpdateStatus(ctx context.Context, profileID, status string, next *time.Time) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":         status,
		"last_synced_at": &now,
		"updated_at":     now,
	}
	if next != nil {
		updates["next_billing_date"] = next
	}

	result := r.db.WithContext(ctx).
		Model(&model.RecurringProfile{}).
		Where("profile_id = ?", profileID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// NextAwaitingApproval is the order's oldest pending profile, other than
// exclude, that the buyer still has to approve at PayPal.
func (r *subscriptionRepoImpl) NextAwaitingApproval(ctx context.Context, orderID uint, exclude string) (*model.RecurringProfile, error) {
	var profile model.RecurringProfile
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND profile_id <> ? AND status = ? AND approval_url <> ''", orderID, exclude, "pending").
		Order("id").
		First(&profile).
		Error

	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *subscriptionRepoImpl) ListByCustomer(ctx context.Context, customerID uint) ([]*model.RecurringProfile, error) {
	var profiles []*model.RecurringProfile
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("id DESC").
		Find(&profiles).
		Error

	if err != nil {
		return nil, err
	}

	return profiles, nil
}
