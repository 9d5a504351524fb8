package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, orderID uint) (*model.Order, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, orderID uint, statusID int, comments string, notified bool) error
	AddHistory(ctx context.Context, tx *gorm.DB, history *model.OrderStatusHistory) error
	GetHistory(ctx context.Context, orderID uint) ([]*model.OrderStatusHistory, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create stores the order together with its products, totals and history.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return r.conn(tx).WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID uint) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Products").
		Preload("Totals", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// UpdateStatus moves the order to statusID and appends a history row.
func (r *orderRepoImpl) UpdateStatus(ctx context.Context, tx *gorm.DB, orderID uint, statusID int, comments string, notified bool) error {
	db := r.conn(tx).WithContext(ctx)

	result := db.Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"orders_status": statusID,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return db.Create(&model.OrderStatusHistory{
		OrderID:          orderID,
		OrdersStatusID:   statusID,
		CustomerNotified: notified,
		Comments:         comments,
		UpdatedBy:        "system",
	}).Error
}

func (r *orderRepoImpl) AddHistory(ctx context.Context, tx *gorm.DB, history *model.OrderStatusHistory) error {
	return r.conn(tx).WithContext(ctx).Create(history).Error
}

func (r *orderRepoImpl) GetHistory(ctx context.Context, orderID uint) ([]*model.OrderStatusHistory, error) {
	var history []*model.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id").
		Find(&history).Error

	if err != nil {
		return nil, err
	}

	return history, nil
}
