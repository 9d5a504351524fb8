package repository

import (
	"context"
	"fmt"
	"storefront-payments/internal/model"

	"gorm.io/gorm"
)

type InventoryRepository interface {
	// Decrement lowers stock for a sold product. It never goes below zero.
	Decrement(ctx context.Context, tx *gorm.DB, productID uint, quantity int) error
}

type inventoryRepoImpl struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepoImpl{
		db: db,
	}
}

func (r *inventoryRepoImpl) Decrement(ctx context.Context, tx *gorm.DB, productID uint, quantity int) error {
	if tx == nil {
		tx = r.db
	}
	if quantity <= 0 {
		return fmt.Errorf("decrement quantity must be positive")
	}

	return tx.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("quantity", gorm.Expr("CASE WHEN quantity > ? THEN quantity - ? ELSE 0 END", quantity, quantity)).
		Error
}
