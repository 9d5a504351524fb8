package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRepository writes the PayPal and Braintree transaction logs.
type TransactionRepository interface {
	CreatePayPal(ctx context.Context, tx *gorm.DB, txn *model.PayPalTransaction) error
	CreateBraintree(ctx context.Context, tx *gorm.DB, txn *model.BraintreeTransaction) error
	FindPayPalByTxnID(ctx context.Context, txnID string) (*model.PayPalTransaction, error)
	UpdatePayPalStatus(ctx context.Context, tx *gorm.DB, txnID, status string) error
	ExistsPayPal(ctx context.Context, txnID string) (bool, error)
}

type transactionRepositoryImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepositoryImpl{
		db: db,
	}
}

func (r *transactionRepositoryImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *transactionRepositoryImpl) CreatePayPal(ctx context.Context, tx *gorm.DB, txn *model.PayPalTransaction) error {
	return r.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "txn_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"payment_status": txn.PaymentStatus,
			"order_id":       txn.OrderID,
			"updated_at":     time.Now(),
		}),
	}).Create(txn).Error
}

func (r *transactionRepositoryImpl) CreateBraintree(ctx context.Context, tx *gorm.DB, txn *model.BraintreeTransaction) error {
	return r.conn(tx).WithContext(ctx).Create(txn).Error
}

func (r *transactionRepositoryImpl) FindPayPalByTxnID(ctx context.Context, txnID string) (*model.PayPalTransaction, error) {
	var txn model.PayPalTransaction
	err := r.db.WithContext(ctx).
		Where("txn_id = ?", txnID).
		First(&txn).Error
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

func (r *transactionRepositoryImpl) UpdatePayPalStatus(ctx context.Context, tx *gorm.DB, txnID, status string) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.PayPalTransaction{}).
		Where("txn_id = ?", txnID).
		Updates(map[string]interface{}{
			"payment_status": status,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *transactionRepositoryImpl) ExistsPayPal(ctx context.Context, txnID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PayPalTransaction{}).
		Where("txn_id = ?", txnID).
		Count(&count).Error

	return count > 0, err
}
