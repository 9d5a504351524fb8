package repository

import (
	"context"
	"errors"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConfigurationRepository interface {
	All(ctx context.Context) (map[string]string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, tx *gorm.DB, key, value string) error
	// InsertMissing adds entries whose key does not exist yet; existing values are kept.
	InsertMissing(ctx context.Context, tx *gorm.DB, entries []*model.Configuration) error
	Delete(ctx context.Context, tx *gorm.DB, keys ...string) error
	DeleteByPrefix(ctx context.Context, tx *gorm.DB, prefix string) (int64, error)
}

type configurationRepoImpl struct {
	db *gorm.DB
}

func NewConfigurationRepository(db *gorm.DB) ConfigurationRepository {
	return &configurationRepoImpl{
		db: db,
	}
}

func (r *configurationRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *configurationRepoImpl) All(ctx context.Context) (map[string]string, error) {
	var rows []*model.Configuration
	err := r.db.WithContext(ctx).
		Select("configuration_key", "configuration_value").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.ConfigurationKey] = row.ConfigurationValue
	}
	return values, nil
}

func (r *configurationRepoImpl) Get(ctx context.Context, key string) (string, bool, error) {
	var row model.Configuration
	err := r.db.WithContext(ctx).
		Where("configuration_key = ?", key).
		First(&row).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	return row.ConfigurationValue, true, nil
}

// Set upserts a single value, keeping the title and description of an existing row.
func (r *configurationRepoImpl) Set(ctx context.Context, tx *gorm.DB, key, value string) error {
	return r.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "configuration_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"configuration_value": value,
			"updated_at":          time.Now(),
		}),
	}).Create(&model.Configuration{
		ConfigurationKey:   key,
		ConfigurationValue: value,
	}).Error
}

func (r *configurationRepoImpl) InsertMissing(ctx context.Context, tx *gorm.DB, entries []*model.Configuration) error {
	if len(entries) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entries).Error
}

func (r *configurationRepoImpl) Delete(ctx context.Context, tx *gorm.DB, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Where("configuration_key IN ?", keys).
		Delete(&model.Configuration{}).Error
}

func (r *configurationRepoImpl) DeleteByPrefix(ctx context.Context, tx *gorm.DB, prefix string) (int64, error) {
	result := r.conn(tx).WithContext(ctx).
		Where("configuration_key LIKE ?", prefix+"%").
		Delete(&model.Configuration{})

	return result.RowsAffected, result.Error
}
