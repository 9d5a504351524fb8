package repository

import (
	"context"
	"storefront-payments/internal/model"

	"gorm.io/gorm"
)

type CustomerRepository interface {
	FindByID(ctx context.Context, customerID uint) (*model.Customer, error)
	FindAddress(ctx context.Context, customerID, addressID uint) (*model.AddressBook, error)
	// InGeoZone reports whether country/zone is a member of geoZoneID.
	InGeoZone(ctx context.Context, geoZoneID uint, countryCode string, zoneID uint) (bool, error)
}

type customerRepoImpl struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepoImpl{
		db: db,
	}
}

func (r *customerRepoImpl) FindByID(ctx context.Context, customerID uint) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).
		Where("id = ?", customerID).
		First(&customer).Error
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func (r *customerRepoImpl) FindAddress(ctx context.Context, customerID, addressID uint) (*model.AddressBook, error) {
	var address model.AddressBook
	err := r.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", addressID, customerID).
		First(&address).Error
	if err != nil {
		return nil, err
	}

	return &address, nil
}

func (r *customerRepoImpl) InGeoZone(ctx context.Context, geoZoneID uint, countryCode string, zoneID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ZoneToGeoZone{}).
		Where("geo_zone_id = ? AND country_code = ?", geoZoneID, countryCode).
		Where("zone_id = 0 OR zone_id = ?", zoneID).
		Count(&count).Error

	return count > 0, err
}
