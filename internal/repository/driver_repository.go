package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sjperalta/transfer-ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DriverRepository covers both driver kinds
type DriverRepository interface {
	FindSystemDriver(ctx context.Context, id string) (*models.SystemDriver, error)
	UpsertSystemDriver(ctx context.Context, driver *models.SystemDriver) error

	FindManualDriver(ctx context.Context, id string) (*models.ManualDriver, error)
	FindManualDriverByPhone(ctx context.Context, phone string) (*models.ManualDriver, error)
	CreateManualDriver(ctx context.Context, driver *models.ManualDriver) error
	ListManualDrivers(ctx context.Context) ([]models.ManualDriver, error)
	// SwapManualDriverBalance writes balance and trip count if the stored
	// version still equals driver.Version, then bumps it. ErrConflict otherwise.
	SwapManualDriverBalance(ctx context.Context, driver *models.ManualDriver) error
}

type driverRepository struct {
	db *gorm.DB
}

// NewDriverRepository creates a new driver repository
func NewDriverRepository(db *gorm.DB) DriverRepository {
	return &driverRepository{db: db}
}

// FindSystemDriver returns nil, nil when the id is unknown
func (r *driverRepository) FindSystemDriver(ctx context.Context, id string) (*models.SystemDriver, error) {
	var driver models.SystemDriver
	err := r.db.WithContext(ctx).First(&driver, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *driverRepository) UpsertSystemDriver(ctx context.Context, driver *models.SystemDriver) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "commission_rate", "updated_at"}),
	}).Create(driver).Error
}

func (r *driverRepository) FindManualDriver(ctx context.Context, id string) (*models.ManualDriver, error) {
	var driver models.ManualDriver
	if err := r.db.WithContext(ctx).First(&driver, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

// FindManualDriverByPhone returns nil, nil when no driver uses the phone
func (r *driverRepository) FindManualDriverByPhone(ctx context.Context, phone string) (*models.ManualDriver, error) {
	var driver models.ManualDriver
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&driver).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *driverRepository) CreateManualDriver(ctx context.Context, driver *models.ManualDriver) error {
	return r.db.WithContext(ctx).Create(driver).Error
}

func (r *driverRepository) ListManualDrivers(ctx context.Context) ([]models.ManualDriver, error) {
	var drivers []models.ManualDriver
	err := r.db.WithContext(ctx).Order("name ASC").Find(&drivers).Error
	return drivers, err
}

func (r *driverRepository) SwapManualDriverBalance(ctx context.Context, driver *models.ManualDriver) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.ManualDriver{}).
		Where("id = ? AND version = ?", driver.ID, driver.Version).
		Updates(map[string]interface{}{
			"balance":         driver.Balance,
			"completed_trips": driver.CompletedTrips,
			"version":         driver.Version + 1,
			"updated_at":      now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	driver.Version++
	driver.UpdatedAt = now
	return nil
}
