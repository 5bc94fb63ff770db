package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sjperalta/transfer-ledger/internal/models"

	"gorm.io/gorm"
)

// CompanyAccountRepository guards the singleton aggregate
type CompanyAccountRepository interface {
	// Get loads the aggregate, creating the empty row on first use
	Get(ctx context.Context) (*models.CompanyAccount, error)
	// CompareAndSwap persists account if the stored version still equals
	// account.Version, then bumps it. ErrConflict otherwise.
	CompareAndSwap(ctx context.Context, account *models.CompanyAccount) error
}

type companyAccountRepository struct {
	db *gorm.DB
}

// NewCompanyAccountRepository creates a new company account repository
func NewCompanyAccountRepository(db *gorm.DB) CompanyAccountRepository {
	return &companyAccountRepository{db: db}
}

func (r *companyAccountRepository) Get(ctx context.Context) (*models.CompanyAccount, error) {
	var account models.CompanyAccount
	err := r.db.WithContext(ctx).First(&account, "id = ?", models.CompanyAccountID).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.NewCompanyAccount()
	fresh.LastUpdated = time.Now()
	if err := r.db.WithContext(ctx).Create(fresh).Error; err != nil {
		return nil, err
	}
	return fresh, nil
}

func (r *companyAccountRepository) CompareAndSwap(ctx context.Context, account *models.CompanyAccount) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.CompanyAccount{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"total_revenue_to_date":  account.TotalRevenueToDate,
			"total_expenses_to_date": account.TotalExpensesToDate,
			"reservations_revenue":   account.ReservationsRevenue,
			"driver_payments":        account.DriverPayments,
			"driver_collections":     account.DriverCollections,
			"manual_income":          account.ManualIncome,
			"manual_expenses":        account.ManualExpenses,
			"version":                account.Version + 1,
			"last_updated":           now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	account.Version++
	account.LastUpdated = now
	return nil
}
