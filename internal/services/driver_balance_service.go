package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"gorm.io/gorm"
)

// Driver adjustment kinds
const (
	AdjustmentPayment    = "payment"
	AdjustmentCollection = "collection"
)

// DriverAdjustment settles money with a manual driver out-of-band.
// payment: the company paid the driver. collection: the driver handed over money.
type DriverAdjustment struct {
	Type   string          `json:"type" binding:"required,oneof=payment collection"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
	Date   *time.Time      `json:"date"`
}

// SystemDriverInput is the profile-service push of a system driver's terms
type SystemDriverInput struct {
	Name           string           `json:"name"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
}

// DriverBalanceService tracks what the company and manual drivers owe each other
type DriverBalanceService struct {
	repo   repository.DriverRepository
	ledger *LedgerService
	audit  *AuditService
}

func NewDriverBalanceService(repo repository.DriverRepository, ledger *LedgerService, audit *AuditService) *DriverBalanceService {
	return &DriverBalanceService{repo: repo, ledger: ledger, audit: audit}
}

// RecordDriverTransaction books a payment to or a collection from a manual driver
func (s *DriverBalanceService) RecordDriverTransaction(ctx context.Context, driverID string, adj DriverAdjustment, actorID *uint) (*AppendResult, error) {
	if !adj.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}

	var txType string
	var amounts models.LedgerAmounts
	switch adj.Type {
	case AdjustmentPayment:
		txType = models.TransactionTypeDriverPayment
		amounts.Expense = adj.Amount
	case AdjustmentCollection:
		txType = models.TransactionTypeDriverCollection
		amounts.Revenue = adj.Amount
	default:
		return nil, validationError("type must be %q or %q", AdjustmentPayment, AdjustmentCollection)
	}

	driver, err := s.GetManualDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	date := s.ledger.now()
	if adj.Date != nil && !adj.Date.IsZero() {
		date = *adj.Date
	}

	entry := models.NewLedgerTransaction(txType, amounts, date)
	entry.ID = uuid.NewString()
	entry.DriverID = models.StringPtr(driver.ID)
	entry.DriverType = models.StringPtr(models.DriverTypeManual)
	entry.Note = adj.Note
	entry.CreatedByUserID = actorID

	return s.ledger.appendWith(ctx, entry, func(repos *repository.Repositories) error {
		return repos.Audit.Create(ctx, newAuditLog(actorID, models.AuditActionDriverAdjustment, "manual_driver", driver.ID,
			fmt.Sprintf("%s %s balance %s -> %s", adj.Type, adj.Amount.StringFixed(2),
				entry.BalanceBefore.Decimal.StringFixed(2), entry.BalanceAfter.Decimal.StringFixed(2))))
	})
}

// GetManualDriver returns ErrNotFound for unknown ids
func (s *DriverBalanceService) GetManualDriver(ctx context.Context, id string) (*models.ManualDriver, error) {
	driver, err := s.repo.FindManualDriver(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: manual driver %s", ErrNotFound, id)
	}
	return driver, err
}

// ListManualDrivers returns every manual driver with their cached balance
func (s *DriverBalanceService) ListManualDrivers(ctx context.Context) ([]models.ManualDriver, error) {
	return s.repo.ListManualDrivers(ctx)
}

// UpsertSystemDriver stores the terms pushed by the driver profile service
func (s *DriverBalanceService) UpsertSystemDriver(ctx context.Context, id string, input SystemDriverInput, actorID *uint) (*models.SystemDriver, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.EqualFold(id, models.ManualDriverSentinel) {
		return nil, validationError("driver id %q is reserved or empty", id)
	}
	if err := models.CheckLength("driver id", id, models.MaxDriverIDLength); err != nil {
		return nil, validationError("%v", err)
	}

	driver := &models.SystemDriver{ID: id, Name: strings.TrimSpace(input.Name)}
	if err := models.CheckLength("name", driver.Name, models.MaxNameLength); err != nil {
		return nil, validationError("%v", err)
	}
	if input.CommissionRate != nil {
		rate := *input.CommissionRate
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return nil, validationError("commission_rate must be between 0 and 100")
		}
		driver.CommissionRate = models.NullAmount(rate)
	}

	if err := s.repo.UpsertSystemDriver(ctx, driver); err != nil {
		return nil, err
	}

	rate := "default"
	if driver.CommissionRate.Valid {
		rate = driver.CommissionRate.Decimal.String()
	}
	if err := s.audit.Log(ctx, actorID, models.AuditActionUpsertSystemDriver, "system_driver", driver.ID,
		fmt.Sprintf("name=%q commission_rate=%s", driver.Name, rate)); err != nil {
		return nil, err
	}
	return driver, nil
}
