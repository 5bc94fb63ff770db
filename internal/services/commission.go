package services

import (
	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/models"
)

var hundred = decimal.NewFromInt(100)

// DriverLookup resolves a system driver id without I/O
type DriverLookup func(id string) (models.SystemDriver, bool)

// CommissionSplit is the money split of one reservation
type CommissionSplit struct {
	TotalPrice     decimal.Decimal `json:"total_price"`
	DriverAmount   decimal.Decimal `json:"driver_amount"`
	CompanyAmount  decimal.Decimal `json:"company_amount"`
	DriverName     string          `json:"driver_name"`
	DriverType     string          `json:"driver_type"`
	CommissionRate decimal.Decimal `json:"commission_rate,omitempty"`
}

// CommissionCalculator splits reservations between company and driver
type CommissionCalculator struct {
	defaultRate decimal.Decimal
}

// NewCommissionCalculator uses defaultRate for system drivers without a stored rate
func NewCommissionCalculator(defaultRate decimal.Decimal) *CommissionCalculator {
	return &CommissionCalculator{defaultRate: defaultRate}
}

// Split computes the driver/company split. The company side is rounded with
// banker's rounding and the driver side is derived from it, so
// DriverAmount + CompanyAmount == TotalPrice exactly.
func (c *CommissionCalculator) Split(event *models.ReservationCompletedEvent, lookup DriverLookup) (CommissionSplit, error) {
	total := models.RoundCurrency(event.TotalPrice)
	if !total.IsPositive() {
		return CommissionSplit{}, validationError("total_price must be at least 0.01, got %s", event.TotalPrice)
	}

	ref, err := event.DriverRef()
	if err != nil {
		return CommissionSplit{}, validationError("%v", err)
	}

	switch d := ref.(type) {
	case models.ManualDriverRef:
		if d.AgreedPrice.IsNegative() {
			return CommissionSplit{}, validationError("agreed_price must not be negative")
		}
		driverAmount := models.RoundCurrency(d.AgreedPrice)
		if driverAmount.GreaterThan(total) {
			return CommissionSplit{}, validationError("agreed_price %s exceeds total_price %s", driverAmount, total)
		}
		return CommissionSplit{
			TotalPrice:    total,
			DriverAmount:  driverAmount,
			CompanyAmount: total.Sub(driverAmount),
			DriverName:    d.Name,
			DriverType:    models.DriverTypeOf(d),
		}, nil

	case models.SystemDriverRef:
		driver, ok := lookup(d.ID)
		if !ok {
			return CommissionSplit{}, &UnknownDriverError{DriverID: d.ID}
		}
		rate := c.defaultRate
		if driver.CommissionRate.Valid {
			rate = driver.CommissionRate.Decimal
		}
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return CommissionSplit{}, validationError("commission rate %s for driver %s is outside 0-100", rate, d.ID)
		}
		companyAmount := models.RoundCurrency(total.Mul(rate).Div(hundred))
		return CommissionSplit{
			TotalPrice:     total,
			DriverAmount:   total.Sub(companyAmount),
			CompanyAmount:  companyAmount,
			DriverName:     driver.Name,
			DriverType:     models.DriverTypeOf(d),
			CommissionRate: rate,
		}, nil
	}

	return CommissionSplit{}, validationError("unsupported driver reference")
}

// UnattributedSplit books the whole price as company revenue. It is the
// fallback for events whose driver cannot be resolved.
func UnattributedSplit(total decimal.Decimal) CommissionSplit {
	total = models.RoundCurrency(total)
	return CommissionSplit{
		TotalPrice:    total,
		DriverAmount:  decimal.Zero,
		CompanyAmount: total,
		DriverType:    models.DriverTypeUnknown,
	}
}
