package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Driver type constants stored on ledger entries
const (
	DriverTypeSystem  = "system"
	DriverTypeManual  = "manual"
	DriverTypeUnknown = "unknown"
)

// ManualDriverSentinel is the driver_id value producers send for external drivers
const ManualDriverSentinel = "manual"

// SystemDriver is an onboarded driver with a stored commission rate.
// Rows are pushed by the driver profile service.
type SystemDriver struct {
	ID             string              `gorm:"primaryKey;size:64" json:"id"`
	Name           string              `gorm:"size:255" json:"name"`
	CommissionRate decimal.NullDecimal `gorm:"type:decimal(7,4)" json:"commission_rate"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (SystemDriver) TableName() string {
	return "system_drivers"
}

// ManualDriver is an external driver paid out-of-band and tracked by a running balance.
// Balance > 0 means the company owes the driver; < 0 means the driver owes the company.
// Balance is a projection of the ledger, never edited directly.
type ManualDriver struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Phone          string          `gorm:"size:32;not null;uniqueIndex" json:"phone"`
	PlateNumber    string          `gorm:"size:32" json:"plate_number"`
	Balance        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"balance"`
	CompletedTrips int             `gorm:"not null;default:0" json:"completed_trips"`
	Version        int64           `gorm:"not null;default:1" json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ManualDriver) TableName() string {
	return "manual_drivers"
}

// Owes reports whether the driver currently owes the company money
func (d *ManualDriver) Owes() bool {
	return d.Balance.IsNegative()
}
