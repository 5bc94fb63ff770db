package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment method constants
const (
	PaymentMethodCash         = "cash"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
)

// ValidPaymentMethod reports whether method is one the mapper understands
func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// Reservation status constants (ledger view of a booking)
const (
	ReservationStatusPending   = "pending"
	ReservationStatusCompleted = "completed"
	ReservationStatusReversed  = "reversed"
)

// ManualDriverInfo travels with events performed by an external driver
type ManualDriverInfo struct {
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	PlateNumber string          `json:"plate_number"`
	AgreedPrice decimal.Decimal `json:"agreed_price"`
}

// ReservationCompletedEvent is emitted by booking intake when a trip is done.
// Card/bank settlement has already happened by the time it arrives.
type ReservationCompletedEvent struct {
	ReservationID string            `json:"reservation_id"`
	TotalPrice    decimal.Decimal   `json:"total_price"`
	PaymentMethod string            `json:"payment_method"`
	DriverID      string            `json:"driver_id"`
	ManualDriver  *ManualDriverInfo `json:"manual_driver,omitempty"`
	CompletedAt   time.Time         `json:"completed_at"`
}

// DriverRef is the tagged driver reference carried by an event:
// either a SystemDriverRef or a ManualDriverRef.
type DriverRef interface {
	driverType() string
}

// SystemDriverRef points to an onboarded driver by id
type SystemDriverRef struct {
	ID string
}

func (SystemDriverRef) driverType() string { return DriverTypeSystem }

// ManualDriverRef carries the agreed fixed price for an external driver
type ManualDriverRef struct {
	Name        string
	Phone       string
	PlateNumber string
	AgreedPrice decimal.Decimal
}

func (ManualDriverRef) driverType() string { return DriverTypeManual }

// DriverTypeOf returns the ledger driver type for a reference
func DriverTypeOf(ref DriverRef) string {
	if ref == nil {
		return DriverTypeUnknown
	}
	return ref.driverType()
}

// DriverRef converts the wire shape into the tagged variant
func (e *ReservationCompletedEvent) DriverRef() (DriverRef, error) {
	id := strings.TrimSpace(e.DriverID)
	switch {
	case id == "":
		return nil, fmt.Errorf("driver_id is required")
	case strings.EqualFold(id, ManualDriverSentinel):
		if e.ManualDriver == nil {
			return nil, fmt.Errorf("manual_driver is required when driver_id is %q", ManualDriverSentinel)
		}
		ref := ManualDriverRef{
			Name:        strings.TrimSpace(e.ManualDriver.Name),
			Phone:       strings.TrimSpace(e.ManualDriver.Phone),
			PlateNumber: strings.TrimSpace(e.ManualDriver.PlateNumber),
			AgreedPrice: e.ManualDriver.AgreedPrice,
		}
		if ref.Phone == "" {
			return nil, fmt.Errorf("manual_driver.phone is required")
		}
		for _, err := range []error{
			CheckLength("manual_driver.name", ref.Name, MaxNameLength),
			CheckLength("manual_driver.phone", ref.Phone, MaxPhoneLength),
			CheckLength("manual_driver.plate_number", ref.PlateNumber, MaxPlateNumberLength),
		} {
			if err != nil {
				return nil, err
			}
		}
		return ref, nil
	default:
		if err := CheckLength("driver_id", id, MaxDriverIDLength); err != nil {
			return nil, err
		}
		return SystemDriverRef{ID: id}, nil
	}
}

// ReservationRecord tracks a booking's ledger lifecycle
type ReservationRecord struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	Status        string          `gorm:"size:16;not null;index" json:"status"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_price"`
	PaymentMethod string          `gorm:"size:16;not null" json:"payment_method"`
	DriverID      *string         `gorm:"size:64;index" json:"driver_id,omitempty"`
	DriverType    string          `gorm:"size:16;not null" json:"driver_type"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	ReversedAt    *time.Time      `json:"reversed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ReservationRecord) TableName() string {
	return "reservations"
}

// MayComplete returns true if the reservation can still produce its ledger entry
func (r *ReservationRecord) MayComplete() bool {
	return r.Status == ReservationStatusPending
}

// MayReverse returns true if a completed reservation can be compensated
func (r *ReservationRecord) MayReverse() bool {
	return r.Status == ReservationStatusCompleted
}
