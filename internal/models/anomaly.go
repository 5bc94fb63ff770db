package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Anomaly kind constants
const (
	AnomalyKindUnknownDriver = "unknown_driver"
)

// LedgerAnomaly flags an entry that was booked under a fallback rule and needs review
type LedgerAnomaly struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Kind             string          `gorm:"size:32;not null;index" json:"kind"`
	ReservationID    string          `gorm:"size:64;index" json:"reservation_id"`
	TransactionID    string          `gorm:"size:36;index" json:"transaction_id"`
	DriverRef        string          `gorm:"size:64" json:"driver_ref"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Details          string          `gorm:"type:text" json:"details"`
	ResolvedAt       *time.Time      `gorm:"index" json:"resolved_at,omitempty"`
	ResolvedByUserID *uint           `json:"resolved_by_user_id,omitempty"`
	ResolutionNote   string          `gorm:"type:text" json:"resolution_note,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TableName specifies the table name for GORM
func (LedgerAnomaly) TableName() string {
	return "ledger_anomalies"
}

// IsResolved returns true once an operator has reviewed the anomaly
func (a *LedgerAnomaly) IsResolved() bool {
	return a.ResolvedAt != nil
}
