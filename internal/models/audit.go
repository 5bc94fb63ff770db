package models

import (
	"time"
)

// Audit action constants
const (
	AuditActionDeleteManualEntry  = "DELETE_MANUAL_ENTRY"
	AuditActionReverse            = "REVERSE_RESERVATION"
	AuditActionReconcile          = "RECONCILE_CORRECTION"
	AuditActionResolveAnomaly     = "RESOLVE_ANOMALY"
	AuditActionDriverAdjustment   = "DRIVER_ADJUSTMENT"
	AuditActionUpsertSystemDriver = "UPSERT_SYSTEM_DRIVER"
)

// AuditLog represents an operator or system action on the ledger.
// UserID is nil for scheduled jobs.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	Action    string    `gorm:"size:50;not null;index" json:"action"`
	Entity    string    `gorm:"size:50;not null" json:"entity"`
	EntityID  string    `gorm:"size:64" json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
