package handlers

import (
	"github.com/sjperalta/transfer-ledger/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health         *HealthHandler
	Event          *EventHandler
	Driver         *DriverHandler
	Ledger         *LedgerHandler
	Report         *ReportHandler
	Anomaly        *AnomalyHandler
	Reconciliation *ReconciliationHandler
	Audit          *AuditHandler
	Job            *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(),
		Event:          NewEventHandler(svcs.Ledger),
		Driver:         NewDriverHandler(svcs.Drivers, svcs.Reporting, svcs.Export),
		Ledger:         NewLedgerHandler(svcs.Ledger, svcs.Reporting),
		Report:         NewReportHandler(svcs.Reporting, svcs.Export),
		Anomaly:        NewAnomalyHandler(svcs.Anomaly),
		Reconciliation: NewReconciliationHandler(svcs.Reconciliation),
		Audit:          NewAuditHandler(svcs.Audit),
		Job:            NewJobHandler(svcs.Job),
	}
}
