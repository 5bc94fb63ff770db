package services

import (
	"context"

	"github.com/sjperalta/transfer-ledger/internal/config"
	"github.com/sjperalta/transfer-ledger/internal/jobs"
	"github.com/sjperalta/transfer-ledger/internal/repository"
)

// Services holds all service instances
type Services struct {
	Ledger         *LedgerService
	Drivers        *DriverBalanceService
	Reporting      *ReportingService
	Reconciliation *ReconciliationService
	Anomaly        *AnomalyService
	Audit          *AuditService
	Export         *ExportService
	Job            *JobService
	Projection     *LedgerProjection
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, uow repository.UnitOfWork, worker *jobs.Worker, policy config.LedgerPolicy) *Services {
	projection := NewLedgerProjection(policy.Location())
	calc := NewCommissionCalculator(policy.DefaultCommissionRate)
	ledgerSvc := NewLedgerService(repos, uow, calc, projection, worker, policy)
	reconcileSvc := NewReconciliationService(repos, uow, ledgerSvc, projection, policy.ReconcileAutoCorrect)
	auditSvc := NewAuditService(repos.Audit)
	reportingSvc := NewReportingService(repos, projection)

	return &Services{
		Ledger:         ledgerSvc,
		Drivers:        NewDriverBalanceService(repos.Driver, ledgerSvc, auditSvc),
		Reporting:      reportingSvc,
		Reconciliation: reconcileSvc,
		Anomaly:        NewAnomalyService(repos.Anomaly, uow),
		Audit:          auditSvc,
		Export:         NewExportService(),
		Job:            NewJobService(worker, reconcileSvc, reportingSvc),
		Projection:     projection,
	}
}

// Warm loads the reporting projection from the stored ledger
func (s *Services) Warm(ctx context.Context, repos *repository.Repositories) error {
	return s.Projection.Rebuild(ctx, repos.Ledger)
}
