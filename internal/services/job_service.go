package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/transfer-ledger/internal/jobs"
)

const (
	reconcileJobName       = "ledger_reconciliation"
	manualReconcileJobName = "ledger_reconciliation_manual"
	projectionJobName      = "projection_refresh"
)

// JobService owns the recurring ledger jobs and reports on the worker
type JobService struct {
	worker     *jobs.Worker
	reconciler *ReconciliationService
	reporting  *ReportingService
}

func NewJobService(worker *jobs.Worker, reconciler *ReconciliationService, reporting *ReportingService) *JobService {
	return &JobService{
		worker:     worker,
		reconciler: reconciler,
		reporting:  reporting,
	}
}

// StartReconciliation runs reconciliation once now and then every interval
func (s *JobService) StartReconciliation(interval time.Duration) {
	s.worker.ScheduleEveryImmediate(reconcileJobName, interval, s.reconciler.Job)
}

// StartProjectionRefresh reloads the reporting view every interval so a
// replica picks up entries written by the others. The view is warmed at
// boot, so the first reload waits one interval. interval <= 0 disables it.
func (s *JobService) StartProjectionRefresh(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.worker.ScheduleEvery(projectionJobName, interval, s.reporting.RefreshProjection)
}

// TriggerReconciliation queues a reconciliation pass on the worker pool
func (s *JobService) TriggerReconciliation() error {
	if s.worker == nil {
		return fmt.Errorf("%w: background worker is not running", ErrInvalidState)
	}
	s.worker.Enqueue(manualReconcileJobName, func(ctx context.Context) error {
		return s.reconciler.Job(ctx)
	})
	return nil
}

func (s *JobService) GetStatus() map[string]interface{} {
	if s.worker == nil {
		return map[string]interface{}{"running": false}
	}
	stats := s.worker.GetStats()
	return map[string]interface{}{
		"active_jobs":    stats.ActiveJobs,
		"completed_jobs": stats.CompletedJobs,
		"failed_jobs":    stats.FailedJobs,
		"queue_length":   stats.QueueLength,
		"max_concurrent": stats.MaxConcurrent,
		"schedules":      s.worker.Schedules(),
		"running":        true,
	}
}
