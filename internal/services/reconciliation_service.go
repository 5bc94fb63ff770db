package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/metrics"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"github.com/sjperalta/transfer-ledger/pkg/logger"
)

const reconcileBatchSize = 500

// DriverDrift compares a manual driver's cached counters with the ledger fold
type DriverDrift struct {
	DriverID        string          `json:"driver_id"`
	DriverName      string          `json:"driver_name"`
	CachedBalance   decimal.Decimal `json:"cached_balance"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	CachedTrips     int             `json:"cached_trips"`
	ExpectedTrips   int             `json:"expected_trips"`

	version int64
}

// ReconciliationReport is the outcome of one reconciliation pass
type ReconciliationReport struct {
	StartedAt       time.Time              `json:"started_at"`
	FinishedAt      time.Time              `json:"finished_at"`
	EntriesScanned  int                    `json:"entries_scanned"`
	CachedAccount   *models.CompanyAccount `json:"cached_account"`
	ExpectedAccount *models.CompanyAccount `json:"expected_account"`
	AccountDrift    bool                   `json:"account_drift"`
	DriverDrifts    []DriverDrift          `json:"driver_drifts"`
	AutoCorrect     bool                   `json:"auto_correct"`
	Corrected       bool                   `json:"corrected"`
	Skipped         bool                   `json:"skipped"`
	SkipReason      string                 `json:"skip_reason,omitempty"`
}

// Clean reports whether the cached state matched the ledger
func (r *ReconciliationReport) Clean() bool {
	return !r.AccountDrift && len(r.DriverDrifts) == 0
}

// ReconciliationService recomputes cached aggregates from the full ledger
type ReconciliationService struct {
	repos       *repository.Repositories
	uow         repository.UnitOfWork
	ledger      *LedgerService
	projection  *LedgerProjection
	autoCorrect bool
}

func NewReconciliationService(repos *repository.Repositories, uow repository.UnitOfWork, ledger *LedgerService, projection *LedgerProjection, autoCorrect bool) *ReconciliationService {
	return &ReconciliationService{
		repos:       repos,
		uow:         uow,
		ledger:      ledger,
		projection:  projection,
		autoCorrect: autoCorrect,
	}
}

// Job adapts Reconcile to the background worker
func (s *ReconciliationService) Job(ctx context.Context) error {
	_, err := s.Reconcile(ctx, nil)
	return err
}

// Reconcile folds the whole ledger into a fresh CompanyAccount and fresh
// manual driver balances and, when auto-correct is on, overwrites drifted
// cached values. The scan runs without blocking writers; a pass that sees the
// aggregate version move during the scan is skipped rather than corrected
// with a stale fold. Corrections are version-checked, so a write from any
// replica between scan and correction also skips the pass.
func (s *ReconciliationService) Reconcile(ctx context.Context, actorID *uint) (*ReconciliationReport, error) {
	report := &ReconciliationReport{StartedAt: time.Now(), AutoCorrect: s.autoCorrect}

	err := s.scan(ctx, report)
	if err == nil && !report.Skipped && !report.Clean() && s.autoCorrect {
		err = s.ledger.withWriteLock(func() error {
			return s.correct(ctx, report, actorID)
		})
	}
	report.FinishedAt = time.Now()
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			report.Skipped = true
			report.SkipReason = "concurrent write during correction"
			logger.Info("[Reconcile] Skipped correction after concurrent write")
			return report, nil
		}
		return nil, err
	}

	s.logReport(report)

	if err := s.projection.Rebuild(ctx, s.repos.Ledger); err != nil {
		logger.Error("[Reconcile] Failed to rebuild reporting projection", "error", err)
	}
	return report, nil
}

func (s *ReconciliationService) scan(ctx context.Context, report *ReconciliationReport) error {
	cached, err := s.repos.Account.Get(ctx)
	if err != nil {
		return err
	}
	drivers, err := s.repos.Driver.ListManualDrivers(ctx)
	if err != nil {
		return err
	}

	expected := models.NewCompanyAccount()
	balances := make(map[string]decimal.Decimal, len(drivers))
	trips := make(map[string]int, len(drivers))
	err = s.repos.Ledger.EachBatch(ctx, reconcileBatchSize, func(batch []models.LedgerTransaction) error {
		for i := range batch {
			entry := &batch[i]
			expected.Apply(entry, 1)
			if entry.IsManualDriverScoped() {
				id := *entry.DriverID
				balances[id] = balances[id].Add(DriverBalanceEffect(entry))
				trips[id] += TripDelta(entry)
			}
		}
		report.EntriesScanned += len(batch)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan ledger: %w", err)
	}

	after, err := s.repos.Account.Get(ctx)
	if err != nil {
		return err
	}
	if after.Version != cached.Version {
		report.Skipped = true
		report.SkipReason = "ledger changed during scan"
		return nil
	}

	expected.Version = cached.Version
	expected.LastUpdated = cached.LastUpdated
	report.CachedAccount = cached
	report.ExpectedAccount = expected
	report.AccountDrift = !cached.SameTotals(expected)

	for _, d := range drivers {
		wantTrips := trips[d.ID]
		if wantTrips < 0 {
			wantTrips = 0
		}
		wantBalance := models.RoundCurrency(balances[d.ID])
		if d.Balance.Equal(wantBalance) && d.CompletedTrips == wantTrips {
			continue
		}
		report.DriverDrifts = append(report.DriverDrifts, DriverDrift{
			DriverID:        d.ID,
			DriverName:      d.Name,
			CachedBalance:   d.Balance,
			ExpectedBalance: wantBalance,
			CachedTrips:     d.CompletedTrips,
			ExpectedTrips:   wantTrips,
			version:         d.Version,
		})
	}
	return nil
}

func (s *ReconciliationService) correct(ctx context.Context, report *ReconciliationReport, actorID *uint) error {
	err := s.uow.Do(ctx, func(repos *repository.Repositories) error {
		if report.AccountDrift {
			fixed := *report.ExpectedAccount
			if err := repos.Account.CompareAndSwap(ctx, &fixed); err != nil {
				return err
			}
			details := fmt.Sprintf("revenue %s -> %s, expenses %s -> %s",
				report.CachedAccount.TotalRevenueToDate.StringFixed(2), fixed.TotalRevenueToDate.StringFixed(2),
				report.CachedAccount.TotalExpensesToDate.StringFixed(2), fixed.TotalExpensesToDate.StringFixed(2))
			if err := repos.Audit.Create(ctx, newAuditLog(actorID, models.AuditActionReconcile, "company_account", "1", details)); err != nil {
				return err
			}
		}

		for _, drift := range report.DriverDrifts {
			driver, err := repos.Driver.FindManualDriver(ctx, drift.DriverID)
			if err != nil {
				return err
			}
			if driver.Version != drift.version {
				return repository.ErrConflict
			}
			driver.Balance = drift.ExpectedBalance
			driver.CompletedTrips = drift.ExpectedTrips
			if err := repos.Driver.SwapManualDriverBalance(ctx, driver); err != nil {
				return err
			}
			details := fmt.Sprintf("balance %s -> %s, trips %d -> %d",
				drift.CachedBalance.StringFixed(2), drift.ExpectedBalance.StringFixed(2), drift.CachedTrips, drift.ExpectedTrips)
			if err := repos.Audit.Create(ctx, newAuditLog(actorID, models.AuditActionReconcile, "manual_driver", drift.DriverID, details)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	report.Corrected = true
	return nil
}

func (s *ReconciliationService) logReport(report *ReconciliationReport) {
	if report.Skipped {
		logger.Info("[Reconcile] Pass skipped", "reason", report.SkipReason)
		return
	}
	if report.Clean() {
		logger.Info("[Reconcile] Ledger and cached balances agree", "entries", report.EntriesScanned)
		return
	}

	if report.AccountDrift {
		logger.Warn("[Reconcile] Company account drift",
			"cached_revenue", report.CachedAccount.TotalRevenueToDate.StringFixed(2),
			"expected_revenue", report.ExpectedAccount.TotalRevenueToDate.StringFixed(2),
			"cached_expenses", report.CachedAccount.TotalExpensesToDate.StringFixed(2),
			"expected_expenses", report.ExpectedAccount.TotalExpensesToDate.StringFixed(2),
			"corrected", report.Corrected,
		)
		if report.Corrected {
			metrics.ReconciliationCorrections.WithLabelValues("company_account").Inc()
		}
	}
	for _, drift := range report.DriverDrifts {
		logger.Warn("[Reconcile] Manual driver drift",
			"driver_id", drift.DriverID,
			"cached_balance", drift.CachedBalance.StringFixed(2),
			"expected_balance", drift.ExpectedBalance.StringFixed(2),
			"cached_trips", drift.CachedTrips,
			"expected_trips", drift.ExpectedTrips,
			"corrected", report.Corrected,
		)
		if report.Corrected {
			metrics.ReconciliationCorrections.WithLabelValues("manual_driver").Inc()
		}
	}

	sentry.CaptureMessage(fmt.Sprintf("ledger reconciliation found drift: account=%t drivers=%d corrected=%t",
		report.AccountDrift, len(report.DriverDrifts), report.Corrected))
}
