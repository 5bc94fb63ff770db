package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"github.com/sjperalta/transfer-ledger/pkg/logger"
	"gorm.io/gorm"
)

// StatementLine is one ledger entry of a driver with the balance after it
type StatementLine struct {
	TransactionID  string          `json:"transaction_id"`
	Type           string          `json:"type"`
	Date           time.Time       `json:"date"`
	ReservationID  *string         `json:"reservation_id,omitempty"`
	PaymentMethod  *string         `json:"payment_method,omitempty"`
	Note           string          `json:"note"`
	Revenue        decimal.Decimal `json:"revenue"`
	Expense        decimal.Decimal `json:"expense"`
	Effect         decimal.Decimal `json:"effect"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// DriverStatement is the time-ordered history of a driver
type DriverStatement struct {
	DriverID          string           `json:"driver_id"`
	DriverName        string           `json:"driver_name"`
	DriverType        string           `json:"driver_type"`
	Lines             []StatementLine  `json:"lines"`
	RecomputedBalance decimal.Decimal  `json:"recomputed_balance"`
	CachedBalance     *decimal.Decimal `json:"cached_balance,omitempty"`
	Mismatch          bool             `json:"mismatch"`
	Warning           string           `json:"warning,omitempty"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// CompanySnapshot is the aggregate plus its breakdowns
type CompanySnapshot struct {
	Account             *models.CompanyAccount `json:"account"`
	Net                 decimal.Decimal        `json:"net"`
	ByPaymentMethod     []Breakdown            `json:"by_payment_method"`
	ByDriverType        []Breakdown            `json:"by_driver_type"`
	UnresolvedAnomalies int                    `json:"unresolved_anomalies"`
	GeneratedAt         time.Time              `json:"generated_at"`
}

// ReportingService answers read-only questions about the ledger
type ReportingService struct {
	repos      *repository.Repositories
	projection *LedgerProjection
}

func NewReportingService(repos *repository.Repositories, projection *LedgerProjection) *ReportingService {
	return &ReportingService{repos: repos, projection: projection}
}

// GroupByPeriod returns month or year buckets, most recent first
func (s *ReportingService) GroupByPeriod(ctx context.Context, granularity string) ([]PeriodSummary, error) {
	if granularity == "" {
		granularity = GranularityMonth
	}
	return s.projection.Periods(granularity)
}

// RefreshProjection reloads the reporting view from the stored ledger
func (s *ReportingService) RefreshProjection(ctx context.Context) error {
	return s.projection.Rebuild(ctx, s.repos.Ledger)
}

// CompanySnapshot returns the company aggregate with breakdowns

func (s *ReportingService) CompanySnapshot(ctx context.Context) (*CompanySnapshot, error) {
	account, err := s.repos.Account.Get(ctx)
	if err != nil {
		return nil, err
	}
	anomalies, err := s.repos.Anomaly.List(ctx, true)
	if err != nil {
		return nil, err
	}

	return &CompanySnapshot{
		Account:             account,
		Net:                 account.Net(),
		ByPaymentMethod:     s.projection.ByPaymentMethod(),
		ByDriverType:        s.projection.ByDriverType(),
		UnresolvedAnomalies: len(anomalies),
		GeneratedAt:         time.Now(),
	}, nil
}

// DriverStatement recomputes a driver's balance from the ledger. A manual
// driver whose cached balance disagrees gets a warning; nothing is corrected here.
func (s *ReportingService) DriverStatement(ctx context.Context, driverID string) (*DriverStatement, error) {
	statement := &DriverStatement{DriverID: driverID, GeneratedAt: time.Now()}

	manual, err := s.repos.Driver.FindManualDriver(ctx, driverID)
	switch {
	case err == nil:
		statement.DriverName = manual.Name
		statement.DriverType = models.DriverTypeManual
		cached := manual.Balance
		statement.CachedBalance = &cached
	case errors.Is(err, gorm.ErrRecordNotFound):
		system, err := s.repos.Driver.FindSystemDriver(ctx, driverID)
		if err != nil {
			return nil, err
		}
		if system != nil {
			statement.DriverName = system.Name
			statement.DriverType = models.DriverTypeSystem
		}
	default:
		return nil, err
	}

	entries, err := s.repos.Ledger.FindByDriverID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if statement.DriverType == "" {
		if len(entries) == 0 {
			return nil, fmt.Errorf("%w: driver %s", ErrNotFound, driverID)
		}
		statement.DriverType = models.DriverTypeUnknown
	}

	running := decimal.Zero
	statement.Lines = make([]StatementLine, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		effect := DriverBalanceEffect(entry)
		running = running.Add(effect)
		statement.Lines = append(statement.Lines, StatementLine{
			TransactionID:  entry.ID,
			Type:           entry.Type,
			Date:           entry.Date,
			ReservationID:  entry.ReservationID,
			PaymentMethod:  entry.PaymentMethod,
			Note:           entry.Note,
			Revenue:        entry.RevenueAmount,
			Expense:        entry.ExpenseAmount,
			Effect:         effect,
			RunningBalance: running,
		})
	}
	statement.RecomputedBalance = running

	if statement.CachedBalance != nil && !statement.CachedBalance.Equal(running) {
		statement.Mismatch = true
		statement.Warning = fmt.Sprintf("cached balance %s differs from ledger balance %s; run reconciliation",
			statement.CachedBalance.StringFixed(2), running.StringFixed(2))
		logger.Warn("[Reporting] Driver balance mismatch",
			"driver_id", driverID,
			"cached", statement.CachedBalance.StringFixed(2),
			"recomputed", running.StringFixed(2),
		)
	}
	return statement, nil
}

// ListTransactions pages through the ledger with filters
func (s *ReportingService) ListTransactions(ctx context.Context, filter repository.LedgerFilter) ([]models.LedgerTransaction, int64, error) {
	if filter.Type != "" && !models.ValidTransactionType(filter.Type) {
		return nil, 0, validationError("unknown transaction type %q", filter.Type)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, 0, validationError("from must be before to")
	}
	return s.repos.Ledger.List(ctx, filter)
}
