package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/config"
	"github.com/sjperalta/transfer-ledger/internal/jobs"
	"github.com/sjperalta/transfer-ledger/internal/metrics"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"github.com/sjperalta/transfer-ledger/internal/statemachine"
	"github.com/sjperalta/transfer-ledger/pkg/logger"
	"gorm.io/gorm"
)

const accountLockKey = "company-account"

// AppendResult is the outcome of a ledger write
type AppendResult struct {
	Transaction *models.LedgerTransaction `json:"transaction"`
	Duplicate   bool                      `json:"duplicate"`
	Split       *CommissionSplit          `json:"split,omitempty"`
	Anomaly     *models.LedgerAnomaly     `json:"anomaly,omitempty"`
}

// Manual entry types as operators send them
const (
	ManualEntryIncome  = "income"
	ManualEntryExpense = "expense"
)

// ManualLedgerEntry is an operator-entered income or expense. Type accepts
// the short form (income, expense) or the stored transaction type.
type ManualLedgerEntry struct {
	Type        string          `json:"type" binding:"required,oneof=income expense manual_income manual_expense"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category" binding:"required"`
	Description string          `json:"description"`
	Note        string          `json:"note"`
	Date        *time.Time      `json:"date"`
}

// LedgerService is the only writer of ledger entries and the company aggregate
type LedgerService struct {
	repos      *repository.Repositories
	uow        repository.UnitOfWork
	calc       *CommissionCalculator
	projection *LedgerProjection
	worker     *jobs.Worker
	retry      retryPolicy
	locks      *keyedMutex
	now        func() time.Time
}

// NewLedgerService creates the ledger writer. worker may be nil, in which
// case side effects run inline.
func NewLedgerService(
	repos *repository.Repositories,
	uow repository.UnitOfWork,
	calc *CommissionCalculator,
	projection *LedgerProjection,
	worker *jobs.Worker,
	policy config.LedgerPolicy,
) *LedgerService {
	return &LedgerService{
		repos:      repos,
		uow:        uow,
		calc:       calc,
		projection: projection,
		worker:     worker,
		retry:      retryPolicy{maxAttempts: policy.MaxAttempts, baseBackoff: policy.BaseBackoff},
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// Append validates and writes one entry together with the company aggregate
// and, for manual-driver entries, the driver balance.
func (s *LedgerService) Append(ctx context.Context, entry *models.LedgerTransaction) (*AppendResult, error) {
	return s.appendWith(ctx, entry, nil)
}

// appendWith runs within inside the same transaction, after the entry row is written
func (s *LedgerService) appendWith(ctx context.Context, entry *models.LedgerTransaction, within func(repos *repository.Repositories) error) (*AppendResult, error) {
	if err := entry.Validate(); err != nil {
		return nil, validationError("%v", err)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	start := time.Now()
	defer func() { metrics.LedgerWriteDuration.Observe(time.Since(start).Seconds()) }()

	if entry.IsManualDriverScoped() {
		unlock := s.locks.Lock("driver:" + *entry.DriverID)
		defer unlock()
	}
	unlock := s.locks.Lock(accountLockKey)
	defer unlock()

	var result *AppendResult
	err := s.retry.run(ctx, entry.Type, func() error {
		result = nil
		return s.uow.Do(ctx, func(repos *repository.Repositories) error {
			if entry.DedupKey != nil {
				existing, err := repos.Ledger.FindByDedupKey(ctx, *entry.DedupKey)
				if err != nil {
					return err
				}
				if existing != nil {
					result = &AppendResult{Transaction: existing, Duplicate: true}
					return nil
				}
			}

			entry.BalanceBefore = decimal.NullDecimal{}
			entry.BalanceAfter = decimal.NullDecimal{}
			if entry.IsManualDriverScoped() {
				if err := applyDriverEffect(ctx, repos, entry); err != nil {
					return err
				}
			}

			if err := repos.Ledger.Create(ctx, entry); err != nil {
				return err
			}
			if within != nil {
				if err := within(repos); err != nil {
					return err
				}
			}

			account, err := repos.Account.Get(ctx)
			if err != nil {
				return err
			}
			account.Apply(entry, 1)
			if err := repos.Account.CompareAndSwap(ctx, account); err != nil {
				return err
			}

			result = &AppendResult{Transaction: entry}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		metrics.LedgerDuplicates.WithLabelValues(entry.Type).Inc()
		logger.Info("[Ledger] Duplicate event ignored", "type", entry.Type, "dedup_key", *entry.DedupKey, "transaction_id", result.Transaction.ID)
		return result, nil
	}

	s.projection.Apply(entry, 1)
	metrics.LedgerWrites.WithLabelValues(entry.Type).Inc()
	logger.Info("[Ledger] Entry written",
		"transaction_id", entry.ID,
		"type", entry.Type,
		"revenue", entry.RevenueAmount.StringFixed(2),
		"expense", entry.ExpenseAmount.StringFixed(2),
	)
	return result, nil
}

// applyDriverEffect moves the manual driver's balance and stamps the entry
func applyDriverEffect(ctx context.Context, repos *repository.Repositories, entry *models.LedgerTransaction) error {
	driver, err := repos.Driver.FindManualDriver(ctx, *entry.DriverID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: manual driver %s", ErrNotFound, *entry.DriverID)
	}
	if err != nil {
		return err
	}

	before := driver.Balance
	driver.Balance = models.RoundCurrency(before.Add(DriverBalanceEffect(entry)))
	driver.CompletedTrips += TripDelta(entry)
	if driver.CompletedTrips < 0 {
		driver.CompletedTrips = 0
	}

	entry.BalanceBefore = models.NullAmount(before)
	entry.BalanceAfter = models.NullAmount(driver.Balance)
	return repos.Driver.SwapManualDriverBalance(ctx, driver)
}

// RecordReservationCompleted books a completed trip exactly once
func (s *LedgerService) RecordReservationCompleted(ctx context.Context, event *models.ReservationCompletedEvent) (*AppendResult, error) {
	event.ReservationID = strings.TrimSpace(event.ReservationID)
	if event.ReservationID == "" {
		return nil, validationError("reservation_id is required")
	}
	if err := models.CheckLength("reservation_id", event.ReservationID, models.MaxReservationIDLength); err != nil {
		return nil, validationError("%v", err)
	}
	if !models.ValidPaymentMethod(event.PaymentMethod) {
		return nil, validationError("unsupported payment_method %q", event.PaymentMethod)
	}
	ref, err := event.DriverRef()
	if err != nil {
		return nil, validationError("%v", err)
	}

	dedupKey := models.ReservationDedupKey(event.ReservationID, models.TransactionTypeReservationCompleted)
	existing, err := s.repos.Ledger.FindByDedupKey(ctx, dedupKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.LedgerDuplicates.WithLabelValues(existing.Type).Inc()
		return &AppendResult{Transaction: existing, Duplicate: true}, nil
	}

	lookup := func(string) (models.SystemDriver, bool) { return models.SystemDriver{}, false }
	if sys, ok := ref.(models.SystemDriverRef); ok {
		driver, err := s.repos.Driver.FindSystemDriver(ctx, sys.ID)
		if err != nil {
			return nil, err
		}
		if driver != nil {
			lookup = func(id string) (models.SystemDriver, bool) {
				return *driver, id == driver.ID
			}
		}
	}

	split, err := s.calc.Split(event, lookup)
	var unknown *UnknownDriverError
	if errors.As(err, &unknown) {
		split = UnattributedSplit(event.TotalPrice)
	} else if err != nil {
		return nil, err
	}

	amounts, err := MapToLedger(event.PaymentMethod, split)
	if err != nil {
		return nil, err
	}

	completedAt := event.CompletedAt
	if completedAt.IsZero() {
		completedAt = s.now()
	}

	entry := models.NewLedgerTransaction(models.TransactionTypeReservationCompleted, amounts, completedAt)
	entry.ID = uuid.NewString()
	entry.ReservationID = models.StringPtr(event.ReservationID)
	entry.PaymentMethod = models.StringPtr(event.PaymentMethod)
	entry.DriverType = models.StringPtr(split.DriverType)
	entry.DedupKey = models.StringPtr(dedupKey)

	switch r := ref.(type) {
	case models.ManualDriverRef:
		driver, err := s.ensureManualDriver(ctx, r)
		if err != nil {
			return nil, err
		}
		entry.DriverID = models.StringPtr(driver.ID)
		entry.Note = fmt.Sprintf("%s trip by manual driver %s", event.PaymentMethod, driver.Name)
	case models.SystemDriverRef:
		entry.DriverID = models.StringPtr(r.ID)
		entry.Note = fmt.Sprintf("%s trip by driver %s", event.PaymentMethod, r.ID)
	}

	var anomaly *models.LedgerAnomaly
	result, err := s.appendWith(ctx, entry, func(repos *repository.Repositories) error {
		if err := completeReservation(ctx, repos, event, entry, split); err != nil {
			return err
		}
		anomaly = nil
		if unknown != nil {
			anomaly = &models.LedgerAnomaly{
				Kind:          models.AnomalyKindUnknownDriver,
				ReservationID: event.ReservationID,
				TransactionID: entry.ID,
				DriverRef:     unknown.DriverID,
				Amount:        split.TotalPrice,
				Details:       fmt.Sprintf("driver %q not found; full price booked as company revenue", unknown.DriverID),
			}
			return repos.Anomaly.Create(ctx, anomaly)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		return result, nil
	}

	result.Split = &split
	if anomaly != nil {
		result.Anomaly = anomaly
		s.reportAnomaly(anomaly)
	}
	return result, nil
}

func completeReservation(ctx context.Context, repos *repository.Repositories, event *models.ReservationCompletedEvent, entry *models.LedgerTransaction, split CommissionSplit) error {
	record, err := repos.Reservation.FindByID(ctx, event.ReservationID)
	if err != nil {
		return err
	}
	if record == nil {
		record = &models.ReservationRecord{ID: event.ReservationID, Status: models.ReservationStatusPending}
	}
	record.TotalPrice = split.TotalPrice
	record.PaymentMethod = event.PaymentMethod
	record.DriverID = entry.DriverID
	record.DriverType = split.DriverType

	if err := statemachine.NewReservationFSM(record).Complete(ctx, entry.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return repos.Reservation.Save(ctx, record)
}

// ensureManualDriver finds the external driver by phone or registers them
func (s *LedgerService) ensureManualDriver(ctx context.Context, ref models.ManualDriverRef) (*models.ManualDriver, error) {
	driver, err := s.repos.Driver.FindManualDriverByPhone(ctx, ref.Phone)
	if err != nil {
		return nil, err
	}
	if driver != nil {
		return driver, nil
	}

	name := ref.Name
	if name == "" {
		name = ref.Phone
	}
	driver = &models.ManualDriver{
		ID:          uuid.NewString(),
		Name:        name,
		Phone:       ref.Phone,
		PlateNumber: ref.PlateNumber,
		Version:     1,
	}
	err = s.repos.Driver.CreateManualDriver(ctx, driver)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// registered concurrently by another event
		return s.repos.Driver.FindManualDriverByPhone(ctx, ref.Phone)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("[Ledger] Registered manual driver", "driver_id", driver.ID, "phone", driver.Phone)
	return driver, nil
}

func (s *LedgerService) reportAnomaly(anomaly *models.LedgerAnomaly) {
	metrics.LedgerAnomalies.WithLabelValues(anomaly.Kind).Inc()

	job := func(ctx context.Context) error {
		logger.Warn("[Ledger] Entry booked under fallback rule, review required",
			"anomaly_id", anomaly.ID,
			"kind", anomaly.Kind,
			"reservation_id", anomaly.ReservationID,
			"driver_ref", anomaly.DriverRef,
		)
		sentry.CaptureMessage(fmt.Sprintf("ledger anomaly %s: reservation %s driver %q",
			anomaly.Kind, anomaly.ReservationID, anomaly.DriverRef))
		return nil
	}
	if s.worker == nil {
		_ = job(context.Background())
		return
	}
	s.worker.EnqueueAsync("report_anomaly", job)
}

// ReservationHistory is a reservation's ledger lifecycle
type ReservationHistory struct {
	Reservation      *models.ReservationRecord  `json:"reservation"`
	Entries          []models.LedgerTransaction `json:"entries"`
	Reversible       bool                       `json:"reversible"`
	AvailableActions []string                   `json:"available_actions"`
}

// ReservationHistory returns the reservation record with every entry booked for it, oldest first
func (s *LedgerService) ReservationHistory(ctx context.Context, reservationID string) (*ReservationHistory, error) {
	record, err := s.repos.Reservation.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: reservation %s", ErrNotFound, reservationID)
	}

	entries, err := s.repos.Ledger.FindByReservationID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	machine := statemachine.NewReservationFSM(record)
	actions := machine.AvailableTransitions()
	if actions == nil {
		actions = []string{}
	}
	sort.Strings(actions)

	return &ReservationHistory{
		Reservation:      record,
		Entries:          entries,
		Reversible:       machine.Can(statemachine.EventReverse),
		AvailableActions: actions,
	}, nil
}

// ReverseReservation writes the compensating entry of a completed reservation
func (s *LedgerService) ReverseReservation(ctx context.Context, reservationID, note string, actorID *uint) (*AppendResult, error) {
	original, err := s.repos.Ledger.FindByDedupKey(ctx, models.ReservationDedupKey(reservationID, models.TransactionTypeReservationCompleted))
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, fmt.Errorf("%w: no completed entry for reservation %s", ErrNotFound, reservationID)
	}

	entry := models.NewLedgerTransaction(models.TransactionTypeReservationReversal, ReverseAmounts(original), s.now())
	entry.ID = uuid.NewString()
	entry.ReservationID = original.ReservationID
	entry.DriverID = original.DriverID
	entry.DriverType = original.DriverType
	entry.PaymentMethod = original.PaymentMethod
	entry.DedupKey = models.StringPtr(models.ReservationDedupKey(reservationID, models.TransactionTypeReservationReversal))
	entry.CreatedByUserID = actorID
	entry.Note = note
	if entry.Note == "" {
		entry.Note = "reversal of " + original.ID
	}

	return s.appendWith(ctx, entry, func(repos *repository.Repositories) error {
		record, err := repos.Reservation.FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if record == nil {
			record = &models.ReservationRecord{
				ID:            reservationID,
				Status:        models.ReservationStatusCompleted,
				TotalPrice:    original.RevenueAmount,
				PaymentMethod: *original.PaymentMethod,
				DriverID:      original.DriverID,
				DriverType:    *original.DriverType,
			}
		}
		if err := statemachine.NewReservationFSM(record).Reverse(ctx, entry.Date); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		if err := repos.Reservation.Save(ctx, record); err != nil {
			return err
		}
		return repos.Audit.Create(ctx, newAuditLog(actorID, models.AuditActionReverse, "reservation", reservationID,
			describeAmount("compensated "+original.ID, entry)))
	})
}

// CreateManualEntry books an operator-entered income or expense
func (s *LedgerService) CreateManualEntry(ctx context.Context, input ManualLedgerEntry, actorID *uint) (*AppendResult, error) {
	if !input.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, validationError("category is required")
	}
	if err := models.CheckLength("category", category, models.MaxCategoryLength); err != nil {
		return nil, validationError("%v", err)
	}

	var txType string
	var amounts models.LedgerAmounts
	switch input.Type {
	case ManualEntryIncome, models.TransactionTypeManualIncome:
		txType = models.TransactionTypeManualIncome
		amounts.Revenue = input.Amount
	case ManualEntryExpense, models.TransactionTypeManualExpense:
		txType = models.TransactionTypeManualExpense
		amounts.Expense = input.Amount
	default:
		return nil, validationError("type must be %s or %s", ManualEntryIncome, ManualEntryExpense)
	}

	note := strings.TrimSpace(input.Description)
	if note == "" {
		note = strings.TrimSpace(input.Note)
	}

	date := s.now()
	if input.Date != nil && !input.Date.IsZero() {
		date = *input.Date
	}

	entry := models.NewLedgerTransaction(txType, amounts, date)
	entry.ID = uuid.NewString()
	entry.Category = models.StringPtr(category)
	entry.Note = note
	entry.CreatedByUserID = actorID
	return s.Append(ctx, entry)
}

// DeleteManualEntry removes an operator entry and its aggregate contribution
func (s *LedgerService) DeleteManualEntry(ctx context.Context, id string, actorID *uint) (*models.LedgerTransaction, error) {
	unlock := s.locks.Lock(accountLockKey)
	defer unlock()

	var deleted *models.LedgerTransaction
	err := s.retry.run(ctx, "delete_manual_entry", func() error {
		return s.uow.Do(ctx, func(repos *repository.Repositories) error {
			entry, err := repos.Ledger.FindByID(ctx, id)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: ledger entry %s", ErrNotFound, id)
			}
			if err != nil {
				return err
			}
			if !models.IsManualEntryType(entry.Type) {
				return fmt.Errorf("%w: %s entries are immutable", ErrImmutableEntry, entry.Type)
			}

			if err := repos.Ledger.Delete(ctx, id); err != nil {
				return err
			}
			account, err := repos.Account.Get(ctx)
			if err != nil {
				return err
			}
			account.Apply(entry, -1)
			if err := repos.Account.CompareAndSwap(ctx, account); err != nil {
				return err
			}
			if err := repos.Audit.Create(ctx, newAuditLog(actorID, models.AuditActionDeleteManualEntry, "ledger_transaction", id,
				describeAmount("deleted", entry))); err != nil {
				return err
			}
			deleted = entry
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.projection.Apply(deleted, -1)
	logger.Info("[Ledger] Manual entry deleted", "transaction_id", id, "type", deleted.Type)
	return deleted, nil
}

// withWriteLock blocks in-process ledger writers while fn runs
func (s *LedgerService) withWriteLock(fn func() error) error {
	unlock := s.locks.Lock(accountLockKey)
	defer unlock()
	return fn()
}
