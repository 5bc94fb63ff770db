package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/metrics"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
)

// Report granularities
const (
	GranularityMonth = "month"
	GranularityYear  = "year"
)

const rebuildBatchSize = 500

// Totals is the revenue/expense fold of a group of entries
type Totals struct {
	Revenue          decimal.Decimal `json:"revenue"`
	Expenses         decimal.Decimal `json:"expenses"`
	Net              decimal.Decimal `json:"net"`
	TransactionCount int             `json:"transaction_count"`
}

func (t *Totals) add(entry *models.LedgerTransaction, sign int) {
	s := decimal.NewFromInt(int64(sign))
	t.Revenue = t.Revenue.Add(entry.RevenueAmount.Mul(s))
	t.Expenses = t.Expenses.Add(entry.ExpenseAmount.Mul(s))
	t.Net = t.Revenue.Sub(t.Expenses)
	t.TransactionCount += sign
}

// PeriodSummary is one calendar bucket of the ledger
type PeriodSummary struct {
	Period string    `json:"period"`
	Start  time.Time `json:"start"`
	Totals
}

// Breakdown groups totals under a dimension value (payment method, driver type)
type Breakdown struct {
	Key string `json:"key"`
	Totals
}

type projectionState struct {
	seen        map[string]struct{}
	months      map[string]*PeriodSummary
	years       map[string]*PeriodSummary
	methods     map[string]*Breakdown
	driverTypes map[string]*Breakdown
}

func newProjectionState() *projectionState {
	return &projectionState{
		seen:        make(map[string]struct{}),
		months:      make(map[string]*PeriodSummary),
		years:       make(map[string]*PeriodSummary),
		methods:     make(map[string]*Breakdown),
		driverTypes: make(map[string]*Breakdown),
	}
}

type projectionOp struct {
	entry models.LedgerTransaction
	sign  int
}

// LedgerProjection is the materialized reporting view. The ledger writer
// applies each committed entry once; readers get copies.
type LedgerProjection struct {
	mu        sync.RWMutex
	rebuildMu sync.Mutex
	loc       *time.Location
	state     *projectionState

	// ops applied while a rebuild scan runs
	pending  []projectionOp
	building bool
}

// NewLedgerProjection buckets periods in loc
func NewLedgerProjection(loc *time.Location) *LedgerProjection {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerProjection{loc: loc, state: newProjectionState()}
}

// Apply folds a committed entry (+1) or a deleted entry (-1). Applying the
// same entry twice with the same sign is a no-op.
func (p *LedgerProjection) Apply(entry *models.LedgerTransaction, sign int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.building {
		p.pending = append(p.pending, projectionOp{entry: *entry, sign: sign})
	}
	p.state.apply(p.loc, entry, sign)
	metrics.ProjectionEntries.Set(float64(len(p.state.seen)))
}

func (s *projectionState) apply(loc *time.Location, entry *models.LedgerTransaction, sign int) {
	_, seen := s.seen[entry.ID]
	if sign > 0 && seen || sign < 0 && !seen {
		return
	}
	if sign > 0 {
		s.seen[entry.ID] = struct{}{}
	} else {
		delete(s.seen, entry.ID)
	}

	date := entry.Date.In(loc)
	monthStart := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, loc)
	yearStart := time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, loc)
	addPeriod(s.months, monthStart.Format("2006-01"), monthStart, entry, sign)
	addPeriod(s.years, yearStart.Format("2006"), yearStart, entry, sign)

	if entry.PaymentMethod != nil {
		addBreakdown(s.methods, *entry.PaymentMethod, entry, sign)
	}
	if entry.DriverType != nil {
		addBreakdown(s.driverTypes, *entry.DriverType, entry, sign)
	}
}

func addPeriod(buckets map[string]*PeriodSummary, key string, start time.Time, entry *models.LedgerTransaction, sign int) {
	bucket, ok := buckets[key]
	if !ok {
		bucket = &PeriodSummary{Period: key, Start: start}
		buckets[key] = bucket
	}
	bucket.add(entry, sign)
	if bucket.TransactionCount <= 0 {
		delete(buckets, key)
	}
}

func addBreakdown(buckets map[string]*Breakdown, key string, entry *models.LedgerTransaction, sign int) {
	bucket, ok := buckets[key]
	if !ok {
		bucket = &Breakdown{Key: key}
		buckets[key] = bucket
	}
	bucket.add(entry, sign)
	if bucket.TransactionCount <= 0 {
		delete(buckets, key)
	}
}

// Rebuild replaces the view with a fresh fold of the whole ledger. Writes
// committed while the scan runs are replayed onto the new state.
func (p *LedgerProjection) Rebuild(ctx context.Context, ledger repository.LedgerRepository) error {
	p.rebuildMu.Lock()
	defer p.rebuildMu.Unlock()

	p.mu.Lock()
	p.building = true
	p.pending = nil
	p.mu.Unlock()

	fresh := newProjectionState()
	err := ledger.EachBatch(ctx, rebuildBatchSize, func(batch []models.LedgerTransaction) error {
		for i := range batch {
			fresh.apply(p.loc, &batch[i], 1)
		}
		return nil
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.building = false
	pending := p.pending
	p.pending = nil
	if err != nil {
		return err
	}

	for i := range pending {
		fresh.apply(p.loc, &pending[i].entry, pending[i].sign)
	}
	p.state = fresh
	metrics.ProjectionEntries.Set(float64(len(p.state.seen)))
	return nil
}

// Periods returns the buckets of a granularity, most recent first
func (p *LedgerProjection) Periods(granularity string) ([]PeriodSummary, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var buckets map[string]*PeriodSummary
	switch granularity {
	case GranularityMonth:
		buckets = p.state.months
	case GranularityYear:
		buckets = p.state.years
	default:
		return nil, validationError("granularity must be %q or %q", GranularityMonth, GranularityYear)
	}

	out := make([]PeriodSummary, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

// ByPaymentMethod returns totals of reservation entries per payment method
func (p *LedgerProjection) ByPaymentMethod() []Breakdown {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedBreakdowns(p.state.methods)
}

// ByDriverType returns totals of driver-attributed entries per driver type
func (p *LedgerProjection) ByDriverType() []Breakdown {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedBreakdowns(p.state.driverTypes)
}

// Len returns how many entries the view holds
func (p *LedgerProjection) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.state.seen)
}

func sortedBreakdowns(buckets map[string]*Breakdown) []Breakdown {
	out := make([]Breakdown, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
