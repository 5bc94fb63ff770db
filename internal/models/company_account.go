package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompanyAccountID is the key of the singleton aggregate row
const CompanyAccountID uint = 1

// CompanyAccount is the materialized fold of every ledger entry.
// Writers update it through a version compare-and-swap.
type CompanyAccount struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	TotalRevenueToDate  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_revenue_to_date"`
	TotalExpensesToDate decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_expenses_to_date"`
	ReservationsRevenue decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"reservations_revenue"`
	DriverPayments      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"driver_payments"`
	DriverCollections   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"driver_collections"`
	ManualIncome        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"manual_income"`
	ManualExpenses      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"manual_expenses"`
	Version             int64           `gorm:"not null;default:1" json:"version"`
	LastUpdated         time.Time       `json:"last_updated"`
}

// TableName specifies the table name for GORM
func (CompanyAccount) TableName() string {
	return "company_accounts"
}

// NewCompanyAccount returns an empty aggregate
func NewCompanyAccount() *CompanyAccount {
	return &CompanyAccount{ID: CompanyAccountID, Version: 1}
}

// Net returns total revenue minus total expenses
func (a *CompanyAccount) Net() decimal.Decimal {
	return a.TotalRevenueToDate.Sub(a.TotalExpensesToDate)
}

// Apply folds one ledger entry into the aggregate. sign is +1 when the entry
// is written and -1 when a deletable entry is removed.
func (a *CompanyAccount) Apply(t *LedgerTransaction, sign int) {
	s := decimal.NewFromInt(int64(sign))
	revenue := t.RevenueAmount.Mul(s)
	expense := t.ExpenseAmount.Mul(s)

	a.TotalRevenueToDate = a.TotalRevenueToDate.Add(revenue)
	a.TotalExpensesToDate = a.TotalExpensesToDate.Add(expense)

	switch t.Type {
	case TransactionTypeReservationCompleted:
		a.ReservationsRevenue = a.ReservationsRevenue.Add(revenue)
	case TransactionTypeReservationReversal:
		// a reversal books the original revenue on the expense side
		a.ReservationsRevenue = a.ReservationsRevenue.Sub(expense)
	case TransactionTypeDriverPayment:
		a.DriverPayments = a.DriverPayments.Add(expense)
	case TransactionTypeDriverCollection:
		a.DriverCollections = a.DriverCollections.Add(revenue)
	case TransactionTypeManualIncome:
		a.ManualIncome = a.ManualIncome.Add(revenue)
	case TransactionTypeManualExpense:
		a.ManualExpenses = a.ManualExpenses.Add(expense)
	}
}

// SameTotals compares the money fields, ignoring version and timestamps
func (a *CompanyAccount) SameTotals(b *CompanyAccount) bool {
	return a.TotalRevenueToDate.Equal(b.TotalRevenueToDate) &&
		a.TotalExpensesToDate.Equal(b.TotalExpensesToDate) &&
		a.ReservationsRevenue.Equal(b.ReservationsRevenue) &&
		a.DriverPayments.Equal(b.DriverPayments) &&
		a.DriverCollections.Equal(b.DriverCollections) &&
		a.ManualIncome.Equal(b.ManualIncome) &&
		a.ManualExpenses.Equal(b.ManualExpenses)
}
