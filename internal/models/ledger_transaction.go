package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger transaction type constants
const (
	TransactionTypeReservationCompleted = "reservation_completed"
	TransactionTypeReservationReversal  = "reservation_reversal"
	TransactionTypeDriverPayment        = "driver_payment"
	TransactionTypeDriverCollection     = "driver_collection"
	TransactionTypeManualIncome         = "manual_income"
	TransactionTypeManualExpense        = "manual_expense"
)

// ValidTransactionType reports whether t is a known ledger type
func ValidTransactionType(t string) bool {
	switch t {
	case TransactionTypeReservationCompleted, TransactionTypeReservationReversal,
		TransactionTypeDriverPayment, TransactionTypeDriverCollection,
		TransactionTypeManualIncome, TransactionTypeManualExpense:
		return true
	}
	return false
}

// IsManualEntryType reports whether entries of this type may be deleted by an operator
func IsManualEntryType(t string) bool {
	return t == TransactionTypeManualIncome || t == TransactionTypeManualExpense
}

// LedgerTransaction is one immutable money-moving event
type LedgerTransaction struct {
	ID              string              `gorm:"primaryKey;size:36" json:"id"`
	Type            string              `gorm:"size:32;not null;index" json:"type"`
	RevenueAmount   decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"revenue_amount"`
	ExpenseAmount   decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"expense_amount"`
	NetAmount       decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"net_amount"`
	Date            time.Time           `gorm:"not null;index" json:"date"`
	ReservationID   *string             `gorm:"size:64;index" json:"reservation_id,omitempty"`
	DriverID        *string             `gorm:"size:64;index" json:"driver_id,omitempty"`
	DriverType      *string             `gorm:"size:16;index" json:"driver_type,omitempty"`
	PaymentMethod   *string             `gorm:"size:16;index" json:"payment_method,omitempty"`
	Category        *string             `gorm:"size:64;index" json:"category,omitempty"`
	Note            string              `gorm:"type:text" json:"note"`
	BalanceBefore   decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"balance_before"`
	BalanceAfter    decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"balance_after"`
	DedupKey        *string             `gorm:"size:128;uniqueIndex" json:"-"`
	CreatedByUserID *uint               `json:"created_by_user_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// TableName specifies the table name for GORM
func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}

// Validate checks the entry-level invariants before anything is written
func (t *LedgerTransaction) Validate() error {
	if !ValidTransactionType(t.Type) {
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	if t.RevenueAmount.IsNegative() || t.ExpenseAmount.IsNegative() {
		return fmt.Errorf("amounts must be non-negative")
	}
	if !t.NetAmount.Equal(t.RevenueAmount.Sub(t.ExpenseAmount)) {
		return fmt.Errorf("net amount %s does not equal revenue %s minus expense %s",
			t.NetAmount, t.RevenueAmount, t.ExpenseAmount)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("date is required")
	}

	switch t.Type {
	case TransactionTypeReservationCompleted, TransactionTypeReservationReversal:
		if t.ReservationID == nil || *t.ReservationID == "" {
			return fmt.Errorf("reservation_id is required for %s", t.Type)
		}
		if t.PaymentMethod == nil || !ValidPaymentMethod(*t.PaymentMethod) {
			return fmt.Errorf("a valid payment_method is required for %s", t.Type)
		}
		// card and bank transfer book the full price; only a cash trip may carry a zero company share
		if *t.PaymentMethod != PaymentMethodCash && t.RevenueAmount.Add(t.ExpenseAmount).IsZero() {
			return fmt.Errorf("%s entry for %s must move a non-zero amount", t.Type, *t.PaymentMethod)
		}
	case TransactionTypeDriverPayment, TransactionTypeDriverCollection:
		if t.DriverID == nil || *t.DriverID == "" {
			return fmt.Errorf("driver_id is required for %s", t.Type)
		}
		if t.RevenueAmount.Add(t.ExpenseAmount).IsZero() {
			return fmt.Errorf("amount must be greater than zero")
		}
	case TransactionTypeManualIncome, TransactionTypeManualExpense:
		if t.Category == nil || *t.Category == "" {
			return fmt.Errorf("category is required for %s", t.Type)
		}
		if t.RevenueAmount.Add(t.ExpenseAmount).IsZero() {
			return fmt.Errorf("amount must be greater than zero")
		}
	}
	return nil
}

// IsManualDriverScoped reports whether the entry moves a manual driver's balance
func (t *LedgerTransaction) IsManualDriverScoped() bool {
	return t.DriverID != nil && t.DriverType != nil && *t.DriverType == DriverTypeManual
}

// LedgerAmounts is the revenue/expense pair a money event books
type LedgerAmounts struct {
	Revenue decimal.Decimal `json:"revenue"`
	Expense decimal.Decimal `json:"expense"`
}

// Net returns revenue minus expense
func (a LedgerAmounts) Net() decimal.Decimal {
	return a.Revenue.Sub(a.Expense)
}

// NewLedgerTransaction builds an entry with net derived from the amounts
func NewLedgerTransaction(txType string, amounts LedgerAmounts, date time.Time) *LedgerTransaction {
	revenue := RoundCurrency(amounts.Revenue)
	expense := RoundCurrency(amounts.Expense)
	return &LedgerTransaction{
		Type:          txType,
		RevenueAmount: revenue,
		ExpenseAmount: expense,
		NetAmount:     revenue.Sub(expense),
		Date:          date,
	}
}

// ReservationDedupKey identifies the single entry of a type for a reservation
func ReservationDedupKey(reservationID, txType string) string {
	return reservationID + ":" + txType
}

// StringPtr is a helper for the optional string columns
func StringPtr(s string) *string {
	return &s
}
