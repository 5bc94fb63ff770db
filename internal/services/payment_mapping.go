package services

import (
	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/models"
)

// MapToLedger turns a split into ledger amounts according to who holds the money.
//
// cash: the driver collected the fare and keeps their share; the company books
// only its commission as revenue (a receivable from the driver) and no expense.
//
// card / bank_transfer: the company received the full price and owes the
// driver their share, booked as expense.
func MapToLedger(method string, split CommissionSplit) (models.LedgerAmounts, error) {
	switch method {
	case models.PaymentMethodCash:
		return models.LedgerAmounts{
			Revenue: split.CompanyAmount,
			Expense: decimal.Zero,
		}, nil
	case models.PaymentMethodCard, models.PaymentMethodBankTransfer:
		return models.LedgerAmounts{
			Revenue: split.TotalPrice,
			Expense: split.DriverAmount,
		}, nil
	}
	return models.LedgerAmounts{}, validationError("unsupported payment_method %q", method)
}

// ReverseAmounts swaps the sides of an entry so the compensation nets to -original
func ReverseAmounts(original *models.LedgerTransaction) models.LedgerAmounts {
	return models.LedgerAmounts{
		Revenue: original.ExpenseAmount,
		Expense: original.RevenueAmount,
	}
}

// DriverBalanceEffect is how much an entry moves its manual driver's balance.
// Positive means the company owes the driver more.
func DriverBalanceEffect(t *models.LedgerTransaction) decimal.Decimal {
	method := ""
	if t.PaymentMethod != nil {
		method = *t.PaymentMethod
	}

	switch t.Type {
	case models.TransactionTypeReservationCompleted:
		if method == models.PaymentMethodCash {
			// driver kept the cash and owes the commission
			return t.RevenueAmount.Neg()
		}
		return t.ExpenseAmount
	case models.TransactionTypeReservationReversal:
		// sides are swapped relative to the completed entry
		if method == models.PaymentMethodCash {
			return t.ExpenseAmount
		}
		return t.RevenueAmount.Neg()
	case models.TransactionTypeDriverPayment:
		return t.ExpenseAmount.Neg()
	case models.TransactionTypeDriverCollection:
		return t.RevenueAmount
	}
	return decimal.Zero
}

// TripDelta is how an entry changes a manual driver's completed trip counter
func TripDelta(t *models.LedgerTransaction) int {
	switch t.Type {
	case models.TransactionTypeReservationCompleted:
		return 1
	case models.TransactionTypeReservationReversal:
		return -1
	}
	return 0
}
