package services

import (
	"testing"
	"time"

	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapToLedger(t *testing.T) {
	split := CommissionSplit{TotalPrice: dec("150"), DriverAmount: dec("127.50"), CompanyAmount: dec("22.50")}

	tests := []struct {
		method      string
		wantRevenue string
		wantExpense string
	}{
		{models.PaymentMethodCash, "22.50", "0"},
		{models.PaymentMethodCard, "150", "127.50"},
		{models.PaymentMethodBankTransfer, "150", "127.50"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			amounts, err := MapToLedger(tt.method, split)
			require.NoError(t, err)
			assert.True(t, amounts.Revenue.Equal(dec(tt.wantRevenue)))
			assert.True(t, amounts.Expense.Equal(dec(tt.wantExpense)))
			assert.True(t, amounts.Net().Equal(dec("22.50")), "net is the company share for every method")
		})
	}

	_, err := MapToLedger("crypto", split)
	assert.ErrorIs(t, err, ErrValidation)
}

func entryWith(txType, method string, revenue, expense string) *models.LedgerTransaction {
	entry := models.NewLedgerTransaction(txType, models.LedgerAmounts{Revenue: dec(revenue), Expense: dec(expense)}, time.Now())
	if method != "" {
		entry.PaymentMethod = models.StringPtr(method)
	}
	return entry
}

func TestDriverBalanceEffect(t *testing.T) {
	tests := []struct {
		name  string
		entry *models.LedgerTransaction
		want  string
	}{
		{"cash trip, driver owes commission", entryWith(models.TransactionTypeReservationCompleted, models.PaymentMethodCash, "40", "0"), "-40"},
		{"card trip, company owes driver", entryWith(models.TransactionTypeReservationCompleted, models.PaymentMethodCard, "120", "80"), "80"},
		{"bank trip, company owes driver", entryWith(models.TransactionTypeReservationCompleted, models.PaymentMethodBankTransfer, "120", "80"), "80"},
		{"payment to driver", entryWith(models.TransactionTypeDriverPayment, "", "0", "25"), "-25"},
		{"collection from driver", entryWith(models.TransactionTypeDriverCollection, "", "80", "0"), "80"},
		{"manual income", entryWith(models.TransactionTypeManualIncome, "", "10", "0"), "0"},
		{"manual expense", entryWith(models.TransactionTypeManualExpense, "", "0", "10"), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, DriverBalanceEffect(tt.entry).Equal(dec(tt.want)), "got %s", DriverBalanceEffect(tt.entry))
		})
	}
}

func TestDriverBalanceEffect_ReversalNegatesOriginal(t *testing.T) {
	for _, method := range []string{models.PaymentMethodCash, models.PaymentMethodCard, models.PaymentMethodBankTransfer} {
		original := entryWith(models.TransactionTypeReservationCompleted, method, "120", "80")
		if method == models.PaymentMethodCash {
			original = entryWith(models.TransactionTypeReservationCompleted, method, "40", "0")
		}

		reversal := models.NewLedgerTransaction(models.TransactionTypeReservationReversal, ReverseAmounts(original), time.Now())
		reversal.PaymentMethod = original.PaymentMethod

		assert.True(t, DriverBalanceEffect(reversal).Equal(DriverBalanceEffect(original).Neg()), method)
		assert.True(t, reversal.NetAmount.Equal(original.NetAmount.Neg()), method)
		assert.Equal(t, -TripDelta(original), TripDelta(reversal))
	}
}
