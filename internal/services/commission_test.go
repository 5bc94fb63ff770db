package services

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupOf(drivers ...models.SystemDriver) DriverLookup {
	return func(id string) (models.SystemDriver, bool) {
		for _, d := range drivers {
			if d.ID == id {
				return d, true
			}
		}
		return models.SystemDriver{}, false
	}
}

func TestCommissionCalculator_Split(t *testing.T) {
	calc := NewCommissionCalculator(decimal.NewFromInt(15))
	drivers := lookupOf(
		models.SystemDriver{ID: "D1", Name: "Luis"},
		models.SystemDriver{ID: "D2", Name: "Ana", CommissionRate: models.NullAmount(decimal.NewFromInt(20))},
	)

	tests := []struct {
		name        string
		event       *models.ReservationCompletedEvent
		wantCompany string
		wantDriver  string
		wantType    string
	}{
		{
			name:        "system driver with default rate",
			event:       systemEvent("R1", models.PaymentMethodCard, "150", "D1", testTime),
			wantCompany: "22.50",
			wantDriver:  "127.50",
			wantType:    models.DriverTypeSystem,
		},
		{
			name:        "system driver with stored rate",
			event:       systemEvent("R2", models.PaymentMethodCard, "100", "D2", testTime),
			wantCompany: "20",
			wantDriver:  "80",
			wantType:    models.DriverTypeSystem,
		},
		{
			name:        "banker's rounding on the company side",
			event:       systemEvent("R3", models.PaymentMethodCash, "10.30", "D1", testTime),
			wantCompany: "1.54",
			wantDriver:  "8.76",
			wantType:    models.DriverTypeSystem,
		},
		{
			name:        "manual driver agreed price",
			event:       manualEvent("R4", models.PaymentMethodCash, "120", "80", "+50411112222", testTime),
			wantCompany: "40",
			wantDriver:  "80",
			wantType:    models.DriverTypeManual,
		},
		{
			name:        "manual driver keeps the whole fare",
			event:       manualEvent("R5", models.PaymentMethodCard, "50", "50", "+50411112222", testTime),
			wantCompany: "0",
			wantDriver:  "50",
			wantType:    models.DriverTypeManual,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := calc.Split(tt.event, drivers)
			require.NoError(t, err)
			assert.True(t, split.CompanyAmount.Equal(dec(tt.wantCompany)), "company %s", split.CompanyAmount)
			assert.True(t, split.DriverAmount.Equal(dec(tt.wantDriver)), "driver %s", split.DriverAmount)
			assert.True(t, split.CompanyAmount.Add(split.DriverAmount).Equal(split.TotalPrice))
			assert.Equal(t, tt.wantType, split.DriverType)
		})
	}
}

func TestCommissionCalculator_Rejections(t *testing.T) {
	calc := NewCommissionCalculator(decimal.NewFromInt(15))
	drivers := lookupOf(models.SystemDriver{ID: "D9", CommissionRate: models.NullAmount(decimal.NewFromInt(120))})

	_, err := calc.Split(manualEvent("R1", models.PaymentMethodCash, "100", "120", "+504", testTime), drivers)
	assert.ErrorIs(t, err, ErrValidation, "agreed price above total")

	_, err = calc.Split(manualEvent("R1", models.PaymentMethodCash, "100", "-1", "+504", testTime), drivers)
	assert.ErrorIs(t, err, ErrValidation, "negative agreed price")

	_, err = calc.Split(systemEvent("R1", models.PaymentMethodCash, "0", "D1", testTime), drivers)
	assert.ErrorIs(t, err, ErrValidation, "zero total")

	_, err = calc.Split(systemEvent("R1", models.PaymentMethodCard, "0.004", "D1", testTime), drivers)
	assert.ErrorIs(t, err, ErrValidation, "total rounds to zero")

	_, err = calc.Split(systemEvent("R1", models.PaymentMethodCard, "0.005", "D1", testTime), drivers)
	assert.ErrorIs(t, err, ErrValidation, "half a cent rounds to even zero")

	_, err = calc.Split(systemEvent("R1", models.PaymentMethodCash, "10", "D9", testTime), drivers)
	assert.ErrorIs(t, err, ErrValidation, "rate above 100")

	_, err = calc.Split(systemEvent("R1", models.PaymentMethodCash, "10", "", testTime), drivers)
	assert.ErrorIs(t, err, ErrValidation, "missing driver id")

	_, err = calc.Split(systemEvent("R1", models.PaymentMethodCash, "10", "ghost", testTime), drivers)
	assert.ErrorIs(t, err, ErrUnknownDriver)
	var unknown *UnknownDriverError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "ghost", unknown.DriverID)
}

func TestCommissionCalculator_SplitInvariantRandomized(t *testing.T) {
	calc := NewCommissionCalculator(decimal.NewFromInt(15))
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		total := decimal.New(rng.Int63n(10_000_000)+1, -2)
		rate := decimal.New(rng.Int63n(10_001), -2)
		drivers := lookupOf(models.SystemDriver{ID: "D", CommissionRate: models.NullAmount(rate)})

		split, err := calc.Split(systemEvent("R", models.PaymentMethodCard, total.String(), "D", testTime), drivers)
		require.NoError(t, err)
		require.True(t, split.DriverAmount.Add(split.CompanyAmount).Equal(total), "total %s rate %s", total, rate)
		require.False(t, split.CompanyAmount.IsNegative())
		require.False(t, split.DriverAmount.IsNegative())
		require.True(t, split.CompanyAmount.Equal(split.CompanyAmount.Round(2)))

		agreed := decimal.New(rng.Int63n(total.Mul(decimal.NewFromInt(100)).IntPart()+1), -2)
		manual, err := calc.Split(manualEvent("R", models.PaymentMethodCash, total.String(), agreed.String(), "+504", testTime), nil)
		require.NoError(t, err)
		require.True(t, manual.DriverAmount.Add(manual.CompanyAmount).Equal(total))
	}
}

func TestCommissionCalculator_SubCentTotalRoundsUp(t *testing.T) {
	calc := NewCommissionCalculator(decimal.NewFromInt(15))

	split, err := calc.Split(manualEvent("R1", models.PaymentMethodCard, "0.006", "0", "+504", testTime), nil)
	require.NoError(t, err)
	assert.Equal(t, "0.01", split.TotalPrice.StringFixed(2))
	assert.Equal(t, models.DriverTypeManual, split.DriverType)
}

func TestUnattributedSplit(t *testing.T) {
	split := UnattributedSplit(dec("99.999"))
	assert.True(t, split.CompanyAmount.Equal(dec("100")))
	assert.True(t, split.DriverAmount.IsZero())
	assert.Equal(t, models.DriverTypeUnknown, split.DriverType)
}
