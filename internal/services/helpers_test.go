package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/config"
	"github.com/sjperalta/transfer-ledger/internal/database"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testTime = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type testEnv struct {
	db    *gorm.DB
	repos *repository.Repositories
	uow   repository.UnitOfWork
	svc   *Services
}

func newTestEnv(t *testing.T, tweaks ...func(*config.LedgerPolicy)) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	policy := config.DefaultLedgerPolicy()
	policy.BaseBackoff = time.Millisecond
	for _, tweak := range tweaks {
		tweak(&policy)
	}

	repos := repository.NewRepositories(db)
	uow := repository.NewUnitOfWork(db)
	return &testEnv{
		db:    db,
		repos: repos,
		uow:   uow,
		svc:   NewServices(repos, uow, nil, policy),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) addSystemDriver(t *testing.T, id string, rate string) {
	t.Helper()
	driver := &models.SystemDriver{ID: id, Name: "Driver " + id}
	if rate != "" {
		driver.CommissionRate = models.NullAmount(dec(rate))
	}
	require.NoError(t, e.repos.Driver.UpsertSystemDriver(context.Background(), driver))
}

func systemEvent(reservationID, method, total, driverID string, at time.Time) *models.ReservationCompletedEvent {
	return &models.ReservationCompletedEvent{
		ReservationID: reservationID,
		TotalPrice:    dec(total),
		PaymentMethod: method,
		DriverID:      driverID,
		CompletedAt:   at,
	}
}

func manualEvent(reservationID, method, total, agreed, phone string, at time.Time) *models.ReservationCompletedEvent {
	return &models.ReservationCompletedEvent{
		ReservationID: reservationID,
		TotalPrice:    dec(total),
		PaymentMethod: method,
		DriverID:      models.ManualDriverSentinel,
		ManualDriver: &models.ManualDriverInfo{
			Name:        "Manual " + phone,
			Phone:       phone,
			AgreedPrice: dec(agreed),
		},
		CompletedAt: at,
	}
}

func (e *testEnv) account(t *testing.T) *models.CompanyAccount {
	t.Helper()
	account, err := e.repos.Account.Get(context.Background())
	require.NoError(t, err)
	return account
}

// requireLedgerConsistent checks the aggregate and every manual driver
// against a fresh fold of the stored ledger
func (e *testEnv) requireLedgerConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	fold := models.NewCompanyAccount()
	netSum := decimal.Zero
	balances := map[string]decimal.Decimal{}
	err := e.repos.Ledger.EachBatch(ctx, 100, func(batch []models.LedgerTransaction) error {
		for i := range batch {
			entry := &batch[i]
			require.True(t, entry.NetAmount.Equal(entry.RevenueAmount.Sub(entry.ExpenseAmount)), "net of %s", entry.ID)
			fold.Apply(entry, 1)
			netSum = netSum.Add(entry.NetAmount)
			if entry.IsManualDriverScoped() {
				balances[*entry.DriverID] = balances[*entry.DriverID].Add(DriverBalanceEffect(entry))
			}
		}
		return nil
	})
	require.NoError(t, err)

	account := e.account(t)
	require.True(t, account.Net().Equal(netSum), "account net %s != ledger net %s", account.Net(), netSum)
	require.True(t, account.SameTotals(fold), "account totals drifted from ledger fold")

	drivers, err := e.repos.Driver.ListManualDrivers(ctx)
	require.NoError(t, err)
	for _, d := range drivers {
		require.True(t, d.Balance.Equal(balances[d.ID]), "driver %s balance %s != ledger %s", d.ID, d.Balance, balances[d.ID])
	}
}
