package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLedgerFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	sqlitePath = path
	t.Cleanup(func() { sqlitePath = "" })

	a, err := openApp(context.Background(), false, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.svcs.Ledger.CreateManualEntry(context.Background(), services.ManualLedgerEntry{
		Type:     models.TransactionTypeManualIncome,
		Amount:   decimal.NewFromInt(75),
		Category: "tips",
		Date:     ptrTime(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)),
	}, nil)
	require.NoError(t, err)
	return path
}

func ptrTime(t time.Time) *time.Time { return &t }

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReconcileCommand(t *testing.T) {
	path := seedLedgerFile(t)

	out, err := execute(t, "--sqlite", path, "reconcile", "--fail-on-drift")
	require.NoError(t, err)

	var report services.ReconciliationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.EntriesScanned)
	assert.False(t, report.AccountDrift)
}

func TestPeriodsCommand(t *testing.T) {
	path := seedLedgerFile(t)

	out, err := execute(t, "--sqlite", path, "periods", "--granularity", "month", "--format", "json")
	require.NoError(t, err)

	var periods []services.PeriodSummary
	require.NoError(t, json.Unmarshal([]byte(out), &periods))
	require.Len(t, periods, 1)
	assert.Equal(t, "2026-03", periods[0].Period)
	assert.True(t, periods[0].Net.Equal(decimal.NewFromInt(75)))

	xlsx := filepath.Join(t.TempDir(), "periods.xlsx")
	_, err = execute(t, "--sqlite", path, "periods", "--format", "xlsx", "--out", xlsx)
	require.NoError(t, err)
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = execute(t, "--sqlite", path, "periods", "--format", "pdf")
	assert.Error(t, err)
}
