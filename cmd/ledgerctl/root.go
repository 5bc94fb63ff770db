package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sjperalta/transfer-ledger/internal/config"
	"github.com/sjperalta/transfer-ledger/internal/database"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"github.com/sjperalta/transfer-ledger/internal/services"
	"github.com/sjperalta/transfer-ledger/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	sqlitePath string
	policyPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "Use a local SQLite ledger file instead of DATABASE_URL")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "TOML ledger policy file (overrides LEDGER_POLICY_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the transfer ledger",
	Long: `ledgerctl runs ledger maintenance against the same database as the API:
reconcile cached balances, print the company snapshot and export period reports.
With --sqlite it works on a local ledger file, which is handy for audits of a dump.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup("cli", logLevel)
	},
}

// app is an opened ledger with its services
type app struct {
	db    *gorm.DB
	repos *repository.Repositories
	svcs  *services.Services
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// openApp connects to the configured database. tweak adjusts the policy
// before services are built.
func openApp(ctx context.Context, warm bool, tweak func(*config.LedgerPolicy)) (*app, error) {
	var (
		db     *gorm.DB
		policy config.LedgerPolicy
		err    error
	)

	if sqlitePath != "" {
		policy = config.DefaultLedgerPolicy()
		db, err = database.OpenSQLite(sqlitePath)
	} else {
		var cfg *config.Config
		cfg, err = config.Load()
		if err != nil {
			return nil, err
		}
		policy = cfg.Ledger
		db, err = database.Connect(cfg.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}

	if policyPath != "" {
		if err := config.ApplyPolicyFile(&policy, policyPath); err != nil {
			return nil, err
		}
	}
	if tweak != nil {
		tweak(&policy)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	repos := repository.NewRepositories(db)
	a := &app{
		db:    db,
		repos: repos,
		svcs:  services.NewServices(repos, repository.NewUnitOfWork(db), nil, policy),
	}
	if warm {
		if err := a.svcs.Warm(ctx, repos); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to load ledger: %w", err)
		}
	}
	return a, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
