package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string

	// JWT (tokens are issued by the external auth service)
	JWTSecret string

	// Background Workers
	WorkerCount int

	// CORS
	AllowedOrigins []string

	// Sentry
	SentryDSN string

	// Ledger policy
	Ledger LedgerPolicy
}

// LedgerPolicy groups the accounting knobs. Every field can be overridden
// by the TOML file named in LEDGER_POLICY_FILE.
type LedgerPolicy struct {
	DefaultCommissionRate decimal.Decimal
	MaxAttempts           int
	BaseBackoff           time.Duration
	ReconcileInterval     time.Duration
	ReconcileAutoCorrect  bool
	ReportTimezone        string
	// 0 disables the periodic reload of the reporting view
	ProjectionRefresh time.Duration
}

// policyFile mirrors the TOML layout:
//
//	[commission]
//	default_rate = "12.5"
//	[ledger]
//	max_attempts = 8
//	base_backoff = "25ms"
//	[reconciliation]
//	interval = "30m"
//	auto_correct = false
//	[reports]
//	timezone = "America/Tegucigalpa"
//	refresh_interval = "1m"
type policyFile struct {
	Commission struct {
		DefaultRate *string `toml:"default_rate"`
	} `toml:"commission"`
	Ledger struct {
		MaxAttempts *int    `toml:"max_attempts"`
		BaseBackoff *string `toml:"base_backoff"`
	} `toml:"ledger"`
	Reconciliation struct {
		Interval    *string `toml:"interval"`
		AutoCorrect *bool   `toml:"auto_correct"`
	} `toml:"reconciliation"`
	Reports struct {
		Timezone        *string `toml:"timezone"`
		RefreshInterval *string `toml:"refresh_interval"`
	} `toml:"reports"`
}

// DefaultLedgerPolicy returns the policy used when nothing is configured
func DefaultLedgerPolicy() LedgerPolicy {
	return LedgerPolicy{
		DefaultCommissionRate: decimal.NewFromInt(15),
		MaxAttempts:           5,
		BaseBackoff:           20 * time.Millisecond,
		ReconcileInterval:     time.Hour,
		ReconcileAutoCorrect:  true,
		ReportTimezone:        "UTC",
		ProjectionRefresh:     time.Minute,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	defaults := DefaultLedgerPolicy()
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 5),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		Ledger: LedgerPolicy{
			DefaultCommissionRate: getEnvAsDecimal("DEFAULT_COMMISSION_RATE", defaults.DefaultCommissionRate),
			MaxAttempts:           getEnvAsInt("LEDGER_MAX_ATTEMPTS", defaults.MaxAttempts),
			BaseBackoff:           getEnvAsDuration("LEDGER_BASE_BACKOFF", defaults.BaseBackoff),
			ReconcileInterval:     getEnvAsDuration("RECONCILE_INTERVAL", defaults.ReconcileInterval),
			ReconcileAutoCorrect:  getEnvAsBool("RECONCILE_AUTO_CORRECT", defaults.ReconcileAutoCorrect),
			ReportTimezone:        getEnv("REPORT_TIMEZONE", defaults.ReportTimezone),
			ProjectionRefresh:     getEnvAsDuration("PROJECTION_REFRESH_INTERVAL", defaults.ProjectionRefresh),
		},
	}

	if path := getEnv("LEDGER_POLICY_FILE", ""); path != "" {
		if err := ApplyPolicyFile(&cfg.Ledger, path); err != nil {
			return nil, err
		}
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	if err := cfg.Ledger.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyPolicyFile overlays the values present in a TOML policy file
func ApplyPolicyFile(policy *LedgerPolicy, path string) error {
	var file policyFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	if file.Commission.DefaultRate != nil {
		rate, err := decimal.NewFromString(*file.Commission.DefaultRate)
		if err != nil {
			return fmt.Errorf("invalid commission.default_rate: %w", err)
		}
		policy.DefaultCommissionRate = rate
	}
	if file.Ledger.MaxAttempts != nil {
		policy.MaxAttempts = *file.Ledger.MaxAttempts
	}
	if file.Ledger.BaseBackoff != nil {
		d, err := time.ParseDuration(*file.Ledger.BaseBackoff)
		if err != nil {
			return fmt.Errorf("invalid ledger.base_backoff: %w", err)
		}
		policy.BaseBackoff = d
	}
	if file.Reconciliation.Interval != nil {
		d, err := time.ParseDuration(*file.Reconciliation.Interval)
		if err != nil {
			return fmt.Errorf("invalid reconciliation.interval: %w", err)
		}
		policy.ReconcileInterval = d
	}
	if file.Reconciliation.AutoCorrect != nil {
		policy.ReconcileAutoCorrect = *file.Reconciliation.AutoCorrect
	}
	if file.Reports.Timezone != nil {
		policy.ReportTimezone = *file.Reports.Timezone
	}
	if file.Reports.RefreshInterval != nil {
		d, err := time.ParseDuration(*file.Reports.RefreshInterval)
		if err != nil {
			return fmt.Errorf("invalid reports.refresh_interval: %w", err)
		}
		policy.ProjectionRefresh = d
	}
	return nil
}

// Validate checks the policy ranges
func (p LedgerPolicy) Validate() error {
	if p.DefaultCommissionRate.IsNegative() || p.DefaultCommissionRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("default commission rate must be between 0 and 100, got %s", p.DefaultCommissionRate)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("ledger max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	if p.ProjectionRefresh < 0 {
		return fmt.Errorf("projection refresh interval must not be negative")
	}
	if _, err := time.LoadLocation(p.ReportTimezone); err != nil {
		return fmt.Errorf("invalid report timezone %q: %w", p.ReportTimezone, err)
	}
	return nil
}

// Location returns the report time zone, UTC when it cannot be loaded
func (p LedgerPolicy) Location() *time.Location {
	loc, err := time.LoadLocation(p.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
