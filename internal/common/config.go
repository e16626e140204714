package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Defaults are applied
// first, then an optional TOML file, then environment overrides, so a bare
// binary with no config file still runs against the default target site.
type Config struct {
	// BaseDir anchors the universe CSV and the output directory.
	BaseDir    string           `toml:"base_dir"`
	Source     SourceConfig     `toml:"source"`
	Fetch      FetchConfig      `toml:"fetch"`
	Validator  ValidatorConfig  `toml:"validator"`
	Classifier ClassifierConfig `toml:"classifier"`
	Pacing     PacingConfig     `toml:"pacing"`
	Retry      RetryConfig      `toml:"retry"`
	Snapshot   SnapshotConfig   `toml:"snapshot"`
	Logging    LoggingConfig    `toml:"logging"`
}

// SourceConfig identifies the target site and the on-disk layout shared
// with prior runs.
type SourceConfig struct {
	BaseURL      string `toml:"base_url" validate:"required,url"`
	UserAgent    string `toml:"user_agent" validate:"required"`
	UniverseFile string `toml:"universe_file" validate:"required"`
	OutputDir    string `toml:"output_dir" validate:"required"`
	LedgerFile   string `toml:"ledger_file" validate:"required"`
}

// FetchConfig controls both fetch strategies.
type FetchConfig struct {
	RequestTimeout   time.Duration `toml:"request_timeout"`
	RetryCount       int           `toml:"retry_count" validate:"gte=1"`
	RetryWaitTime    time.Duration `toml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration `toml:"retry_max_wait_time"`
	Headless         bool          `toml:"headless"`
	RenderTimeout    time.Duration `toml:"render_timeout"`
	TableWaitTimeout time.Duration `toml:"table_wait_timeout"`
	SettleDelay      time.Duration `toml:"settle_delay"`
}

// ValidatorConfig holds the content-completeness thresholds. The marker
// list and thresholds were tuned empirically against the live site, so they
// are configuration rather than constants.
type ValidatorConfig struct {
	MinHTMLLength   int      `toml:"min_html_length" validate:"gte=1"`
	MarkerThreshold int      `toml:"marker_threshold" validate:"gte=0"`
	MinTables       int      `toml:"min_tables" validate:"gte=1"`
	LoadingMarkers  []string `toml:"loading_markers" validate:"min=1"`
}

// ClassifierConfig holds the table classification heuristics: row-count
// bands and the header tokens that identify each table role.
type ClassifierConfig struct {
	DailyMinRows     int      `toml:"daily_min_rows" validate:"gte=2"`
	OwnershipMinRows int      `toml:"ownership_min_rows" validate:"gte=2"`
	OwnershipMaxRows int      `toml:"ownership_max_rows"`
	CurrentMaxRows   int      `toml:"current_max_rows" validate:"gte=2"`
	DateTokens       []string `toml:"date_tokens" validate:"min=1"`
	OHLCTokens       []string `toml:"ohlc_tokens" validate:"min=1"`
	OwnershipTokens  []string `toml:"ownership_tokens" validate:"min=1"`
}

// PacingConfig controls the adaptive inter-stock delay.
type PacingConfig struct {
	BaseDelay      time.Duration `toml:"base_delay"`
	MaxDelay       time.Duration `toml:"max_delay"`
	FailurePenalty time.Duration `toml:"failure_penalty"`
	JitterMin      time.Duration `toml:"jitter_min"`
	JitterMax      time.Duration `toml:"jitter_max"`
}

// RetryConfig controls the per-stock retry loop and the bucketing pass.
type RetryConfig struct {
	MaxRetries       int           `toml:"max_retries" validate:"gte=1"`
	RetryDelayBase   time.Duration `toml:"retry_delay_base"`
	FailedRetryMax   int           `toml:"failed_retry_max" validate:"gte=1"`
	FailedRetryDelay time.Duration `toml:"failed_retry_delay"`
	RefreshLimit     int           `toml:"refresh_limit" validate:"gte=1"`
	FreshnessWindow  time.Duration `toml:"freshness_window"`
}

// SnapshotConfig controls the raw-HTML snapshot store.
type SnapshotConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Output []string `toml:"output"`
}

// DefaultConfig returns the configuration used when no file is present.
// Marker strings and header tokens default to the Traditional-Chinese
// markup of the current target site.
func DefaultConfig() *Config {
	return &Config{
		BaseDir: ".",
		Source: SourceConfig{
			BaseURL:      "https://poorstock.com",
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			UniverseFile: "StockID_TWSE_TPEX.csv",
			OutputDir:    "poorstock",
			LedgerFile:   "download_results.csv",
		},
		Fetch: FetchConfig{
			RequestTimeout:   15 * time.Second,
			RetryCount:       3,
			RetryWaitTime:    time.Second,
			RetryMaxWaitTime: 10 * time.Second,
			Headless:         true,
			RenderTimeout:    60 * time.Second,
			TableWaitTimeout: 15 * time.Second,
			SettleDelay:      3 * time.Second,
		},
		Validator: ValidatorConfig{
			MinHTMLLength:   1000,
			MarkerThreshold: 2,
			MinTables:       2,
			LoadingMarkers:  []string{"載入中", "loading", "請稍候", "資料更新中"},
		},
		Classifier: ClassifierConfig{
			DailyMinRows:     20,
			OwnershipMinRows: 6,
			OwnershipMaxRows: 59,
			CurrentMaxRows:   10,
			DateTokens:       []string{"日期"},
			OHLCTokens:       []string{"開盤", "收盤", "最高", "最低"},
			OwnershipTokens:  []string{"持股比例", "100張"},
		},
		Pacing: PacingConfig{
			BaseDelay:      8 * time.Second,
			MaxDelay:       30 * time.Second,
			FailurePenalty: 5 * time.Second,
			JitterMin:      500 * time.Millisecond,
			JitterMax:      2 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries:       3,
			RetryDelayBase:   10 * time.Second,
			FailedRetryMax:   2,
			FailedRetryDelay: 15 * time.Second,
			RefreshLimit:     20,
			FreshnessWindow:  24 * time.Hour,
		},
		Snapshot: SnapshotConfig{
			Enabled: true,
			Path:    filepath.Join("data", "snapshots"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadConfig loads configuration in priority order: defaults, then the
// given TOML file (or an auto-discovered colligo.toml when path is empty),
// then environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		if _, err := os.Stat("colligo.toml"); err == nil {
			path = "colligo.toml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COLLIGO_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("COLLIGO_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("COLLIGO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Classifier.OwnershipMaxRows < c.Classifier.OwnershipMinRows {
		return fmt.Errorf("invalid configuration: ownership_max_rows (%d) below ownership_min_rows (%d)",
			c.Classifier.OwnershipMaxRows, c.Classifier.OwnershipMinRows)
	}
	return nil
}

// UniversePath returns the location of the stock universe CSV.
func (c *Config) UniversePath() string {
	return filepath.Join(c.BaseDir, c.Source.UniverseFile)
}

// OutputPath returns the report output directory.
func (c *Config) OutputPath() string {
	return filepath.Join(c.BaseDir, c.Source.OutputDir)
}

// LedgerPath returns the results ledger location. The ledger lives inside
// the output directory so both travel together.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.OutputPath(), c.Source.LedgerFile)
}

// SnapshotPath returns the badger snapshot store directory.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.BaseDir, c.Snapshot.Path)
}
