package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// fileConfig mirrors Config with pointer fields so a YAML file can
// set a value to zero without it being mistaken for "absent".
type fileConfig struct {
	InitialCash    *float64 `yaml:"initial_cash"`
	CommissionRate *float64 `yaml:"commission_rate"`
	TaxRate        *float64 `yaml:"tax_rate"`
	SettleLagDays  *int     `yaml:"settle_lag_days"`
	PricesFile     string   `yaml:"prices_file"`
	OrdersFile     string   `yaml:"orders_file"`
	ReportDir      string   `yaml:"report_dir"`
	StoragePath    string   `yaml:"storage_path"`
	LogLevel       string   `yaml:"log_level"`
	LogFile        string   `yaml:"log_file"`
	LogConsole     *bool    `yaml:"log_console"`
}

type Config struct {
	InitialCash    float64
	CommissionRate float64
	TaxRate        float64
	SettleLagDays  int
	PricesFile     string
	OrdersFile     string
	ReportDir      string
	StoragePath    string
	LogLevel       string
	LogFile        string
	LogConsole     bool
}

// Load builds the effective configuration: defaults, then the YAML file
// if present, then environment overrides, then validation.
func Load(configPath string) (Config, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(configPath) != "" {
		if err := applyYAMLConfig(&cfg, configPath); err != nil {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)
	if err := normalizeAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	cwd, _ := os.Getwd()
	return Config{
		InitialCash:    1000000,
		CommissionRate: 0.0001,
		TaxRate:        0.001,
		SettleLagDays:  1,
		PricesFile:     filepath.Join(cwd, "data", "prices.csv"),
		OrdersFile:     filepath.Join(cwd, "data", "orders.csv"),
		ReportDir:      filepath.Join(cwd, "reports"),
		StoragePath:    filepath.Join(cwd, "data", "broker.db"),
		LogLevel:       "info",
		LogFile:        "",
		LogConsole:     true,
	}
}

func applyYAMLConfig(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse yaml config: %w", err)
	}
	if fc.InitialCash != nil {
		cfg.InitialCash = *fc.InitialCash
	}
	if fc.CommissionRate != nil {
		cfg.CommissionRate = *fc.CommissionRate
	}
	if fc.TaxRate != nil {
		cfg.TaxRate = *fc.TaxRate
	}
	if fc.SettleLagDays != nil {
		cfg.SettleLagDays = *fc.SettleLagDays
	}
	if v := strings.TrimSpace(fc.PricesFile); v != "" {
		cfg.PricesFile = v
	}
	if v := strings.TrimSpace(fc.OrdersFile); v != "" {
		cfg.OrdersFile = v
	}
	if v := strings.TrimSpace(fc.ReportDir); v != "" {
		cfg.ReportDir = v
	}
	if v := strings.TrimSpace(fc.StoragePath); v != "" {
		cfg.StoragePath = v
	}
	if v := strings.TrimSpace(fc.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(fc.LogFile); v != "" {
		cfg.LogFile = v
	}
	if fc.LogConsole != nil {
		cfg.LogConsole = *fc.LogConsole
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BROKER_INITIAL_CASH")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.InitialCash = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("BROKER_COMMISSION_RATE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.CommissionRate = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("BROKER_TAX_RATE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.TaxRate = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("BROKER_SETTLE_LAG_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SettleLagDays = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BROKER_PRICES_FILE")); v != "" {
		cfg.PricesFile = v
	}
	if v := strings.TrimSpace(os.Getenv("BROKER_ORDERS_FILE")); v != "" {
		cfg.OrdersFile = v
	}
	if v := strings.TrimSpace(os.Getenv("BROKER_REPORT_DIR")); v != "" {
		cfg.ReportDir = v
	}
	if v := strings.TrimSpace(os.Getenv("BROKER_STORAGE_PATH")); v != "" {
		cfg.StoragePath = v
	}
	if v := strings.TrimSpace(os.Getenv("BROKER_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("BROKER_LOG_FILE")); v != "" {
		cfg.LogFile = v
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("BROKER_LOG_CONSOLE"))); v != "" {
		cfg.LogConsole = v == "1" || v == "true" || v == "yes" || v == "on"
	}
}

func normalizeAndValidate(cfg *Config) error {
	if cfg.InitialCash <= 0 {
		return errors.New("initial_cash must be positive")
	}
	if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1 {
		return fmt.Errorf("commission_rate %v out of range [0,1)", cfg.CommissionRate)
	}
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return fmt.Errorf("tax_rate %v out of range [0,1)", cfg.TaxRate)
	}
	if cfg.SettleLagDays < 0 {
		cfg.SettleLagDays = 0
	}

	if strings.TrimSpace(cfg.PricesFile) == "" {
		return errors.New("prices_file is required")
	}
	abs, err := filepath.Abs(cfg.PricesFile)
	if err != nil {
		return fmt.Errorf("resolve prices_file: %w", err)
	}
	cfg.PricesFile = abs

	if strings.TrimSpace(cfg.OrdersFile) == "" {
		return errors.New("orders_file is required")
	}
	abs, err = filepath.Abs(cfg.OrdersFile)
	if err != nil {
		return fmt.Errorf("resolve orders_file: %w", err)
	}
	cfg.OrdersFile = abs

	if strings.TrimSpace(cfg.ReportDir) == "" {
		return errors.New("report_dir is required")
	}
	abs, err = filepath.Abs(cfg.ReportDir)
	if err != nil {
		return fmt.Errorf("resolve report_dir: %w", err)
	}
	cfg.ReportDir = abs

	if strings.TrimSpace(cfg.StoragePath) != "" {
		abs, err = filepath.Abs(cfg.StoragePath)
		if err != nil {
			return fmt.Errorf("resolve storage_path: %w", err)
		}
		cfg.StoragePath = abs
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "error":
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	default:
		return fmt.Errorf("log_level %q not one of debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.LogFile != "" {
		abs, err = filepath.Abs(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("resolve log_file: %w", err)
		}
		cfg.LogFile = abs
	}
	if cfg.LogFile == "" && !cfg.LogConsole {
		cfg.LogConsole = true
	}
	return nil
}
