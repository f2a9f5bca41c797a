package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/wippyai/xplat/errors"
)

// envOverrides holds manifest settings that may be replaced from the
// environment. Unset variables leave the manifest value alone.
type envOverrides struct {
	LogLevel       string        `env:"XPLAT_LOG_LEVEL"`
	LogDevelopment string        `env:"XPLAT_LOG_DEVELOPMENT"`
	ReportFormat   string        `env:"XPLAT_REPORT_FORMAT"`
	ReportStore    string        `env:"XPLAT_REPORT_STORE"`
	WatchDebounce  time.Duration `env:"XPLAT_WATCH_DEBOUNCE"`
	WatchPatterns  []string      `env:"XPLAT_WATCH_PATTERNS" envSeparator:","`
}

func applyEnv(cfg *Config) error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return errors.Load("parse environment", err)
	}
	if raw.LogLevel != "" {
		cfg.Log.Level = raw.LogLevel
	}
	if raw.LogDevelopment != "" {
		dev, err := strconv.ParseBool(raw.LogDevelopment)
		if err != nil {
			return errors.InvalidConfig("XPLAT_LOG_DEVELOPMENT", fmt.Sprintf("not a boolean: %q", raw.LogDevelopment))
		}
		cfg.Log.Development = dev
	}
	if raw.ReportFormat != "" {
		cfg.Report.Format = raw.ReportFormat
	}
	if raw.ReportStore != "" {
		cfg.Report.Store = raw.ReportStore
	}
	if raw.WatchDebounce > 0 {
		cfg.Watch.Debounce = raw.WatchDebounce
	}
	if len(raw.WatchPatterns) > 0 {
		cfg.Watch.Patterns = raw.WatchPatterns
	}
	return nil
}
