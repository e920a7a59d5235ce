package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/dedup"
	"github.com/Veraticus/spice-sms/internal/engine"
	"github.com/Veraticus/spice-sms/internal/source"
)

// Viper keys.
const (
	KeyDatabasePath    = "database.path"
	KeySourcePath      = "source.path"
	KeySourceFormat    = "source.format"
	KeyLookbackDays    = "scan.lookback_days"
	KeyMaxMessages     = "scan.max_messages"
	KeyYieldEvery      = "scan.yield_every"
	KeyAmountTolerance = "dedup.amount_tolerance"
	KeyTimeWindow      = "dedup.time_window"
	KeyReportLocation  = "report.location"
	KeyLogLevel        = "logging.level"
	KeyLogFormat       = "logging.format"
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath())
	v.SetDefault(KeySourceFormat, "")
	v.SetDefault(KeyLookbackDays, 180)
	v.SetDefault(KeyMaxMessages, 5000)
	v.SetDefault(KeyYieldEvery, 50)
	v.SetDefault(KeyAmountTolerance, "1.00")
	v.SetDefault(KeyTimeWindow, "10m")
	v.SetDefault(KeyReportLocation, "Local")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// SourceConfig locates the message archive.
type SourceConfig struct {
	Path   string
	Format string
}

// ScanConfig bounds a scan.
type ScanConfig struct {
	Lookback    time.Duration
	MaxMessages int
	YieldEvery  int
}

// DedupConfig is the insert-time tolerance window.
type DedupConfig struct {
	AmountTolerance decimal.Decimal
	TimeWindow      time.Duration
}

// LoadSource reads the source section.
func LoadSource(v *viper.Viper) (SourceConfig, error) {
	cfg := SourceConfig{
		Path:   ExpandPath(v.GetString(KeySourcePath)),
		Format: strings.ToLower(strings.TrimSpace(v.GetString(KeySourceFormat))),
	}
	if cfg.Path == "" {
		return cfg, fmt.Errorf("%w: %s", common.ErrMissingConfig, KeySourcePath)
	}
	switch cfg.Format {
	case "", source.FormatXML, source.FormatCSV:
	default:
		return cfg, fmt.Errorf("%w: %s must be xml or csv, got %q", common.ErrInvalidConfig, KeySourceFormat, cfg.Format)
	}
	return cfg, nil
}

// LoadScan reads the scan section.
func LoadScan(v *viper.Viper) (ScanConfig, error) {
	days := v.GetInt(KeyLookbackDays)
	if days <= 0 {
		return ScanConfig{}, fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyLookbackDays)
	}
	maxMessages := v.GetInt(KeyMaxMessages)
	if maxMessages <= 0 {
		return ScanConfig{}, fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyMaxMessages)
	}
	yield := v.GetInt(KeyYieldEvery)
	if yield <= 0 {
		return ScanConfig{}, fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyYieldEvery)
	}
	return ScanConfig{
		Lookback:    time.Duration(days) * 24 * time.Hour,
		MaxMessages: maxMessages,
		YieldEvery:  yield,
	}, nil
}

// LoadDedup reads the dedup section.
func LoadDedup(v *viper.Viper) (DedupConfig, error) {
	tolerance, err := decimal.NewFromString(strings.TrimSpace(v.GetString(KeyAmountTolerance)))
	if err != nil {
		return DedupConfig{}, fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, KeyAmountTolerance, err)
	}
	if tolerance.IsNegative() {
		return DedupConfig{}, fmt.Errorf("%w: %s must not be negative", common.ErrInvalidConfig, KeyAmountTolerance)
	}
	window := v.GetDuration(KeyTimeWindow)
	if window <= 0 {
		return DedupConfig{}, fmt.Errorf("%w: %s must be a positive duration", common.ErrInvalidConfig, KeyTimeWindow)
	}
	return DedupConfig{AmountTolerance: tolerance, TimeWindow: window}, nil
}

// LoadLocation resolves report.location; "Local" and "" mean the system zone.
func LoadLocation(v *viper.Viper) (*time.Location, error) {
	name := strings.TrimSpace(v.GetString(KeyReportLocation))
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, KeyReportLocation, err)
	}
	return loc, nil
}

// LoadEngine assembles the engine configuration from every section.
func LoadEngine(v *viper.Viper) (engine.Config, error) {
	scan, err := LoadScan(v)
	if err != nil {
		return engine.Config{}, err
	}
	dd, err := LoadDedup(v)
	if err != nil {
		return engine.Config{}, err
	}
	loc, err := LoadLocation(v)
	if err != nil {
		return engine.Config{}, err
	}

	cfg := engine.DefaultConfig()
	cfg.Lookback = scan.Lookback
	cfg.MaxMessages = scan.MaxMessages
	cfg.YieldEvery = scan.YieldEvery
	cfg.Dedup = dedup.Config{
		AmountTolerance: dd.AmountTolerance,
		TimeWindow:      dd.TimeWindow,
		Location:        loc,
	}
	return cfg, nil
}
