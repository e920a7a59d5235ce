package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sms/internal/common"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadEngine_Defaults(t *testing.T) {
	cfg, err := LoadEngine(newViper())
	require.NoError(t, err)

	assert.Equal(t, 180*24*time.Hour, cfg.Lookback)
	assert.Equal(t, 5000, cfg.MaxMessages)
	assert.Equal(t, 50, cfg.YieldEvery)
	assert.True(t, decimal.NewFromInt(1).Equal(cfg.Dedup.AmountTolerance))
	assert.Equal(t, 10*time.Minute, cfg.Dedup.TimeWindow)
	assert.Equal(t, time.Local, cfg.Dedup.Location)
}

func TestLoadEngine_Overrides(t *testing.T) {
	v := newViper()
	v.Set(KeyLookbackDays, 30)
	v.Set(KeyAmountTolerance, "0.50")
	v.Set(KeyTimeWindow, "5m")
	v.Set(KeyReportLocation, "UTC")

	cfg, err := LoadEngine(v)
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, cfg.Lookback)
	assert.True(t, decimal.RequireFromString("0.50").Equal(cfg.Dedup.AmountTolerance))
	assert.Equal(t, 5*time.Minute, cfg.Dedup.TimeWindow)
	assert.Equal(t, "UTC", cfg.Dedup.Location.String())
}

func TestLoadEngine_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{key: KeyLookbackDays, value: 0},
		{key: KeyMaxMessages, value: -1},
		{key: KeyYieldEvery, value: 0},
		{key: KeyAmountTolerance, value: "lots"},
		{key: KeyAmountTolerance, value: "-1"},
		{key: KeyTimeWindow, value: "0s"},
		{key: KeyReportLocation, value: "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)
			_, err := LoadEngine(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestLoadSource(t *testing.T) {
	v := newViper()
	_, err := LoadSource(v)
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	v.Set(KeySourcePath, "$SPICE_TEST_DIR/backup.xml")
	t.Setenv("SPICE_TEST_DIR", "/tmp/spice")
	cfg, err := LoadSource(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/spice/backup.xml", cfg.Path)

	v.Set(KeySourceFormat, "JSON")
	_, err = LoadSource(v)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "spice.db"), ExpandPath("~/spice.db"))
	assert.Equal(t, "/data/x", ExpandPath("/data/x"))
	assert.Equal(t, filepath.Join(home, ".config", "spice"), ConfigDir())
}
