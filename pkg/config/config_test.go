package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCarriesReferenceData(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "memory", c.Store.Driver)
	assert.Equal(t, 90, c.Forecasting.ForecastDays)
	assert.Equal(t, "multiplicative", c.Forecasting.SeasonalityMode)
	assert.Equal(t, 3, c.Forecasting.Weekly.FourierOrder)
	assert.Equal(t, 365.25, c.Forecasting.Yearly.Period)
	assert.Equal(t, 0.7, c.Pricing.MinPriceFactor)
	assert.Equal(t, 1.3, c.Pricing.MaxPriceFactor)
	assert.Equal(t, 0.05, c.Pricing.DirectChannelDiscount)
	assert.Len(t, c.RoomTypes, 7)
	assert.Len(t, c.Channels, 5)
	assert.Equal(t, 1.2, c.Pricing.WeekdayFactors[5])
}

func TestParseKeepsExplicitFalse(t *testing.T) {
	c, err := Parse([]byte(`
environment: test
forecasting:
  protect_manual_adjustments: false
  weekly:
    enabled: false
    period: 7
    fourier_order: 3
channels:
  - name: Directo
    commission: 0
  - name: Booking.com
    commission: 0.15
    active: false
`))
	require.NoError(t, err)
	assert.False(t, c.Forecasting.ProtectManual)
	assert.False(t, c.Forecasting.Weekly.Enabled)
	assert.True(t, c.Forecasting.Yearly.Enabled)
	require.Len(t, c.ActiveChannels(), 1)
	assert.Equal(t, "Directo", c.ActiveChannels()[0].Name)
}

func TestParseRejectsInvertedBounds(t *testing.T) {
	_, err := Parse([]byte(`
pricing:
  min_price_factor: 1.5
  max_price_factor: 1.3
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_price_factor")
}

func TestParseRejectsDuplicateSeasonMonth(t *testing.T) {
	_, err := Parse([]byte(`
seasons:
  - name: Alta
    months: [1, 2]
  - name: Baja
    months: [2]
`))
	require.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))

	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SERVER_PORT", "9090")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, "sqlite", c.Store.Driver)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 9090, c.Server.Port)
}
