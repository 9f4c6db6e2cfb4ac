package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "localhost:9000", cfg.ClickHouseAddr)
	assert.Equal(t, 28, cfg.WindowDays)
	assert.Equal(t, 52, cfg.ShiftWeeks)
	assert.Equal(t, 10000, cfg.BatchSize)
	assert.Equal(t, 4, cfg.Writers)
	assert.Equal(t, 2*time.Second, cfg.FlushInterval)
	assert.Equal(t, "https://d37ci6vzurychx.cloudfront.net/trip-data", cfg.BaseURL)
	assert.False(t, cfg.ArchiveEnabled())
	assert.False(t, cfg.NotifyEnabled())
	assert.False(t, cfg.SyntheticEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("WINDOW_DAYS", "7")
	t.Setenv("SHIFT_WEEKS", "1")
	t.Setenv("WRITE_FLUSH_INTERVAL", "500ms")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("S3_BUCKET", "taxi-raw")
	t.Setenv("SYNTHETIC_RIDES_PER_DAY", "5000")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, 1, cfg.ShiftWeeks)
	assert.Equal(t, 500*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.ArchiveEnabled())
	assert.True(t, cfg.NotifyEnabled())
	assert.True(t, cfg.SyntheticEnabled())
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tcs := map[string]struct {
		key, value string
	}{
		"non-numeric days":  {key: "WINDOW_DAYS", value: "four"},
		"zero days":         {key: "WINDOW_DAYS", value: "0"},
		"zero shift":        {key: "SHIFT_WEEKS", value: "0"},
		"zero batch":        {key: "WRITE_BATCH_SIZE", value: "0"},
		"zero writers":      {key: "WRITERS", value: "0"},
		"bad flush":         {key: "WRITE_FLUSH_INTERVAL", value: "fast"},
		"negative interval": {key: "WRITE_FLUSH_INTERVAL", value: "-1s"},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
