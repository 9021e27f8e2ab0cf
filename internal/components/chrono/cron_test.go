package chrono

import (
	"testing"
	"time"
	"usace-scraper/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestStandardCronRejectsBadSpec(t *testing.T) {
	c := NewStandardCron(telemetry.NewRecorder())
	defer c.Stop()

	err := c.Cron("not a cron spec", func() {})
	require.Error(t, err)

	err = c.Cron("@every 1h", func() {})
	require.NoError(t, err)
}

func TestFixedTime(t *testing.T) {
	at := time.Date(2026, time.March, 4, 18, 0, 0, 0, time.UTC)
	now := FixedTime{At: at}.Now()

	require.True(t, now.Equal(at))
	require.Equal(t, Central(), now.Location())
	require.Equal(t, 12, now.Hour())
}
