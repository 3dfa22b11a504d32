package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "UTC", cfg.Scheduling.Timezone)
	assert.Equal(t, 6, cfg.Scheduling.WorkloadThreshold)
	assert.Equal(t, 60, cfg.Scheduling.DefaultEventMinutes)
	assert.Equal(t, 12, cfg.Scheduling.NextOccurrenceHorizonMon)
	assert.Equal(t, 10*time.Minute, cfg.Availability.CacheTTL)
	assert.Equal(t, 720*time.Hour, cfg.Recurrence.RegenerateHorizon)
	assert.Equal(t, MapsProviderHaversine, cfg.Maps.Provider)
	assert.Equal(t, 25, cfg.Maps.MaxWaypoints)
	assert.Equal(t, "https://maps.googleapis.com/maps/api", cfg.Maps.BaseURL)
}

func TestFromViperEnvironmentOverrides(t *testing.T) {
	t.Setenv("SCHEDULING_WORKLOAD_THRESHOLD", "9")
	t.Setenv("MAPS_PROVIDER", "Google")
	t.Setenv("MAPS_TIMEOUT", "750ms")
	t.Setenv("ALLOWED_ORIGINS", "https://ops.example.com, ,https://dispatch.example.com")
	t.Setenv("ROUTE_MAX_WAYPOINTS", "-3")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, 9, cfg.Scheduling.WorkloadThreshold)
	assert.Equal(t, MapsProviderGoogle, cfg.Maps.Provider)
	assert.Equal(t, 750*time.Millisecond, cfg.Maps.Timeout)
	assert.Equal(t, 25, cfg.Maps.MaxWaypoints)
	assert.Equal(t, []string{"https://ops.example.com", "https://dispatch.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Hour, parseDuration("2h", time.Minute))
}
