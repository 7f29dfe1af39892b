package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/radar-rain-alert/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLat = "23.761781"
	testLon = "121.474342"
)

func setTarget(t *testing.T) {
	t.Helper()
	t.Setenv("TARGET_LAT", testLat)
	t.Setenv("TARGET_LON", testLon)
}

func TestLoad_Defaults(t *testing.T) {
	setTarget(t)

	cfg, err := Load("")
	require.NoError(t, err)

	home := domain.GeoPoint{Lat: 23.761781, Lon: 121.474342}
	assert.Equal(t, home, cfg.Target)
	assert.Equal(t, home, cfg.View)
	assert.Equal(t, 11, cfg.Zoom)
	assert.Equal(t, "https://zoom.earth/maps/radar/", cfg.MapBaseURL)
	assert.Equal(t, 15, cfg.ForecastMin)
	assert.Equal(t, "UTC+8", cfg.Zone.String())
	assert.Empty(t, cfg.WebhookURL)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, 1280, cfg.ViewportWidth)
	assert.Equal(t, 720, cfg.ViewportHeight)
	assert.Equal(t, domain.PixelCoordinate{}, cfg.CenterOffset)
	assert.Equal(t, domain.DefaultRule(), cfg.Rule)
	assert.InDelta(t, 0.10, cfg.CoverageThreshold, 1e-12)
	assert.Equal(t, 12, cfg.CoverageRadius)
	assert.Equal(t, 7, cfg.AverageRadius)
	assert.Equal(t, 800*time.Millisecond, cfg.StepSettle)
	assert.Equal(t, 5*time.Second, cfg.StepClickTimeout)
	assert.Equal(t, 60, cfg.MaxSteps)
	assert.Equal(t, 3, cfg.PageLoadAttempts)
	assert.Equal(t, 3*time.Second, cfg.PageLoadBackoff)
	assert.Equal(t, 60*time.Second, cfg.PageLoadTimeout)
	assert.Equal(t, 8*time.Second, cfg.PageSettle)
	assert.Equal(t, "screenshot.png", cfg.ScreenshotPath)
	assert.True(t, cfg.Headless)
	assert.Empty(t, cfg.ChromePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Minute, cfg.WatchInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "rain-detections", cfg.KafkaTopic)
	assert.Empty(t, cfg.PushgatewayURL)
}

func TestLoad_CustomEnv(t *testing.T) {
	setTarget(t)
	t.Setenv("VIEW_LAT", "24.0")
	t.Setenv("VIEW_LON", "121.0")
	t.Setenv("ZOOM", "9")
	t.Setenv("FORECAST_MINUTES", "30")
	t.Setenv("REFERENCE_UTC_OFFSET", "-5h30m")
	t.Setenv("WEBHOOK_URL", "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=abc")
	t.Setenv("VIEWPORT_WIDTH", "1920")
	t.Setenv("VIEWPORT_HEIGHT", "1080")
	t.Setenv("CENTER_OFFSET_X", "-40")
	t.Setenv("SATURATION_THRESHOLD", "0.4")
	t.Setenv("HUE_RANGES", "180-250")
	t.Setenv("COVERAGE_THRESHOLD", "0.25")
	t.Setenv("STEP_SETTLE", "1.5s")
	t.Setenv("MAX_STEPS", "20")
	t.Setenv("HEADLESS", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "alerts")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.GeoPoint{Lat: 24, Lon: 121}, cfg.View)
	assert.Equal(t, 9, cfg.Zoom)
	assert.Equal(t, 30, cfg.ForecastMin)
	assert.Equal(t, "UTC-5:30", cfg.Zone.String())
	assert.Equal(t, "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=abc", cfg.WebhookURL)
	assert.Equal(t, 1920, cfg.ViewportWidth)
	assert.Equal(t, 1080, cfg.ViewportHeight)
	assert.Equal(t, domain.PixelCoordinate{X: -40}, cfg.CenterOffset)
	assert.InDelta(t, 0.4, cfg.Rule.SaturationThreshold, 1e-12)
	assert.Equal(t, []domain.HueRange{{Low: 180, High: 250}}, cfg.Rule.HueRanges)
	assert.InDelta(t, 0.25, cfg.CoverageThreshold, 1e-12)
	assert.Equal(t, 1500*time.Millisecond, cfg.StepSettle)
	assert.Equal(t, 20, cfg.MaxSteps)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "alerts", cfg.KafkaTopic)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rainalert.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target_lat: 31.23
target_lon: 121.47
zoom: 10
webhook_url: https://example.test/hook
coverage_threshold: 0.2
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.GeoPoint{Lat: 31.23, Lon: 121.47}, cfg.Target)
	assert.Equal(t, 10, cfg.Zoom)
	assert.Equal(t, "https://example.test/hook", cfg.WebhookURL)
	assert.InDelta(t, 0.2, cfg.CoverageThreshold, 1e-12)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rainalert.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_lat: 31.23\ntarget_lon: 121.47\nzoom: 10\n"), 0o600))
	t.Setenv("ZOOM", "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Zoom)
}

func TestLoad_MalformedCoordinateNotReadAsZero(t *testing.T) {
	t.Setenv("TARGET_LAT", "23,761781")
	t.Setenv("TARGET_LON", testLon)

	cfg, err := Load("")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid TARGET_LAT")
}

func TestLoad_ShutdownTimeoutFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rainalert.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_lat: 31.23\ntarget_lon: 121.47\nshutdown_timeout: 45s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_MissingTarget(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TARGET_LAT")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"TARGET_LAT", "95", "TARGET_LAT"},
		{"TARGET_LON", "-200", "TARGET_LON"},
		{"ZOOM", "30", "ZOOM"},
		{"VIEWPORT_WIDTH", "0", "VIEWPORT_WIDTH"},
		{"SATURATION_THRESHOLD", "1.5", "SATURATION_THRESHOLD"},
		{"COVERAGE_THRESHOLD", "0", "COVERAGE_THRESHOLD"},
		{"HUE_RANGES", "blue", "HUE_RANGES"},
		{"MAX_STEPS", "0", "MAX_STEPS"},
		{"PAGE_LOAD_ATTEMPTS", "0", "PAGE_LOAD_ATTEMPTS"},
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"SHUTDOWN_TIMEOUT", "-1s", "SHUTDOWN_TIMEOUT"},
		{"TARGET_LAT", "23,761781", "TARGET_LAT"},
		{"TARGET_LON", "abc", "TARGET_LON"},
		{"ZOOM", "eleven", "ZOOM"},
		{"MAX_STEPS", "many", "MAX_STEPS"},
		{"STEP_SETTLE", "soon", "STEP_SETTLE"},
		{"COVERAGE_THRESHOLD", "ten percent", "COVERAGE_THRESHOLD"},
		{"HEADLESS", "maybe", "HEADLESS"},
		{"VIEW_LAT", "24.0", "VIEW_LON"},
		{"VIEW_LON", "121.0", "VIEW_LAT"},
		{"VIEW_LAT", "nowhere", "VIEW_LAT"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setTarget(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "UTC", formatOffset(0))
	assert.Equal(t, "UTC+8", formatOffset(8*time.Hour))
	assert.Equal(t, "UTC+5:45", formatOffset(5*time.Hour+45*time.Minute))
	assert.Equal(t, "UTC-3", formatOffset(-3*time.Hour))
}
