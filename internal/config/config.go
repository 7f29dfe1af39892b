package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/radar-rain-alert/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds all settings for a radar check, populated from defaults, an
// optional YAML file, and environment variables (highest precedence).
type Config struct {
	Target      domain.GeoPoint
	View        domain.GeoPoint
	Zoom        int
	MapBaseURL  string
	ForecastMin int
	Zone        *time.Location

	WebhookURL    string
	NotifyTimeout time.Duration

	ViewportWidth  int
	ViewportHeight int
	CenterOffset   domain.PixelCoordinate

	Rule              domain.ClassificationRule
	CoverageThreshold float64
	CoverageRadius    int
	AverageRadius     int

	StepSettle       time.Duration
	StepClickTimeout time.Duration
	MaxSteps         int

	PageLoadAttempts int
	PageLoadBackoff  time.Duration
	PageLoadTimeout  time.Duration
	PageSettle       time.Duration

	ScreenshotPath string
	Headless       bool
	ChromePath     string

	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	WatchInterval   time.Duration
	ShutdownTimeout time.Duration

	// Detection event stream; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	PushgatewayURL string
}

// Load reads configuration. path names an optional YAML file; when empty,
// CONFIG_FILE is consulted and then ./rainalert.yaml if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("rainalert")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return build(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("zoom", 11)
	v.SetDefault("map_base_url", "https://zoom.earth/maps/radar/")
	v.SetDefault("forecast_minutes", 15)
	v.SetDefault("reference_utc_offset", domain.DefaultUTCOffset)
	v.SetDefault("webhook_url", "")
	v.SetDefault("notify_timeout", 10*time.Second)
	v.SetDefault("viewport_width", 1280)
	v.SetDefault("viewport_height", 720)
	v.SetDefault("center_offset_x", 0)
	v.SetDefault("center_offset_y", 0)
	v.SetDefault("saturation_threshold", 0.26)
	v.SetDefault("hue_ranges", "170-260,0-60,260-330")
	v.SetDefault("coverage_threshold", 0.10)
	v.SetDefault("coverage_radius", 12)
	v.SetDefault("average_radius", 7)
	v.SetDefault("step_settle", domain.DefaultStepSettle)
	v.SetDefault("step_click_timeout", 5*time.Second)
	v.SetDefault("max_steps", domain.DefaultMaxSteps)
	v.SetDefault("page_load_attempts", 3)
	v.SetDefault("page_load_backoff", 3*time.Second)
	v.SetDefault("page_load_timeout", 60*time.Second)
	v.SetDefault("page_settle", 8*time.Second)
	v.SetDefault("screenshot_path", "screenshot.png")
	v.SetDefault("headless", true)
	v.SetDefault("chrome_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("watch_interval", 10*time.Minute)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("kafka_topic", "rain-detections")
	v.SetDefault("pushgateway_url", "")
}

func build(v *viper.Viper) (*Config, error) {
	if !v.IsSet("target_lat") || !v.IsSet("target_lon") {
		return nil, errors.New("TARGET_LAT and TARGET_LON are required")
	}

	r := &reader{v: v}

	rule := domain.ClassificationRule{SaturationThreshold: r.getFloat("saturation_threshold")}
	ranges, err := domain.ParseHueRanges(r.getString("hue_ranges"))
	if err != nil {
		r.fail("hue_ranges", err)
	}
	rule.HueRanges = ranges

	target := domain.GeoPoint{Lat: r.getFloat("target_lat"), Lon: r.getFloat("target_lon")}
	view := target
	switch hasLat, hasLon := v.IsSet("view_lat"), v.IsSet("view_lon"); {
	case hasLat && hasLon:
		view = domain.GeoPoint{Lat: r.getFloat("view_lat"), Lon: r.getFloat("view_lon")}
	case hasLat:
		r.errs = append(r.errs, errors.New("VIEW_LON is required when VIEW_LAT is set"))
	case hasLon:
		r.errs = append(r.errs, errors.New("VIEW_LAT is required when VIEW_LON is set"))
	}

	offset := r.getDuration("reference_utc_offset")

	cfg := &Config{
		Target:      target,
		View:        view,
		Zoom:        r.getInt("zoom"),
		MapBaseURL:  r.getString("map_base_url"),
		ForecastMin: r.getInt("forecast_minutes"),
		Zone:        time.FixedZone(formatOffset(offset), int(offset.Seconds())),

		WebhookURL:    r.getString("webhook_url"),
		NotifyTimeout: r.getDuration("notify_timeout"),

		ViewportWidth:  r.getInt("viewport_width"),
		ViewportHeight: r.getInt("viewport_height"),
		CenterOffset:   domain.PixelCoordinate{X: r.getInt("center_offset_x"), Y: r.getInt("center_offset_y")},

		Rule:              rule,
		CoverageThreshold: r.getFloat("coverage_threshold"),
		CoverageRadius:    r.getInt("coverage_radius"),
		AverageRadius:     r.getInt("average_radius"),

		StepSettle:       r.getDuration("step_settle"),
		StepClickTimeout: r.getDuration("step_click_timeout"),
		MaxSteps:         r.getInt("max_steps"),

		PageLoadAttempts: r.getInt("page_load_attempts"),
		PageLoadBackoff:  r.getDuration("page_load_backoff"),
		PageLoadTimeout:  r.getDuration("page_load_timeout"),
		PageSettle:       r.getDuration("page_settle"),

		ScreenshotPath: r.getString("screenshot_path"),
		Headless:       r.getBool("headless"),
		ChromePath:     r.getString("chrome_path"),

		LogLevel:        r.getString("log_level"),
		LogFormat:       r.getString("log_format"),
		HTTPAddr:        r.getString("http_addr"),
		WatchInterval:   r.getDuration("watch_interval"),
		ShutdownTimeout: r.getDuration("shutdown_timeout"),

		KafkaBrokers: parseBrokers(r.getString("kafka_brokers")),
		KafkaTopic:   r.getString("kafka_topic"),

		PushgatewayURL: r.getString("pushgateway_url"),
	}

	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reader wraps typed viper lookups. Unlike viper's Get* helpers, a value
// that fails to parse is recorded against its key rather than read as zero.
type reader struct {
	v    *viper.Viper
	errs []error
}

func (r *reader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err))
}

func (r *reader) getFloat(key string) float64 {
	f, err := cast.ToFloat64E(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return f
}

func (r *reader) getInt(key string) int {
	n, err := cast.ToIntE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return n
}

func (r *reader) getDuration(key string) time.Duration {
	d, err := cast.ToDurationE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return d
}

func (r *reader) getBool(key string) bool {
	b, err := cast.ToBoolE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return b
}

func (r *reader) getString(key string) string {
	s, err := cast.ToStringE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return s
}

func (c *Config) validate() error {
	var errs []error

	if !finite(c.Target.Lat) || c.Target.Lat < -90 || c.Target.Lat > 90 {
		errs = append(errs, fmt.Errorf("TARGET_LAT must be within [-90,90], got %v", c.Target.Lat))
	}
	if !finite(c.Target.Lon) || c.Target.Lon < -180 || c.Target.Lon > 180 {
		errs = append(errs, fmt.Errorf("TARGET_LON must be within [-180,180], got %v", c.Target.Lon))
	}
	if !finite(c.View.Lat) || c.View.Lat < -90 || c.View.Lat > 90 {
		errs = append(errs, fmt.Errorf("VIEW_LAT must be within [-90,90], got %v", c.View.Lat))
	}
	if !finite(c.View.Lon) || c.View.Lon < -180 || c.View.Lon > 180 {
		errs = append(errs, fmt.Errorf("VIEW_LON must be within [-180,180], got %v", c.View.Lon))
	}
	if c.Zoom < 0 || c.Zoom > 22 {
		errs = append(errs, fmt.Errorf("ZOOM must be within [0,22], got %d", c.Zoom))
	}
	if c.MapBaseURL == "" {
		errs = append(errs, errors.New("MAP_BASE_URL is required"))
	}
	if c.ForecastMin < 0 {
		errs = append(errs, fmt.Errorf("FORECAST_MINUTES must be >= 0, got %d", c.ForecastMin))
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		errs = append(errs, fmt.Errorf("VIEWPORT_WIDTH/VIEWPORT_HEIGHT must be positive, got %dx%d", c.ViewportWidth, c.ViewportHeight))
	}
	if c.Rule.SaturationThreshold < 0 || c.Rule.SaturationThreshold > 1 {
		errs = append(errs, fmt.Errorf("SATURATION_THRESHOLD must be within [0,1], got %v", c.Rule.SaturationThreshold))
	}
	if c.CoverageThreshold <= 0 || c.CoverageThreshold > 1 {
		errs = append(errs, fmt.Errorf("COVERAGE_THRESHOLD must be within (0,1], got %v", c.CoverageThreshold))
	}
	if c.CoverageRadius < 0 || c.AverageRadius < 0 {
		errs = append(errs, errors.New("COVERAGE_RADIUS and AVERAGE_RADIUS must be >= 0"))
	}
	if c.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("MAX_STEPS must be positive, got %d", c.MaxSteps))
	}
	if c.StepSettle < 0 {
		errs = append(errs, errors.New("STEP_SETTLE must not be negative"))
	}
	if c.PageLoadAttempts <= 0 {
		errs = append(errs, fmt.Errorf("PAGE_LOAD_ATTEMPTS must be positive, got %d", c.PageLoadAttempts))
	}
	if c.PageLoadTimeout <= 0 || c.StepClickTimeout <= 0 || c.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("PAGE_LOAD_TIMEOUT, STEP_CLICK_TIMEOUT and NOTIFY_TIMEOUT must be positive"))
	}
	if c.WatchInterval <= 0 {
		errs = append(errs, errors.New("WATCH_INTERVAL must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", c.ShutdownTimeout))
	}

	return errors.Join(errs...)
}

// parseBrokers returns nil for an unset broker list so Kafka stays disabled.
func parseBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(s)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// formatOffset names a fixed zone, e.g. 8h -> "UTC+8".
func formatOffset(d time.Duration) string {
	if d == 0 {
		return "UTC"
	}
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if m == 0 {
		return fmt.Sprintf("UTC%s%d", sign, h)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, h, m)
}
