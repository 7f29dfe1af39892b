package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/radar-rain-alert/internal/config"
	"github.com/couchcryptid/radar-rain-alert/internal/domain"
	"github.com/couchcryptid/radar-rain-alert/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrPageLoad is returned when the radar page could not be opened within
// the configured number of attempts.
var ErrPageLoad = errors.New("radar page failed to load")

const (
	resultDetected = "[RESULT] RAIN_DETECTED"
	resultClear    = "[RESULT] NO_RAIN_DETECTED"
	clearMessage   = "未检测到雷达回波色带覆盖（仅供参考）。"

	initialBackoff = 200 * time.Millisecond
)

// Page is a loaded browser tab showing the radar map.
type Page interface {
	domain.TimeControl
	Open(ctx context.Context, url string) error
	Refresh(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Launcher starts a browser and returns its page.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (Page, error)

func (f LauncherFunc) Launch(ctx context.Context) (Page, error) { return f(ctx) }

// Notifier delivers the detection message.
type Notifier interface {
	Notify(ctx context.Context, content string) error
}

// Publisher records a positive result on an event stream.
type Publisher interface {
	PublishDetection(ctx context.Context, result domain.RunResult) error
}

// Deps are the collaborators of a Pipeline. Publisher, Clock and Out are optional.
type Deps struct {
	Launcher  Launcher
	Notifier  Notifier
	Publisher Publisher
	Clock     clockwork.Clock
	Out       io.Writer // result lines; os.Stdout when nil
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Pipeline runs radar checks: open the map, align its clock, screenshot,
// classify, and notify.
type Pipeline struct {
	cfg       *config.Config
	mapURL    string
	launcher  Launcher
	notifier  Notifier
	publisher Publisher
	clock     clockwork.Clock
	out       io.Writer
	logger    *slog.Logger
	metrics   *observability.Metrics

	ready atomic.Bool
	mu    sync.Mutex
	last  *domain.RunResult
}

// New creates a Pipeline that inspects mapURL.
func New(cfg *config.Config, mapURL string, deps Deps) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	return &Pipeline{
		cfg:       cfg,
		mapURL:    mapURL,
		launcher:  deps.Launcher,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		out:       deps.Out,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
}

// CheckReadiness returns nil once a radar check has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no radar check has completed yet")
	}
	return nil
}

// LastResult returns the most recent completed check.
func (p *Pipeline) LastResult() (domain.RunResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return domain.RunResult{}, false
	}
	return *p.last, true
}

// RunOnce performs one complete radar check. The browser is closed on every
// path. A failed notification or publication fails the run.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.RunResult, error) {
	start := p.clock.Now()
	result, err := p.check(ctx)
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())

	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		p.logger.Error("radar check failed", "error", err)
		return result, err
	}

	label := "clear"
	if result.Detected {
		label = "detected"
	}
	p.metrics.RunsTotal.WithLabelValues(label).Inc()
	p.metrics.LastRunTime.Set(float64(result.CheckedAt.Unix()))

	p.mu.Lock()
	p.last = &result
	p.mu.Unlock()
	p.ready.Store(true)
	return result, nil
}

func (p *Pipeline) check(ctx context.Context) (domain.RunResult, error) {
	result := domain.RunResult{
		Target: p.cfg.Target,
		URL:    p.mapURL,
		Thresholds: domain.Thresholds{
			Saturation: p.cfg.Rule.SaturationThreshold,
			Coverage:   p.cfg.CoverageThreshold,
		},
	}

	p.logger.Info("launching browser", "phase", "1/6",
		"viewport", fmt.Sprintf("%dx%d", p.cfg.ViewportWidth, p.cfg.ViewportHeight),
		"headless", p.cfg.Headless,
	)
	page, err := p.launcher.Launch(ctx)
	if err != nil {
		return result, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			p.logger.Warn("browser close failed", "phase", "cleanup", "error", err)
			return
		}
		p.logger.Debug("browser closed", "phase", "cleanup")
	}()

	p.logger.Info("opening radar page", "phase", "2/6", "url", p.mapURL)
	if err := p.open(ctx, page); err != nil {
		return result, err
	}
	if err := page.Refresh(ctx); err != nil {
		return result, fmt.Errorf("refresh radar page: %w", err)
	}

	p.logger.Info("waiting for page to settle", "phase", "3/6", "wait", p.cfg.PageSettle)
	if !sleepWithContext(ctx, p.clock, p.cfg.PageSettle) {
		return result, ctx.Err()
	}

	p.logger.Info("aligning map clock", "phase", "4/6", "forecast_minutes", p.cfg.ForecastMin)
	align, err := p.align(ctx, page)
	result.Alignment = align
	if err != nil {
		return result, fmt.Errorf("align map clock: %w", err)
	}

	p.logger.Info("capturing screenshot", "phase", "5/6")
	if err := p.sample(ctx, page, &result); err != nil {
		return result, err
	}

	result.Detected = result.Coverage.Detected(p.cfg.CoverageThreshold)
	result.Debug = domain.FormatDebug(result)
	result.CheckedAt = p.clock.Now()
	p.metrics.CoverageRatio.Set(result.Coverage.Ratio)

	p.logger.Info("check complete", "phase", "6/6",
		"detected", result.Detected,
		"coverage", result.Coverage.Ratio,
		"alignment", align.Outcome.String(),
	)
	return result, p.report(ctx, result)
}

// open navigates with a fixed backoff between attempts.
func (p *Pipeline) open(ctx context.Context, page Page) error {
	attempts := p.cfg.PageLoadAttempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := page.Open(ctx, p.mapURL)
		if err == nil {
			p.metrics.PageLoadAttempts.WithLabelValues("success").Inc()
			return nil
		}
		p.metrics.PageLoadAttempts.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		p.logger.Warn("page load failed", "phase", "2/6", "attempt", attempt, "attempts", attempts, "error", err)

		if attempt < attempts && !sleepWithContext(ctx, p.clock, p.cfg.PageLoadBackoff) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrPageLoad, attempts, lastErr)
}

func (p *Pipeline) align(ctx context.Context, page Page) (domain.AlignResult, error) {
	settle := p.cfg.StepSettle
	if settle == 0 {
		settle = -1 // zero means no wait, not the aligner default
	}
	aligner := domain.NewAligner(page, domain.AlignerConfig{
		MaxSteps: p.cfg.MaxSteps,
		Settle:   settle,
		Zone:     p.cfg.Zone,
	}, p.clock, p.logger)

	res, err := aligner.Align(ctx, p.cfg.ForecastMin)
	if err != nil {
		return res, err
	}
	p.metrics.AlignmentOutcomes.WithLabelValues(res.Outcome.String()).Inc()
	p.metrics.AlignmentSteps.Observe(float64(res.Steps))
	return res, nil
}

// sample screenshots the page and fills the colour fields of result.
func (p *Pipeline) sample(ctx context.Context, page Page, result *domain.RunResult) error {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if path := p.cfg.ScreenshotPath; path != "" {
		if err := os.WriteFile(path, shot, 0o644); err != nil {
			p.logger.Warn("screenshot not saved", "path", path, "error", err)
		} else {
			p.logger.Info("screenshot saved", "path", path)
		}
	}

	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}
	if b := img.Bounds(); b.Dx() != p.cfg.ViewportWidth || b.Dy() != p.cfg.ViewportHeight {
		p.logger.Debug("screenshot size differs from viewport", "width", b.Dx(), "height", b.Dy())
	}

	result.Sample = domain.SamplePoint(
		p.cfg.Target, p.cfg.View,
		domain.ProjectionParams{Zoom: p.cfg.Zoom},
		p.cfg.ViewportWidth, p.cfg.ViewportHeight,
		p.cfg.CenterOffset,
	)
	result.Average = domain.AverageColor(img, result.Sample, p.cfg.AverageRadius)
	result.Score = domain.RainScore(result.Average)
	result.Coverage = domain.SampleCoverage(img, result.Sample, p.cfg.CoverageRadius, p.cfg.Rule)
	return nil
}

// report prints the verdict and, on detection, notifies and publishes.
func (p *Pipeline) report(ctx context.Context, result domain.RunResult) error {
	fmt.Fprintln(p.out, result.Debug)
	if !result.Detected {
		fmt.Fprintln(p.out, resultClear)
		fmt.Fprintln(p.out, clearMessage)
		return nil
	}

	msg := domain.DetectionMessage(result)
	fmt.Fprintln(p.out, resultDetected)
	fmt.Fprintln(p.out, msg)

	if err := p.notifier.Notify(ctx, msg); err != nil {
		p.metrics.Notifications.WithLabelValues("error").Inc()
		return fmt.Errorf("send notification: %w", err)
	}
	if e, ok := p.notifier.(interface{ Enabled() bool }); ok && !e.Enabled() {
		p.metrics.Notifications.WithLabelValues("skipped").Inc()
	} else {
		p.metrics.Notifications.WithLabelValues("sent").Inc()
	}

	if p.publisher == nil {
		return nil
	}
	if err := p.publisher.PublishDetection(ctx, result); err != nil {
		p.metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish detection: %w", err)
	}
	p.metrics.EventsPublished.WithLabelValues("success").Inc()
	return nil
}

// Run repeats RunOnce every watch interval until the context is cancelled.
// Failed checks are retried with exponential backoff capped at the interval.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("watch started", "interval", p.cfg.WatchInterval)
	p.metrics.WatchRunning.Set(1)
	defer p.metrics.WatchRunning.Set(0)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("watch stopping", "reason", ctx.Err())
			return nil
		}

		wait := p.cfg.WatchInterval
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("watch stopping", "reason", ctx.Err())
				return nil
			}
			wait = backoff
			backoff = nextBackoff(backoff, p.cfg.WatchInterval)
			p.logger.Warn("retrying radar check", "retry_in", wait)
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, p.clock, wait) {
			p.logger.Info("watch stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
