// Package browser drives a headless Chrome instance on the radar map page.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/couchcryptid/radar-rain-alert/internal/domain"
)

// Options configures the browser process and per-action timeouts.
type Options struct {
	Width, Height    int
	Headless         bool
	ExecPath         string // empty uses the chromedp lookup
	PageLoadTimeout  time.Duration
	StepClickTimeout time.Duration
}

// Launcher starts browser sessions.
type Launcher struct {
	opts   Options
	logger *slog.Logger
}

// NewLauncher creates a Launcher with the given options.
func NewLauncher(opts Options, logger *slog.Logger) *Launcher {
	return &Launcher{opts: opts, logger: logger}
}

// Launch starts a browser with a fixed window size and returns its single tab.
// The caller must Close the page.
func (l *Launcher) Launch(ctx context.Context) (*Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(l.opts.Width, l.opts.Height),
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		l.logger.Debug(fmt.Sprintf(format, args...))
	}))

	p := &Page{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		opts:        l.opts,
		logger:      l.logger,
	}

	// The first Run must use the tab context itself: it owns the browser process.
	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(l.opts.Width), int64(l.opts.Height)),
	); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return p, nil
}

// Page is one browser tab. It implements domain.TimeControl.
type Page struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
	logger      *slog.Logger
}

// Open navigates to url and waits for the load event.
func (p *Page) Open(ctx context.Context, url string) error {
	if err := p.run(ctx, p.opts.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Refresh reloads the current page.
func (p *Page) Refresh(ctx context.Context) error {
	if err := p.run(ctx, p.opts.PageLoadTimeout, chromedp.Reload()); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// ReadDisplayedTime reads the map clock. Missing or malformed widgets
// report false.
func (p *Page) ReadDisplayedTime(ctx context.Context) (domain.TimeOfDay, bool) {
	var text clockText
	if err := p.run(ctx, p.opts.StepClickTimeout, chromedp.Evaluate(clockScript, &text)); err != nil {
		p.logger.Debug("read map clock failed", "error", err)
		return domain.TimeOfDay{}, false
	}
	t, ok, err := text.parse()
	if err != nil {
		p.logger.Debug("map clock unreadable", "error", err)
	}
	return t, ok
}

// AdvanceOneStep clicks the next-minute button once. A missing, disabled or
// unclickable button is reported as domain.ErrStepBlocked.
func (p *Page) AdvanceOneStep(ctx context.Context) (string, error) {
	var state string
	if err := p.run(ctx, p.opts.StepClickTimeout, chromedp.Evaluate(buttonStateScript, &state)); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("cannot query next minute button: %v: %w", err, domain.ErrStepBlocked)
	}

	switch state {
	case buttonMissing:
		return "", fmt.Errorf("cannot find next minute button: %w", domain.ErrStepBlocked)
	case buttonDisabled:
		return "", fmt.Errorf("next minute button is disabled: %w", domain.ErrStepBlocked)
	}

	if err := p.run(ctx, p.opts.StepClickTimeout,
		chromedp.WaitEnabled(nextSelector, chromedp.ByQuery),
		chromedp.Click(nextSelector, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("next minute button not clickable: %v: %w", err, domain.ErrStepBlocked)
	}
	return "minute.up", nil
}

// Screenshot captures the visible viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, p.opts.PageLoadTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (p *Page) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.tabCancel()
	p.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}
