package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrStepBlocked signals that the forward time control is disabled, missing,
// or not clickable. The map is then showing its latest available frame.
var ErrStepBlocked = errors.New("time step blocked")

// Default alignment tuning.
const (
	DefaultMaxSteps    = 60
	DefaultStepSettle  = 800 * time.Millisecond
	DefaultUTCOffset   = 8 * time.Hour
	referenceZoneLabel = "UTC+8"
)

// ReferenceZone is the fixed zone the forecast horizon is measured in.
var ReferenceZone = time.FixedZone(referenceZoneLabel, int(DefaultUTCOffset.Seconds()))

// TimeControl is the part of the map page the aligner drives.
type TimeControl interface {
	// ReadDisplayedTime returns the frame time shown by the page. The boolean
	// is false when the clock cannot be read or parsed.
	ReadDisplayedTime(ctx context.Context) (TimeOfDay, bool)

	// AdvanceOneStep moves the time control forward one frame and returns a
	// label for the control used. It returns an error wrapping ErrStepBlocked
	// when the control cannot be used.
	AdvanceOneStep(ctx context.Context) (string, error)
}

// AlignOutcome is how an alignment run ended.
type AlignOutcome int

const (
	// AlignReached means the displayed time is at or past the target.
	AlignReached AlignOutcome = iota
	// AlignBlocked means the forward control stopped working first.
	AlignBlocked
	// AlignExhausted means the step budget ran out.
	AlignExhausted
)

func (o AlignOutcome) String() string {
	switch o {
	case AlignReached:
		return "reached"
	case AlignBlocked:
		return "blocked"
	case AlignExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("AlignOutcome(%d)", int(o))
	}
}

// AlignResult describes a finished alignment.
type AlignResult struct {
	Outcome        AlignOutcome
	Target         TimeOfDay
	Displayed      TimeOfDay // last successful clock reading
	DisplayedKnown bool
	Steps          int // successful advances
	Attempts       int // advance calls, including a blocked one
	BlockedReason  string
}

// AlignerConfig tunes an Aligner. Zero values take the defaults.
type AlignerConfig struct {
	MaxSteps int
	Settle   time.Duration
	Zone     *time.Location
}

// Aligner steps a page's time control forward until it shows a target time.
type Aligner struct {
	control  TimeControl
	clock    clockwork.Clock
	maxSteps int
	settle   time.Duration
	zone     *time.Location
	logger   *slog.Logger
}

// NewAligner creates an Aligner. A nil clock uses real time. A negative
// Settle disables the wait between steps.
func NewAligner(control TimeControl, cfg AlignerConfig, clock clockwork.Clock, logger *slog.Logger) *Aligner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Settle == 0 {
		cfg.Settle = DefaultStepSettle
	}
	if cfg.Zone == nil {
		cfg.Zone = ReferenceZone
	}
	return &Aligner{
		control:  control,
		clock:    clock,
		maxSteps: cfg.MaxSteps,
		settle:   cfg.Settle,
		zone:     cfg.Zone,
		logger:   logger,
	}
}

// Align advances the displayed time to now+minutesAhead in the reference
// zone. Blocked and exhausted runs are normal outcomes; the only error is
// context cancellation or an advance failure that is not ErrStepBlocked.
func (a *Aligner) Align(ctx context.Context, minutesAhead int) (AlignResult, error) {
	res := AlignResult{Target: TargetTime(a.clock.Now(), a.zone, minutesAhead)}
	a.logger.Info("aligning map time",
		"target", res.Target.String(),
		"minutes_ahead", minutesAhead,
		"zone", a.zone.String(),
	)

	for i := 0; i < a.maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		displayed, ok := a.control.ReadDisplayedTime(ctx)
		if ok {
			res.Displayed = displayed
			res.DisplayedKnown = true
			a.logger.Debug("map clock", "displayed", displayed.String())
			if displayed.Reached(res.Target) {
				res.Outcome = AlignReached
				a.logger.Info("target time reached", "displayed", displayed.String(), "target", res.Target.String())
				return res, nil
			}
		} else {
			a.logger.Debug("map clock unreadable")
		}

		res.Attempts++
		label, err := a.control.AdvanceOneStep(ctx)
		if err != nil {
			if !errors.Is(err, ErrStepBlocked) {
				return res, fmt.Errorf("advance time control: %w", err)
			}
			res.Outcome = AlignBlocked
			res.BlockedReason = err.Error()
			a.logger.Warn("latest available frame reached, cannot advance further", "error", err)
			return res, nil
		}
		res.Steps++
		a.logger.Info("advanced time control", "control", label, "step", i+1, "max_steps", a.maxSteps)

		if err := a.wait(ctx); err != nil {
			return res, err
		}
	}

	res.Outcome = AlignExhausted
	a.logger.Warn("step budget exhausted before reaching target", "max_steps", a.maxSteps, "target", res.Target.String())
	return res, nil
}

func (a *Aligner) wait(ctx context.Context) error {
	if a.settle <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.clock.After(a.settle):
		return nil
	}
}
