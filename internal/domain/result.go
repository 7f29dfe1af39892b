package domain

import (
	"fmt"
	"time"
)

// RainAlertMarker opens every detection message.
const RainAlertMarker = "⚠️ 可能要下雨"

// Thresholds are the decision parameters echoed into the debug line.
type Thresholds struct {
	Saturation float64 `json:"saturation"`
	Coverage   float64 `json:"coverage"`
}

// RunResult is the outcome of one inspection of the radar map.
type RunResult struct {
	Detected   bool            `json:"detected"`
	Target     GeoPoint        `json:"target"`
	URL        string          `json:"url"`
	Sample     PixelCoordinate `json:"sample"`
	Average    ColorSample     `json:"average_rgb"`
	Score      float64         `json:"score"`
	Coverage   CoverageResult  `json:"coverage"`
	Thresholds Thresholds      `json:"thresholds"`
	Alignment  AlignResult     `json:"-"`
	Debug      string          `json:"debug"`
	CheckedAt  time.Time       `json:"checked_at"`
}

// FormatDebug renders the one-line diagnostic for a run.
func FormatDebug(r RunResult) string {
	return fmt.Sprintf(
		"ZoomEarth sample(screen)=(%d,%d) RGB=(%d,%d,%d) score=%.1f (score_threshold=%g) S_threshold=%g coverage=%.3f (threshold=%g; %s)",
		r.Sample.X, r.Sample.Y,
		int(r.Average.R), int(r.Average.G), int(r.Average.B),
		r.Score, LegacyScoreThreshold,
		r.Thresholds.Saturation,
		r.Coverage.Ratio, r.Thresholds.Coverage, r.Coverage.Reason,
	)
}

// DetectionMessage is the notification text sent when rain is detected.
func DetectionMessage(r RunResult) string {
	return fmt.Sprintf("%s：你家附近检测到雷达回波色带覆盖。\n%s\n%s", RainAlertMarker, r.Debug, r.URL)
}
