package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LegacyScoreThreshold is printed next to RainScore for reference only.
const LegacyScoreThreshold = 110.0

// ColorSample is an RGB colour with channels in [0,255]. Channels are floats
// because averaged regions rarely land on whole values.
type ColorSample struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// HSVSample holds hue in degrees [0,360) and saturation/value in [0,1].
type HSVSample struct {
	H float64
	S float64
	V float64
}

func (h HSVSample) String() string {
	return fmt.Sprintf("HSV=(%.1f,%.2f,%.2f)", h.H, h.S, h.V)
}

// HueRange is an inclusive hue interval in degrees. Low > High wraps through
// 0°, so {350, 20} covers 350..360 and 0..20.
type HueRange struct {
	Low  float64
	High float64
}

// Contains reports whether hue falls inside the range.
func (r HueRange) Contains(hue float64) bool {
	if r.Low <= r.High {
		return hue >= r.Low && hue <= r.High
	}
	return hue >= r.Low || hue <= r.High
}

// ClassificationRule decides which colours count as radar echo.
type ClassificationRule struct {
	SaturationThreshold float64
	HueRanges           []HueRange
}

// DefaultRule models the radar reflectivity ramp (blue/cyan, yellow through
// red, purple) while rejecting the desaturated greens and greys of the basemap.
func DefaultRule() ClassificationRule {
	return ClassificationRule{
		SaturationThreshold: 0.26,
		HueRanges: []HueRange{
			{Low: 170, High: 260}, // blue/cyan
			{Low: 0, High: 60},    // yellow/orange/red
			{Low: 260, High: 330}, // purple
		},
	}
}

// ToHSV converts an RGB sample to HSV.
func ToHSV(c ColorSample) HSVSample {
	r, g, b := c.R/255, c.G/255, c.B/255

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	delta := maxC - minC

	var h float64
	switch {
	case delta == 0:
		h = 0
	case maxC == r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case maxC == g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h -= 360
	}

	var s float64
	if maxC > 0 {
		s = delta / maxC
	}
	return HSVSample{H: h, S: s, V: maxC}
}

// Classify reports whether c looks like radar echo under rule, with a short
// diagnostic reason. Saturation is checked first so grey pixels, whose hue is
// undefined, never reach the hue comparison.
func Classify(c ColorSample, rule ClassificationRule) (bool, string) {
	hsv := ToHSV(c)

	if hsv.S < rule.SaturationThreshold {
		return false, fmt.Sprintf("%s S<%g", hsv, rule.SaturationThreshold)
	}
	if hsv.S == 0 {
		return false, fmt.Sprintf("%s achromatic", hsv)
	}
	for _, r := range rule.HueRanges {
		if r.Contains(hsv.H) {
			return true, fmt.Sprintf("%s hit rain ramp", hsv)
		}
	}
	return false, fmt.Sprintf("%s hue outside rain ramp", hsv)
}

// RainScore is the superseded warm-plus-purple-minus-green score. It is
// logged for comparison with older runs and never gates detection.
func RainScore(c ColorSample) float64 {
	warm := c.R
	purple := (c.R + c.B) * 0.6
	penaltyGreen := c.G * 0.9
	return warm + purple - penaltyGreen
}

// ParseHueRanges parses "170-260,0-60,260-330" into hue ranges.
func ParseHueRanges(s string) ([]HueRange, error) {
	var ranges []HueRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("hue range %q: expected low-high", part)
		}
		low, err := parseHue(lo)
		if err != nil {
			return nil, fmt.Errorf("hue range %q: %w", part, err)
		}
		high, err := parseHue(hi)
		if err != nil {
			return nil, fmt.Errorf("hue range %q: %w", part, err)
		}
		ranges = append(ranges, HueRange{Low: low, High: high})
	}
	if len(ranges) == 0 {
		return nil, errors.New("no hue ranges")
	}
	return ranges, nil
}

func parseHue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 360 {
		return 0, fmt.Errorf("hue %g out of [0,360]", v)
	}
	return v, nil
}
