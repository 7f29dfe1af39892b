package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleResult() RunResult {
	return RunResult{
		Detected:   true,
		URL:        "https://zoom.earth/maps/radar/#view=23.761781,121.474342,11z",
		Sample:     PixelCoordinate{X: 640, Y: 360},
		Average:    ColorSample{R: 40.6, G: 120.2, B: 230.9},
		Score:      193.5,
		Coverage:   CoverageResult{Ratio: 0.15, Reason: "region=25x25 hit=94/625 ratio=0.150 sample_hit_HSV=(214.7,0.83,0.90)"},
		Thresholds: Thresholds{Saturation: 0.26, Coverage: 0.1},
	}
}

func TestFormatDebug(t *testing.T) {
	got := FormatDebug(sampleResult())

	assert.Equal(t,
		"ZoomEarth sample(screen)=(640,360) RGB=(40,120,230) score=193.5 (score_threshold=110) "+
			"S_threshold=0.26 coverage=0.150 (threshold=0.1; region=25x25 hit=94/625 ratio=0.150 sample_hit_HSV=(214.7,0.83,0.90))",
		got)
}

func TestDetectionMessage(t *testing.T) {
	r := sampleResult()
	r.Debug = FormatDebug(r)

	lines := strings.Split(DetectionMessage(r), "\n")

	assert.Len(t, lines, 3)
	assert.Equal(t, "⚠️ 可能要下雨：你家附近检测到雷达回波色带覆盖。", lines[0])
	assert.Equal(t, r.Debug, lines[1])
	assert.Equal(t, r.URL, lines[2])
}
