package domain

import (
	"fmt"
	"image"
	"image/color"
)

// CoverageResult is the fraction of a sampled region classified as rain.
type CoverageResult struct {
	Ratio  float64         `json:"ratio"`
	Hits   int             `json:"hits"`
	Total  int             `json:"total"`
	Region image.Rectangle `json:"-"`
	Reason string          `json:"reason"`
}

// Detected applies the coverage decision rule.
func (c CoverageResult) Detected(threshold float64) bool {
	return c.Ratio >= threshold
}

// sampleRegion returns the square of the given radius around center, clamped
// to the image bounds. The result is empty when nothing overlaps.
func sampleRegion(bounds image.Rectangle, center PixelCoordinate, radius int) image.Rectangle {
	if radius < 0 {
		radius = 0
	}
	r := image.Rect(center.X-radius, center.Y-radius, center.X+radius+1, center.Y+radius+1)
	return r.Intersect(bounds)
}

func pixelSample(img image.Image, x, y int) ColorSample {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return ColorSample{R: float64(c.R), G: float64(c.G), B: float64(c.B)}
}

// SampleCoverage classifies every pixel in the clamped square region and
// returns the hit ratio. Coverage counts per-pixel verdicts; it never
// classifies the averaged colour.
func SampleCoverage(img image.Image, center PixelCoordinate, radius int, rule ClassificationRule) CoverageResult {
	if img == nil {
		return CoverageResult{Reason: "empty region"}
	}
	region := sampleRegion(img.Bounds(), center, radius)
	if region.Empty() {
		return CoverageResult{Region: region, Reason: "empty region"}
	}

	var (
		hits     int
		firstHit *HSVSample
	)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			c := pixelSample(img, x, y)
			if ok, _ := Classify(c, rule); ok {
				hits++
				if firstHit == nil {
					hsv := ToHSV(c)
					firstHit = &hsv
				}
			}
		}
	}

	total := region.Dx() * region.Dy()
	ratio := float64(hits) / float64(total)

	extra := "sample_hit_HSV=None"
	if firstHit != nil {
		extra = "sample_hit_" + firstHit.String()
	}

	return CoverageResult{
		Ratio:  ratio,
		Hits:   hits,
		Total:  total,
		Region: region,
		Reason: fmt.Sprintf("region=%dx%d hit=%d/%d ratio=%.3f %s", region.Dx(), region.Dy(), hits, total, ratio, extra),
	}
}

// AverageColor returns the per-channel mean of the same clamped region
// SampleCoverage uses. It is a single-point debugging aid; an empty region
// averages to black.
func AverageColor(img image.Image, center PixelCoordinate, radius int) ColorSample {
	if img == nil {
		return ColorSample{}
	}
	region := sampleRegion(img.Bounds(), center, radius)
	if region.Empty() {
		return ColorSample{}
	}

	var sum ColorSample
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			c := pixelSample(img, x, y)
			sum.R += c.R
			sum.G += c.G
			sum.B += c.B
		}
	}
	n := float64(region.Dx() * region.Dy())
	return ColorSample{R: sum.R / n, G: sum.G / n, B: sum.B / n}
}
