// Package domain holds the radar-reading logic: projecting the home
// coordinate onto the map, classifying radar echo colours, sampling a
// screenshot region, and stepping the map's time control to a forecast frame.
//
// # Radar colour ramp
//
// The radar layer encodes reflectivity as a colour ramp running
// blue → green → yellow → red → purple. The basemap underneath is drawn in
// muted greens and greys. Classification therefore filters on HSV saturation
// first (basemap tones fall below 0.26) and then on hue:
//
//	blue/cyan           170°–260°
//	yellow/orange/red     0°–60°
//	purple              260°–330°
//
// Hue ranges with low > high wrap through 0°.
//
// # Coverage
//
// A single pixel is too easy to fool (labels, tile seams, UI overlays), so the
// decision uses the fraction of rain-coloured pixels in a 25×25 square around
// the home pixel. Detection fires at 10% coverage. The averaged colour and the
// legacy [RainScore] are kept for the debug line only.
//
// # Map clock
//
// The map shows the frame time as separate hour, minute and AM/PM elements
// and only offers a one-frame forward button. [Aligner] reads the clock,
// compares it with now+horizon in UTC+8 (hour, then minute, same day) and
// clicks forward until the target is reached, the button stops working
// ([ErrStepBlocked], i.e. the newest frame is showing) or the step budget is
// spent.
package domain
