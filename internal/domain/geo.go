package domain

import "math"

// DefaultTileSize is the edge length of a web map tile at zoom 0.
const DefaultTileSize = 256

// maxSinLat keeps the Mercator log finite near the poles.
const maxSinLat = 0.9999

// GeoPoint is a WGS-84 latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ProjectionParams fixes the pixel scale of the map projection.
type ProjectionParams struct {
	Zoom     int
	TileSize int
}

// WorldPixel is a position on the full-world pixel plane at a given zoom.
type WorldPixel struct {
	X float64
	Y float64
}

// PixelCoordinate is a position in screenshot space.
type PixelCoordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Project converts a geographic point to spherical-Mercator world pixels.
// The world is TileSize * 2^Zoom pixels wide; TileSize defaults to 256.
func Project(p GeoPoint, params ProjectionParams) WorldPixel {
	tile := params.TileSize
	if tile <= 0 {
		tile = DefaultTileSize
	}
	scale := float64(tile) * math.Exp2(float64(params.Zoom))

	sinLat := math.Sin(p.Lat * math.Pi / 180)
	sinLat = math.Min(math.Max(sinLat, -maxSinLat), maxSinLat)

	return WorldPixel{
		X: (p.Lon + 180) / 360 * scale,
		Y: (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * scale,
	}
}

// ViewportCenter returns the middle pixel of a width x height viewport.
func ViewportCenter(width, height int) PixelCoordinate {
	return PixelCoordinate{X: width / 2, Y: height / 2}
}

// SamplePoint locates target on screen when the map view is centred on view.
// offset is a fixed calibration shift for UI chrome that moves the effective
// map centre away from the viewport centre. With view == target and a zero
// offset this is exactly the viewport centre.
func SamplePoint(target, view GeoPoint, params ProjectionParams, width, height int, offset PixelCoordinate) PixelCoordinate {
	center := ViewportCenter(width, height)
	t := Project(target, params)
	v := Project(view, params)
	return PixelCoordinate{
		X: center.X + int(math.Round(t.X-v.X)) + offset.X,
		Y: center.Y + int(math.Round(t.Y-v.Y)) + offset.Y,
	}
}
