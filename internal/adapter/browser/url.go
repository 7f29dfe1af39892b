package browser

import (
	"fmt"
	"strconv"

	"github.com/couchcryptid/radar-rain-alert/internal/domain"
)

// BuildMapURL returns the radar page URL centred on p at the given zoom,
// e.g. https://zoom.earth/maps/radar/#view=23.761781,121.474342,11z.
func BuildMapURL(base string, p domain.GeoPoint, zoom int) string {
	return fmt.Sprintf("%s#view=%s,%s,%dz",
		base,
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		strconv.FormatFloat(p.Lon, 'f', -1, 64),
		zoom,
	)
}
