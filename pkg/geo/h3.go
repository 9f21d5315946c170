package geo

import (
	"github.com/uber/h3-go/v4"
)

// H3ResolutionDemand is used for demand aggregation (~1.2 km edge, ~5.16 km²).
// See: https://h3geo.org/docs/core-library/restable
const H3ResolutionDemand = 7

// CellFor returns the H3 cell index of the coordinate as a hex string.
// Invalid coordinates yield an empty string.
func CellFor(c Coordinate, resolution int) string {
	if !c.Valid() {
		return ""
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(c.Latitude, c.Longitude), resolution)
	if err != nil {
		return ""
	}
	return cell.String()
}

// CellCenter returns the center coordinate of an H3 cell hex string.
func CellCenter(index string) (Coordinate, bool) {
	cell := h3.CellFromString(index)
	if !cell.IsValid() {
		return Coordinate{}, false
	}
	latLng, err := cell.LatLng()
	if err != nil {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: latLng.Lat, Longitude: latLng.Lng}, true
}
