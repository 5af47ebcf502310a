// Package proj converts between WGS84 latitudes, projected latitudes
// (latp, the web-Mercator y expressed in degrees) and tile coordinates.
// All conversions are pure.
package proj

import (
	"math"

	"github.com/tilemason/tilemason/element"
)

// FixedPointScale is the scale of the fixed-point coordinates kept in
// the stores.
const FixedPointScale = 1e7

const degToRad = math.Pi / 180
const radToDeg = 180 / math.Pi

// Lat2Latp projects a WGS84 latitude into Mercator degrees.
func Lat2Latp(lat float64) float64 {
	return radToDeg * math.Log(math.Tan(math.Pi/4+lat*degToRad/2))
}

// Latp2Lat is the inverse of Lat2Latp.
func Latp2Lat(latp float64) float64 {
	return radToDeg * (2*math.Atan(math.Exp(latp*degToRad)) - math.Pi/2)
}

// FromDegrees converts a WGS84 coordinate to the fixed-point projected
// representation used by the node store.
func FromDegrees(lat, lon float64) element.LatpLon {
	return element.LatpLon{
		Latp: int32(math.Round(Lat2Latp(lat) * FixedPointScale)),
		Lon:  int32(math.Round(lon * FixedPointScale)),
	}
}

// Degrees returns the (lon, latp) pair of a stored coordinate in the
// projected plane, in degrees.
func Degrees(ll element.LatpLon) (lon, latp float64) {
	return float64(ll.Lon) / FixedPointScale, float64(ll.Latp) / FixedPointScale
}

// Lon2TileX returns the fractional tile column of a longitude.
func Lon2TileX(lon float64, zoom uint8) float64 {
	return (lon + 180.0) / 360.0 * float64(uint32(1)<<zoom)
}

// Latp2TileY returns the fractional tile row of a projected latitude.
func Latp2TileY(latp float64, zoom uint8) float64 {
	return (180.0 - latp) / 360.0 * float64(uint32(1)<<zoom)
}

// TileX2Lon returns the longitude of the western edge of tile column x.
func TileX2Lon(x uint32, zoom uint8) float64 {
	return float64(x)/float64(uint32(1)<<zoom)*360.0 - 180.0
}

// TileY2Latp returns the projected latitude of the northern edge of
// tile row y.
func TileY2Latp(y uint32, zoom uint8) float64 {
	return 180.0 - float64(y)/float64(uint32(1)<<zoom)*360.0
}

// metersPerDegree is the ground length of one degree of longitude at
// the equator.
const metersPerDegree = 111319.9

// Meter2Degp converts a ground distance in meters to degrees in the
// projected plane at the given projected latitude. Mercator is
// conformal, so the factor applies to both axes.
func Meter2Degp(meters, latp float64) float64 {
	return meters / (metersPerDegree * math.Cos(Latp2Lat(latp)*degToRad))
}
