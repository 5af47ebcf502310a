// Package tile maps projected coordinates to map tiles. A tile at a
// given zoom is identified by its packed ID: the X column in the upper
// 16 bits and the Y row in the lower 16, which holds every zoom up to
// 15.
package tile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/tilemason/tilemason/element"
	"github.com/tilemason/tilemason/proj"
)

// MaxZoom is the largest zoom the packed 16-bit tile coordinates can
// address.
const MaxZoom = 15

// ID is a packed tile coordinate pair.
type ID uint32

func Pack(x, y uint32) ID {
	return ID(x<<16 | y&0xffff)
}

func (id ID) X() uint32 { return uint32(id) >> 16 }
func (id ID) Y() uint32 { return uint32(id) & 0xffff }

func (id ID) String() string {
	return fmt.Sprintf("%d/%d", id.X(), id.Y())
}

// Parent returns the tile containing this one delta zoom levels up.
func (id ID) Parent(delta uint8) ID {
	return Pack(id.X()>>delta, id.Y()>>delta)
}

func clamp(v float64, max uint32) uint32 {
	if v < 0 {
		return 0
	}
	if u := uint32(v); u < max {
		return u
	}
	return max - 1
}

// At returns the tile containing a stored coordinate.
func At(ll element.LatpLon, zoom uint8) ID {
	lon, latp := proj.Degrees(ll)
	n := uint32(1) << zoom
	x := clamp(math.Floor(proj.Lon2TileX(lon, zoom)), n)
	y := clamp(math.Floor(proj.Latp2TileY(latp, zoom)), n)
	return Pack(x, y)
}

// Box returns the tile's bounding box in the projected (lon, latp)
// plane.
func Box(id ID, zoom uint8) orb.Bound {
	return orb.Bound{
		Min: orb.Point{proj.TileX2Lon(id.X(), zoom), proj.TileY2Latp(id.Y()+1, zoom)},
		Max: orb.Point{proj.TileX2Lon(id.X()+1, zoom), proj.TileY2Latp(id.Y(), zoom)},
	}
}

// CenterLatp returns the projected latitude of the tile row's center,
// used for length-based simplification thresholds.
func CenterLatp(id ID, zoom uint8) float64 {
	return (proj.TileY2Latp(id.Y(), zoom) + proj.TileY2Latp(id.Y()+1, zoom)) / 2
}

// CoverSegment adds to set every tile the segment between a and b
// crosses, walking the segment one tile boundary at a time. Tiles
// containing the two endpoints are included.
func CoverSegment(set map[ID]struct{}, a, b element.LatpLon, zoom uint8) {
	alon, alatp := proj.Degrees(a)
	blon, blatp := proj.Degrees(b)
	x0, y0 := proj.Lon2TileX(alon, zoom), proj.Latp2TileY(alatp, zoom)
	x1, y1 := proj.Lon2TileX(blon, zoom), proj.Latp2TileY(blatp, zoom)
	n := uint32(1) << zoom

	add := func(x, y float64) {
		set[Pack(clamp(x, n), clamp(y, n))] = struct{}{}
	}

	dx, dy := x1-x0, y1-y0
	x, y := math.Floor(x0), math.Floor(y0)
	add(x, y)
	if dx == 0 && dy == 0 {
		return
	}

	sx, sy := -1.0, -1.0
	if dx > 0 {
		sx = 1.0
	}
	if dy > 0 {
		sy = 1.0
	}
	tMaxX := math.Abs((x - x0) / dx)
	if dx > 0 {
		tMaxX = math.Abs((1 + x - x0) / dx)
	}
	tMaxY := math.Abs((y - y0) / dy)
	if dy > 0 {
		tMaxY = math.Abs((1 + y - y0) / dy)
	}
	tdX, tdY := math.Abs(sx/dx), math.Abs(sy/dy)

	for tMaxX < 1 || tMaxY < 1 {
		if tMaxX < tMaxY {
			tMaxX += tdX
			x += sx
		} else {
			tMaxY += tdY
			y += sy
		}
		add(x, y)
	}
	add(math.Floor(x1), math.Floor(y1))
}
