// Package tiles handles slippy map tile addressing and downloading.
package tiles

import (
	"fmt"
	"math"
	"strings"

	"github.com/woozymasta/chargermap/internal/geo"
)

// DefaultSize is the edge length of a standard raster tile in pixels.
const DefaultSize = 256

// DefaultMaxTiles bounds the number of tiles fetched for one map.
const DefaultMaxTiles = 256

var subdomains = []string{"a", "b", "c"}

// TileBudgetError reports a zoom whose tile grid exceeds the allowed number of tiles.
type TileBudgetError struct {
	Zoom  int
	Tiles int
	Limit int
}

func (e *TileBudgetError) Error() string {
	return fmt.Sprintf("basemap: zoom %d needs %d tiles, limit is %d", e.Zoom, e.Tiles, e.Limit)
}

// TileCoordinate represents a specific tile.
// X may fall outside [0, 2^Z) when a view crosses the antimeridian, see Wrapped.
type TileCoordinate struct {
	Z, X, Y int
}

// Wrapped returns the coordinate with X folded into the valid range.
func (c TileCoordinate) Wrapped() TileCoordinate {
	n := 1 << c.Z
	x := c.X % n
	if x < 0 {
		x += n
	}

	return TileCoordinate{Z: c.Z, X: x, Y: c.Y}
}

func (c TileCoordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Grid is a rectangular block of tiles covering a view window.
type Grid struct {
	Z          int
	MinX, MinY int
	MaxX, MaxY int // inclusive
}

// Cols returns the number of tile columns.
func (g Grid) Cols() int { return g.MaxX - g.MinX + 1 }

// Rows returns the number of tile rows.
func (g Grid) Rows() int { return g.MaxY - g.MinY + 1 }

// Len returns the number of tiles in the grid.
func (g Grid) Len() int { return g.Cols() * g.Rows() }

// Tiles lists the grid in row major order.
func (g Grid) Tiles() []TileCoordinate {
	out := make([]TileCoordinate, 0, g.Cols()*g.Rows())
	for y := g.MinY; y <= g.MaxY; y++ {
		for x := g.MinX; x <= g.MaxX; x++ {
			out = append(out, TileCoordinate{Z: g.Z, X: x, Y: y})
		}
	}

	return out
}

// MercatorToTile converts Web Mercator meters to fractional tile coordinates at zoom z.
func MercatorToTile(x, y float64, z int) (tx, ty float64) {
	n := math.Exp2(float64(z))
	tx = (x + geo.OriginShift) / (2 * geo.OriginShift) * n
	ty = (geo.OriginShift - y) / (2 * geo.OriginShift) * n

	return tx, ty
}

// Cover returns the tiles intersecting the Web Mercator extent at zoom z.
// Rows are clamped to the world, columns are not so that wrapped views stay continuous.
func Cover(e geo.Extent, z int) Grid {
	minTX, minTY := MercatorToTile(e.MinX, e.MaxY, z)
	maxTX, maxTY := MercatorToTile(e.MaxX, e.MinY, z)

	last := (1 << z) - 1
	g := Grid{
		Z:    z,
		MinX: int(math.Floor(minTX)),
		MaxX: int(math.Ceil(maxTX)) - 1,
		MinY: max(0, int(math.Floor(minTY))),
		MaxY: min(last, int(math.Ceil(maxTY))-1),
	}
	if g.MaxX < g.MinX {
		g.MaxX = g.MinX
	}
	if g.MaxY < g.MinY {
		g.MaxY = g.MinY
	}

	return g
}

// CoverWithin returns the grid covering e at zoom z if it has at most limit tiles.
// With lower set, the zoom is decreased until the grid fits instead of failing.
func CoverWithin(e geo.Extent, z, limit int, lower bool) (Grid, error) {
	if limit <= 0 {
		limit = DefaultMaxTiles
	}

	g := Cover(e, z)
	for lower && g.Len() > limit && g.Z > 0 {
		g = Cover(e, g.Z-1)
	}

	if g.Len() > limit {
		return Grid{}, &TileBudgetError{Zoom: z, Tiles: g.Len(), Limit: limit}
	}

	return g, nil
}

// ChooseZoom picks the zoom whose tile resolution is closest to widthPx pixels
// across the extent, capped to [0, maxZoom].
func ChooseZoom(e geo.Extent, widthPx, tileSize, maxZoom int) int {
	if e.Width() <= 0 || widthPx <= 0 || tileSize <= 0 {
		return 0
	}

	metersPerPixel := e.Width() / float64(widthPx)
	z := int(math.Round(math.Log2(2 * geo.OriginShift / (float64(tileSize) * metersPerPixel))))

	return max(0, min(z, maxZoom))
}

func buildURL(tpl string, c TileCoordinate) string {
	c = c.Wrapped()

	s := strings.ReplaceAll(tpl, "{z}", fmt.Sprintf("%d", c.Z))
	s = strings.ReplaceAll(s, "{x}", fmt.Sprintf("%d", c.X))
	s = strings.ReplaceAll(s, "{y}", fmt.Sprintf("%d", c.Y))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << c.Z) - 1
		tmsY := maxCoord - c.Y
		s = strings.ReplaceAll(s, "{tms_y}", fmt.Sprintf("%d", tmsY))
	}

	if strings.Contains(s, "{s}") {
		s = strings.ReplaceAll(s, "{s}", subdomains[(c.X+c.Y)%len(subdomains)])
	}

	return s
}
