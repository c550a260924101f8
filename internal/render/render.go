// Package render draws projected charger points over a basemap.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/woozymasta/chargermap/internal/geo"
	"github.com/woozymasta/chargermap/internal/metrics"
	"github.com/woozymasta/chargermap/internal/tiles"

	"github.com/rs/zerolog/log"
)

// minSpan is the window size in meters used when padding leaves a single point with no area.
const minSpan = 1000.0

// TileSource provides basemap tiles.
type TileSource interface {
	FetchAll(ctx context.Context, coords []tiles.TileCoordinate) (map[tiles.TileCoordinate]image.Image, error)
}

// Options controls the canvas and styling.
type Options struct {
	MarkerColor color.Color
	Background  color.Color
	Title       string
	Attribution string
	Padding     float64 // meters around the data extent
	Width       int     // pixels
	Height      int     // pixels
	MarkerSize  int     // marker diameter in pixels
	Zoom        int     // 0 selects zoom from the canvas resolution
	MaxZoom     int
	MaxTiles    int // tile budget, tiles.DefaultMaxTiles if 0
}

// Result is a rendered map.
type Result struct {
	Image  *image.RGBA
	Window geo.Extent // Web Mercator meters shown on the canvas
	Zoom   int        // basemap zoom, -1 without basemap
	Tiles  int        // tiles drawn
}

// ViewWindow returns the padded data extent widened to the canvas aspect ratio.
func ViewWindow(points []geo.Point, padding, aspect float64) (geo.Extent, error) {
	e, err := geo.ExtentOf(points)
	if err != nil {
		return geo.Extent{}, err
	}

	window := e.Pad(padding)
	if window.Width() == 0 && window.Height() == 0 {
		window = window.Pad(minSpan / 2)
	}

	return window.FitAspect(aspect), nil
}

// Render draws points (Web Mercator) over the basemap from src.
// A nil src renders without basemap.
func Render(ctx context.Context, points []geo.Point, opts Options, src TileSource) (*Result, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("render: invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	for i, p := range points {
		if p.CRS != geo.WebMercator {
			return nil, fmt.Errorf("render: point %d is in %s, want %s", i, p.CRS, geo.WebMercator)
		}
	}

	window, err := ViewWindow(points, opts.Padding, float64(opts.Width)/float64(opts.Height))
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	bg := opts.Background
	if bg == nil {
		bg = color.White
	}
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	res := &Result{Image: canvas, Window: window, Zoom: -1}

	if src != nil {
		start := time.Now()

		z, auto := opts.Zoom, opts.Zoom <= 0
		if auto {
			z = tiles.ChooseZoom(window, opts.Width, tiles.DefaultSize, opts.MaxZoom)
		}

		// a fixed zoom over budget fails, an automatic one is lowered
		grid, err := tiles.CoverWithin(window, z, opts.MaxTiles, auto)
		if err != nil {
			return nil, err
		}
		if grid.Z != z {
			log.Info().
				Int("zoom", z).
				Int("lowered_to", grid.Z).
				Msg("Basemap zoom lowered to stay within the tile limit")
		}
		z = grid.Z

		n, err := drawBasemap(ctx, canvas, window, grid, src)
		if err != nil {
			return nil, err
		}
		res.Zoom, res.Tiles = z, n

		metrics.ObserveStage("basemap", start)
		log.Info().
			Int("zoom", z).
			Int("tiles", n).
			Dur("duration", time.Since(start)).
			Msg("Basemap drawn")
	}

	mc := opts.MarkerColor
	if mc == nil {
		mc = color.NRGBA{R: 0xff, A: 0xff}
	}
	for _, p := range points {
		x, y := res.ToPixel(p)
		drawMarker(canvas, x, y, float64(opts.MarkerSize)/2, mc)
	}

	scale := max(1, opts.Height/400)
	if opts.Title != "" {
		drawTitle(canvas, opts.Title, scale)
	}
	if opts.Attribution != "" && src != nil {
		drawAttribution(canvas, opts.Attribution, max(1, scale/2))
	}

	return res, nil
}

// ToPixel maps a Web Mercator point to canvas pixel coordinates.
func (r *Result) ToPixel(p geo.Point) (x, y float64) {
	b := r.Image.Bounds()
	x = (p.X - r.Window.MinX) / r.Window.Width() * float64(b.Dx())
	y = (r.Window.MaxY - p.Y) / r.Window.Height() * float64(b.Dy())

	return x, y
}
