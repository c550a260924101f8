package render

import (
	"context"
	"image"
	"image/draw"

	"github.com/woozymasta/chargermap/internal/geo"
	"github.com/woozymasta/chargermap/internal/tiles"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// drawBasemap fetches the tiles of grid, which covers window, stitches them
// into a mosaic and resamples the mosaic onto the canvas.
func drawBasemap(ctx context.Context, canvas *image.RGBA, window geo.Extent, grid tiles.Grid, src TileSource) (int, error) {
	z := grid.Z

	imgs, err := src.FetchAll(ctx, grid.Tiles())
	if err != nil {
		return 0, err
	}

	ts := tiles.DefaultSize
	mosaic := image.NewRGBA(image.Rect(0, 0, grid.Cols()*ts, grid.Rows()*ts))

	for c, img := range imgs {
		dx := (c.X - grid.MinX) * ts
		dy := (c.Y - grid.MinY) * ts
		r := image.Rect(dx, dy, dx+ts, dy+ts)

		if img.Bounds().Dx() == ts && img.Bounds().Dy() == ts {
			draw.Draw(mosaic, r, img, img.Bounds().Min, draw.Src)
		} else {
			// retina or odd sized tiles
			xdraw.ApproxBiLinear.Scale(mosaic, r, img, img.Bounds(), draw.Src, nil)
		}
	}

	// window corners in tile units, then in mosaic pixels
	tx0, ty0 := tiles.MercatorToTile(window.MinX, window.MaxY, z)
	tx1, ty1 := tiles.MercatorToTile(window.MaxX, window.MinY, z)

	sx0 := (tx0 - float64(grid.MinX)) * float64(ts)
	sy0 := (ty0 - float64(grid.MinY)) * float64(ts)
	scaleX := float64(canvas.Bounds().Dx()) / ((tx1 - tx0) * float64(ts))
	scaleY := float64(canvas.Bounds().Dy()) / ((ty1 - ty0) * float64(ts))

	s2d := f64.Aff3{
		scaleX, 0, -sx0 * scaleX,
		0, scaleY, -sy0 * scaleY,
	}
	xdraw.CatmullRom.Transform(canvas, s2d, mosaic, mosaic.Bounds(), draw.Over, nil)

	return len(imgs), nil
}
