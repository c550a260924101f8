package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/woozymasta/chargermap/internal/geo"
	"github.com/woozymasta/chargermap/internal/tiles"
)

var tileColor = color.RGBA{R: 0x40, G: 0x80, B: 0xc0, A: 0xff}

type fakeSource struct {
	err       error
	requested []tiles.TileCoordinate
}

func (f *fakeSource) FetchAll(_ context.Context, coords []tiles.TileCoordinate) (map[tiles.TileCoordinate]image.Image, error) {
	f.requested = coords
	if f.err != nil {
		return nil, f.err
	}

	tile := image.NewRGBA(image.Rect(0, 0, tiles.DefaultSize, tiles.DefaultSize))
	draw.Draw(tile, tile.Bounds(), image.NewUniform(tileColor), image.Point{}, draw.Src)

	out := make(map[tiles.TileCoordinate]image.Image, len(coords))
	for _, c := range coords {
		out[c] = tile
	}

	return out, nil
}

func project(t *testing.T, lonlat ...[2]float64) []geo.Point {
	t.Helper()

	points := make([]geo.Point, len(lonlat))
	for i, ll := range lonlat {
		points[i] = geo.LonLat(ll[0], ll[1])
	}

	out, err := geo.ProjectAll(points)
	if err != nil {
		t.Fatal(err)
	}

	return out
}

func testOptions() Options {
	return Options{
		MarkerColor: color.NRGBA{R: 0xff, A: 0xff},
		Background:  color.White,
		Title:       "New Fast Chargers (OpenChargeMap)",
		Attribution: "(C) OpenStreetMap contributors",
		Padding:     50000,
		Width:       400,
		Height:      320,
		MarkerSize:  12,
		MaxZoom:     19,
	}
}

func near(a, b color.Color, tolerance uint32) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	d := func(x, y uint32) uint32 {
		if x > y {
			return x - y
		}
		return y - x
	}

	return d(ar, br) <= tolerance && d(ag, bg) <= tolerance && d(ab, bb) <= tolerance
}

func TestRenderSinglePoint(t *testing.T) {
	points := project(t, [2]float64{-122.4, 37.8})
	src := &fakeSource{}

	res, err := Render(context.Background(), points, testOptions(), src)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if res.Image.Bounds() != image.Rect(0, 0, 400, 320) {
		t.Errorf("canvas bounds = %v", res.Image.Bounds())
	}
	if res.Zoom <= 0 || res.Tiles == 0 || res.Tiles != len(src.requested) {
		t.Errorf("basemap not drawn: zoom=%d tiles=%d requested=%d", res.Zoom, res.Tiles, len(src.requested))
	}

	// the window is centered on the only point
	cx, cy := res.Window.Center()
	if math.Abs(cx-points[0].X) > 1e-6 || math.Abs(cy-points[0].Y) > 1e-6 {
		t.Errorf("window center (%f, %f), want (%f, %f)", cx, cy, points[0].X, points[0].Y)
	}
	if res.Window.Width() < 100000 || res.Window.Height() < 100000 {
		t.Errorf("window smaller than padding: %+v", res.Window)
	}

	x, y := res.ToPixel(points[0])
	if got := res.Image.At(int(x), int(y)); !near(got, color.RGBA{R: 0xff, A: 0xff}, 0x0100) {
		t.Errorf("marker pixel = %v, want red", got)
	}

	if got := res.Image.At(40, 160); !near(got, tileColor, 0x0400) {
		t.Errorf("basemap pixel = %v, want %v", got, tileColor)
	}
}

func TestRenderOffline(t *testing.T) {
	points := project(t, [2]float64{-113.49, 53.54}, [2]float64{-114.07, 51.05})

	opts := testOptions()
	opts.Title = ""
	res, err := Render(context.Background(), points, opts, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if res.Zoom != -1 || res.Tiles != 0 {
		t.Errorf("offline render used tiles: %+v", res)
	}
	if got := res.Image.At(5, 5); !near(got, color.White, 0) {
		t.Errorf("background pixel = %v, want white", got)
	}

	for _, p := range points {
		if !res.Window.Contains(p) {
			t.Errorf("point %+v outside window %+v", p, res.Window)
		}
		x, y := res.ToPixel(p)
		if x < 0 || y < 0 || x >= 400 || y >= 320 {
			t.Errorf("point %+v maps outside canvas: (%f, %f)", p, x, y)
		}
	}
}

func TestRenderPointsInsidePaddedWindow(t *testing.T) {
	points := project(t,
		[2]float64{-116.5765, 53.9333},
		[2]float64{-110.0, 49.0},
		[2]float64{-120.0, 59.9},
		[2]float64{-114.0, 90},
	)

	window, err := ViewWindow(points, 50000, 1.25)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range points {
		inner := geo.Extent{MinX: p.X - 50000, MinY: p.Y - 50000, MaxX: p.X + 50000, MaxY: p.Y + 50000}
		if !window.Contains(geo.Point{X: inner.MinX, Y: inner.MinY}) || !window.Contains(geo.Point{X: inner.MaxX, Y: inner.MaxY}) {
			t.Errorf("padding around %+v not inside window %+v", p, window)
		}
	}
}

func TestRenderErrors(t *testing.T) {
	if _, err := Render(context.Background(), nil, testOptions(), nil); !errors.Is(err, geo.ErrEmptyDataset) {
		t.Errorf("empty input: expected ErrEmptyDataset, got %v", err)
	}

	if _, err := Render(context.Background(), []geo.Point{geo.LonLat(1, 2)}, testOptions(), nil); err == nil {
		t.Error("geographic points must be rejected")
	}

	fetchErr := &tiles.BasemapFetchError{Err: errors.New("boom")}
	_, err := Render(context.Background(), project(t, [2]float64{0, 0}), testOptions(), &fakeSource{err: fetchErr})
	var bfe *tiles.BasemapFetchError
	if !errors.As(err, &bfe) {
		t.Errorf("expected BasemapFetchError, got %v", err)
	}
}

func TestViewWindowZeroPadding(t *testing.T) {
	window, err := ViewWindow(project(t, [2]float64{10, 10}), 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(window.Width()-minSpan) > 1e-6 || math.Abs(window.Height()-minSpan) > 1e-6 {
		t.Errorf("degenerate window = %+v", window)
	}
}

func TestCircleMask(t *testing.T) {
	c := &circle{cx: 10, cy: 10, r: 4}

	if a := c.At(9, 9).(color.Alpha).A; a != 0xff {
		t.Errorf("center alpha = %d", a)
	}
	if a := c.At(0, 0).(color.Alpha).A; a != 0 {
		t.Errorf("outside alpha = %d", a)
	}
	if !c.Bounds().Eq(image.Rect(5, 5, 15, 15)) {
		t.Errorf("bounds = %v", c.Bounds())
	}
}

func TestRenderFixedZoomOverTileLimit(t *testing.T) {
	src := &fakeSource{}
	opts := testOptions()
	opts.Zoom = 19

	_, err := Render(context.Background(), project(t, [2]float64{-113.49, 53.54}), opts, src)

	var tbe *tiles.TileBudgetError
	if !errors.As(err, &tbe) {
		t.Fatalf("expected TileBudgetError, got %v", err)
	}
	if tbe.Zoom != 19 || tbe.Tiles <= tiles.DefaultMaxTiles {
		t.Errorf("error details: %+v", tbe)
	}
	if src.requested != nil {
		t.Errorf("%d tiles requested despite the limit", len(src.requested))
	}
}

func TestRenderAutoZoomLoweredToTileLimit(t *testing.T) {
	src := &fakeSource{}
	opts := testOptions()
	opts.MaxTiles = 4

	res, err := Render(context.Background(), project(t, [2]float64{-113.49, 53.54}), opts, src)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Tiles > 4 || len(src.requested) > 4 {
		t.Errorf("tile limit exceeded: %d tiles, %d requested", res.Tiles, len(src.requested))
	}
}
