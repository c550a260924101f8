package geo

import "math"

// Extent is an axis aligned bounding box in the units of its points.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// ExtentOf computes the bounding box of the points.
func ExtentOf(points []Point) (Extent, error) {
	if len(points) == 0 {
		return Extent{}, ErrEmptyDataset
	}

	e := Extent{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, p := range points {
		e.MinX = math.Min(e.MinX, p.X)
		e.MinY = math.Min(e.MinY, p.Y)
		e.MaxX = math.Max(e.MaxX, p.X)
		e.MaxY = math.Max(e.MaxY, p.Y)
	}

	return e, nil
}

// Pad grows the extent by d on each side.
func (e Extent) Pad(d float64) Extent {
	return Extent{MinX: e.MinX - d, MinY: e.MinY - d, MaxX: e.MaxX + d, MaxY: e.MaxY + d}
}

func (e Extent) Width() float64  { return e.MaxX - e.MinX }
func (e Extent) Height() float64 { return e.MaxY - e.MinY }

// Center returns the middle of the extent.
func (e Extent) Center() (x, y float64) {
	return (e.MinX + e.MaxX) / 2, (e.MinY + e.MaxY) / 2
}

// Contains reports whether p lies inside the extent, edges included.
func (e Extent) Contains(p Point) bool {
	return p.X >= e.MinX && p.X <= e.MaxX && p.Y >= e.MinY && p.Y <= e.MaxY
}

// FitAspect widens one axis around the center so that Width/Height equals ratio.
// The result always contains the original extent.
func (e Extent) FitAspect(ratio float64) Extent {
	if ratio <= 0 {
		return e
	}

	w, h := e.Width(), e.Height()
	cx, cy := e.Center()

	switch {
	case w == 0 && h == 0:
		return e
	case h == 0 || w/h > ratio:
		half := w / ratio / 2
		return Extent{MinX: e.MinX, MinY: math.Min(e.MinY, cy-half), MaxX: e.MaxX, MaxY: math.Max(e.MaxY, cy+half)}
	default:
		half := h * ratio / 2
		return Extent{MinX: math.Min(e.MinX, cx-half), MinY: e.MinY, MaxX: math.Max(e.MaxX, cx+half), MaxY: e.MaxY}
	}
}
