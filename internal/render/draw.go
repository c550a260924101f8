package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// circle is an antialiased disc used as a draw mask.
type circle struct {
	cx, cy, r float64
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(c.cx-c.r-1)), int(math.Floor(c.cy-c.r-1)),
		int(math.Ceil(c.cx+c.r+1)), int(math.Ceil(c.cy+c.r+1)),
	)
}

func (c *circle) At(x, y int) color.Color {
	// distance from the pixel center
	d := math.Hypot(float64(x)+0.5-c.cx, float64(y)+0.5-c.cy)
	a := c.r - d + 0.5

	switch {
	case a <= 0:
		return color.Alpha{}
	case a >= 1:
		return color.Alpha{A: 0xff}
	default:
		return color.Alpha{A: uint8(a * 0xff)}
	}
}

func drawMarker(dst *image.RGBA, x, y, r float64, c color.Color) {
	mask := &circle{cx: x, cy: y, r: r}
	b := mask.Bounds()
	draw.DrawMask(dst, b, image.NewUniform(c), image.Point{}, mask, b.Min, draw.Over)
}

var (
	labelBackground = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xcc}
	labelColor      = color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
)

// textImage renders s with the 7x13 bitmap face at its native size.
func textImage(s string, c color.Color) *image.RGBA {
	face := basicfont.Face7x13
	m := face.Metrics()

	w := font.MeasureString(face, s).Ceil()
	h := m.Height.Ceil()
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, m.Ascent.Ceil()),
	}
	d.DrawString(s)

	return img
}

// drawLabel draws s scaled up by scale with its top left corner at pt,
// on a translucent box with pad pixels of margin.
func drawLabel(dst *image.RGBA, s string, pt image.Point, scale, pad int) {
	txt := textImage(s, labelColor)
	size := txt.Bounds().Size().Mul(scale)

	box := image.Rectangle{Min: pt, Max: pt.Add(size).Add(image.Pt(2*pad, 2*pad))}
	draw.Draw(dst, box, image.NewUniform(labelBackground), image.Point{}, draw.Over)

	at := pt.Add(image.Pt(pad, pad))
	xdraw.NearestNeighbor.Scale(dst, image.Rectangle{Min: at, Max: at.Add(size)}, txt, txt.Bounds(), draw.Over, nil)
}

// labelSize returns the box drawLabel would use for s.
func labelSize(s string, scale, pad int) image.Point {
	w := font.MeasureString(basicfont.Face7x13, s).Ceil()
	h := basicfont.Face7x13.Metrics().Height.Ceil()

	return image.Pt(w*scale+2*pad, h*scale+2*pad)
}

// drawTitle centers the title at the top of the canvas.
func drawTitle(dst *image.RGBA, title string, scale int) {
	pad := 4 * scale
	size := labelSize(title, scale, pad)
	b := dst.Bounds()

	x := b.Min.X + (b.Dx()-size.X)/2
	drawLabel(dst, title, image.Pt(max(b.Min.X, x), b.Min.Y+pad), scale, pad)
}

// drawAttribution puts the basemap credit in the bottom right corner.
func drawAttribution(dst *image.RGBA, text string, scale int) {
	pad := 2 * scale
	size := labelSize(text, scale, pad)
	b := dst.Bounds()

	drawLabel(dst, text, image.Pt(max(b.Min.X, b.Max.X-size.X), b.Max.Y-size.Y), scale, pad)
}
