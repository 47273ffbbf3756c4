package dvs

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Overlay colours. Positive-polarity events render blue, negative red,
// matching the event visualization convention of the surface image.
var (
	colorPositive   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	colorNegative   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	colorSelected   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	colorVerified   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorFlowVector = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

func polarityColor(polarity bool) color.RGBA {
	if polarity {
		return colorPositive
	}
	return colorNegative
}

// Render composes the four diagnostic panels into one image:
//
//	[ seed overlay      | flow overlay       ]
//	[ active events     | inlier events      ]
//
// window bounds the active-event reconstruction, in seconds.
func (p *NormFlowPack) Render(window float64) *image.RGBA {
	w := p.RawTimes.Width
	h := p.RawTimes.Height

	active := renderEventImage(w, h, p.ActivePseudoEvents(window).Events)
	inlier := renderEventImage(w, h, p.InlierPseudoEvents().Events)

	top := hconcatRGBA(p.SeedImage, p.FlowImage)
	bottom := hconcatRGBA(active, inlier)
	return vconcatRGBA(top, bottom)
}

// renderEventImage paints a pseudo-event list onto a black canvas.
func renderEventImage(w, h int, events []Event) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for _, e := range events {
		img.SetRGBA(e.X, e.Y, polarityColor(e.Polarity))
	}
	return img
}

func grayToRGBA(src *image.Gray) *image.RGBA {
	out := image.NewRGBA(src.Rect)
	draw.Draw(out, out.Rect, src, src.Rect.Min, draw.Src)
	return out
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	return out
}

func hconcatRGBA(left, right *image.RGBA) *image.RGBA {
	w := left.Rect.Dx() + right.Rect.Dx()
	h := left.Rect.Dy()
	if right.Rect.Dy() > h {
		h = right.Rect.Dy()
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, left.Rect.Sub(left.Rect.Min), left, left.Rect.Min, draw.Src)
	r := image.Rect(left.Rect.Dx(), 0, left.Rect.Dx()+right.Rect.Dx(), right.Rect.Dy())
	draw.Draw(out, r, right, right.Rect.Min, draw.Src)
	return out
}

func vconcatRGBA(top, bottom *image.RGBA) *image.RGBA {
	w := top.Rect.Dx()
	if bottom.Rect.Dx() > w {
		w = bottom.Rect.Dx()
	}
	h := top.Rect.Dy() + bottom.Rect.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, top.Rect.Sub(top.Rect.Min), top, top.Rect.Min, draw.Src)
	r := image.Rect(0, top.Rect.Dy(), bottom.Rect.Dx(), top.Rect.Dy()+bottom.Rect.Dy())
	draw.Draw(out, r, bottom, bottom.Rect.Min, draw.Src)
	return out
}

// drawLine rasterises a line segment with a simple DDA walk, clipping to the
// image bounds.
func drawLine(img *image.RGBA, x0, y0, x1, y1 float64, c color.RGBA) {
	dx := x1 - x0
	dy := y1 - y0
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		setClipped(img, int(math.Round(x0)), int(math.Round(y0)), c)
		return
	}
	sx := dx / float64(steps)
	sy := dy / float64(steps)
	x, y := x0, y0
	for i := 0; i <= steps; i++ {
		setClipped(img, int(math.Round(x)), int(math.Round(y)), c)
		x += sx
		y += sy
	}
}

func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetRGBA(x, y, c)
	}
}
