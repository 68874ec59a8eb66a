package detector

import (
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"echallan-service/internal/domain/anpr"
)

const headerHeight = 80

var (
	boxColor    = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	bestColor   = color.NRGBA{R: 255, G: 165, B: 0, A: 255}
	titleColor  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	subColor    = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	accentColor = color.NRGBA{R: 255, G: 165, B: 0, A: 255}
)

// Annotation controls the overlay drawn by Annotate.
type Annotation struct {
	Tag string
	At  time.Time
}

// Annotate returns a copy of img with every candidate boxed and, when best is
// set, a header band naming the plate. img itself is left untouched.
func Annotate(img image.Image, candidates []anpr.Candidate, best *anpr.Candidate, a Annotation) *image.NRGBA {
	out := imaging.Clone(img)
	for _, c := range candidates {
		strokeRect(out, c.Box, 3, boxColor)
	}
	if best == nil {
		return out
	}
	strokeRect(out, best.Box, 2, bestColor)

	width := out.Bounds().Dx()
	band := imaging.New(width, headerHeight, color.NRGBA{A: 255})
	out = imaging.Overlay(out, band, image.Pt(0, 0), 0.7)

	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	drawText(out, 20, 30, "VEHICLE: "+best.Text, titleColor)
	drawText(out, 20, 60, "DATE: "+at.Format("02-01-2006 15:04:05"), subColor)
	if a.Tag != "" {
		x := width - 7*len(a.Tag) - 20
		if x < 20 {
			x = 20
		}
		drawText(out, x, 45, a.Tag, accentColor)
	}
	return out
}

func strokeRect(dst draw.Image, r image.Rectangle, thickness int, c color.Color) {
	r = r.Canon().Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

func drawText(dst draw.Image, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
