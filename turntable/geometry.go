package turntable

import "math"

// OffsetDefault marks a layout offset as unset: the content is centred on that axis.
const OffsetDefault = -1

// Point is a position in view-local pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Layout describes the view and the platter artwork once their sizes are known.
//
// OffsetX/OffsetY place the centre of the artwork that many pixels away from the
// right/bottom edge of the view. OffsetDefault centres it.
type Layout struct {
	ViewWidth     int
	ViewHeight    int
	ContentWidth  int
	ContentHeight int
	OffsetX       int
	OffsetY       int
}

// CenteredLayout returns a layout with the artwork centred on both axes.
func CenteredLayout(viewW, viewH, contentW, contentH int) Layout {
	return Layout{
		ViewWidth:     viewW,
		ViewHeight:    viewH,
		ContentWidth:  contentW,
		ContentHeight: contentH,
		OffsetX:       OffsetDefault,
		OffsetY:       OffsetDefault,
	}
}

// placement returns the artwork translation and the resulting pivot.
func (l Layout) placement() (translate Point, pivot Point) {
	tx := axisTranslate(l.ViewWidth, l.ContentWidth, l.OffsetX)
	ty := axisTranslate(l.ViewHeight, l.ContentHeight, l.OffsetY)
	translate = Point{X: float64(tx), Y: float64(ty)}
	pivot = Point{X: float64(l.ContentWidth/2 + tx), Y: float64(l.ContentHeight/2 + ty)}
	return translate, pivot
}

func axisTranslate(view, content, offset int) int {
	if offset == OffsetDefault {
		return -(content - view) / 2
	}
	return view - offset - content/2
}

// Transform is the affine placement of the platter artwork: translate by
// (TranslateX, TranslateY), then rotate by RotateDegrees about (PivotX, PivotY).
type Transform struct {
	TranslateX    float64 `json:"translate_x"`
	TranslateY    float64 `json:"translate_y"`
	RotateDegrees float64 `json:"rotate_degrees"`
	PivotX        float64 `json:"pivot_x"`
	PivotY        float64 `json:"pivot_y"`
}

// NormalizedDegrees returns RotateDegrees folded into [0, 360).
func (t Transform) NormalizedDegrees() float64 {
	d := math.Mod(t.RotateDegrees, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// Matrix returns the transform as a 2x3 affine matrix [a b c; d e f] mapping
// artwork coordinates to view coordinates: x' = a*x + b*y + c, y' = d*x + e*y + f.
func (t Transform) Matrix() [6]float64 {
	rad := t.RotateDegrees * math.Pi / 180
	sin, cos := math.Sincos(rad)

	// rotate about pivot after translating
	px, py := t.PivotX, t.PivotY
	c := cos*t.TranslateX - sin*t.TranslateY + px - cos*px + sin*py
	f := sin*t.TranslateX + cos*t.TranslateY + py - sin*px - cos*py
	return [6]float64{cos, -sin, c, sin, cos, f}
}

// Apply maps an artwork-local point into view coordinates.
func (t Transform) Apply(p Point) Point {
	m := t.Matrix()
	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}
