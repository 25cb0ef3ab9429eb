// Package framing models the pan/zoom window applied to a source image when it is
// rendered, and the pointer-driven controller that edits it.
package framing

import (
	"fmt"
	"math"
)

const (
	MinPosition = 0.0
	MaxPosition = 100.0
	MinZoom     = 100.0
	MaxZoom     = 200.0
	ZoomStep    = 10.0

	DefaultX    = 50.0
	DefaultY    = 50.0
	DefaultZoom = 100.0
)

// Positioning describes where the visible window sits over the image (percent offsets)
// and how much the image is scaled (percent, 100 = fit).
type Positioning struct {
	X    float64 `json:"position_x"`
	Y    float64 `json:"position_y"`
	Zoom float64 `json:"zoom"`
}

// Default returns a centred, unzoomed positioning.
func Default() Positioning {
	return Positioning{X: DefaultX, Y: DefaultY, Zoom: DefaultZoom}
}

// SetPosition stores x and y clamped into [0,100].
func (p *Positioning) SetPosition(x, y float64) {
	p.X = clamp(x, MinPosition, MaxPosition, DefaultX)
	p.Y = clamp(y, MinPosition, MaxPosition, DefaultY)
}

// SetZoom stores z clamped into [100,200].
func (p *Positioning) SetZoom(z float64) {
	p.Zoom = clamp(z, MinZoom, MaxZoom, DefaultZoom)
}

// ZoomIn raises the zoom by one step, saturating at the upper bound.
func (p *Positioning) ZoomIn() {
	p.SetZoom(p.Zoom + ZoomStep)
}

// ZoomOut lowers the zoom by one step, saturating at the lower bound.
func (p *Positioning) ZoomOut() {
	p.SetZoom(p.Zoom - ZoomStep)
}

// Reset restores the default positioning.
func (p *Positioning) Reset() {
	*p = Default()
}

// Normalize clamps every field. A zero value (never written) becomes the default.
func (p Positioning) Normalize() Positioning {
	if p == (Positioning{}) {
		return Default()
	}
	p.SetPosition(p.X, p.Y)
	p.SetZoom(p.Zoom)
	return p
}

// Style renders the CSS background declarations consumers must apply to the image.
func (p Positioning) Style() string {
	return fmt.Sprintf("background-position: %s%% %s%%; background-size: %s%%; background-repeat: no-repeat",
		formatPercent(p.X), formatPercent(p.Y), formatPercent(p.Zoom))
}

// CarouselStyles returns one style per frame: the cover frame gets p, the rest the default.
func CarouselStyles(frames int, p Positioning) []string {
	if frames <= 0 {
		return nil
	}
	styles := make([]string, frames)
	def := Default().Style()
	for i := range styles {
		styles[i] = def
	}
	styles[0] = p.Normalize().Style()
	return styles
}

func clamp(v, lo, hi, fallback float64) float64 {
	switch {
	case math.IsNaN(v):
		return fallback
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

func formatPercent(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
