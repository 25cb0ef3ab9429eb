package framing

import (
	"errors"
	"fmt"
)

// ErrUnknownOp is returned by Replay for a step it cannot interpret.
var ErrUnknownOp = errors.New("unknown framing operation")

// Step is one recorded input of a framing gesture.
type Step struct {
	Op      string  `json:"op"` // press, move, release, zoom, zoom_in, zoom_out, reset
	Point   Point   `json:"point"`
	Surface Rect    `json:"surface"`
	Zoom    float64 `json:"zoom"`
}

// Replay feeds steps through a Controller starting at start and returns the final
// positioning together with every intermediate value reported to the change callback.
func Replay(start Positioning, steps []Step) (Positioning, []Positioning, error) {
	var changes []Positioning
	c := NewController(start, func(p Positioning) { changes = append(changes, p) })

	for i, s := range steps {
		switch s.Op {
		case "press":
			c.Press(s.Point, s.Surface)
		case "move":
			c.Move(s.Point, s.Surface)
		case "release":
			c.Release()
		case "zoom":
			c.SetZoom(s.Zoom)
		case "zoom_in":
			c.ZoomIn()
		case "zoom_out":
			c.ZoomOut()
		case "reset":
			c.Reset()
		default:
			return Positioning{}, nil, fmt.Errorf("step %d: %w: %q", i, ErrUnknownOp, s.Op)
		}
	}
	c.Release()
	return c.Positioning(), changes, nil
}
