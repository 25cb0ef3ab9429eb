package framing

// DragState is the state of the framing controller.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Point is a pointer location in surface-independent client coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the rendered bounding box of the framing surface.
type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ChangeFunc is called synchronously after every position or zoom change.
type ChangeFunc func(Positioning)

// Controller turns pointer gestures and zoom controls into Positioning updates.
// It is not safe for concurrent use; events are applied in the order they arrive.
type Controller struct {
	pos      Positioning
	state    DragState
	offset   Point
	onChange ChangeFunc
}

// NewController starts in Idle with the given (normalised) positioning.
func NewController(start Positioning, onChange ChangeFunc) *Controller {
	return &Controller{pos: start.Normalize(), onChange: onChange}
}

// Positioning returns the current value.
func (c *Controller) Positioning() Positioning { return c.pos }

// State returns Idle or Dragging.
func (c *Controller) State() DragState { return c.state }

// Press starts a drag. The offset between the pointer and the stored position is
// captured so the image does not jump under the cursor. Pressing again while
// dragging restarts the drag from the new point.
func (c *Controller) Press(pt Point, surface Rect) {
	w, h := divisors(surface)
	c.offset = Point{
		X: pt.X - c.pos.X*w/100,
		Y: pt.Y - c.pos.Y*h/100,
	}
	c.state = Dragging
}

// Move updates the position while dragging, relative to the surface bounds reported
// with this event. Moves while idle are ignored.
func (c *Controller) Move(pt Point, surface Rect) {
	if c.state != Dragging {
		return
	}
	w, h := divisors(surface)
	x := (pt.X - c.offset.X) / w * 100
	y := (pt.Y - c.offset.Y) / h * 100
	c.pos.SetPosition(x, y)
	c.notify()
}

// Release ends a drag. It is accepted from any state.
func (c *Controller) Release() {
	c.state = Idle
}

// SetZoom applies a slider value.
func (c *Controller) SetZoom(z float64) {
	c.pos.SetZoom(z)
	c.notify()
}

func (c *Controller) ZoomIn() {
	c.pos.ZoomIn()
	c.notify()
}

func (c *Controller) ZoomOut() {
	c.pos.ZoomOut()
	c.notify()
}

// Reset restores the default framing.
func (c *Controller) Reset() {
	c.pos.Reset()
	c.notify()
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.pos)
	}
}

// divisors guards against a missing or collapsed surface.
func divisors(r Rect) (float64, float64) {
	w, h := r.Width, r.Height
	if !(w > 0) {
		w = 1
	}
	if !(h > 0) {
		h = 1
	}
	return w, h
}
