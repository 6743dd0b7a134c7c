// Package drag implements the pointer gesture that moves a cause card and
// snaps it to the nearest year row on release.
package drag

import (
	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/timeline"
)

// Point is a pointer position in canvas-local pixels.
type Point struct {
	X, Y float64
}

// State is the gesture state.
type State int

// Gesture states.
const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Controller tracks at most one gesture at a time. The canvas is read on
// every move so range changes between gestures are honoured.
type Controller struct {
	mapper *timeline.Mapper
	canvas *models.Canvas

	state  State
	nodeID string
	offset Point
}

// NewController creates an idle controller over the session's mapper and canvas.
func NewController(mapper *timeline.Mapper, canvas *models.Canvas) *Controller {
	return &Controller{mapper: mapper, canvas: canvas}
}

// State returns the current gesture state.
func (c *Controller) State() State {
	return c.state
}

// Active returns the id of the node being dragged.
func (c *Controller) Active() (string, bool) {
	return c.nodeID, c.state == Dragging
}

// Begin starts a gesture on n, remembering where on the card it was grabbed.
// The outcome node and overlapping gestures are refused without a state change.
func (c *Controller) Begin(n *models.Node, p Point) bool {
	if n == nil || n.IsOutcome() || c.state == Dragging {
		return false
	}
	c.state = Dragging
	c.nodeID = n.ID
	c.offset = Point{X: p.X - n.X, Y: p.Y - n.Y}
	return true
}

// Move places n under the pointer, keeping the grab offset and the canvas bounds.
func (c *Controller) Move(n *models.Node, p Point) bool {
	if !c.owns(n) {
		return false
	}
	n.X, n.Y = c.canvas.Clamp(p.X-c.offset.X, p.Y-c.offset.Y)
	return true
}

// End finishes the gesture. When a year row is found the card is centered on
// it and its year and text token are rewritten together. The controller is
// idle afterwards in every case.
func (c *Controller) End(n *models.Node, p Point) (int, bool) {
	owned := c.owns(n)
	c.reset()
	if !owned {
		return 0, false
	}
	year, ok := c.mapper.NearestYear(p.Y)
	if !ok {
		return 0, false
	}
	_, n.Y = c.canvas.Clamp(n.X, c.mapper.YearToY(year)-c.canvas.NodeHeight/2)
	n.Year = year
	n.Text = models.WithYear(n.Text, year)
	return year, true
}

func (c *Controller) owns(n *models.Node) bool {
	return c.state == Dragging && n != nil && n.ID == c.nodeID
}

func (c *Controller) reset() {
	c.state = Idle
	c.nodeID = ""
	c.offset = Point{}
}
