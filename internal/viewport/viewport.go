// Package viewport turns wheel and drag input into the pan/zoom transform
// applied to the mural.
//
// The controller knows nothing about feed entries. A new snapshot never
// resets the user's position, and spiral cells are never mutated: the
// transform is applied on top of them at render time.
package viewport

import (
	"fmt"
	"math"
)

// Config holds the zoom parameters.
type Config struct {
	DefaultZoom float64 `yaml:"default_zoom" json:"defaultZoom"`
	ZoomInStep  float64 `yaml:"zoom_in_step" json:"zoomInStep"`
	ZoomOutStep float64 `yaml:"zoom_out_step" json:"zoomOutStep"`
	MinZoom     float64 `yaml:"min_zoom" json:"minZoom"`
	MaxZoom     float64 `yaml:"max_zoom" json:"maxZoom"`
}

// DefaultConfig is the mural's zoom behaviour: start at 0.8, ±10% per notch,
// never below 0.2 or above 3.
func DefaultConfig() Config {
	return Config{
		DefaultZoom: 0.8,
		ZoomInStep:  1.1,
		ZoomOutStep: 0.9,
		MinZoom:     0.2,
		MaxZoom:     3.0,
	}
}

// Validate checks that the steps move in the right direction and that the
// default sits inside the clamp range.
func (c Config) Validate() error {
	switch {
	case c.MinZoom <= 0 || c.MaxZoom < c.MinZoom:
		return fmt.Errorf("viewport: invalid zoom range [%g, %g]", c.MinZoom, c.MaxZoom)
	case c.DefaultZoom < c.MinZoom || c.DefaultZoom > c.MaxZoom:
		return fmt.Errorf("viewport: default zoom %g outside [%g, %g]", c.DefaultZoom, c.MinZoom, c.MaxZoom)
	case c.ZoomInStep <= 1:
		return fmt.Errorf("viewport: zoom-in step must be > 1, got %g", c.ZoomInStep)
	case c.ZoomOutStep <= 0 || c.ZoomOutStep >= 1:
		return fmt.Errorf("viewport: zoom-out step must be in (0, 1), got %g", c.ZoomOutStep)
	}
	return nil
}

// Point is a pointer position in screen pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the renderable result of the controller.
type State struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
}

// Controller accumulates gesture input. It is not safe for concurrent use;
// a session owns exactly one and drives it from one goroutine (or under its
// own lock).
type Controller struct {
	cfg      Config
	zoom     float64
	pan      Point
	dragging bool
	last     Point
}

// New returns a controller at the default zoom with no pan.
func New(cfg Config) *Controller {
	c := &Controller{cfg: cfg}
	c.Reset()
	return c
}

// Reset returns to the default zoom and the origin, and drops any drag.
func (c *Controller) Reset() {
	c.zoom = c.cfg.DefaultZoom
	c.pan = Point{}
	c.dragging = false
	c.last = Point{}
}

// ZoomIn multiplies the zoom by the zoom-in step, clamped.
func (c *Controller) ZoomIn() {
	c.zoom = c.clamp(c.zoom * c.cfg.ZoomInStep)
}

// ZoomOut multiplies the zoom by the zoom-out step, clamped.
func (c *Controller) ZoomOut() {
	c.zoom = c.clamp(c.zoom * c.cfg.ZoomOutStep)
}

// Wheel maps one wheel notch to a zoom step: scrolling up (negative delta)
// zooms in, scrolling down zooms out. A zero delta does nothing.
func (c *Controller) Wheel(deltaY float64) {
	switch {
	case deltaY < 0:
		c.ZoomIn()
	case deltaY > 0:
		c.ZoomOut()
	}
}

// Begin starts a drag at p.
func (c *Controller) Begin(p Point) {
	c.dragging = true
	c.last = p
}

// Move pans by the distance from the previous pointer position. Outside a
// drag it is a no-op.
func (c *Controller) Move(p Point) {
	if !c.dragging {
		return
	}
	c.pan.X += p.X - c.last.X
	c.pan.Y += p.Y - c.last.Y
	c.last = p
}

// End finishes the drag. The pan offset is kept.
func (c *Controller) End() {
	c.dragging = false
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool {
	return c.dragging
}

// State returns the current zoom and pan.
func (c *Controller) State() State {
	return State{Zoom: c.zoom, PanX: c.pan.X, PanY: c.pan.Y}
}

// Transform renders the state as a CSS transform: translate, then scale,
// around the spiral origin.
func (s State) Transform() string {
	return fmt.Sprintf("translate(%gpx, %gpx) scale(%g)", s.PanX, s.PanY, s.Zoom)
}

// Apply maps a spiral coordinate to screen space relative to the viewport
// center: scale first, then translate.
func (s State) Apply(x, y float64) (float64, float64) {
	return x*s.Zoom + s.PanX, y*s.Zoom + s.PanY
}

func (c *Controller) clamp(z float64) float64 {
	return math.Min(c.cfg.MaxZoom, math.Max(c.cfg.MinZoom, z))
}
