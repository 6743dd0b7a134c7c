package editor

import (
	"log/slog"

	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/timeline"
)

// Layout holds the placement constants for new and re-laid cards.
type Layout struct {
	LaneX    float64 // x of the default card lane
	Gap      float64 // horizontal gap between cards on the same year
	OutcomeY float64 // y of the synthesized outcome node
}

// DefaultLayout returns the stock placement constants.
func DefaultLayout() Layout {
	return Layout{LaneX: 250, Gap: 10, OutcomeY: 50}
}

// DefaultCanvas returns the stock canvas width and card size. Height follows
// the timeline range.
func DefaultCanvas() models.Canvas {
	return models.Canvas{Width: 800, NodeWidth: 180, NodeHeight: 60}
}

// Option configures a Session.
type Option func(*Session)

// WithTimeline sets the timeline geometry and initial range.
func WithTimeline(cfg timeline.Config) Option {
	return func(s *Session) {
		s.tlConfig = cfg
	}
}

// WithCanvas sets the canvas width and card size.
func WithCanvas(c models.Canvas) Option {
	return func(s *Session) {
		s.canvas = c
	}
}

// WithLayout sets the card placement constants.
func WithLayout(l Layout) Option {
	return func(s *Session) {
		s.layout = l
	}
}

// WithSaver sets the persistence target.
func WithSaver(saver Saver) Option {
	return func(s *Session) {
		s.saver = saver
	}
}

// WithRenderer sets the render hook.
func WithRenderer(fn RenderFunc) Option {
	return func(s *Session) {
		s.render = fn
	}
}

// WithIDs overrides node and link id generation.
func WithIDs(node, link func() string) Option {
	return func(s *Session) {
		if node != nil {
			s.newNodeID = node
		}
		if link != nil {
			s.newLinkID = link
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}
