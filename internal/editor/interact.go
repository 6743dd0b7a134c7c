package editor

import (
	"log/slog"

	"github.com/starford/casemap/internal/drag"
)

// ClickResult reports what a click did.
type ClickResult int

const (
	ClickIgnored ClickResult = iota
	ClickSelected
	ClickDeselected
	ClickLinked
	ClickLinkRejected
)

func (r ClickResult) String() string {
	switch r {
	case ClickSelected:
		return "selected"
	case ClickDeselected:
		return "deselected"
	case ClickLinked:
		return "linked"
	case ClickLinkRejected:
		return "link_rejected"
	default:
		return "ignored"
	}
}

// Click applies the select / deselect / link gesture to nodeID. A click on a
// second node while one is selected attempts a link from the selected node and
// clears the selection whether or not the link was created.
func (s *Session) Click(nodeID string) ClickResult {
	if _, dragging := s.drag.Active(); dragging || !s.m.HasNode(nodeID) {
		return ClickIgnored
	}

	switch s.selected {
	case "":
		s.selected = nodeID
		s.emitRender()
		return ClickSelected
	case nodeID:
		s.selected = ""
		s.emitRender()
		return ClickDeselected
	}

	source := s.selected
	s.selected = ""
	if l, ok := s.links.CreateLink(source, nodeID); ok {
		s.logger.Debug("editor: link created",
			slog.String("link_id", l.ID),
			slog.String("source", l.Source),
			slog.String("target", l.Target))
		s.commit()
		return ClickLinked
	}
	s.emitRender()
	return ClickLinkRejected
}

// BeginDrag starts moving a cause card. The outcome node, unknown ids and a
// second concurrent gesture are refused.
func (s *Session) BeginDrag(nodeID string, p drag.Point) bool {
	return s.drag.Begin(s.m.Node(nodeID), p)
}

// DragTo follows the pointer during a gesture.
func (s *Session) DragTo(p drag.Point) bool {
	id, ok := s.drag.Active()
	if !ok {
		return false
	}
	if !s.drag.Move(s.m.Node(id), p) {
		return false
	}
	s.emitRender()
	return true
}

// EndDrag releases the gesture, snapping the card to the nearest year row.
// It reports the snapped year, if any. A finished gesture is always saved.
func (s *Session) EndDrag(p drag.Point) (year int, snapped bool) {
	id, ok := s.drag.Active()
	if !ok {
		return 0, false
	}
	n := s.m.Node(id)
	year, snapped = s.drag.End(n, p)
	if n == nil {
		s.emitRender()
		return 0, false
	}
	s.logger.Debug("editor: drag ended",
		slog.String("node_id", id),
		slog.Int("year", year),
		slog.Bool("snapped", snapped))
	s.commit()
	return year, snapped
}

// Dragging reports the node under an active gesture.
func (s *Session) Dragging() (string, bool) {
	return s.drag.Active()
}
