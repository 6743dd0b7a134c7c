package editor

import (
	"log/slog"
	"strings"

	"github.com/starford/casemap/internal/models"
)

// Drop is an evidence item released onto the canvas. A nil Year means the
// caller made no suggestion.
type Drop struct {
	Text string
	Year *int
}

// AddCauseFromEvidence appends a cause card for text tagged with year. The
// card lands on the year row, right of the rightmost card already there, or
// in the default lane when the row is empty.
func (s *Session) AddCauseFromEvidence(text string, year int) models.Node {
	year = s.NormalizeYear(year)
	x := s.layout.LaneX
	var (
		rightmost float64
		found     bool
	)
	for _, n := range s.m.Nodes {
		if n.Type != models.NodeCause || n.Year != year {
			continue
		}
		if edge := n.X + s.canvas.NodeWidth; !found || edge > rightmost {
			rightmost, found = edge, true
		}
	}
	if found {
		x = rightmost + s.layout.Gap
	}
	x, y := s.canvas.Clamp(x, s.mapper.YearToY(year))

	node := models.Node{
		ID:   s.newNodeID(),
		Text: models.WithYear(models.StripYear(text), year),
		X:    x,
		Y:    y,
		Type: models.NodeCause,
		Year: year,
	}
	s.m.Nodes = append(s.m.Nodes, node)
	s.logger.Debug("editor: cause added",
		slog.String("node_id", node.ID),
		slog.Int("year", year))
	s.commit()
	return node
}

// DropEvidence turns a drop into a cause card. The year is the explicit
// suggestion when present, else the (YYYY) token in the text, else the
// midpoint of the current range. A suggestion outside the four-digit years
// counts as malformed and also lands on the midpoint. Blank text is ignored.
func (s *Session) DropEvidence(d Drop) (models.Node, bool) {
	text := strings.TrimSpace(d.Text)
	if text == "" {
		return models.Node{}, false
	}
	var year int
	switch y, ok := models.ExtractYear(text); {
	case d.Year != nil:
		year = *d.Year
	case ok:
		year = y
	default:
		year = s.mapper.Midpoint()
	}
	return s.AddCauseFromEvidence(text, year), true
}
