// Package editor owns the authoritative mind map of one editing session and
// applies every sanctioned mutation to it.
//
// A Session is driven from a single event loop and is not safe for concurrent
// use. Each successful graph mutation hands one snapshot to the Saver and one
// to the RenderFunc; a no-op hands off nothing.
package editor

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/casemap/internal/drag"
	"github.com/starford/casemap/internal/linkgraph"
	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/timeline"
)

// Saver persists a map snapshot without blocking the caller.
type Saver interface {
	Save(caseID string, m models.MindMap)
}

// Loader fetches the persisted map of a case. ok is false when none exists.
type Loader interface {
	Load(ctx context.Context, caseID string) (m models.MindMap, ok bool)
}

// RenderFunc receives the full state after every change. It must be idempotent.
type RenderFunc func(m models.MindMap, selectedID string)

// Session is the editing state of one case.
type Session struct {
	caseID   string
	m        models.MindMap
	selected string

	tlConfig timeline.Config
	mapper   *timeline.Mapper
	canvas   models.Canvas
	layout   Layout

	links *linkgraph.Graph
	drag  *drag.Controller

	saver     Saver
	render    RenderFunc
	newNodeID func() string
	newLinkID func() string
	logger    *slog.Logger
}

// NewSession creates an empty session for caseID. Call Open to load or
// synthesize its map.
func NewSession(caseID string, opts ...Option) (*Session, error) {
	s := &Session{
		caseID:    caseID,
		tlConfig:  timeline.DefaultConfig(),
		canvas:    DefaultCanvas(),
		layout:    DefaultLayout(),
		newNodeID: func() string { return "cause-" + uuid.New().String() },
		newLinkID: linkgraph.NewLinkID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mapper, err := timeline.New(s.tlConfig)
	if err != nil {
		return nil, err
	}
	s.mapper = mapper
	s.canvas.Height = mapper.RequiredCanvasHeight()
	s.links = linkgraph.New(&s.m, s.newLinkID)
	s.drag = drag.NewController(s.mapper, &s.canvas)
	return s, nil
}

// Open loads the persisted map. When nothing usable is stored, a map holding
// only the outcome node is synthesized and saved. Loaded cause cards whose
// year field and (YYYY) token disagree are reconciled, text first, and the
// repaired map is saved once.
func (s *Session) Open(ctx context.Context, loader Loader, headline string) {
	s.selected = ""
	if loader != nil {
		if m, ok := loader.Load(ctx, s.caseID); ok && len(m.Nodes) > 0 {
			s.m = m.Clone()
			changed := s.reconcileYears()
			if s.m.Outcome() == nil {
				s.logger.Warn("editor: loaded map has no outcome node, adding one",
					slog.String("case_id", s.caseID))
				s.m.Nodes = append([]models.Node{s.outcomeNode(headline)}, s.m.Nodes...)
				changed++
			}
			s.logger.Debug("editor: loaded map",
				slog.String("case_id", s.caseID),
				slog.Int("nodes", len(s.m.Nodes)),
				slog.Int("links", len(s.m.Links)),
				slog.Int("repaired", changed))
			if changed > 0 {
				s.commit()
				return
			}
			s.emitRender()
			return
		}
	}
	s.m = models.MindMap{Nodes: []models.Node{s.outcomeNode(headline)}, Links: []models.Link{}}
	s.logger.Debug("editor: synthesized outcome node", slog.String("case_id", s.caseID))
	s.commit()
}

// reconcileYears makes every cause card's year field agree with its text
// token. A readable token wins; otherwise a valid year field is written into
// the text; otherwise both fall back to the range midpoint.
func (s *Session) reconcileYears() int {
	fixed := 0
	for i := range s.m.Nodes {
		n := &s.m.Nodes[i]
		if n.Type != models.NodeCause {
			continue
		}
		year, ok := models.ExtractYear(n.Text)
		switch {
		case ok && year == n.Year:
			continue
		case ok:
			// token wins
		case models.ValidYear(n.Year):
			year = n.Year
		default:
			year = s.mapper.Midpoint()
		}
		s.logger.Warn("editor: reconciled card year",
			slog.String("node_id", n.ID),
			slog.Int("stored", n.Year),
			slog.Int("year", year))
		n.Year = year
		n.Text = models.WithYear(n.Text, year)
		fixed++
	}
	return fixed
}

func (s *Session) outcomeNode(headline string) models.Node {
	return models.Node{
		ID:      models.OutcomeID,
		Text:    headline,
		X:       (s.canvas.Width - s.canvas.NodeWidth) / 2,
		Y:       s.layout.OutcomeY,
		Type:    models.NodeOutcome,
		IsFixed: true,
	}
}

// CaseID returns the case this session edits.
func (s *Session) CaseID() string { return s.caseID }

// Snapshot returns a deep copy of the current map.
func (s *Session) Snapshot() models.MindMap { return s.m.Clone() }

// Selected returns the selected node id, or "".
func (s *Session) Selected() string { return s.selected }

// Mapper exposes the session's timeline.
func (s *Session) Mapper() *timeline.Mapper { return s.mapper }

// Canvas returns the current canvas bounds.
func (s *Session) Canvas() models.Canvas { return s.canvas }

// UsedYears lists the in-range years that carry at least one cause card.
func (s *Session) UsedYears() []int {
	return s.mapper.UsedYears(s.m.CauseYears())
}

// DeleteNode removes a cause node and every link touching it. The outcome
// node and unknown ids are ignored.
func (s *Session) DeleteNode(nodeID string) bool {
	n := s.m.Node(nodeID)
	if n == nil || n.IsOutcome() {
		return false
	}
	removed := s.links.DeleteLinksTouching(nodeID)
	for i := range s.m.Nodes {
		if s.m.Nodes[i].ID == nodeID {
			s.m.Nodes = append(s.m.Nodes[:i], s.m.Nodes[i+1:]...)
			break
		}
	}
	if s.selected == nodeID {
		s.selected = ""
	}
	s.logger.Debug("editor: node deleted",
		slog.String("node_id", nodeID),
		slog.Int("links_removed", removed))
	s.commit()
	return true
}

// DeleteLink removes a single link.
func (s *Session) DeleteLink(linkID string) bool {
	if !s.links.DeleteLink(linkID) {
		return false
	}
	s.commit()
	return true
}

// RepositionAllForRange changes the visible year span and lays every cause
// card back onto its year row in the default lane. Rows of years outside the
// new span fall off the canvas and are left there.
func (s *Session) RepositionAllForRange(start, end int) error {
	if err := s.mapper.SetRange(start, end); err != nil {
		return err
	}
	s.canvas.Height = s.mapper.RequiredCanvasHeight()
	for i := range s.m.Nodes {
		n := &s.m.Nodes[i]
		if n.Type != models.NodeCause {
			continue
		}
		n.X = s.layout.LaneX
		n.Y = s.mapper.YearToY(n.Year)
	}
	s.logger.Debug("editor: timeline range changed",
		slog.Int("start", start),
		slog.Int("end", end))
	s.commit()
	return nil
}

// RetagYear moves every cause card tagged from onto year to, rewriting the
// year field, the text token and the row together. It returns how many moved.
// A target outside the four-digit years is treated as the range midpoint.
func (s *Session) RetagYear(from, to int) int {
	to = s.NormalizeYear(to)
	if from == to {
		return 0
	}
	moved := 0
	for i := range s.m.Nodes {
		n := &s.m.Nodes[i]
		if n.Type != models.NodeCause || n.Year != from {
			continue
		}
		n.Year = to
		n.Text = models.WithYear(n.Text, to)
		n.Y = s.mapper.YearToY(to)
		moved++
	}
	if moved > 0 {
		s.commit()
	}
	return moved
}

// YearFromInput parses a typed year, falling back to the range midpoint.
func (s *Session) YearFromInput(raw string) int {
	y, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return s.mapper.Midpoint()
	}
	return s.NormalizeYear(y)
}

// NormalizeYear maps years that cannot round-trip through a (YYYY) token onto
// the range midpoint.
func (s *Session) NormalizeYear(y int) int {
	if models.ValidYear(y) {
		return y
	}
	return s.mapper.Midpoint()
}

func (s *Session) commit() {
	if s.saver != nil {
		s.saver.Save(s.caseID, s.m.Clone())
	}
	s.emitRender()
}

func (s *Session) emitRender() {
	if s.render != nil {
		s.render(s.m.Clone(), s.selected)
	}
}
