// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the mind map editor as tools over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/casemap/internal/apperr"
	"github.com/starford/casemap/internal/drag"
	"github.com/starford/casemap/internal/editor"
	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/render"
)

const guideURI = "casemap://editor-guide"

// CaseSource looks up case briefs.
type CaseSource interface {
	GetCase(ctx context.Context, caseID string) (*models.Case, error)
}

// Store loads and saves maps for editor sessions.
type Store interface {
	editor.Loader
	editor.Saver
}

// Server wraps the MCP server with one editor session per case.
type Server struct {
	mcp    *server.MCPServer
	cases  CaseSource
	store  Store
	opts   []editor.Option
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*caseSession
}

// caseSession serializes tool calls on one editor session and keeps the
// outline from its latest render.
type caseSession struct {
	mu      sync.Mutex
	ed      *editor.Session
	brief   *models.Case
	outline string
}

// Option configures a Server.
type Option func(*Server)

// WithEditorOptions applies opts to every session the server opens.
func WithEditorOptions(opts ...editor.Option) Option {
	return func(s *Server) { s.opts = append(s.opts, opts...) }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a new MCP server with all editor tools registered.
func New(cases CaseSource, store Store, opts ...Option) *Server {
	s := &Server{
		cases:    cases,
		store:    store,
		logger:   slog.Default(),
		sessions: make(map[string]*caseSession),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"Casemap",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	caseID := mcp.WithString("case_id", mcp.Required(), mcp.Description("Case id, e.g. berlin-wall"))

	s.mcp.AddTool(mcp.NewTool("open_case",
		mcp.WithDescription("Open a case for editing. Reloads the saved mind map, creating one with only "+
			"the outcome card if none exists, and lists the case evidence. Read the editor guide first "+
			"via get_editor_guide or the "+guideURI+" resource."),
		caseID,
		mcp.WithString("headline", mcp.Description("Outcome text to use when the case has no brief")),
	), s.openCase)

	s.mcp.AddTool(mcp.NewTool("get_mind_map",
		mcp.WithDescription("Show the current mind map of a case."),
		caseID,
		mcp.WithString("format", mcp.Enum("outline", "json"), mcp.Description("outline (default) or json")),
	), s.getMindMap)

	s.mcp.AddTool(mcp.NewTool("drop_evidence",
		mcp.WithDescription("Add a cause card from evidence text. A trailing (YYYY) in the text sets its year row."),
		caseID,
		mcp.WithString("text", mcp.Required(), mcp.Description("Evidence text")),
		mcp.WithNumber("year", mcp.Description("Explicit year, overriding any year in the text. Years outside 1000-9999 fall back to the middle of the range")),
	), s.dropEvidence)

	s.mcp.AddTool(mcp.NewTool("click_node",
		mcp.WithDescription("Click a card: select it, deselect it, or link it to the selected card."),
		caseID,
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Card id")),
	), s.clickNode)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a cause card and every link touching it. The outcome card cannot be deleted."),
		caseID,
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Card id")),
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("delete_link",
		mcp.WithDescription("Delete one link."),
		caseID,
		mcp.WithString("link_id", mcp.Required(), mcp.Description("Link id")),
	), s.deleteLink)

	s.mcp.AddTool(mcp.NewTool("drag_node",
		mcp.WithDescription("Drag a cause card so its top-left corner lands at (x, y), then release it. "+
			"The card snaps to the year row nearest its centre."),
		caseID,
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Card id")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Target x in canvas pixels")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Target y in canvas pixels")),
	), s.dragNode)

	s.mcp.AddTool(mcp.NewTool("set_timeline_range",
		mcp.WithDescription("Change the visible year range and lay every cause card back onto its row."),
		caseID,
		mcp.WithNumber("start", mcp.Required(), mcp.Description("First year, 1000-9999")),
		mcp.WithNumber("end", mcp.Required(), mcp.Description("Last year, not before start and at most 500 years after it")),
	), s.setTimelineRange)

	s.mcp.AddTool(mcp.NewTool("retag_year",
		mcp.WithDescription("Move every cause card of one year to another year."),
		caseID,
		mcp.WithNumber("from", mcp.Required(), mcp.Description("Current year")),
		mcp.WithNumber("to", mcp.Required(), mcp.Description("New year, 1000-9999; anything else means the middle of the range")),
	), s.retagYear)

	s.mcp.AddTool(mcp.NewTool("get_editor_guide",
		mcp.WithDescription("Returns the editor guide: cards, year rows, links and tool usage."),
	), s.getEditorGuide)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Editor Guide",
			mcp.WithResourceDescription("How mind maps are laid out and edited."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// session returns the open session of caseID, opening it on first use.
func (s *Server) session(ctx context.Context, caseID, headline string, reopen bool) (*caseSession, error) {
	s.mu.Lock()
	cs, ok := s.sessions[caseID]
	if !ok {
		cs = &caseSession{}
		s.sessions[caseID] = cs
	}
	s.mu.Unlock()

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.ed != nil && !reopen {
		return cs, nil
	}

	brief, err := s.brief(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if brief != nil {
		headline = brief.Headline
	}
	if strings.TrimSpace(headline) == "" {
		headline = caseID
	}

	opts := append([]editor.Option{
		editor.WithSaver(s.store),
		editor.WithLogger(s.logger),
		editor.WithRenderer(cs.rendered),
	}, s.opts...)
	ed, err := editor.NewSession(caseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: open %s: %w", caseID, err)
	}
	cs.ed = ed
	cs.brief = brief
	ed.Open(ctx, s.store, headline)
	return cs, nil
}

func (s *Server) brief(ctx context.Context, caseID string) (*models.Case, error) {
	if s.cases == nil {
		return nil, nil
	}
	c, err := s.cases.GetCase(ctx, caseID)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, apperr.ErrNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

// rendered runs inside the session's lock, from the editor's render hook.
func (cs *caseSession) rendered(m models.MindMap, selected string) {
	cs.outline = render.Outline(m, selected, cs.ed.Mapper())
}

// edit runs fn on the session of the request's case and answers with a
// status line followed by the outline.
func (s *Server) edit(ctx context.Context, req mcp.CallToolRequest, fn func(ed *editor.Session) (string, error)) (*mcp.CallToolResult, error) {
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cs, err := s.session(ctx, caseID, "", false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	status, err := fn(cs.ed)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(status + "\n\n" + cs.outline), nil
}

func (s *Server) openCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cs, err := s.session(ctx, caseID, req.GetString("headline", ""), true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	var b strings.Builder
	start, end := cs.ed.Mapper().Range()
	fmt.Fprintf(&b, "opened %s (timeline %d-%d)\n", caseID, start, end)
	if cs.brief != nil && len(cs.brief.Evidence) > 0 {
		b.WriteString("evidence:\n")
		for _, e := range cs.brief.Evidence {
			fmt.Fprintf(&b, "  [%s] %s\n", e.ID, e.Text)
		}
	}
	b.WriteString("\n")
	b.WriteString(cs.outline)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getMindMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if req.GetString("format", "outline") != "json" {
		return s.edit(ctx, req, func(ed *editor.Session) (string, error) {
			return "case " + ed.CaseID(), nil
		})
	}
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cs, err := s.session(ctx, caseID, "", false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cs.mu.Lock()
	m := cs.ed.Snapshot()
	cs.mu.Unlock()
	out, _ := json.MarshalIndent(m, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) dropEvidence(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	drop := editor.Drop{Text: text}
	if _, ok := req.GetArguments()["year"]; ok {
		y, err := req.RequireInt("year")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		drop.Year = &y
	}
	return s.edit(ctx, req, func(ed *editor.Session) (string, error) {
		n, ok := ed.DropEvidence(drop)
		if !ok {
			return "", errors.New("evidence text is empty")
		}
		return fmt.Sprintf("added %s in %d", n.ID, n.Year), nil
	})
}

func (s *Server) clickNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, req, func(ed *editor.Session) (string, error) {
		return ed.Click(nodeID).String(), nil
	})
}

func (s *Server) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, req, func(ed *editor.Session) (string, error) {
		if !ed.DeleteNode(nodeID) {
			return "unchanged: " + nodeID + " is the outcome or does not exist", nil
		}
		return "deleted " + nodeID, nil
	})
}

func (s *Server) deleteLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	linkID, err := req.RequireString("link_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, req, func(ed *editor.Session) (string, error) {
		if !ed.DeleteLink(linkID) {
			return "unchanged: no link " + linkID, nil
		}
		return "deleted " + linkID, nil
	})
}

func (s *Server) dragNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, req, func(ed *editor.Session) (string, error) {
		m := ed.Snapshot()
		n := m.Node(nodeID)
		if n == nil {
			return "", fmt.Errorf("no card %s", nodeID)
		}
		// Grab the card by its centre, as a pointer would, and move the grab
		// point by the same offset so (x, y) stays the card's corner.
		c := ed.Canvas()
		dx, dy := c.NodeWidth/2, c.NodeHeight/2
		if !ed.BeginDrag(nodeID, drag.Point{X: n.X + dx, Y: n.Y + dy}) {
			return "", fmt.Errorf("card %s cannot be dragged", nodeID)
		}
		target := drag.Point{X: x + dx, Y: y + dy}
		ed.DragTo(target)
		year, snapped := ed.EndDrag(target)
		if !snapped {
			return "moved " + nodeID, nil
		}
		return fmt.Sprintf("moved %s to %d", nodeID, year), nil
	})
}

func (s *Server) setTimelineRange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, err := req.RequireInt("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := req.RequireInt("end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, req, func(ed *editor.Session) (string, error) {
		if err := ed.RepositionAllForRange(start, end); err != nil {
			return "", err
		}
		return fmt.Sprintf("timeline %d-%d", start, end), nil
	})
}

func (s *Server) retagYear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireInt("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireInt("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, req, func(ed *editor.Session) (string, error) {
		target := ed.NormalizeYear(to)
		return fmt.Sprintf("moved %d cards from %d to %d", ed.RetagYear(from, target), from, target), nil
	})
}

func (s *Server) getEditorGuide(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EditorGuide), nil
}

func (s *Server) readGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     EditorGuide,
		},
	}, nil
}
