// Package linkgraph maintains the links of a mind map. Links only ever join
// existing nodes and no unordered pair of nodes is joined twice.
package linkgraph

import (
	"slices"

	"github.com/google/uuid"

	"github.com/starford/casemap/internal/models"
)

// IDFunc returns a fresh link id.
type IDFunc func() string

// NewLinkID is the default IDFunc.
func NewLinkID() string {
	return "l-" + uuid.New().String()
}

// Graph edits the links of a map in place.
type Graph struct {
	m     *models.MindMap
	newID IDFunc
}

// New wraps m. A nil newID uses NewLinkID.
func New(m *models.MindMap, newID IDFunc) *Graph {
	if newID == nil {
		newID = NewLinkID
	}
	return &Graph{m: m, newID: newID}
}

// Exists reports whether a link joins a and b in either direction.
func (g *Graph) Exists(a, b string) bool {
	return slices.ContainsFunc(g.m.Links, func(l models.Link) bool {
		return l.Connects(a, b)
	})
}

// CreateLink appends a link from a to b. It does nothing and returns false for
// a self-loop, a missing endpoint, or a pair that is already linked.
func (g *Graph) CreateLink(a, b string) (models.Link, bool) {
	if a == b || !g.m.HasNode(a) || !g.m.HasNode(b) || g.Exists(a, b) {
		return models.Link{}, false
	}
	l := models.Link{ID: g.newID(), Source: a, Target: b}
	g.m.Links = append(g.m.Links, l)
	return l, true
}

// DeleteLinksTouching removes every link with nodeID as an endpoint and
// returns how many were removed. Only node deletion calls this.
func (g *Graph) DeleteLinksTouching(nodeID string) int {
	before := len(g.m.Links)
	g.m.Links = slices.DeleteFunc(g.m.Links, func(l models.Link) bool {
		return l.Touches(nodeID)
	})
	return before - len(g.m.Links)
}

// DeleteLink removes the link with linkID, if present.
func (g *Graph) DeleteLink(linkID string) bool {
	i := slices.IndexFunc(g.m.Links, func(l models.Link) bool { return l.ID == linkID })
	if i < 0 {
		return false
	}
	g.m.Links = slices.Delete(g.m.Links, i, i+1)
	return true
}
