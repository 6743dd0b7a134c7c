// Package models defines the domain types for casemap.
package models

import (
	"encoding/json"
	"time"
)

// NodeType distinguishes the fixed outcome node from user-placed cause cards.
type NodeType string

// Node types.
const (
	NodeOutcome NodeType = "outcome"
	NodeCause   NodeType = "cause"
)

// OutcomeID is the id given to a synthesized outcome node.
const OutcomeID = "outcome"

// Node is a card on the canvas. X and Y are the top-left corner in canvas-local pixels.
type Node struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Type    NodeType `json:"type"`
	Year    int      `json:"year,omitempty"`
	IsFixed bool     `json:"isFixed,omitempty"`
}

// IsOutcome reports whether n is the immovable outcome node.
func (n *Node) IsOutcome() bool {
	return n.Type == NodeOutcome
}

// Link is an undirected edge between two node ids.
type Link struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Touches reports whether the link has nodeID as either endpoint.
func (l Link) Touches(nodeID string) bool {
	return l.Source == nodeID || l.Target == nodeID
}

// Connects reports whether the link joins a and b in either direction.
func (l Link) Connects(a, b string) bool {
	return (l.Source == a && l.Target == b) || (l.Source == b && l.Target == a)
}

// MindMap is the unit of persistence for one case.
type MindMap struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// MarshalJSON encodes nil slices as empty arrays.
func (m MindMap) MarshalJSON() ([]byte, error) {
	type plain MindMap
	p := plain(m)
	if p.Nodes == nil {
		p.Nodes = []Node{}
	}
	if p.Links == nil {
		p.Links = []Link{}
	}
	return json.Marshal(p)
}

// Clone returns a deep copy with non-nil slices.
func (m MindMap) Clone() MindMap {
	out := MindMap{
		Nodes: make([]Node, len(m.Nodes)),
		Links: make([]Link, len(m.Links)),
	}
	copy(out.Nodes, m.Nodes)
	copy(out.Links, m.Links)
	return out
}

// Node returns a pointer into m.Nodes for id, or nil.
func (m *MindMap) Node(id string) *Node {
	for i := range m.Nodes {
		if m.Nodes[i].ID == id {
			return &m.Nodes[i]
		}
	}
	return nil
}

// HasNode reports whether a node with id exists.
func (m *MindMap) HasNode(id string) bool {
	return m.Node(id) != nil
}

// Outcome returns the outcome node, or nil if the map has none.
func (m *MindMap) Outcome() *Node {
	for i := range m.Nodes {
		if m.Nodes[i].IsOutcome() {
			return &m.Nodes[i]
		}
	}
	return nil
}

// CauseYears returns the year of every cause node, in node order.
func (m *MindMap) CauseYears() []int {
	var out []int
	for _, n := range m.Nodes {
		if n.Type == NodeCause {
			out = append(out, n.Year)
		}
	}
	return out
}

// MapSummary is a lightweight item in a map listing.
type MapSummary struct {
	CaseID    string    `json:"case_id"`
	Outcome   string    `json:"outcome"`
	Checksum  string    `json:"checksum"`
	NodeCount int       `json:"node_count"`
	LinkCount int       `json:"link_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentMetadata describes a stored document as returned by list operations.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
