package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/casemap/internal/index"
	"github.com/starford/casemap/internal/models"
)

// SaveMapRequest is the body of POST /mindmaps/{caseId}. It is the map itself.
type SaveMapRequest struct {
	Nodes []models.Node `json:"nodes"`
	Links []models.Link `json:"links"`
}

// Validate checks the minimal shape of each element. Graph integrity is
// the editor's job and is not checked here.
func (r *SaveMapRequest) Validate() error {
	for i := range r.Nodes {
		n := &r.Nodes[i]
		if err := validation.ValidateStruct(n,
			validation.Field(&n.ID, validation.Required),
			validation.Field(&n.Type, validation.Required, validation.In(models.NodeOutcome, models.NodeCause)),
		); err != nil {
			return err
		}
	}
	for i := range r.Links {
		l := &r.Links[i]
		if err := validation.ValidateStruct(l,
			validation.Field(&l.ID, validation.Required),
			validation.Field(&l.Source, validation.Required),
			validation.Field(&l.Target, validation.Required),
		); err != nil {
			return err
		}
	}
	return nil
}

// MindMap converts the request to the domain type.
func (r *SaveMapRequest) MindMap() models.MindMap {
	return models.MindMap{Nodes: r.Nodes, Links: r.Links}
}

// SaveMapResponse is returned after a successful save.
type SaveMapResponse struct {
	Message  string `json:"message"`
	Checksum string `json:"checksum"`
}

// MapListResponse wraps paginated map listings.
type MapListResponse struct {
	Maps  []models.MapSummary `json:"maps"`
	Total int                 `json:"total"`
}

// SearchResult is a single node hit.
type SearchResult struct {
	CaseID  string `json:"case_id"`
	NodeID  string `json:"node_id"`
	Text    string `json:"text"`
	Year    int    `json:"year,omitempty"`
	Snippet string `json:"snippet"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

func toSearchResults(in []index.SearchResult) []SearchResult {
	out := make([]SearchResult, len(in))
	for i, r := range in {
		out[i] = SearchResult(r)
	}
	return out
}

// CaseListResponse wraps the case catalog.
type CaseListResponse struct {
	Cases []models.Case `json:"cases"`
}
