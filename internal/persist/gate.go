// Package persist is the HTTP client side of map persistence. Loads block
// the caller; saves never do.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/casemap/internal/models"
)

// Mode selects how concurrent saves of the same case are handled.
type Mode string

const (
	// ModeFireAndForget issues every save immediately. Out-of-order
	// completion can let an older snapshot win.
	ModeFireAndForget Mode = "fire_and_forget"
	// ModeCoalesce keeps one save in flight per case and collapses saves
	// issued meanwhile into a single trailing save of the newest snapshot.
	ModeCoalesce Mode = "coalesce"
)

var errNoMap = errors.New("persist: no saved map")

// Gate loads and saves maps against a remote endpoint.
type Gate struct {
	endpoint    string
	token       string
	mode        Mode
	saveTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	loads singleflight.Group
	wg    sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*trailing
}

type trailing struct {
	next *models.MindMap
}

// Option configures a Gate.
type Option func(*Gate)

// WithMode sets the save mode.
func WithMode(m Mode) Option {
	return func(g *Gate) { g.mode = m }
}

// WithToken sends a Bearer token on every request.
func WithToken(token string) Option {
	return func(g *Gate) { g.token = token }
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gate) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithSaveTimeout bounds each save request.
func WithSaveTimeout(d time.Duration) Option {
	return func(g *Gate) { g.saveTimeout = d }
}

// WithLogger sets the logger that receives persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Gate for endpoint, e.g. "http://localhost:8080/api/mindmaps".
func New(endpoint string, opts ...Option) (*Gate, error) {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("persist: endpoint is required")
	}
	g := &Gate{
		endpoint:    endpoint,
		mode:        ModeFireAndForget,
		saveTimeout: 10 * time.Second,
		httpClient:  &http.Client{},
		logger:      slog.Default(),
		pending:     make(map[string]*trailing),
	}
	for _, opt := range opts {
		opt(g)
	}
	switch g.mode {
	case ModeFireAndForget, ModeCoalesce:
	default:
		return nil, fmt.Errorf("persist: unknown mode %q", g.mode)
	}
	return g, nil
}

// Load fetches the saved map of caseID. Any failure, including a missing
// map, is reported as ok=false. Concurrent loads of one case share a request.
func (g *Gate) Load(ctx context.Context, caseID string) (models.MindMap, bool) {
	v, err, _ := g.loads.Do(caseID, func() (any, error) {
		return g.fetch(ctx, caseID)
	})
	if err != nil {
		if errors.Is(err, errNoMap) {
			g.logger.Debug("persist: no saved map", slog.String("case_id", caseID))
		} else {
			g.logger.Error("persist: load failed",
				slog.String("case_id", caseID),
				slog.String("error", err.Error()))
		}
		return models.MindMap{}, false
	}
	return v.(models.MindMap).Clone(), true
}

// Save sends m in the background. Failures are logged and not retried.
func (g *Gate) Save(caseID string, m models.MindMap) {
	if g.mode == ModeFireAndForget {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.post(caseID, m)
		}()
		return
	}

	g.mu.Lock()
	if t, busy := g.pending[caseID]; busy {
		t.next = &m
		g.mu.Unlock()
		return
	}
	g.pending[caseID] = &trailing{}
	g.wg.Add(1)
	g.mu.Unlock()
	go g.drain(caseID, m)
}

// Wait blocks until every issued save has finished.
func (g *Gate) Wait() {
	g.wg.Wait()
}

func (g *Gate) drain(caseID string, m models.MindMap) {
	defer g.wg.Done()
	for {
		g.post(caseID, m)

		g.mu.Lock()
		t := g.pending[caseID]
		if t.next == nil {
			delete(g.pending, caseID)
			g.mu.Unlock()
			return
		}
		m = *t.next
		t.next = nil
		g.mu.Unlock()
	}
}

func (g *Gate) caseURL(caseID string) string {
	return g.endpoint + "/" + url.PathEscape(caseID)
}

func (g *Gate) fetch(ctx context.Context, caseID string) (models.MindMap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.caseURL(caseID), nil)
	if err != nil {
		return models.MindMap{}, fmt.Errorf("persist: load: create request: %w", err)
	}
	g.authorize(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return models.MindMap{}, fmt.Errorf("persist: load: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.MindMap{}, errNoMap
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.MindMap{}, fmt.Errorf("persist: load: status %d", resp.StatusCode)
	}

	var m models.MindMap
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return models.MindMap{}, fmt.Errorf("persist: load: decode: %w", err)
	}
	return m, nil
}

func (g *Gate) post(caseID string, m models.MindMap) {
	if err := g.send(caseID, m); err != nil {
		g.logger.Error("persist: save failed",
			slog.String("case_id", caseID),
			slog.String("error", err.Error()))
		return
	}
	g.logger.Debug("persist: saved",
		slog.String("case_id", caseID),
		slog.Int("nodes", len(m.Nodes)),
		slog.Int("links", len(m.Links)))
}

func (g *Gate) send(caseID string, m models.MindMap) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("persist: save: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.saveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.caseURL(caseID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("persist: save: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	g.authorize(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("persist: save: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("persist: save: status %d", resp.StatusCode)
	}
	return nil
}

func (g *Gate) authorize(req *http.Request) {
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}
