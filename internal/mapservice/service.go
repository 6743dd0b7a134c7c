// Package mapservice coordinates the document store and the index behind
// the map and case endpoints.
package mapservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/casemap/internal/apperr"
	"github.com/starford/casemap/internal/casefile"
	"github.com/starford/casemap/internal/checksum"
	"github.com/starford/casemap/internal/index"
	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/storage"
)

var caseIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ChangeFunc is told about every map the service creates, updates or deletes.
type ChangeFunc func(kind, caseID string)

// MapDocument is a stored map with its content checksum.
type MapDocument struct {
	CaseID   string         `json:"case_id"`
	Map      models.MindMap `json:"map"`
	Checksum string         `json:"checksum"`
}

// SaveResult describes a completed save.
type SaveResult struct {
	Checksum string
	Created  bool
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       index.MapIndex
	onChange ChangeFunc
	logger   *slog.Logger

	// case id -> *sync.Mutex; serializes writes to one document.
	locks sync.Map
}

// Option configures a Service.
type Option func(*Service)

// WithChangeFunc registers fn to be called after successful writes.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(s *Service) { s.onChange = fn }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a map service.
func NewService(store storage.Provider, db index.MapIndex, opts ...Option) *Service {
	s := &Service{store: store, db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateCaseID rejects ids that cannot name a document.
func ValidateCaseID(caseID string) error {
	err := validation.Validate(caseID,
		validation.Required,
		validation.Match(caseIDRe).Error("must be 1-128 letters, digits, '-' or '_'"),
	)
	if err != nil {
		return fmt.Errorf("%w: case id: %s", apperr.ErrInvalidInput, err.Error())
	}
	return nil
}

// GetMap reads the stored map of a case.
func (s *Service) GetMap(_ context.Context, caseID string) (*MapDocument, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}
	data, err := s.store.Read(storage.MapPath(caseID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	var m models.MindMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("mapservice: decode %s: %w", caseID, err)
	}
	return &MapDocument{CaseID: caseID, Map: m.Clone(), Checksum: checksum.Sum(data)}, nil
}

func (s *Service) lockCase(caseID string) (unlock func()) {
	v, _ := s.locks.LoadOrStore(caseID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// SaveMap replaces the stored map of a case. A non-empty ifMatch must equal
// the checksum of the current document, or ErrConflict is returned. Saves of
// the same case run one at a time.
func (s *Service) SaveMap(_ context.Context, caseID string, m models.MindMap, ifMatch string) (*SaveResult, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}
	defer s.lockCase(caseID)()
	path := storage.MapPath(caseID)

	existing, err := s.store.Read(path)
	created := errors.Is(err, fs.ErrNotExist)
	if err != nil && !created {
		return nil, err
	}
	if ifMatch != "" {
		if created || ifMatch != checksum.Sum(existing) {
			return nil, apperr.ErrConflict
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mapservice: encode %s: %w", caseID, err)
	}
	data = append(data, '\n')
	sum := checksum.Sum(data)
	if !created && sum == checksum.Sum(existing) {
		return &SaveResult{Checksum: sum}, nil
	}

	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	if err := index.IndexDocument(s.db, caseID, data, time.Now().UTC()); err != nil {
		s.logger.Warn("mapservice: index after save failed",
			slog.String("case_id", caseID),
			slog.String("error", err.Error()))
	}

	kind := index.EventUpdated
	if created {
		kind = index.EventCreated
	}
	s.changed(kind, caseID)
	return &SaveResult{Checksum: sum, Created: created}, nil
}

// DeleteMap removes a case's map from storage and index.
func (s *Service) DeleteMap(_ context.Context, caseID string) error {
	if err := ValidateCaseID(caseID); err != nil {
		return err
	}
	defer s.lockCase(caseID)()
	if err := s.store.Delete(storage.MapPath(caseID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteMap(caseID); err != nil {
		return err
	}
	s.changed(index.EventDeleted, caseID)
	return nil
}

// ListMaps returns one page of map summaries and the total count.
func (s *Service) ListMaps(_ context.Context, limit, offset int) ([]models.MapSummary, int, error) {
	rows, total, err := s.db.ListMaps(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.MapSummary, len(rows))
	for i, r := range rows {
		items[i] = models.MapSummary{
			CaseID:    r.CaseID,
			Outcome:   r.Outcome,
			Checksum:  r.Checksum,
			NodeCount: r.NodeCount,
			LinkCount: r.LinkCount,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search finds nodes whose text matches query across all maps.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalidInput)
	}
	return s.db.Search(query, limit)
}

// GetCase reads and parses one case brief.
func (s *Service) GetCase(_ context.Context, caseID string) (*models.Case, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}
	data, err := s.store.Read(storage.CasePath(caseID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return casefile.Parse(caseID, data)
}

// ListCases returns every parseable case brief ordered by id. Briefs that
// fail to parse are logged and skipped.
func (s *Service) ListCases(_ context.Context) ([]models.Case, error) {
	metas, err := s.store.List(storage.CasesDir, storage.CaseExt)
	if err != nil {
		return nil, err
	}
	out := make([]models.Case, 0, len(metas))
	for _, m := range metas {
		id := strings.TrimSuffix(strings.TrimPrefix(m.Path, storage.CasesDir+"/"), storage.CaseExt)
		if ValidateCaseID(id) != nil {
			continue
		}
		data, err := s.store.Read(m.Path)
		if err != nil {
			return nil, err
		}
		c, err := casefile.Parse(id, data)
		if err != nil {
			s.logger.Warn("mapservice: skipping case brief",
				slog.String("path", m.Path),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b models.Case) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Service) changed(kind, caseID string) {
	if s.onChange != nil {
		s.onChange(kind, caseID)
	}
}
