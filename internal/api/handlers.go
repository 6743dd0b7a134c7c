package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/casemap/internal/apperr"
	"github.com/starford/casemap/internal/checksum"
	"github.com/starford/casemap/internal/mapservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *mapservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *mapservice.Service) *Handler {
	return &Handler{svc: svc}
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op, caseID string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	default:
		slog.Error(op+" failed", slog.String("case_id", caseID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListMaps handles GET /api/mindmaps.
func (h *Handler) ListMaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListMaps(r.Context(), limit, max(offset, 0))
	if err != nil {
		writeServiceError(w, "list maps", "", err)
		return
	}
	writeJSON(w, http.StatusOK, MapListResponse{Maps: items, Total: total})
}

// GetMap handles GET /api/mindmaps/{caseId}. The body is the bare map so
// editors can load it directly; the checksum travels as the ETag.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseId")
	doc, err := h.svc.GetMap(r.Context(), caseID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("mind map not found"))
			return
		}
		writeServiceError(w, "get map", caseID, err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(doc.Checksum))
	writeJSON(w, http.StatusOK, doc.Map)
}

// SaveMap handles POST /api/mindmaps/{caseId}. An If-Match header turns the
// save into a compare-and-swap against the stored checksum.
func (h *Handler) SaveMap(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseId")
	var req SaveMapRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	ifMatch := checksum.FromETag(r.Header.Get("If-Match"))
	res, err := h.svc.SaveMap(r.Context(), caseID, req.MindMap(), ifMatch)
	if err != nil {
		writeServiceError(w, "save map", caseID, err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(res.Checksum))
	writeJSON(w, http.StatusOK, SaveMapResponse{
		Message:  "Mind map saved successfully",
		Checksum: res.Checksum,
	})
}

// DeleteMap handles DELETE /api/mindmaps/{caseId}.
func (h *Handler) DeleteMap(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseId")
	if err := h.svc.DeleteMap(r.Context(), caseID); err != nil {
		writeServiceError(w, "delete map", caseID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", "", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: toSearchResults(results)})
}

// ListCases handles GET /api/cases.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.svc.ListCases(r.Context())
	if err != nil {
		writeServiceError(w, "list cases", "", err)
		return
	}
	writeJSON(w, http.StatusOK, CaseListResponse{Cases: cases})
}

// GetCase handles GET /api/cases/{caseId}.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseId")
	c, err := h.svc.GetCase(r.Context(), caseID)
	if err != nil {
		writeServiceError(w, "get case", caseID, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
