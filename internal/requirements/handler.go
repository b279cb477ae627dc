package requirements

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JaimeStill/rtoval/pkg/handlers"
	"github.com/JaimeStill/rtoval/pkg/pagination"
	"github.com/JaimeStill/rtoval/pkg/routes"
)

// Handler provides HTTP endpoints for requirement operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// TypeInfo describes a requirement type for clients.
type TypeInfo struct {
	Type  Type   `json:"type"`
	Label string `json:"label"`
	Fixed bool   `json:"fixed"`
	Count int    `json:"count,omitempty"`
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "requirements"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for requirement endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/requirements",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Resolve},
			{Method: "GET", Pattern: "/types", Handler: h.Types},
			{Method: "GET", Pattern: "/count", Handler: h.Count},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "POST", Pattern: "/import", Handler: h.Import},
		},
	}
}

// Resolve returns the full requirement list for a unit. The fixed sets are
// included unless include_fixed=false.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	q := Query{
		UnitCode:     values.Get("unit_code"),
		DocumentType: DocumentType(values.Get("document_type")),
		IncludeFixed: true,
	}
	if v := values.Get("include_fixed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
		q.IncludeFixed = b
	}

	reqs, err := h.sys.Resolve(r.Context(), q)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, reqs)
}

// Types lists every requirement type with its fixed-set size where applicable.
func (h *Handler) Types(w http.ResponseWriter, r *http.Request) {
	all := Types()
	info := make([]TypeInfo, len(all))
	for i, t := range all {
		info[i] = TypeInfo{
			Type:  t,
			Label: t.Label(),
			Fixed: t.Fixed(),
			Count: len(Fixed(t, "")),
		}
	}
	handlers.RespondJSON(w, http.StatusOK, info)
}

// Count returns the database, fixed and total requirement counts for a unit.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	unit := r.URL.Query().Get("unit_code")

	n, err := h.sys.Count(r.Context(), unit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, CountResult{
		UnitCode: unit,
		Database: n,
		Fixed:    FixedCount(),
		Total:    Total(n),
	})
}

// Search accepts a JSON body with pagination and filter criteria and returns matching requirements.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Import replaces a unit's database-backed requirements.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var cmd ImportCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidImport)
		return
	}

	result, err := h.sys.Import(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
