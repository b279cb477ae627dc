package validation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/handlers"
	"github.com/JaimeStill/rtoval/pkg/routes"
)

// Handler exposes the validation trigger and revalidation endpoints.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "validation"),
	}
}

// Routes returns the route group definition for validation endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sessions/{id}",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/validate", Handler: h.Validate},
			{Method: "POST", Pattern: "/revalidate", Handler: h.Revalidate},
		},
	}
}

// Validate queues the session and responds 202 with the session as queued.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, sessions.ErrNotFound)
		return
	}

	s, err := h.sys.Validate(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, s)
}

// Revalidate re-runs one requirement and responds with the replaced result.
func (h *Handler) Revalidate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, sessions.ErrNotFound)
		return
	}

	var cmd RevalidateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	cmd.SessionID = id

	res, err := h.sys.Revalidate(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, res)
}
