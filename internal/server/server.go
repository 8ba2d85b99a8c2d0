// Package server exposes the engine over HTTP for host views. Each action
// execution request gets its own controller instance, mirroring the
// one-controller-per-view ownership rule.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	stderrors "ticketing-workflow/internal/common/errors"
	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/directory"
	"ticketing-workflow/internal/form"
	"ticketing-workflow/internal/schema"
	"ticketing-workflow/internal/workflow"
)

// Server wires the engine components behind REST routes.
type Server struct {
	catalog   *workflow.Catalog
	authority workflow.Authority
	directory *directory.Client
	trail     TrailFunc
	observer  workflow.TransitionObserver
	logger    logger.Logger
	router    chi.Router
}

// TrailFunc returns the audit trail for one entity; nil disables the route.
type TrailFunc func(r *http.Request, entityID string) (interface{}, error)

func New(catalog *workflow.Catalog, authority workflow.Authority, dir *directory.Client, trail TrailFunc, observer workflow.TransitionObserver, log logger.Logger) *Server {
	s := &Server{
		catalog:   catalog,
		authority: authority,
		directory: dir,
		trail:     trail,
		observer:  observer,
		logger:    log.WithFields(map[string]interface{}{"component": "http-server"}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/entities/{entityID}/actions", s.handleActions)
		r.Post("/entities/{entityID}/actions/{actionID}", s.handleExecute)
		r.Get("/services/{slug}/schema", s.handleServiceSchema)
		if s.trail != nil {
			r.Get("/entities/{entityID}/audit", s.handleAudit)
		}
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleActions returns the ordered action list for one entity. Catalog
// failures already degrade to an empty list inside the catalog, so this
// route never errors on the authority's behalf.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")

	actions := s.catalog.Load(r.Context(), entityID)
	if actions == nil {
		actions = []workflow.Action{}
	}
	writeJSON(w, http.StatusOK, actions)
}

type executeRequest struct {
	Values map[string]interface{} `json:"values,omitempty"`
}

type executeResponse struct {
	Status  string                        `json:"status"`
	Message string                        `json:"message,omitempty"`
	Errors  map[string]*schema.FieldError `json:"errors,omitempty"`
	Actions []workflow.Action             `json:"actions,omitempty"`
}

// handleExecute runs the full selection/confirmation flow for one action
// on behalf of a thin host view.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	actionID := chi.URLParam(r, "actionID")

	var req executeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, executeResponse{Status: "error", Message: "invalid request body"})
			return
		}
	}

	actions := s.catalog.Load(r.Context(), entityID)
	var selected *workflow.Action
	for i := range actions {
		if actions[i].ID == actionID {
			selected = &actions[i]
			break
		}
	}
	if selected == nil {
		writeJSON(w, http.StatusNotFound, executeResponse{Status: "error", Message: "action not available"})
		return
	}

	opts := []workflow.Option{}
	if s.observer != nil {
		opts = append(opts, workflow.WithObserver(s.observer))
	}
	ctrl := workflow.NewController(entityID, s.catalog, s.authority, s.logger, opts...)
	defer ctrl.Close()

	if err := ctrl.SelectAction(r.Context(), *selected); err != nil {
		s.writeExecuteError(w, ctrl, err)
		return
	}

	if ctrl.State() == workflow.StateAwaitingForm {
		session := ctrl.Session()
		for name, raw := range req.Values {
			// Coercion failures land in the session's error map and
			// surface through the validation response below.
			_ = session.SetValue(name, raw)
		}
		if err := ctrl.Confirm(r.Context()); err != nil {
			s.writeExecuteError(w, ctrl, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Status:  "ok",
		Actions: s.catalog.Actions(entityID),
	})
}

func (s *Server) writeExecuteError(w http.ResponseWriter, ctrl *workflow.Controller, err error) {
	if errors.Is(err, form.ErrValidationFailed) {
		resp := executeResponse{Status: "invalid"}
		if session := ctrl.Session(); session != nil {
			resp.Errors = session.Errors()
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	switch stderrors.CodeOf(err) {
	case stderrors.ErrCodeTransitionRejected:
		var stdErr *stderrors.StandardError
		errors.As(err, &stdErr)
		writeJSON(w, http.StatusConflict, executeResponse{Status: "rejected", Message: stdErr.Message})
	case stderrors.ErrCodeSchemaMisconfigured:
		writeJSON(w, http.StatusUnprocessableEntity, executeResponse{Status: "error", Message: err.Error()})
	default:
		s.logger.Error("action execution failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSON(w, http.StatusBadGateway, executeResponse{Status: "error", Message: "transition failed"})
	}
}

// handleServiceSchema serves a service category's form schema to hosts
// rendering entity-creation forms.
func (s *Server) handleServiceSchema(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	if s.directory == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "service directory not configured"})
		return
	}

	svc, err := s.directory.Service(r.Context(), slug)
	if err != nil {
		if stderrors.CodeOf(err) == stderrors.ErrCodeSchemaMisconfigured {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "service directory unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")

	trail, err := s.trail(r, entityID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "audit trail unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
