// Package server exposes the aggregation pipeline over HTTP: cached
// snapshots, SSE progress streams, and single-category refresh.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/aggregate"
	"github.com/sells-group/company-intel/internal/model"
)

// Server holds the HTTP handlers over one orchestrator.
type Server struct {
	orch    *aggregate.Orchestrator
	origins []string
}

// New creates a Server. origins feeds the CORS allowlist so browser
// dashboards can consume the SSE stream directly.
func New(orch *aggregate.Orchestrator, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{orch: orch, origins: origins}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/profile/{subjectID}", s.handleProfile)
	r.Post("/profile/{subjectID}/refresh", s.handleRefresh)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProfile serves a complete profile as one JSON snapshot, or, when
// any category still needs computing, streams the aggregation pass as
// SSE frames. Disconnecting mid-stream does not cancel the pass.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	snap, events, err := s.orch.Aggregate(r.Context(), subjectID)
	if err != nil {
		// A subject that normalizes to nothing is the caller's fault;
		// anything else here is a store read failure.
		if errors.Is(err, aggregate.ErrEmptySubject) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		zap.L().Error("server: aggregate", zap.String("subject", subjectID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if snap != nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for {
		select {
		case <-r.Context().Done():
			// Orchestrator keeps running on its own context; stop
			// delivering frames only.
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeFrame(w, ev); err != nil {
				zap.L().Debug("server: stream write failed", zap.Error(err))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// handleRefresh re-runs one category synchronously and returns the
// replaced result.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	cat := model.Category(req.Category)
	if !cat.Valid() {
		http.Error(w, `{"error":"unknown category"}`, http.StatusBadRequest)
		return
	}

	res, err := s.orch.RefreshCategory(r.Context(), subjectID, cat)
	if err != nil {
		if errors.Is(err, aggregate.ErrEmptySubject) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeFrame emits one SSE frame. The JSON payload carries the type as
// well, so newline-delimited consumers can ignore the event: line.
func writeFrame(w http.ResponseWriter, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + string(ev.Type) + "\n")); err != nil {
		return err
	}
	if _, err := w.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
