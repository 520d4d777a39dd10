package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	healthCheckTimeout  = 5 * time.Second
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ws", s.handleWebSocket)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Route("/{user}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Get("/history", s.handleGetHistory)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	return r
}

// handleHealth runs every registered health check. Any failure reports
// "degraded" with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"sessions":   len(s.sessions.Users()),
		"components": components,
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	snaps := s.sessions.Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": snaps,
		"count":    len(snaps),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	snap, ok := s.sessions.Snapshot(user)
	if !ok {
		writeNotFound(w, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetHistory returns the newest switch history entries for a user.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	if _, ok := s.sessions.Snapshot(user); !ok {
		writeNotFound(w, "session not found")
		return
	}
	if s.history == nil {
		writeUnavailable(w, "switch history is not available")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.history.List(r.Context(), user, limit)
	if err != nil {
		s.logger.Error("failed to list switch history", "user", user, "error", err)
		writeInternalError(w, "failed to load switch history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"entries": entries,
		"count":   len(entries),
	})
}

var (
	errInvalidLimit  = errors.New("limit must be a positive integer")
	errLimitTooLarge = fmt.Errorf("limit must not exceed %d", maxHistoryLimit)
)

// parseHistoryLimit accepts an empty value or an integer in [1, maxHistoryLimit].
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	if n > maxHistoryLimit {
		return 0, errLimitTooLarge
	}
	return n, nil
}
