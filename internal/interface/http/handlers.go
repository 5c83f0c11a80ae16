package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/guildhub/superlatives/internal/application/engine"
	"github.com/guildhub/superlatives/internal/application/query"
	"github.com/guildhub/superlatives/internal/domain/shared"
	api "github.com/guildhub/superlatives/internal/infrastructure/external/discord"
	"github.com/guildhub/superlatives/pkg/logger"
)

// Signature headers sent with every interaction.
const (
	headerSignature = "X-Signature-Ed25519"
	headerTimestamp = "X-Signature-Timestamp"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "superlatives",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":       "/health",
			"ready":        "/ready",
			"periods":      "/api/v1/periods",
			"leaderboard":  "/api/v1/superlatives/{track}",
			"history":      "/api/v1/superlatives/{track}/history/{ref}",
			"interactions": "/interactions",
		},
	})
}

// handleHealth reports every dependency check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleReady reports readiness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/superlatives/{track}
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Leaderboard == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "leaderboard handler not configured")
		return
	}

	log := logger.FromContext(r.Context())
	result, err := s.deps.Leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Track:    chi.URLParam(r, "track"),
		Progress: engine.LogProgress{Logger: log},
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}
	writeJSONData(w, r, paginate(result, r))
}

// handleGetHistory handles GET /api/v1/superlatives/{track}/history/{ref}
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "history handler not configured")
		return
	}

	log := logger.FromContext(r.Context())
	result, err := s.deps.History.Handle(r.Context(), query.GetHistoryQuery{
		Track:    chi.URLParam(r, "track"),
		Ref:      chi.URLParam(r, "ref"),
		Progress: engine.LogProgress{Logger: log},
	})
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}
	writeJSONData(w, r, paginate(result, r))
}

// handleListPeriods handles GET /api/v1/periods
func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	if s.deps.Periods == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "periods handler not configured")
		return
	}
	writeJSONData(w, r, s.deps.Periods.Handle())
}

// paginate trims entries by the optional limit and offset parameters.
func paginate(result *query.LeaderboardResult, r *http.Request) *query.LeaderboardResult {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)
	if offset <= 0 && limit <= 0 {
		return result
	}

	out := *result
	entries := result.Entries
	if offset > len(entries) {
		offset = len(entries)
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	out.Entries = entries
	return &out
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// writeQueryError maps engine errors onto HTTP statuses.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	var de *shared.DomainError
	message := err.Error()
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}

	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidHistoricalDate):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", message)
	case errors.Is(err, shared.ErrNoActivePeriod):
		writeJSONError(w, http.StatusNotFound, "no_active_period", message)
	case errors.Is(err, shared.ErrSnapshotUnavailable):
		writeJSONError(w, http.StatusNotFound, "snapshot_unavailable", message)
	case errors.Is(err, shared.ErrEmptyLeaderboard):
		writeJSONError(w, http.StatusNotFound, "empty_leaderboard", message)
	case shared.IsRateLimited(err):
		if wait, ok := shared.RetryAfterHint(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
		}
		writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "game API rate limit reached")
	case errors.Is(err, shared.ErrMissingBaseline):
		log.Warn("leaderboard incomplete", logger.Err(err))
		writeJSONError(w, http.StatusServiceUnavailable, "collecting_data", message)
	case shared.IsExternalService(err):
		log.Error("upstream failure", logger.Err(err))
		writeJSONError(w, http.StatusBadGateway, "upstream_error", message)
	default:
		log.Error("query failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// handleInteraction verifies and dispatches an interaction.
// Unsigned or badly signed requests are rejected with 401.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "could not read body")
		return
	}

	if s.deps.Verifier == nil {
		log.Error("interaction rejected: no signature verifier configured")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid request signature")
		return
	}
	if err := s.deps.Verifier.Verify(r.Header.Get(headerSignature), r.Header.Get(headerTimestamp), body); err != nil {
		log.Warn("interaction signature rejected", logger.Err(err))
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid request signature")
		return
	}

	var in api.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "malformed interaction")
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Interactions.Handle(r.Context(), &in))
}
