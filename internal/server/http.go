package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rickgao/matchfeed/internal/dispatch"
	"github.com/rickgao/matchfeed/internal/model"
	"github.com/rickgao/matchfeed/internal/version"
)

const (
	healthTimeout = 5 * time.Second
	// createMatchTimeout bounds a match creation that outlives its request.
	createMatchTimeout = 30 * time.Second
)

type createMatchRequest struct {
	SubjectID      string `json:"subjectId"`
	CounterpartyID string `json:"counterpartyId"`
	CampaignID     string `json:"campaignId"`
}

// matchResponse is the JSON form of model.MatchScore.
type matchResponse struct {
	ID              string         `json:"id"`
	SubjectID       string         `json:"subjectId"`
	CounterpartyID  string         `json:"counterpartyId"`
	CampaignID      string         `json:"campaignId"`
	OverallScore    int            `json:"overallScore"`
	DimensionScores map[string]int `json:"dimensionScores"`
	StrengthAreas   []string       `json:"strengthAreas"`
	WeaknessAreas   []string       `json:"weaknessAreas"`
	Reason          string         `json:"reason"`
	DeliveryState   string         `json:"deliveryState"`
	ScoredBy        string         `json:"scoredBy"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func toMatchResponse(m model.MatchScore) matchResponse {
	dims := make(map[string]int, len(m.DimensionScores))
	for d, v := range m.DimensionScores {
		dims[string(d)] = v
	}
	weaknesses := m.WeaknessAreas
	if weaknesses == nil {
		weaknesses = []string{}
	}
	return matchResponse{
		ID:              m.ID,
		SubjectID:       m.SubjectID,
		CounterpartyID:  m.CounterpartyID,
		CampaignID:      m.CampaignID,
		OverallScore:    m.OverallScore,
		DimensionScores: dims,
		StrengthAreas:   m.StrengthAreas,
		WeaknessAreas:   weaknesses,
		Reason:          m.Reason,
		DeliveryState:   string(m.DeliveryState),
		ScoredBy:        string(m.ScoredBy),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Version    version.Info   `json:"version"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Version:    version.Get(),
		Components: make(map[string]any),
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["store"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["store"] = "connected"
		}
	}
	health.Components["connections"] = map[string]int{
		"active": s.deps.Registry.Len(),
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Stats().Snapshot())
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// A caller hanging up must not abort scoring or the write.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), createMatchTimeout)
	defer cancel()

	m, err := s.deps.Matches.CreateMatch(ctx, req.SubjectID, req.CounterpartyID, req.CampaignID)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMatchResponse(m))
}

func (s *Server) handleListUnclaimed(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	matches, err := s.deps.Matches.ListUnclaimed(r.Context(), subjectID, limit)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	out := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, toMatchResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": out})
}

func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	var perr *dispatch.PersistenceError
	switch {
	case errors.Is(err, dispatch.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrCampaignMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &perr):
		s.logger.Error("match persistence failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "match store unavailable, retry")
	default:
		s.logger.Error("match request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) requireInternalToken(next http.Handler) http.Handler {
	want := []byte(s.cfg.InternalToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
