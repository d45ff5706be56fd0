package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/freeeve/dicewars/internal/auth"
	"github.com/freeeve/dicewars/internal/service"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// MatchHandler handles match endpoints.
type MatchHandler struct {
	matchSvc *service.MatchService
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(matchSvc *service.MatchService) *MatchHandler {
	return &MatchHandler{matchSvc: matchSvc}
}

// levelBytes accepts a level given either as a JSON object or as a string
// holding a YAML or JSON document.
func levelBytes(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("level is required")
	}
	if raw[0] == '"' {
		var doc string
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		return []byte(doc), nil
	}
	return raw, nil
}

// CreateMatch handles POST /api/v1/matches
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		Level json.RawMessage `json:"level"`
		Seed  int64           `json:"seed,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	level, err := levelBytes(req.Level)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.matchSvc.CreateMatch(r.Context(), userID, level, req.Seed)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// ListMatches handles GET /api/v1/matches?limit=
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := h.matchSvc.ListRecent(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if recs == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetMatch handles GET /api/v1/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	st, err := h.matchSvc.GetMatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Attack handles POST /api/v1/matches/{id}/attack
func (h *MatchHandler) Attack(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		PlayerID int            `json:"player_id"`
		From     dicewars.Coord `json:"from"`
		To       dicewars.Coord `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	battle, st, err := h.matchSvc.Attack(r.Context(), r.PathValue("id"), userID, req.PlayerID, req.From, req.To)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"battle": battle, "state": st})
}

// EndTurn handles POST /api/v1/matches/{id}/end-turn
func (h *MatchHandler) EndTurn(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		PlayerID int `json:"player_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, st, err := h.matchSvc.EndTurn(r.Context(), r.PathValue("id"), userID, req.PlayerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reinforcements": res, "state": st})
}

// Battles handles GET /api/v1/matches/{id}/battles
func (h *MatchHandler) Battles(w http.ResponseWriter, r *http.Request) {
	battles, err := h.matchSvc.Battles(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if battles == nil {
		battles = []dicewars.BattleResult{}
	}
	writeJSON(w, http.StatusOK, battles)
}
