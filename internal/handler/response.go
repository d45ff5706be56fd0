package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/service"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// maxBodyBytes bounds request bodies; agent sources are the largest payload.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAttackError reports a rejected attack with its reason code.
func writeAttackError(w http.ResponseWriter, ae *dicewars.AttackError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
		"error":  ae.Error(),
		"reason": string(ae.Reason),
	})
}

// writeServiceError maps service and engine errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var ae *dicewars.AttackError
	switch {
	case errors.As(err, &ae):
		writeAttackError(w, ae)
	case errors.Is(err, service.ErrMatchNotFound), errors.Is(err, service.ErrAgentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotYourSeat), errors.Is(err, service.ErrNotAgentOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotYourTurn), errors.Is(err, service.ErrMatchOver):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidLevel), errors.Is(err, service.ErrInvalidAgent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}
