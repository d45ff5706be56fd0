package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/freeeve/dicewars/pkg/dicewars"
)

const (
	maxProbabilityDice = 64
	maxDiceSides       = 100
)

// Probability handles GET /api/v1/probability?attacker=&defender=&sides=
func Probability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	att, err := intParam(q.Get("attacker"), 0, 1, maxProbabilityDice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "attacker: "+err.Error())
		return
	}
	def, err := intParam(q.Get("defender"), 0, 1, maxProbabilityDice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "defender: "+err.Error())
		return
	}
	sides, err := intParam(q.Get("sides"), dicewars.DefaultDiceSides, 2, maxDiceSides)
	if err != nil {
		writeError(w, http.StatusBadRequest, "sides: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"attacker":    att,
		"defender":    def,
		"sides":       sides,
		"probability": dicewars.WinProbability(att, def, sides),
	})
}

// intParam parses a query value within [lo, hi]. An empty value yields def,
// which is rejected when it falls outside the range.
func intParam(s string, def, lo, hi int) (int, error) {
	n := def
	if s != "" {
		var err error
		if n, err = strconv.Atoi(s); err != nil {
			return 0, fmt.Errorf("not an integer")
		}
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("must be between %d and %d", lo, hi)
	}
	return n, nil
}
