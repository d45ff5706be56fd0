// Package sandbox runs untrusted agent programs for automated players. An
// agent only ever sees an inert copy of the match, talks to it through a
// small versioned set of operations, and hands back queued intents that the
// match engine re-validates before applying.
package sandbox

import (
	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// APIVersion is the version of the operation set exposed to agents.
const APIVersion = 1

// Snapshot is the plain data handed to an agent for one turn.
type Snapshot struct {
	APIVersion int               `json:"apiVersion"`
	MatchID    string            `json:"matchId"`
	PlayerID   int               `json:"playerId"`
	Turn       int               `json:"turn"`
	DiceSides  int               `json:"diceSides"`
	Board      dicewars.Board    `json:"board"`
	Players    []dicewars.Player `json:"players"`
}

// NewSnapshot copies the parts of a match state an agent may read.
func NewSnapshot(st match.State, playerID int) Snapshot {
	snap := Snapshot{
		APIVersion: APIVersion,
		MatchID:    st.ID,
		PlayerID:   playerID,
		Turn:       st.Turn,
		DiceSides:  st.Sides,
	}
	if st.Board != nil {
		snap.Board = *st.Board.Clone()
	}
	snap.Players = make([]dicewars.Player, len(st.Players))
	for i, p := range st.Players {
		snap.Players[i] = *p
	}
	return snap
}
