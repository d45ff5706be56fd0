package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// MatchSummary is what an event log reveals about a match.
type MatchSummary struct {
	MatchID string
	Over    bool
	Winner  int
	Turns   int
	Seats   []model.MatchPlayer
	Battles []dicewars.BattleResult
}

// Record converts the summary into a match record. Seats that never started
// a turn are recorded as human, since the log does not say otherwise.
func (s *MatchSummary) Record() *model.MatchRecord {
	status := model.MatchActive
	if s.Over {
		status = model.MatchFinished
	}
	return &model.MatchRecord{
		ID:      s.MatchID,
		Status:  status,
		Winner:  s.Winner,
		Turns:   s.Turns,
		Players: s.Seats,
	}
}

// Summarize rebuilds a match summary from its event log records.
func Summarize(records []Record) (*MatchSummary, error) {
	if len(records) == 0 {
		return nil, errors.New("empty event log")
	}
	s := &MatchSummary{Winner: dicewars.NoOwner}
	seats := make(map[int]*model.MatchPlayer)
	seat := func(id int) *model.MatchPlayer {
		if id < 0 {
			return nil
		}
		p, ok := seats[id]
		if !ok {
			p = &model.MatchPlayer{PlayerID: id}
			seats[id] = p
		}
		return p
	}

	for i, rec := range records {
		var (
			matchID string
			turn    int
		)
		switch rec.Kind {
		case match.KindTurnStarted:
			var e match.TurnStarted
			if err := json.Unmarshal(rec.Event, &e); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			matchID, turn = e.Match, e.Turn
			seat(e.PlayerID).IsBot = e.IsBot
		case match.KindAttackResolved:
			var e match.AttackResolved
			if err := json.Unmarshal(rec.Event, &e); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			matchID, turn = e.Match, e.Turn
			seat(e.Battle.Attacker)
			seat(e.Battle.Defender)
			s.Battles = append(s.Battles, e.Battle)
		case match.KindPlayerEliminated:
			var e match.PlayerEliminated
			if err := json.Unmarshal(rec.Event, &e); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			matchID, turn = e.Match, e.Turn
			seat(e.PlayerID)
		case match.KindReinforcementsApplied:
			var e match.ReinforcementsApplied
			if err := json.Unmarshal(rec.Event, &e); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			matchID, turn = e.Match, e.Turn
		case match.KindGameOver:
			var e match.GameOver
			if err := json.Unmarshal(rec.Event, &e); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			matchID, turn = e.Match, e.Turn
			s.Over = true
			s.Winner = e.Winner
			seat(e.Winner)
		default:
			continue
		}

		if s.MatchID == "" {
			s.MatchID = matchID
		} else if matchID != s.MatchID {
			return nil, fmt.Errorf("record %d belongs to match %s, log is for %s", i, matchID, s.MatchID)
		}
		s.Turns = max(s.Turns, turn)
	}
	if s.MatchID == "" {
		return nil, errors.New("event log has no match events")
	}

	ids := make([]int, 0, len(seats))
	for id := range seats {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s.Seats = append(s.Seats, *seats[id])
	}
	return s, nil
}
