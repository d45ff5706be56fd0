package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/archive"
	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/internal/repository"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// gameConfig describes one headless match.
type gameConfig struct {
	Size     string
	Style    string
	Mode     string
	Players  int
	Agents   []string // assigned to seats round-robin; empty keeps the level's
	Seed     int64
	MaxTurns int
	EventDir string // empty skips the event log
	Progress bool   // log eliminations as they happen
}

// progressBuffer bounds the per-game event feed behind progress logging.
const progressBuffer = 256

// gameResult is the outcome of one headless match.
type gameResult struct {
	MatchID string                  `json:"match_id"`
	Seed    int64                   `json:"seed"`
	Winner  int                     `json:"winner"`
	Turns   int                     `json:"turns"`
	Agents  []string                `json:"agents"`
	Battles []dicewars.BattleResult `json:"-"`
	Capped  bool                    `json:"capped"`
}

// WinnerAgent returns the agent of the winning seat, or "" for no winner.
func (r *gameResult) WinnerAgent() string {
	if r.Winner < 0 || r.Winner >= len(r.Agents) {
		return ""
	}
	return r.Agents[r.Winner]
}

func (c gameConfig) level() ([]byte, error) {
	humans := 0
	lvl := dicewars.Level{
		Type:       dicewars.LevelConfig,
		Size:       c.Size,
		Style:      c.Style,
		Mode:       c.Mode,
		Bots:       c.Players,
		Humans:     &humans,
		Difficulty: "greedy",
	}
	return json.Marshal(lvl)
}

// parseAgents splits a comma-separated agent list. Bare built-in names get
// the builtin: prefix.
func parseAgents(s string, builtins []string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	known := make(map[string]bool, len(builtins))
	for _, b := range builtins {
		known[b] = true
	}
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if known[a] || a == "medium" {
			a = dicewars.BuiltinAgentPrefix + a
		}
		out = append(out, a)
	}
	return out
}

// runGame plays one bots-only match to completion. When repo is non-nil the
// match record and its battles are stored.
func runGame(ctx context.Context, cfg gameConfig, driver match.BotDriver, repo repository.MatchRepository) (*gameResult, error) {
	data, err := cfg.level()
	if err != nil {
		return nil, fmt.Errorf("encode level: %w", err)
	}
	lvl, err := dicewars.ParseLevel(data)
	if err != nil {
		return nil, err
	}
	rng := dicewars.NewRand(cfg.Seed)
	setup, err := dicewars.BuildLevel(lvl, rng)
	if err != nil {
		return nil, fmt.Errorf("build level: %w", err)
	}

	res := &gameResult{MatchID: uuid.NewString(), Seed: cfg.Seed, Winner: dicewars.NoOwner}
	seats := make([]model.MatchPlayer, len(setup.Players))
	for i, p := range setup.Players {
		if len(cfg.Agents) > 0 {
			p.AgentID = cfg.Agents[i%len(cfg.Agents)]
		}
		res.Agents = append(res.Agents, p.AgentID)
		seats[i] = model.MatchPlayer{PlayerID: p.ID, IsBot: true, AgentID: p.AgentID}
	}

	if repo != nil {
		rec := &model.MatchRecord{
			ID:      res.MatchID,
			Status:  model.MatchActive,
			Winner:  dicewars.NoOwner,
			Players: seats,
			Level:   data,
		}
		if err := repo.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("create match record: %w", err)
		}
	}

	var observers match.MultiObserver
	if cfg.EventDir != "" {
		events, err := archive.NewEventLog(cfg.EventDir, res.MatchID)
		if err != nil {
			return nil, err
		}
		defer events.Close()
		observers = append(observers, events)
	}
	stopProgress := func() int { return 0 }
	if cfg.Progress {
		feed := match.NewChannelObserver(progressBuffer)
		observers = append(observers, feed)
		stopProgress = watchProgress(res.MatchID, feed)
	}

	m := match.New(res.MatchID, setup.Board, setup.Players, setup.DiceSides,
		match.WithRand(rng), match.WithBotDriver(driver), match.WithObserver(observers))
	err = m.Run(ctx, cfg.MaxTurns)
	stopProgress()
	if err != nil {
		return nil, fmt.Errorf("run match: %w", err)
	}
	res.Turns = m.Turn
	res.Battles = m.Battles.All()
	if m.Over {
		res.Winner = m.Winner
	} else {
		res.Capped = true
	}

	if repo != nil {
		if err := repo.SetFinished(ctx, res.MatchID, res.Winner, res.Turns); err != nil {
			return nil, fmt.Errorf("finish match record: %w", err)
		}
		if err := repo.SaveBattles(ctx, res.MatchID, res.Battles); err != nil {
			return nil, fmt.Errorf("save battles: %w", err)
		}
	}
	log.Debug().
		Str("matchId", res.MatchID).
		Int("winner", res.Winner).
		Int("turns", res.Turns).
		Int("battles", len(res.Battles)).
		Msg("Game finished")
	return res, nil
}

// watchProgress logs eliminations and the result read from feed. The returned
// function closes the feed, waits for it to drain, and reports how many
// eliminations were logged. Events dropped by a full feed are not logged.
func watchProgress(matchID string, feed *match.ChannelObserver) func() int {
	done := make(chan int, 1)
	go func() {
		eliminated := 0
		for e := range feed.C {
			switch ev := e.(type) {
			case match.PlayerEliminated:
				eliminated++
				log.Debug().Str("matchId", matchID).Int("turn", ev.Turn).
					Int("playerId", ev.PlayerID).Int("by", ev.By).Msg("Player eliminated")
			case match.GameOver:
				log.Debug().Str("matchId", matchID).Int("turn", ev.Turn).
					Int("winner", ev.Winner).Msg("Game over")
			}
		}
		done <- eliminated
	}()
	return func() int {
		feed.Close()
		n := <-done
		if dropped := feed.Dropped(); dropped > 0 {
			log.Debug().Str("matchId", matchID).Int("dropped", dropped).Msg("Progress feed overflowed")
		}
		return n
	}
}

// agentStats aggregates results per agent.
type agentStats struct {
	Agent string `json:"agent"`
	Seats int    `json:"seats"`
	Wins  int    `json:"wins"`
}

func summarize(results []*gameResult) []agentStats {
	byAgent := make(map[string]*agentStats)
	var order []string
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, a := range r.Agents {
			s, ok := byAgent[a]
			if !ok {
				s = &agentStats{Agent: a}
				byAgent[a] = s
				order = append(order, a)
			}
			s.Seats++
		}
		if a := r.WinnerAgent(); a != "" {
			byAgent[a].Wins++
		}
	}
	out := make([]agentStats, 0, len(order))
	for _, a := range order {
		out = append(out, *byAgent[a])
	}
	return out
}
