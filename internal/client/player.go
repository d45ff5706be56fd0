package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/match"
)

// PlayMatch plays every human seat of a match with driver until the match is
// over or maxTurns turns have passed (0 means no cap). Each turn's intents are
// sent through the API; attacks the server rejects are skipped and the turn
// is always ended explicitly.
func (c *Client) PlayMatch(ctx context.Context, matchID string, driver match.BotDriver, maxTurns int) (match.State, error) {
	st, err := c.GetMatch(ctx, matchID)
	if err != nil {
		return st, err
	}
	for !st.Over {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if maxTurns > 0 && st.Turn > maxTurns {
			return st, nil
		}
		p := st.Player(st.Current)
		if p == nil || p.IsBot {
			return st, fmt.Errorf("match %s: seat %d is not a human seat", matchID, st.Current)
		}
		if st, err = c.playTurn(ctx, st, driver); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (c *Client) playTurn(ctx context.Context, st match.State, driver match.BotDriver) (match.State, error) {
	playerID := st.Current
	for _, in := range driver.Intents(ctx, st, playerID) {
		if in.Kind != match.IntentAttack {
			break
		}
		battle, next, err := c.Attack(ctx, st.ID, playerID, in.From, in.To)
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity:
			log.Debug().Str("matchId", st.ID).Str("reason", apiErr.Reason).Msg("Attack rejected, skipping")
			continue
		case err != nil:
			return st, err
		}
		st = next
		log.Debug().
			Str("matchId", st.ID).
			Int("playerId", playerID).
			Str("from", in.From.String()).
			Str("to", in.To.String()).
			Bool("won", battle.Won).
			Msg("Attack")
		if st.Over {
			return st, nil
		}
	}
	_, next, err := c.EndTurn(ctx, st.ID, playerID)
	if err != nil {
		return st, err
	}
	return next, nil
}
