package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MatchStateTTL bounds how long an abandoned match stays cached.
const MatchStateTTL = 24 * time.Hour

// SetMatchState stores the live match state JSON.
func (c *Client) SetMatchState(ctx context.Context, matchID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, c.key("match", matchID, "state"), []byte(state), MatchStateTTL).Err()
}

// GetMatchState retrieves the live match state JSON, or nil if none is cached.
func (c *Client) GetMatchState(ctx context.Context, matchID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, c.key("match", matchID, "state")).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get match state: %w", err)
	}
	return json.RawMessage(data), nil
}

// DeleteMatchState removes the cached state of a match.
func (c *Client) DeleteMatchState(ctx context.Context, matchID string) error {
	return c.rdb.Del(ctx, c.key("match", matchID, "state")).Err()
}
