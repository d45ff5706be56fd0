package redis

import (
	"context"
	"encoding/json"
	"fmt"
)

// Load returns an agent's persistent storage. Each key is a hash field
// holding a JSON value.
func (c *Client) Load(ctx context.Context, agentID string) (map[string]any, error) {
	fields, err := c.rdb.HGetAll(ctx, c.key("agent", agentID, "storage")).Result()
	if err != nil {
		return nil, fmt.Errorf("load agent storage: %w", err)
	}
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode agent storage key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Save replaces an agent's persistent storage.
func (c *Client) Save(ctx context.Context, agentID string, data map[string]any) error {
	values := make(map[string]any, len(data))
	for k, v := range data {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode agent storage key %q: %w", k, err)
		}
		values[k] = string(raw)
	}

	key := c.key("agent", agentID, "storage")
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		pipe.HSet(ctx, key, values)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save agent storage: %w", err)
	}
	return nil
}
