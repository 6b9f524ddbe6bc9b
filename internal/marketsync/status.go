package marketsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCache keeps the last SyncRun per source in redis so the status
// endpoint can report on runs triggered elsewhere (worker, another replica).
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(source string) string {
	return "sync:last_run:" + source
}

func (c *StatusCache) Save(ctx context.Context, run SyncRun) error {
	if c == nil || c.client == nil {
		return nil
	}
	// The log can be long; the cached copy only needs the summary.
	run.Log = nil
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal sync run: %w", err)
	}
	return c.client.Set(ctx, statusKey(run.Source), data, c.ttl).Err()
}

// Last returns the cached run, or ok=false when none is recorded.
func (c *StatusCache) Last(ctx context.Context, source string) (SyncRun, bool, error) {
	if c == nil || c.client == nil {
		return SyncRun{}, false, nil
	}
	data, err := c.client.Get(ctx, statusKey(source)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SyncRun{}, false, nil
	}
	if err != nil {
		return SyncRun{}, false, err
	}
	var run SyncRun
	if err := json.Unmarshal(data, &run); err != nil {
		return SyncRun{}, false, fmt.Errorf("unmarshal sync run: %w", err)
	}
	return run, true, nil
}
