package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"slopesentry/detector"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "slopesentry:history:"

// RedisSnapshots stores engine history as JSON under one key per site.
type RedisSnapshots struct {
	Client redis.Cmdable
}

func snapshotKey(site string) string { return snapshotKeyPrefix + site }

func (r RedisSnapshots) Save(ctx context.Context, site string, h detector.History) error {
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, snapshotKey(site), b, 0).Err()
}

func (r RedisSnapshots) Load(ctx context.Context, site string) (detector.History, bool, error) {
	var h detector.History
	b, err := r.Client.Get(ctx, snapshotKey(site)).Bytes()
	if errors.Is(err, redis.Nil) {
		return h, false, nil
	}
	if err != nil {
		return h, false, err
	}
	if err := json.Unmarshal(b, &h); err != nil {
		return h, false, fmt.Errorf("decode snapshot for %s: %w", site, err)
	}
	return h, true, nil
}
