package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taskboard/internal/model"
)

// Directory resolves user ids to display attributes.
type Directory interface {
	Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.UserSummary, error)
}

// CachedUserResolver keeps user summaries in Redis in front of a Directory.
// Redis failures fall through to the underlying directory.
type CachedUserResolver struct {
	next   Directory
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedUserResolver(next Directory, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedUserResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedUserResolver{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func summaryKey(id uuid.UUID) string {
	return "user:summary:" + id.String()
}

func (c *CachedUserResolver) Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.UserSummary, error) {
	out := make(map[uuid.UUID]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = summaryKey(id)
	}

	missing := ids
	cached, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("User cache read failed", zap.Error(err))
	} else {
		missing = nil
		for i, v := range cached {
			var s model.UserSummary
			raw, ok := v.(string)
			if !ok || json.Unmarshal([]byte(raw), &s) != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = s
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.next.Summaries(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := c.rdb.Pipeline()
	for id, s := range loaded {
		out[id] = s
		data, err := json.Marshal(s)
		if err != nil {
			continue
		}
		pipe.Set(ctx, summaryKey(id), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("User cache write failed", zap.Error(err))
	}
	return out, nil
}
