package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type CategorySource interface {
	Categories(ctx context.Context) ([]Category, error)
}

// CategoryCache: read-through cache utk lookup table kategori.
// Miss di-collapse via singleflight supaya cuma satu query ke DB.
type CategoryCache struct {
	Source CategorySource
	Redis  *redis.Client
	Key    string
	TTL    time.Duration
	Log    *slog.Logger

	sf singleflight.Group
}

func (c *CategoryCache) Categories(ctx context.Context) ([]Category, error) {
	if c.Redis != nil {
		if s, err := c.Redis.Get(ctx, c.Key).Result(); err == nil && s != "" {
			var out []Category
			if err := json.Unmarshal([]byte(s), &out); err == nil {
				return out, nil
			}
			// cache korup -> fallthrough ke source
		}
	}

	v, err, _ := c.sf.Do(c.Key, func() (any, error) {
		out, err := c.Source.Categories(ctx)
		if err != nil {
			return nil, err
		}
		if c.Redis != nil {
			b, _ := json.Marshal(out)
			if err := c.Redis.Set(ctx, c.Key, b, c.TTL).Err(); err != nil && c.Log != nil {
				c.Log.Warn("category cache set", "err", err)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Category), nil
}
