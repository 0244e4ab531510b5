package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/diewo77/go-quotes/internal/eligibility"
)

// DefaultRedisKey is where the rule set snapshot is stored.
const DefaultRedisKey = "quotes:eligibility:ruleset"

// Redis is a RuleCache shared by every instance pointing at the same server.
//
// The snapshot lives under key and the generation counter under key+":gen".
// The counter has no TTL so it survives snapshot expiry.
type Redis struct {
	rdb    redis.Cmdable
	key    string
	genKey string
	ttl    time.Duration
}

// snapshot is the stored payload, tagged with the generation it was loaded under.
type snapshot struct {
	Generation int64               `json:"generation"`
	Rules      eligibility.RuleSet `json:"rules"`
}

// NewRedis creates a cache storing the snapshot as JSON under key.
// An empty key uses DefaultRedisKey.
func NewRedis(rdb redis.Cmdable, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{rdb: rdb, key: key, genKey: key + ":gen", ttl: ttl}
}

func (c *Redis) Get(ctx context.Context) (eligibility.RuleSet, int64, bool, error) {
	vals, err := c.rdb.MGet(ctx, c.key, c.genKey).Result()
	if err != nil {
		return eligibility.RuleSet{}, 0, false, errors.Wrap(err, "redis get rule set")
	}
	gen, err := parseGeneration(vals[1])
	if err != nil {
		return eligibility.RuleSet{}, 0, false, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return eligibility.RuleSet{}, gen, false, nil
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return eligibility.RuleSet{}, gen, false, errors.Wrap(err, "decode cached rule set")
	}
	// written by a reader that raced an invalidation
	if snap.Generation != gen {
		return eligibility.RuleSet{}, gen, false, nil
	}
	return snap.Rules, gen, true, nil
}

func (c *Redis) Set(ctx context.Context, gen int64, rs eligibility.RuleSet) error {
	data, err := json.Marshal(snapshot{Generation: gen, Rules: rs})
	if err != nil {
		return errors.Wrap(err, "encode rule set")
	}
	return errors.Wrap(c.rdb.Set(ctx, c.key, data, c.ttl).Err(), "redis set rule set")
}

// Invalidate bumps the generation before dropping the snapshot, so a stale
// snapshot written in between is already outdated.
func (c *Redis) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, c.genKey).Err(); err != nil {
		return errors.Wrap(err, "redis bump rule set generation")
	}
	return errors.Wrap(c.rdb.Del(ctx, c.key).Err(), "redis del rule set")
}

func parseGeneration(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse rule set generation")
	}
	return gen, nil
}
