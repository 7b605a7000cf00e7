package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/co-cddo/webcaf/internal/platform/cache"
)

// versionTTL keeps write counters well beyond any in-flight read.
const versionTTL = 24 * time.Hour

// setIfVersion stores ARGV[2] at KEYS[1] only while the write counter at
// KEYS[2] still holds ARGV[1]. ARGV[3] is the expiry in milliseconds, 0 for none.
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[2])
if (v or '') ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// CachedStore is a read-through Redis cache in front of another Store.
// Writes go to the underlying store, bump a per-assessment write counter and
// evict the cached copy. A read only fills the cache if no write happened
// since it started, so a slow reader cannot put back a copy older than a
// concurrent write.
type CachedStore struct {
	next   Store
	client redis.Cmdable
	ttl    time.Duration
}

// NewCachedStore wraps next with a cache held in client.
func NewCachedStore(next Store, client redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{next: next, client: client, ttl: ttl}
}

func cacheKey(id int64) string {
	return cache.Key("assessment", strconv.FormatInt(id, 10))
}

func versionKey(id int64) string {
	return cache.Key("assessment", strconv.FormatInt(id, 10), "version")
}

func (s *CachedStore) CreateAssessment(ctx context.Context, a Assessment) (*Assessment, error) {
	return s.next.CreateAssessment(ctx, a)
}

func (s *CachedStore) GetAssessment(ctx context.Context, id int64) (*Assessment, error) {
	key := cacheKey(id)

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var a Assessment
		if err := json.Unmarshal(raw, &a); err == nil {
			return &a, nil
		}
		slog.Warn("discarding undecodable cached assessment", "assessment_id", id)
	case !errors.Is(err, redis.Nil):
		slog.Warn("assessment cache read failed", "assessment_id", id, "error", err)
	}

	version, err := s.client.Get(ctx, versionKey(id)).Result()
	cacheable := err == nil || errors.Is(err, redis.Nil)
	if !cacheable {
		slog.Warn("assessment cache version read failed", "assessment_id", id, "error", err)
	}

	a, err := s.next.GetAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cacheable {
		return a, nil
	}

	data, err := json.Marshal(a)
	if err != nil {
		return a, nil
	}
	stored, err := setIfVersion.Run(ctx, s.client,
		[]string{key, versionKey(id)},
		version, data, s.ttl.Milliseconds(),
	).Int()
	switch {
	case err != nil:
		slog.Warn("assessment cache write failed", "assessment_id", id, "error", err)
	case stored == 0:
		slog.Debug("skipped caching assessment changed during read", "assessment_id", id)
	}
	return a, nil
}

func (s *CachedStore) SaveSection(ctx context.Context, id int64, outcomeKey string, section Section, user string) error {
	if err := s.next.SaveSection(ctx, id, outcomeKey, section, user); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), versionTTL)
		pipe.Del(ctx, cacheKey(id))
		return nil
	})
	if err != nil {
		// The cached copy can outlive this write until its TTL expires.
		slog.Error("assessment cache evict failed", "assessment_id", id, "ttl", s.ttl, "error", err)
	}
	return nil
}
