package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hexiro/csinspect/internal/domain"
)

// RedisStore persists response state in Redis with a per-key expiry.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis constructs a RedisStore. The connection is lazy; use Ping to
// verify reachability at startup.
func NewRedis(addr, password string, db int, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (domain.ResponseState, bool, error) {
	raw, err := s.rdb.Get(ctx, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ResponseState{}, false, nil
	}
	if err != nil {
		return domain.ResponseState{}, false, err
	}

	st, legacy := decodeState(raw)
	if legacy {
		// Re-serialize in the structured format with a fresh TTL.
		if perr := s.Put(ctx, id, st); perr != nil {
			log.Warn().Err(perr).Str("message_id", id).Msg("rewriting legacy store record failed")
		}
	}
	return st, true, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, id string, st domain.ResponseState) error {
	payload, err := encodeState(st)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, id, payload, s.ttl).Err()
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
