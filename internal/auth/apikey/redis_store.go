package apikey

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

// DefaultRedisKeyPrefix is the key prefix used when none is configured.
const DefaultRedisKeyPrefix = "keygate:apikey:"

// Breaker runs a function under circuit breaker protection.
type Breaker interface {
	Execute(fn func() (interface{}, error)) (interface{}, error)
}

// RedisStore is an IdentityStore backed by Redis. Each fingerprint is
// stored as a string key holding the client name.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	breaker   Breaker
	logger    observability.Logger
}

// RedisStoreOption is a functional option for the Redis store.
type RedisStoreOption func(*RedisStore)

// WithRedisKeyPrefix sets the key prefix.
func WithRedisKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// WithRedisBreaker routes lookups through a circuit breaker.
func WithRedisBreaker(b Breaker) RedisStoreOption {
	return func(s *RedisStore) {
		s.breaker = b
	}
}

// WithRedisLogger sets the logger for the store.
func WithRedisLogger(logger observability.Logger) RedisStoreOption {
	return func(s *RedisStore) {
		s.logger = logger.Named("apikey.redis")
	}
}

// NewRedisStore creates a new Redis identity store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: DefaultRedisKeyPrefix,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(fingerprint string) string {
	return s.keyPrefix + fingerprint
}

// Lookup implements IdentityStore.
func (s *RedisStore) Lookup(ctx context.Context, fingerprint string) (string, error) {
	get := func() (interface{}, error) {
		name, err := s.client.Get(ctx, s.key(fingerprint)).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return name, err
	}

	var (
		result interface{}
		err    error
	)
	if s.breaker != nil {
		result, err = s.breaker.Execute(get)
	} else {
		result, err = get()
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	name, _ := result.(string)
	return name, nil
}

// Sync makes Redis hold exactly the clients in keys. Fingerprints under
// the prefix that are no longer configured are removed.
func (s *RedisStore) Sync(ctx context.Context, keys ClientKeys) error {
	index := keys.Index()

	var stale []string
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		fp := iter.Val()[len(s.keyPrefix):]
		if _, ok := index[fp]; !ok {
			stale = append(stale, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan redis keys: %w", err)
	}

	pipe := s.client.TxPipeline()
	for fp, name := range index {
		pipe.Set(ctx, s.key(fp), name, 0)
	}
	if len(stale) > 0 {
		pipe.Del(ctx, stale...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to sync redis keys: %w", err)
	}

	s.logger.Info("synced api key clients to redis",
		observability.Int("clients", len(index)),
		observability.Int("removed", len(stale)),
	)
	return nil
}

// Ping checks connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements IdentityStore.
var _ IdentityStore = (*RedisStore)(nil)
