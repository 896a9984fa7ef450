package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/redis/rueidis"

	"CaseCollector/internal/ports"
)

var (
	_ ports.DocumentStore = (*RedisStore)(nil)
	_ ports.BatchSaver    = (*RedisStore)(nil)
)

// DefaultRedisPrefix keeps every collection key in one hash slot so MSET works on clusters.
const DefaultRedisPrefix = "{casecollector}:"

// RedisConfig holds connection parameters for the Redis store.
type RedisConfig struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each collection as a string value.
type RedisStore struct {
	client rueidis.Client
	prefix string
}

// NewRedisStore connects via rueidis.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redis addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	return newRedisStore(client, cfg.Prefix), nil
}

func newRedisStore(client rueidis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(collection string) string {
	return s.prefix + collection
}

func (s *RedisStore) Load(ctx context.Context, collection string) ([]byte, error) {
	cmd := s.client.B().Get().Key(s.key(collection)).Build()
	raw, err := s.client.Do(ctx, cmd).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: OpLoad, Collection: collection, Err: err}
	}
	return raw, nil
}

func (s *RedisStore) Save(ctx context.Context, collection string, payload []byte) error {
	cmd := s.client.B().Set().Key(s.key(collection)).Value(rueidis.BinaryString(payload)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &Error{Op: OpSave, Collection: collection, Err: err}
	}
	return nil
}

// SaveBatch writes all collections with a single MSET.
func (s *RedisStore) SaveBatch(ctx context.Context, payloads map[string][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	kv := s.client.B().Mset().KeyValue()
	for _, name := range slices.Sorted(maps.Keys(payloads)) {
		kv = kv.KeyValue(s.key(name), rueidis.BinaryString(payloads[name]))
	}
	if err := s.client.Do(ctx, kv.Build()).Error(); err != nil {
		return &Error{Op: OpSaveBatch, Err: err}
	}
	return nil
}

func (s *RedisStore) Close() error {
	s.client.Close()
	return nil
}
