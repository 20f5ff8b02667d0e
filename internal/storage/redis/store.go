// Package redis stores values in Redis under a namespace prefix.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/sqlvalley/internal/storage"
)

// Config holds the connection settings
type Config struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

// clearScript deletes every key under the prefix inside one script call, so
// other clients never observe a partially cleared namespace.
var clearScript = goredis.NewScript(`
	local keys = redis.call("keys", ARGV[1])
	for i = 1, #keys, 500 do
		redis.call("del", unpack(keys, i, math.min(i + 499, #keys)))
	end
	return #keys
`)

// Store implements storage.Store on a Redis client
type Store struct {
	client *goredis.Client
	prefix string
}

// NewStore connects and pings Redis
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return NewStoreFromClient(client, cfg.Namespace), nil
}

// NewStoreFromClient wraps an existing client
func NewStoreFromClient(client *goredis.Client, namespace string) *Store {
	if namespace == "" {
		namespace = "sqlvalley"
	}
	return &Store{client: client, prefix: namespace + ":"}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := clearScript.Run(ctx, s.client, nil, s.prefix+"*").Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ storage.Store = (*Store)(nil)
