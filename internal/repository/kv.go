package repository

import (
	"context"
	"fmt"
	"sync"

	"vcf-drop/pkg/redis"
)

// MemoryKV is a process-local KV used when no Redis is configured
type MemoryKV struct {
	mu      sync.RWMutex
	data    map[string]string
	lists   map[string][]string
	indexes map[string]map[string]struct{}
}

// NewMemoryKV creates an empty in-memory KV
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data:    make(map[string]string),
		lists:   make(map[string][]string),
		indexes: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		delete(m.lists, k)
		delete(m.indexes, k)
	}
	return nil
}

func (m *MemoryKV) AppendUnique(_ context.Context, key, indexKey, member, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	index, ok := m.indexes[indexKey]
	if !ok {
		index = make(map[string]struct{})
		m.indexes[indexKey] = index
	}
	if _, claimed := index[member]; claimed {
		return ErrMemberClaimed
	}
	index[member] = struct{}{}
	m.lists[key] = append(m.lists[key], value)
	return nil
}

func (m *MemoryKV) Range(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.lists[key]))
	copy(out, m.lists[key])
	return out, nil
}

// RedisKV adapts the Redis client to KV. Values never expire.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps client
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key)
	if redis.IsNil(err) {
		return "", ErrKeyNotFound
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0)
}

func (r *RedisKV) SetMany(ctx context.Context, values map[string]string) error {
	pairs := make(map[string]interface{}, len(values))
	for k, v := range values {
		pairs[k] = v
	}
	return r.client.SetMultiple(ctx, pairs, 0)
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	return r.client.Delete(ctx, keys...)
}

// AppendUnique claims member with HSETNX, so replicas sharing the Redis
// cannot both win it, then RPUSHes value. A failed push releases the claim.
func (r *RedisKV) AppendUnique(ctx context.Context, key, indexKey, member, value string) error {
	claimed, err := r.client.HSetNX(ctx, indexKey, member, "1")
	if err != nil {
		return err
	}
	if !claimed {
		return ErrMemberClaimed
	}
	if err := r.client.RPush(ctx, key, value); err != nil {
		if releaseErr := r.client.HDel(ctx, indexKey, member); releaseErr != nil {
			return fmt.Errorf("%w (claim not released: %v)", err, releaseErr)
		}
		return err
	}
	return nil
}

func (r *RedisKV) Range(ctx context.Context, key string) ([]string, error) {
	return r.client.LRange(ctx, key, 0, -1)
}

// RedisKeys returns the environment-prefixed keys for a LocalStore on Redis
func RedisKeys(kb *redis.KeyBuilder) Keys {
	return Keys{
		Contacts: kb.KeyContacts(),
		Phones:   kb.KeyPhones(),
		Settings: kb.KeySettings(),
		Groups:   kb.KeyGroups(),
	}
}
