package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"ivisionary/pkg/domain"
)

// MemorySessionStore keeps sessions in-process (single instance only).
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	session domain.Session
	expires time.Time
}

// NewMemorySessionStore builds an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) SaveSession(_ context.Context, id string, s domain.Session, ttl time.Duration) error {
	entry := memorySession{session: s}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.sessions[id] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) GetSession(_ context.Context, id string) (domain.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, false, nil
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		delete(m.sessions, id)
		return domain.Session{}, false, nil
	}
	return entry.session, true, nil
}

func (m *MemorySessionStore) DeleteSession(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok, nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RedisSessionStore keeps sessions in Redis as JSON so they survive restarts.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSessionStore builds a Redis-backed session store.
func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ivisionary:session"
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

// SaveSession writes id -> session. A zero ttl never expires.
func (s *RedisSessionStore) SaveSession(ctx context.Context, id string, sess domain.Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(id), payload, ttl).Err()
}

func (s *RedisSessionStore) GetSession(ctx context.Context, id string) (domain.Session, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	var sess domain.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return domain.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

func (s *RedisSessionStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + ":" + id
}
