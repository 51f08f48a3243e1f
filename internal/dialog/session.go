package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Step is the position of a user in the dialog.
type Step string

const (
	StepIdle       Step = "idle"
	StepChooseType Step = "choose_type"
	StepSubtypes   Step = "subtypes"
	StepMinPrice   Step = "min_price"
	StepMaxPrice   Step = "max_price"
	StepWatch      Step = "watch"
)

// Session is the dialog state of one user.
type Session struct {
	UserID    int64     `json:"user_id"`
	Step      Step      `json:"step"`
	ItemType  string    `json:"item_type,omitempty"`
	Subtypes  []string  `json:"subtypes,omitempty"`
	PriceMin  *float64  `json:"price_min,omitempty"`
	PriceMax  *float64  `json:"price_max,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps sessions with a fixed time to live. Get returns nil, nil
// for a missing or expired session.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

// MemoryStore is an in-process SessionStore for single-instance deployments.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[int64]Session
	now      func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore creates the store and starts a background sweep of expired
// sessions every cleanupInterval. A zero interval disables the sweep.
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		ttl:         ttl,
		sessions:    make(map[int64]Session),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.cleanup(cleanupInterval)
	}
	return m
}

func (m *MemoryStore) Get(ctx context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, userID)
		return nil, nil
	}
	s.Subtypes = append([]string(nil), s.Subtypes...)
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	cp.Subtypes = append([]string(nil), s.Subtypes...)
	cp.ExpiresAt = m.now().Add(m.ttl)
	s.ExpiresAt = cp.ExpiresAt
	m.sessions[s.UserID] = cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
	return nil
}

// Len counts stored sessions, expired ones included until swept.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	return nil
}

func (m *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *MemoryStore) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}

// RedisStore keeps sessions as JSON values that Redis expires by itself.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

func NewRedisStore(client *redis.Client, ttl time.Duration, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "csmarket:session"
	}
	return &RedisStore{client: client, ttl: ttl, keyPrefix: keyPrefix}
}

func (r *RedisStore) key(userID int64) string {
	return r.keyPrefix + ":" + strconv.FormatInt(userID, 10)
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	s.ExpiresAt = time.Now().Add(r.ttl)
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(s.UserID), data, r.ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	return r.client.Del(ctx, r.key(userID)).Err()
}
