package library

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Keys under which the session is persisted.
const (
	TokenKey = "authToken"
	UserKey  = "user"
)

// SessionStore is the only place the authentication session lives.
// Write performs two independent writes with no rollback; both values can be
// re-derived by logging in again.
type SessionStore interface {
	// Read returns the stored session, or nil when neither key is set.
	Read() (*Session, error)
	Write(Session) error
	Clear() error
}

// kvStore is the minimal key/value surface both stores are built on.
type kvStore interface {
	get(key string) (string, bool, error)
	put(key, value string) error
	del(key string) error
}

func readSession(kv kvStore) (*Session, error) {
	token, hasToken, err := kv.get(TokenKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TokenKey, err)
	}
	raw, hasUser, err := kv.get(UserKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", UserKey, err)
	}
	if !hasToken && !hasUser {
		return nil, nil
	}

	s := &Session{Token: token}
	if hasUser && raw != "" {
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("decode %s: %w", UserKey, err)
		}
		s.User = &u
	}
	return s, nil
}

func writeSession(kv kvStore, s Session) error {
	if err := kv.put(TokenKey, s.Token); err != nil {
		return fmt.Errorf("write %s: %w", TokenKey, err)
	}
	if s.User == nil {
		return kv.del(UserKey)
	}
	b, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode %s: %w", UserKey, err)
	}
	if err := kv.put(UserKey, string(b)); err != nil {
		return fmt.Errorf("write %s: %w", UserKey, err)
	}
	return nil
}

func clearSession(kv kvStore) error {
	if err := kv.del(TokenKey); err != nil {
		return fmt.Errorf("clear %s: %w", TokenKey, err)
	}
	if err := kv.del(UserKey); err != nil {
		return fmt.Errorf("clear %s: %w", UserKey, err)
	}
	return nil
}

// MemoryStore keeps the session in process memory. Used for --ephemeral runs
// and as a test double.
type MemoryStore struct {
	mu   sync.RWMutex
	vals map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vals: make(map[string]string)}
}

func (m *MemoryStore) Read() (*Session, error) { return readSession(m) }
func (m *MemoryStore) Write(s Session) error   { return writeSession(m, s) }
func (m *MemoryStore) Clear() error            { return clearSession(m) }

func (m *MemoryStore) get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *MemoryStore) put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}

func (m *MemoryStore) del(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, key)
	return nil
}
