package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory implementation of the storage interfaces used
// by the manager tests. Transactions snapshot the key table and restore it
// when fn fails.
type memStore struct {
	mu       sync.Mutex
	users    map[int64]*User
	sessions map[string]*Session
	keys     map[int64]*APIKey
	events   []keyEvent
	nextID   int64

	failTouch bool
	failAudit bool
}

type keyEvent struct {
	KeyID  int64
	UserID int64
	Action KeyAction
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*User),
		sessions: make(map[string]*Session),
		keys:     make(map[int64]*APIKey),
	}
}

func (s *memStore) addUser(username string, role Role, active bool, password string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	hash := ""
	if password != "" {
		hash, _ = HashPassword(password, 4)
	}
	u := &User{ID: s.nextID, Username: username, Role: role, Active: active, PasswordHash: hash}
	s.users[u.ID] = u
	return u
}

func (s *memStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) CreateSession(ctx context.Context, session *Session) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	session.ID = s.nextID
	cp := *session
	s.sessions[session.TokenHash] = &cp
	return session.ID, nil
}

func (s *memStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *memStore) TouchSession(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTouch {
		return errors.New("touch failed")
	}
	for _, sess := range s.sessions {
		if sess.ID == id {
			sess.LastActivity = at
		}
	}
	return nil
}

func (s *memStore) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *memStore) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, sess := range s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(s.sessions, h)
			n++
		}
	}
	return n, nil
}

func (s *memStore) WithAPIKeyTx(ctx context.Context, fn func(tx APIKeyTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[int64]APIKey, len(s.keys))
	for id, k := range s.keys {
		snapshot[id] = *k
	}
	events := len(s.events)

	if err := fn(&memTx{s: s}); err != nil {
		s.keys = make(map[int64]*APIKey, len(snapshot))
		for id, k := range snapshot {
			k := k
			s.keys[id] = &k
		}
		s.events = s.events[:events]
		return err
	}
	return nil
}

func (s *memStore) GetActiveAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyHash == keyHash && k.Active {
			cp := *k
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) TouchAPIKey(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[id]; ok {
		k.LastUsed = &at
	}
	return nil
}

func (s *memStore) ListActiveAPIKeys(ctx context.Context, userID int64) ([]*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*APIKey
	for _, k := range s.keys {
		if k.UserID == userID && k.Active {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memTx runs with memStore.mu already held
type memTx struct {
	s *memStore
}

func (t *memTx) InsertAPIKey(ctx context.Context, key *APIKey) (int64, error) {
	t.s.nextID++
	cp := *key
	cp.ID = t.s.nextID
	t.s.keys[cp.ID] = &cp
	return cp.ID, nil
}

func (t *memTx) GetAPIKeyForUpdate(ctx context.Context, id int64) (*APIKey, error) {
	k, ok := t.s.keys[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (t *memTx) UpdateAPIKeySecret(ctx context.Context, id int64, keyHash, preview string) error {
	k := t.s.keys[id]
	k.KeyHash = keyHash
	k.Preview = preview
	return nil
}

func (t *memTx) DeactivateAPIKey(ctx context.Context, id int64) error {
	t.s.keys[id].Active = false
	return nil
}

func (t *memTx) RecordAPIKeyEvent(ctx context.Context, keyID, userID int64, action KeyAction, at time.Time) error {
	if t.s.failAudit {
		return errors.New("audit insert failed")
	}
	t.s.events = append(t.s.events, keyEvent{KeyID: keyID, UserID: userID, Action: action})
	return nil
}
