package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"budget/internal/storage"
)

var ErrNoSession = errors.New("session not found")

// SessionStore maps opaque session tokens to user ids.
type SessionStore interface {
	Get(ctx context.Context, token string) (int64, error)
	Set(ctx context.Context, token string, userID int64, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}

type sessionRepository interface {
	SaveSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error
	GetSession(ctx context.Context, tokenHash string, now time.Time) (int64, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SQLiteSessionStore persists hashed tokens so sessions survive restarts.
type SQLiteSessionStore struct {
	repo sessionRepository
	now  func() time.Time
}

func NewSQLiteSessionStore(repo sessionRepository) *SQLiteSessionStore {
	return &SQLiteSessionStore{repo: repo, now: time.Now}
}

func (s *SQLiteSessionStore) Get(ctx context.Context, token string) (int64, error) {
	id, err := s.repo.GetSession(ctx, HashToken(token), s.now())
	if errors.Is(err, storage.ErrNotFound) {
		return 0, ErrNoSession
	}
	return id, err
}

func (s *SQLiteSessionStore) Set(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return s.repo.SaveSession(ctx, HashToken(token), userID, s.now().Add(ttl))
}

func (s *SQLiteSessionStore) Delete(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, HashToken(token))
}

// Prune removes expired sessions and returns how many were deleted.
func (s *SQLiteSessionStore) Prune(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, s.now())
}

type memorySession struct {
	userID    int64
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memorySession), now: time.Now}
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (int64, error) {
	s.mu.RLock()
	sess, ok := s.sessions[HashToken(token)]
	s.mu.RUnlock()
	if !ok || !s.now().Before(sess.expiresAt) {
		return 0, ErrNoSession
	}
	return sess.userID, nil
}

func (s *MemorySessionStore) Set(_ context.Context, token string, userID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[HashToken(token)] = memorySession{userID: userID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, HashToken(token))
	return nil
}

// Prune drops expired sessions.
func (s *MemorySessionStore) Prune(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for k, v := range s.sessions {
		if !now.Before(v.expiresAt) {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}
