package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskhive.io/internal/ids"
)

// MemoryStore implements Store in process memory. It backs DSN-less
// development mode and the concurrency test suite; rotation atomicity comes
// from holding the mutex across revoke-and-insert.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Record
	byHash map[string]string
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures MemoryStore behavior.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the time source (useful for tests).
func WithMemoryClock(fn func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID:   make(map[string]*Record),
		byHash: make(map[string]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(rec)
	return nil
}

func (s *MemoryStore) insertLocked(rec *Record) {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	clone := *rec
	s.byID[rec.ID] = &clone
	s.byHash[rec.TokenHash] = rec.ID
}

func (s *MemoryStore) FindValidByHash(ctx context.Context, hash string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.lookupLocked(hash)
	if err != nil {
		return nil, err
	}
	clone := *rec
	return &clone, nil
}

func (s *MemoryStore) lookupLocked(hash string) (*Record, error) {
	id, ok := s.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	rec := s.byID[id]
	if rec.Revoked {
		return nil, ErrReused
	}
	if !rec.ExpiresAt.After(s.now()) {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Rotate(ctx context.Context, oldHash string, next *Record) (RotationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.lookupLocked(oldHash)
	if err != nil {
		return RotationResult{}, err
	}
	rec.Revoked = true
	s.insertLocked(next)
	return RotationResult{OldRevoked: true, NewCreated: true}, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok || rec.Revoked {
		return ErrNotFound
	}
	rec.Revoked = true
	return nil
}

func (s *MemoryStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.byID {
		if rec.UserID == userID && !rec.Revoked {
			rec.Revoked = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) RevokeAllExcept(ctx context.Context, userID string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var revoked int64
	users := make(map[string]struct{})
	for _, rec := range s.byID {
		if rec.UserID != userID && !rec.Revoked {
			rec.Revoked = true
			revoked++
			users[rec.UserID] = struct{}{}
		}
	}
	return revoked, int64(len(users)), nil
}

func (s *MemoryStore) EnforcePerUserLimit(ctx context.Context, userID string, max int) (int64, error) {
	if max < 0 {
		max = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []*Record
	for _, rec := range s.byID {
		if rec.UserID == userID {
			owned = append(owned, rec)
		}
	}
	if len(owned) <= max {
		return 0, nil
	}
	// newest first; everything past max is deleted oldest-first
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	var deleted int64
	for _, rec := range owned[max:] {
		s.deleteLocked(rec)
		deleted++
	}
	return deleted, nil
}

func (s *MemoryStore) deleteLocked(rec *Record) {
	delete(s.byID, rec.ID)
	if id, ok := s.byHash[rec.TokenHash]; ok && id == rec.ID {
		delete(s.byHash, rec.TokenHash)
	}
}

func (s *MemoryStore) CleanupExpired(ctx context.Context) (int64, error) {
	return s.deleteWhere(func(rec *Record) bool {
		return !rec.ExpiresAt.After(s.now())
	}), nil
}

func (s *MemoryStore) CleanupRevoked(ctx context.Context) (int64, error) {
	return s.deleteWhere(func(rec *Record) bool { return rec.Revoked }), nil
}

func (s *MemoryStore) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	return s.deleteWhere(func(rec *Record) bool {
		return rec.CreatedAt.Before(cutoff)
	}), nil
}

func (s *MemoryStore) deleteWhere(match func(*Record) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.byID {
		if match(rec) {
			s.deleteLocked(rec)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var st Stats
	for _, rec := range s.byID {
		st.Total++
		expired := !rec.ExpiresAt.After(now)
		if expired {
			st.Expired++
		}
		if rec.Revoked {
			st.Revoked++
		}
		if !rec.Revoked && !expired {
			st.Active++
		}
	}
	return st, nil
}
