// Package memory provides a process-local implementation of the storage ports.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// Store keeps everything in maps. Nothing survives a restart.
type Store struct {
	mu    sync.Mutex
	auth  map[string]domain.AuthSession
	codes map[string]struct{}
	pubs  map[string][]domain.Publication
}

var _ ports.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		auth:  map[string]domain.AuthSession{},
		codes: map[string]struct{}{},
		pubs:  map[string][]domain.Publication{},
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) LoadAuth(ctx context.Context, sessionID string) (domain.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auth[sessionID]
	if !ok {
		return domain.AuthSession{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *Store) SaveAuth(ctx context.Context, sessionID string, auth domain.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth[sessionID] = auth
	return nil
}

func (s *Store) DeleteAuth(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.auth, sessionID)
	return nil
}

func (s *Store) ConsumeCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.codes[code]; seen {
		return domain.ErrCodeConsumed
	}
	s.codes[code] = struct{}{}
	return nil
}

func (s *Store) SavePublication(ctx context.Context, p domain.Publication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubs[p.SessionID] = append(s.pubs[p.SessionID], p)
	return nil
}

// ListPublications returns newest first. A non-positive limit returns all.
func (s *Store) ListPublications(ctx context.Context, sessionID string, limit int) ([]domain.Publication, error) {
	s.mu.Lock()
	out := append([]domain.Publication{}, s.pubs[sessionID]...)
	s.mu.Unlock()

	// stable on insertion order for equal timestamps, newest insert first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
