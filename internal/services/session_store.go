package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"grocer/internal/cache"
	"grocer/internal/checkout"
)

// SessionStore keeps live checkout sessions in memory and their carts in the
// cart cache, so a cart survives a restart even though an in-flight checkout
// does not. Sessions left idle are evicted; their carts come back through Open.
type SessionStore struct {
	orchestrator *checkout.Orchestrator
	carts        cache.CartCache
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*liveSession

	stopEviction chan struct{}
	wg           sync.WaitGroup
}

type liveSession struct {
	session  *checkout.Session
	lastUsed time.Time
}

func NewSessionStore(orchestrator *checkout.Orchestrator, carts cache.CartCache) *SessionStore {
	return &SessionStore{
		orchestrator: orchestrator,
		carts:        carts,
		now:          time.Now,
		sessions:     make(map[string]*liveSession),
	}
}

// Open returns the live session for id, restoring its cart from the cache
// when the session is not in memory yet.
func (s *SessionStore) Open(ctx context.Context, id string) (*checkout.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.sessions[id]; ok {
		live.lastUsed = s.now()
		return live.session, nil
	}

	sess, err := s.restore(ctx, id)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = &liveSession{session: sess, lastUsed: s.now()}
	return sess, nil
}

// Peek returns the live session for id, or a throwaway session built from the
// cached cart. Read-only requests use it so they do not keep sessions alive.
func (s *SessionStore) Peek(ctx context.Context, id string) (*checkout.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.sessions[id]; ok {
		live.lastUsed = s.now()
		return live.session, nil
	}
	return s.restore(ctx, id)
}

func (s *SessionStore) restore(ctx context.Context, id string) (*checkout.Session, error) {
	lines, err := s.carts.Get(ctx, id)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}
	return s.orchestrator.NewSession(id, lines), nil
}

// Lookup returns a live session without creating one.
func (s *SessionStore) Lookup(id string) (*checkout.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return live.session, true
}

// Len is the number of sessions held in memory.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Persist writes the session's cart to the cache. An empty cart removes the
// entry. Failures are logged; the in-memory cart stays authoritative.
func (s *SessionStore) Persist(ctx context.Context, sess *checkout.Session) {
	lines := sess.Lines()
	var err error
	if len(lines) == 0 {
		err = s.carts.Delete(ctx, sess.ID())
	} else {
		err = s.carts.Set(ctx, sess.ID(), lines)
	}
	if err != nil {
		log.Printf("Warning: failed to persist cart for session %s: %v", sess.ID(), err)
	}
}

// Close tears the session down and forgets its cart.
func (s *SessionStore) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	live, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		if err := live.session.Close(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	if err := s.carts.Delete(ctx, id); err != nil {
		log.Printf("Warning: failed to delete cart for session %s: %v", id, err)
	}
	return nil
}

// Evict drops sessions unused for maxIdle that hold nothing beyond their
// cached cart. Sessions with an open or unsaved payment are kept.
func (s *SessionStore) Evict(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, live := range s.sessions {
		if live.lastUsed.After(cutoff) || !live.session.Idle() {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	return evicted
}

// StartEviction runs Evict every interval until StopEviction is called.
func (s *SessionStore) StartEviction(interval, maxIdle time.Duration) {
	s.stopEviction = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Evict(maxIdle); n > 0 {
					log.Printf("Evicted %d idle checkout sessions", n)
				}
			case <-s.stopEviction:
				return
			}
		}
	}()
}

func (s *SessionStore) StopEviction() {
	if s.stopEviction == nil {
		return
	}
	close(s.stopEviction)
	s.wg.Wait()
	s.stopEviction = nil
}
