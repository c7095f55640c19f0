// Package session carries the current user and a profile cache keyed by
// user id, so stale entries can be dropped after every write.
package session

import (
	"sync"

	"wellness-meal-planner/internal/auth"
	"wellness-meal-planner/internal/profile"
)

// Cache holds fetched profiles by user id. A cached nil means "fetched,
// no row". Safe for concurrent use.
//
// Every Invalidate bumps the user's generation. A fetch that started
// before the bump must not write its result back, so readers call Begin
// before going to the store and PutIf afterwards.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*profile.Profile
	gens    map[string]uint64
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*profile.Profile),
		gens:    make(map[string]uint64),
	}
}

// Get reports the cached profile and whether one was cached at all.
func (c *Cache) Get(userID string) (*profile.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[userID]
	return p, ok
}

func (c *Cache) Put(userID string, p *profile.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = p
}

// Begin returns the user's current generation.
func (c *Cache) Begin(userID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[userID]
}

// PutIf stores p unless the user was invalidated since Begin returned gen.
// It reports whether p was stored.
func (c *Cache) PutIf(userID string, gen uint64, p *profile.Profile) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return false
	}
	c.entries[userID] = p
	return true
}

func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.gens[userID]++
}

// Session is one client's view: who is signed in, plus the shared cache.
type Session struct {
	mu       sync.RWMutex
	identity *auth.Identity
	cache    *Cache
}

// New creates a session. identity may be nil for an anonymous visitor.
func New(identity *auth.Identity, cache *Cache) *Session {
	if cache == nil {
		cache = NewCache()
	}
	return &Session{identity: identity, cache: cache}
}

func (s *Session) Identity() *auth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) Authenticated() bool {
	return s.Identity() != nil
}

// UserID is empty for anonymous sessions.
func (s *Session) UserID() string {
	if id := s.Identity(); id != nil {
		return id.UserID
	}
	return ""
}

// SignIn replaces the session's identity.
func (s *Session) SignIn(identity *auth.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
}

// SignOut clears the identity and the user's cached profile.
func (s *Session) SignOut() {
	s.mu.Lock()
	id := s.identity
	s.identity = nil
	s.mu.Unlock()
	if id != nil {
		s.cache.Invalidate(id.UserID)
	}
}

func (s *Session) Cache() *Cache {
	return s.cache
}
