package oidc

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// StateTTL is how long a sign-in attempt may take before its state expires.
const StateTTL = 5 * time.Minute

// StateStore issues one-time state values for the OAuth2 redirect.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

// NewStateStore creates a store; a ttl of zero uses StateTTL.
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = StateTTL
	}
	return &StateStore{states: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// Issue returns a fresh random state.
func (s *StateStore) Issue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(s.ttl)
	return state, nil
}

// Consume reports whether state was issued and has not expired. A state
// can be consumed once.
func (s *StateStore) Consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return !s.now().After(exp)
}
