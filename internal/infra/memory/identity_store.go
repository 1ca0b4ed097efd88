package memory

import (
	"context"
	"sync"

	"quiz-session-service/internal/domain"
)

// IdentityStore is an in-memory token-to-user resolver standing in for the
// auth collaborator.
type IdentityStore struct {
	mu      sync.RWMutex
	byToken map[string]domain.User
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{byToken: make(map[string]domain.User)}
}

// AddToken registers a live token for a user.
func (s *IdentityStore) AddToken(token string, user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[token] = user
}

// RemoveToken invalidates a token.
func (s *IdentityStore) RemoveToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
}

func (s *IdentityStore) ResolveToken(_ context.Context, token string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byToken[token]
	if !ok {
		return domain.User{}, domain.Unauthorizedf("invalid session token")
	}
	return user, nil
}
