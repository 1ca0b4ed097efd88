package memory

import (
	"sync"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions are never deleted; they stay queryable for historical results
// until the global reset.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
	players  map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
		players:  make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) GetByPlayer(playerID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.players[playerID]
	return session, ok
}

func (s *SessionStore) BindPlayer(playerID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[playerID] = session
}

func (s *SessionStore) ListByQuiz(quizID string) []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sessions []*app.Session
	for _, session := range s.sessions {
		if session.QuizID() == quizID {
			sessions = append(sessions, session)
		}
	}
	return sessions
}

func (s *SessionStore) CountActiveByQuiz(quizID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, session := range s.sessions {
		if session.QuizID() == quizID && session.State() != domain.StateEnd {
			count++
		}
	}
	return count
}

// Clear shuts every session down before dropping it, so no armed timer can
// fire into the emptied store.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		session.Shutdown()
	}
	s.sessions = make(map[string]*app.Session)
	s.players = make(map[string]*app.Session)
}
