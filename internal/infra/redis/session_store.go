package redis

import (
	"context"
	"sync"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in-process so the timer and broadcast logic
//     keeps working unchanged; Redis carries liveness and player-routing
//     markers other instances can observe.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans out session updates.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
	players  map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
		players:  make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.sessionKey(session.ID()), session.QuizID(), s.ttl).Err()
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
	_ = s.client.Set(context.Background(), s.playerKey(playerID), session.ID(), s.ttl).Err()
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

// Clear shuts sessions down before discarding them and drops the Redis markers.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := context.Background()
	for id, session := range s.sessions {
		session.Shutdown()
		_ = s.client.Del(ctx, s.sessionKey(id)).Err()
	}
	for id := range s.players {
		_ = s.client.Del(ctx, s.playerKey(id)).Err()
	}
	s.sessions = make(map[string]*app.Session)
	s.players = make(map[string]*app.Session)
}

func (s *SessionStore) sessionKey(sessionID string) string {
	return "session:live:" + sessionID
}

func (s *SessionStore) playerKey(playerID string) string {
	return "session:player:" + playerID
}
