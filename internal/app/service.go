package app

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"quiz-session-service/internal/domain"

	"github.com/google/uuid"
)

// TokenResolver maps admin session tokens to users (auth collaborator).
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (domain.User, error)
}

// QuizRepository loads and stores quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	PutQuiz(ctx context.Context, quiz domain.Quiz) error
}

// SessionRepository abstracts how live sessions are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	GetByPlayer(playerID string) (*Session, bool)
	BindPlayer(playerID string, session *Session)
	ListByQuiz(quizID string) []*Session
	CountActiveByQuiz(quizID string) int
	Clear()
}

const (
	maxActiveSessions = 10
	maxAutoStart      = 50
)

// Service contains the quiz session use cases.
type Service struct {
	tokens    TokenResolver
	quizzes   QuizRepository
	sessions  SessionRepository
	countdown time.Duration

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewService wires the collaborators. countdown is the fixed pause between a
// question being queued and becoming answerable; <=0 selects the 3s default.
func NewService(tokens TokenResolver, quizzes QuizRepository, sessions SessionRepository, countdown time.Duration) *Service {
	if countdown <= 0 {
		countdown = 3 * time.Second
	}
	return &Service{
		tokens:    tokens,
		quizzes:   quizzes,
		sessions:  sessions,
		countdown: countdown,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// authQuiz resolves the token and checks the quiz exists and is owned by the caller.
func (s *Service) authQuiz(ctx context.Context, token, quizID string) (domain.Quiz, error) {
	if token == "" {
		return domain.Quiz{}, domain.Unauthorizedf("a session token is required")
	}
	user, err := s.tokens.ResolveToken(ctx, token)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.OwnerID != user.ID {
		return domain.Quiz{}, domain.Forbiddenf("user %s does not own quiz %s", user.ID, quizID)
	}
	return quiz, nil
}

// StartSession creates a LOBBY session holding a frozen copy of the quiz's questions.
func (s *Service) StartSession(ctx context.Context, token, quizID string, autoStartNum int) (string, error) {
	quiz, err := s.authQuiz(ctx, token, quizID)
	if err != nil {
		return "", err
	}
	if autoStartNum < 0 || autoStartNum > maxAutoStart {
		return "", domain.Validationf("autoStartNum must be between 0 and %d", maxAutoStart)
	}
	if len(quiz.Questions) == 0 {
		return "", domain.Validationf("quiz %s has no questions", quizID)
	}
	if s.sessions.CountActiveByQuiz(quizID) >= maxActiveSessions {
		return "", domain.StateConflictf("quiz %s already has %d active sessions", quizID, maxActiveSessions)
	}

	session := NewSession(uuid.NewString(), quiz, autoStartNum, s.countdown)
	s.sessions.Put(session)
	return session.ID(), nil
}

// SessionList splits a quiz's sessions into active and ended, ids ascending.
type SessionList struct {
	ActiveSessions   []string `json:"activeSessions"`
	InactiveSessions []string `json:"inactiveSessions"`
}

// ListSessions returns every session ever started for a quiz.
func (s *Service) ListSessions(ctx context.Context, token, quizID string) (SessionList, error) {
	if _, err := s.authQuiz(ctx, token, quizID); err != nil {
		return SessionList{}, err
	}
	list := SessionList{ActiveSessions: []string{}, InactiveSessions: []string{}}
	for _, session := range s.sessions.ListByQuiz(quizID) {
		if session.State() == domain.StateEnd {
			list.InactiveSessions = append(list.InactiveSessions, session.ID())
		} else {
			list.ActiveSessions = append(list.ActiveSessions, session.ID())
		}
	}
	sort.Strings(list.ActiveSessions)
	sort.Strings(list.InactiveSessions)
	return list, nil
}

// SessionStatus returns the admin status snapshot of one session.
func (s *Service) SessionStatus(ctx context.Context, token, quizID, sessionID string) (domain.SessionStatus, error) {
	if _, err := s.authQuiz(ctx, token, quizID); err != nil {
		return domain.SessionStatus{}, err
	}
	session, err := s.quizSession(quizID, sessionID)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	return session.Status(), nil
}

// UpdateSessionState applies an admin action to the session's state machine.
func (s *Service) UpdateSessionState(ctx context.Context, token, quizID, sessionID, rawAction string) error {
	if _, err := s.authQuiz(ctx, token, quizID); err != nil {
		return err
	}
	action, err := domain.ParseAction(rawAction)
	if err != nil {
		return err
	}
	session, err := s.quizSession(quizID, sessionID)
	if err != nil {
		return err
	}
	return session.ApplyAction(action)
}

// SessionQuestionResults returns one question's aggregated results for the
// admin view.
func (s *Service) SessionQuestionResults(ctx context.Context, token, quizID, sessionID string, position int) (domain.QuestionResult, error) {
	if _, err := s.authQuiz(ctx, token, quizID); err != nil {
		return domain.QuestionResult{}, err
	}
	session, err := s.quizSession(quizID, sessionID)
	if err != nil {
		return domain.QuestionResult{}, err
	}
	return session.QuestionResults(position)
}

// SessionResults returns the final scoreboard for the admin view.
func (s *Service) SessionResults(ctx context.Context, token, quizID, sessionID string) (domain.FinalResults, error) {
	if _, err := s.authQuiz(ctx, token, quizID); err != nil {
		return domain.FinalResults{}, err
	}
	session, err := s.quizSession(quizID, sessionID)
	if err != nil {
		return domain.FinalResults{}, err
	}
	return session.FinalResults()
}

func (s *Service) quizSession(quizID, sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok || session.QuizID() != quizID {
		return nil, domain.NotFoundf("session %s not found for quiz %s", sessionID, quizID)
	}
	return session, nil
}

// PlayerJoin adds a player to a LOBBY session and returns the new player id.
func (s *Service) PlayerJoin(sessionID, name string) (string, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return "", domain.NotFoundf("session %s not found", sessionID)
	}
	player, err := session.Join(name)
	if err != nil {
		return "", err
	}
	s.sessions.BindPlayer(player.ID, session)
	return player.ID, nil
}

func (s *Service) playerSession(playerID string) (*Session, error) {
	session, ok := s.sessions.GetByPlayer(playerID)
	if !ok {
		return nil, domain.NotFoundf("player %s not found", playerID)
	}
	return session, nil
}

// PlayerStatus returns the session state as seen by one player.
func (s *Service) PlayerStatus(playerID string) (domain.PlayerStatus, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.PlayerStatus{}, err
	}
	return session.PlayerStatus(), nil
}

// PlayerQuestion returns the current question for a player, correctness withheld.
func (s *Service) PlayerQuestion(playerID string, position int) (domain.PlayerQuestion, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.PlayerQuestion{}, err
	}
	return session.PlayerQuestion(position)
}

// SubmitAnswer records a player's answer for the current open question.
func (s *Service) SubmitAnswer(playerID string, position int, answerIDs []string) error {
	session, err := s.playerSession(playerID)
	if err != nil {
		return err
	}
	return session.SubmitAnswer(playerID, position, answerIDs)
}

// QuestionResults returns aggregated results for an already-shown question.
func (s *Service) QuestionResults(playerID string, position int) (domain.QuestionResult, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.QuestionResult{}, err
	}
	return session.QuestionResults(position)
}

// PlayerFinalResults returns the final scoreboard for a player's session.
func (s *Service) PlayerFinalResults(playerID string) (domain.FinalResults, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.FinalResults{}, err
	}
	return session.FinalResults()
}

// ChatSend appends a chat message to the player's session.
func (s *Service) ChatSend(playerID, body string) error {
	session, err := s.playerSession(playerID)
	if err != nil {
		return err
	}
	return session.SendChat(playerID, body)
}

// ChatView returns the chat log of the player's session.
func (s *Service) ChatView(playerID string) ([]domain.ChatMessage, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return nil, err
	}
	return session.ChatLog(), nil
}

// Subscribe attaches a live update feed to the player's session.
func (s *Service) Subscribe(playerID string) (<-chan domain.SessionUpdate, func(), error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Clear discards all sessions. The store shuts each session down first so no
// stale timer callback can touch the fresh state.
func (s *Service) Clear() {
	s.sessions.Clear()
}
