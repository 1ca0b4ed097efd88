package app

import (
	"math/rand"
	"sync"
	"time"

	"quiz-session-service/internal/domain"

	"github.com/google/uuid"
)

// Session is the in-memory aggregate for one live quiz run. All mutation is
// serialized through its mutex; reads take consistent snapshots. The question
// list is frozen at start time, so quiz edits never touch a running session.
type Session struct {
	id        string
	quizID    string
	autoStart int
	countdown time.Duration
	questions []domain.Question
	now       func() time.Time

	mu          sync.RWMutex
	state       domain.SessionState
	atQuestion  int // 1-based, 0 before the first question
	players     []*domain.Player
	byID        map[string]*domain.Player
	submissions []map[string]*domain.Submission // one map per question position
	openedAt    []time.Time                     // when each question entered QUESTION_OPEN
	chat        []domain.ChatMessage
	timerGen    uint64
	pending     *time.Timer
	rnd         *rand.Rand
	subscribers map[chan domain.SessionUpdate]struct{}
}

// NewSession freezes the quiz's questions into a new LOBBY session.
func NewSession(id string, quiz domain.Quiz, autoStart int, countdown time.Duration) *Session {
	return NewSessionWithClock(id, quiz, autoStart, countdown, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, quiz domain.Quiz, autoStart int, countdown time.Duration, now func() time.Time) *Session {
	questions := quiz.CloneQuestions()
	submissions := make([]map[string]*domain.Submission, len(questions))
	for i := range submissions {
		submissions[i] = make(map[string]*domain.Submission)
	}
	return &Session{
		id:          id,
		quizID:      quiz.ID,
		autoStart:   autoStart,
		countdown:   countdown,
		questions:   questions,
		now:         now,
		state:       domain.StateLobby,
		byID:        make(map[string]*domain.Player),
		submissions: submissions,
		openedAt:    make([]time.Time, len(questions)),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		subscribers: make(map[chan domain.SessionUpdate]struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// QuizID returns the id of the quiz this session was started from.
func (s *Session) QuizID() string { return s.quizID }

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Status returns a consistent snapshot of state, position and players.
func (s *Session) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() domain.SessionStatus {
	names := make([]string, 0, len(s.players))
	for _, p := range s.players {
		names = append(names, p.Name)
	}
	return domain.SessionStatus{
		SessionID:     s.id,
		QuizID:        s.quizID,
		State:         s.state,
		AtQuestion:    s.atQuestion,
		QuestionCount: len(s.questions),
		Players:       names,
	}
}

// PlayerStatus returns the reduced status view exposed to players.
func (s *Session) PlayerStatus() domain.PlayerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.PlayerStatus{
		State:        s.state,
		NumQuestions: len(s.questions),
		AtQuestion:   s.atQuestion,
	}
}

// Join registers a player while the session is in LOBBY. An empty name is
// replaced with a generated one (5 letters + 3 digits) that cannot collide.
// Reaching the configured auto-start count fires NEXT_QUESTION.
func (s *Session) Join(name string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLobby {
		return domain.Player{}, domain.StateConflictf("session %s is not accepting players in state %s", s.id, s.state)
	}
	if name == "" {
		name = s.generateNameLocked()
	} else if s.nameTakenLocked(name) {
		return domain.Player{}, domain.Validationf("player name %q is already taken", name)
	}

	player := &domain.Player{
		ID:       uuid.NewString(),
		Name:     name,
		JoinedAt: s.now(),
	}
	s.players = append(s.players, player)
	s.byID[player.ID] = player
	s.broadcastLocked(domain.SessionUpdate{Type: "status", Status: s.statusLocked()})

	if s.autoStart > 0 && len(s.players) >= s.autoStart && s.state == domain.StateLobby {
		// Auto-start cannot fail from LOBBY with a non-empty question list.
		_ = s.applyActionLocked(domain.ActionNextQuestion)
	}
	return *player, nil
}

func (s *Session) nameTakenLocked(name string) bool {
	for _, p := range s.players {
		if p.Name == name {
			return true
		}
	}
	return false
}

const (
	nameLetters = "abcdefghijklmnopqrstuvwxyz"
	nameDigits  = "0123456789"
)

// generateNameLocked builds a 5-letter 3-digit name with no repeated
// characters, retrying until it is unique within the session.
func (s *Session) generateNameLocked() string {
	for {
		letters := []byte(nameLetters)
		digits := []byte(nameDigits)
		s.rnd.Shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })
		s.rnd.Shuffle(len(digits), func(i, j int) { digits[i], digits[j] = digits[j], digits[i] })
		name := string(letters[:5]) + string(digits[:3])
		if !s.nameTakenLocked(name) {
			return name
		}
	}
}

// SubmitAnswer records a player's answer for the current question. A repeat
// submission replaces the previous one; the newest timestamp is kept.
func (s *Session) SubmitAnswer(playerID string, position int, answerIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[playerID]; !ok {
		return domain.NotFoundf("player %s not found in session %s", playerID, s.id)
	}
	if s.state != domain.StateOpen {
		return domain.StateConflictf("answers are not open in state %s", s.state)
	}
	if position != s.atQuestion {
		return domain.Validationf("question position %d is not the current question %d", position, s.atQuestion)
	}
	if len(answerIDs) == 0 {
		return domain.Validationf("at least one answer id is required")
	}

	question := s.questions[s.atQuestion-1]
	valid := make(map[string]bool, len(question.Answers))
	for _, a := range question.Answers {
		valid[a.ID] = a.Correct
	}
	seen := make(map[string]struct{}, len(answerIDs))
	for _, id := range answerIDs {
		if _, dup := seen[id]; dup {
			return domain.Validationf("duplicate answer id %s", id)
		}
		seen[id] = struct{}{}
		if _, ok := valid[id]; !ok {
			return domain.Validationf("answer id %s does not belong to question %d", id, position)
		}
	}

	// Exact set match against the correct answer ids.
	correct := true
	correctCount := 0
	for id, isCorrect := range valid {
		if isCorrect {
			correctCount++
			if _, picked := seen[id]; !picked {
				correct = false
			}
		}
	}
	if len(answerIDs) != correctCount {
		correct = false
	}

	ids := make([]string, len(answerIDs))
	copy(ids, answerIDs)
	s.submissions[position-1][playerID] = &domain.Submission{
		AnswerIDs:   ids,
		SubmittedAt: s.now(),
		Correct:     correct,
	}
	return nil
}

// PlayerQuestion returns the current question without correctness flags.
func (s *Session) PlayerQuestion(position int) (domain.PlayerQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == domain.StateLobby || s.state == domain.StateEnd {
		return domain.PlayerQuestion{}, domain.StateConflictf("no current question in state %s", s.state)
	}
	if position != s.atQuestion {
		return domain.PlayerQuestion{}, domain.Validationf("question position %d is not the current question %d", position, s.atQuestion)
	}

	question := s.questions[position-1]
	answers := make([]domain.PlayerAnswer, 0, len(question.Answers))
	for _, a := range question.Answers {
		answers = append(answers, domain.PlayerAnswer{ID: a.ID, Text: a.Text, Colour: a.Colour})
	}
	return domain.PlayerQuestion{
		ID:        question.ID,
		Text:      question.Text,
		Duration:  question.Duration,
		Points:    question.Points,
		Thumbnail: question.Thumbnail,
		Answers:   answers,
	}, nil
}

// SendChat appends a message to the session chat and notifies subscribers.
func (s *Session) SendChat(playerID, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.byID[playerID]
	if !ok {
		return domain.NotFoundf("player %s not found in session %s", playerID, s.id)
	}
	if len(body) < 1 || len(body) > 100 {
		return domain.Validationf("chat message must be between 1 and 100 characters")
	}
	msg := domain.ChatMessage{
		PlayerID: player.ID,
		Name:     player.Name,
		Body:     body,
		SentAt:   s.now(),
	}
	s.chat = append(s.chat, msg)
	s.broadcastLocked(domain.SessionUpdate{Type: "chat", Chat: &msg})
	return nil
}

// ChatLog returns the chat history in send order.
func (s *Session) ChatLog() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := make([]domain.ChatMessage, len(s.chat))
	copy(log, s.chat)
	return log
}

// Subscribe returns a channel fed with session updates. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionUpdate, func()) {
	ch := make(chan domain.SessionUpdate, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// Sent under the lock so no broadcast can be queued ahead of the
	// initial snapshot. The fresh buffered channel cannot block here.
	ch <- domain.SessionUpdate{Type: "status", Status: s.statusLocked()}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(update domain.SessionUpdate) {
	for ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			// Drop the oldest update rather than block on a slow client.
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}

// Shutdown forces the session to END and cancels any pending timer. Used by
// the global reset so stale callbacks cannot mutate a cleared store.
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
	if s.state != domain.StateEnd {
		s.state = domain.StateEnd
		s.broadcastLocked(domain.SessionUpdate{Type: "status", Status: s.statusLocked()})
	}
}
