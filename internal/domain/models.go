package domain

import "time"

// User identifies an administrator resolved from a session token.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Answer is one selectable option of a question. Colour is assigned from the
// fixed palette when the question is created, never taken from client input.
type Answer struct {
	ID      string `json:"answerId"`
	Text    string `json:"answer"`
	Correct bool   `json:"correct"`
	Colour  string `json:"colour"`
}

// Question models a timed MCQ question worth a number of points.
type Question struct {
	ID        string   `json:"questionId"`
	Text      string   `json:"question"`
	Duration  int      `json:"duration"` // seconds
	Points    int      `json:"points"`
	Thumbnail string   `json:"thumbnailUrl,omitempty"`
	Answers   []Answer `json:"answers"`
}

// Quiz is an ordered collection of questions owned by a user.
type Quiz struct {
	ID             string     `json:"quizId"`
	OwnerID        string     `json:"ownerId"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Thumbnail      string     `json:"thumbnailUrl,omitempty"`
	TimeCreated    time.Time  `json:"timeCreated"`
	TimeLastEdited time.Time  `json:"timeLastEdited"`
	Questions      []Question `json:"questions"`
}

// DurationTotal sums the duration of every question in seconds.
func (q Quiz) DurationTotal() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Duration
	}
	return total
}

// CloneQuestions deep-copies the question list so a running session is not
// affected by later edits to the quiz.
func (q Quiz) CloneQuestions() []Question {
	questions := make([]Question, len(q.Questions))
	copy(questions, q.Questions)
	for i := range questions {
		answers := make([]Answer, len(q.Questions[i].Answers))
		copy(answers, q.Questions[i].Answers)
		questions[i].Answers = answers
	}
	return questions
}

// SessionState is one of the lifecycle states of a quiz session.
type SessionState string

const (
	StateLobby        SessionState = "LOBBY"
	StateCountdown    SessionState = "QUESTION_COUNTDOWN"
	StateOpen         SessionState = "QUESTION_OPEN"
	StateClose        SessionState = "QUESTION_CLOSE"
	StateAnswerShow   SessionState = "ANSWER_SHOW"
	StateFinalResults SessionState = "FINAL_RESULTS"
	StateEnd          SessionState = "END"
)

// SessionAction is an admin-issued state machine action.
type SessionAction string

const (
	ActionNextQuestion     SessionAction = "NEXT_QUESTION"
	ActionSkipCountdown    SessionAction = "SKIP_COUNTDOWN"
	ActionGoToAnswer       SessionAction = "GO_TO_ANSWER"
	ActionGoToFinalResults SessionAction = "GO_TO_FINAL_RESULTS"
	ActionEnd              SessionAction = "END"
)

// ParseAction validates an action string from the wire.
func ParseAction(raw string) (SessionAction, error) {
	switch SessionAction(raw) {
	case ActionNextQuestion, ActionSkipCountdown, ActionGoToAnswer, ActionGoToFinalResults, ActionEnd:
		return SessionAction(raw), nil
	}
	return "", Validationf("unknown session action %q", raw)
}

// Player is a participant joined to one session.
type Player struct {
	ID       string    `json:"playerId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"-"`
}

// Submission is the retained answer of one player for one question position.
// Resubmission replaces the previous value.
type Submission struct {
	AnswerIDs   []string
	SubmittedAt time.Time
	Correct     bool
}

// ChatMessage is one entry of a session's append-only chat log.
type ChatMessage struct {
	PlayerID string    `json:"playerId"`
	Name     string    `json:"playerName"`
	Body     string    `json:"messageBody"`
	SentAt   time.Time `json:"timeSent"`
}

// SessionStatus is a consistent snapshot of a session for status queries.
type SessionStatus struct {
	SessionID     string       `json:"sessionId"`
	QuizID        string       `json:"quizId"`
	State         SessionState `json:"state"`
	AtQuestion    int          `json:"atQuestion"`
	QuestionCount int          `json:"questionCount"`
	Players       []string     `json:"players"` // names in join order
}

// PlayerStatus is the reduced view returned to players.
type PlayerStatus struct {
	State        SessionState `json:"state"`
	NumQuestions int          `json:"numQuestions"`
	AtQuestion   int          `json:"atQuestion"`
}

// PlayerAnswer is an answer as shown to players: correctness withheld.
type PlayerAnswer struct {
	ID     string `json:"answerId"`
	Text   string `json:"answer"`
	Colour string `json:"colour"`
}

// PlayerQuestion is the current question as shown to players.
type PlayerQuestion struct {
	ID        string         `json:"questionId"`
	Text      string         `json:"question"`
	Duration  int            `json:"duration"`
	Points    int            `json:"points"`
	Thumbnail string         `json:"thumbnailUrl,omitempty"`
	Answers   []PlayerAnswer `json:"answers"`
}

// QuestionResult aggregates submissions for one question position.
type QuestionResult struct {
	QuestionID        string   `json:"questionId"`
	PlayersCorrect    []string `json:"playersCorrectList"`
	AverageAnswerTime int      `json:"averageAnswerTime"` // whole seconds
	PercentCorrect    int      `json:"percentCorrect"`
}

// RankedPlayer is one row of the final scoreboard.
type RankedPlayer struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// FinalResults is the aggregate outcome of a finished session.
type FinalResults struct {
	UsersRankedByScore []RankedPlayer   `json:"usersRankedByScore"`
	QuestionResults    []QuestionResult `json:"questionResults"`
}

// SessionUpdate is pushed to live subscribers on every observable change.
type SessionUpdate struct {
	Type   string        `json:"type"` // "status" or "chat"
	Status SessionStatus `json:"status,omitempty"`
	Chat   *ChatMessage  `json:"chat,omitempty"`
}
