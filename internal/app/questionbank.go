package app

import (
	"context"
	"strings"
	"time"

	"quiz-session-service/internal/domain"

	"github.com/google/uuid"
)

// AnswerInput is the client-supplied shape of one answer.
type AnswerInput struct {
	Text    string `json:"answer"`
	Correct bool   `json:"correct"`
}

// QuestionInput is the client-supplied shape of a question body.
type QuestionInput struct {
	Text      string        `json:"question"`
	Duration  int           `json:"duration"`
	Points    int           `json:"points"`
	Thumbnail string        `json:"thumbnailUrl"`
	Answers   []AnswerInput `json:"answers"`
}

// answerColours is the fixed palette answers are coloured from.
var answerColours = []string{"red", "orange", "yellow", "green", "blue", "purple", "pink"}

const maxQuizDuration = 180 // seconds, summed across all questions

// CreateQuestion validates and appends a question to the quiz, assigning ids
// and palette colours. Structural edits are rejected while the quiz has any
// active session, since running snapshots would silently diverge.
func (s *Service) CreateQuestion(ctx context.Context, token, quizID string, input QuestionInput) (string, error) {
	quiz, err := s.editableQuiz(ctx, token, quizID)
	if err != nil {
		return "", err
	}
	if err := validateQuestion(quiz, input, ""); err != nil {
		return "", err
	}

	question := s.buildQuestion(input)
	quiz.Questions = append(quiz.Questions, question)
	if err := s.saveQuiz(ctx, quiz); err != nil {
		return "", err
	}
	return question.ID, nil
}

// UpdateQuestion replaces a question body in place; the question id is stable.
func (s *Service) UpdateQuestion(ctx context.Context, token, quizID, questionID string, input QuestionInput) error {
	quiz, err := s.editableQuiz(ctx, token, quizID)
	if err != nil {
		return err
	}
	idx, err := findQuestion(quiz, questionID)
	if err != nil {
		return err
	}
	if err := validateQuestion(quiz, input, questionID); err != nil {
		return err
	}

	question := s.buildQuestion(input)
	question.ID = questionID
	quiz.Questions[idx] = question
	return s.saveQuiz(ctx, quiz)
}

// DeleteQuestion removes a question from the quiz.
func (s *Service) DeleteQuestion(ctx context.Context, token, quizID, questionID string) error {
	quiz, err := s.editableQuiz(ctx, token, quizID)
	if err != nil {
		return err
	}
	idx, err := findQuestion(quiz, questionID)
	if err != nil {
		return err
	}
	quiz.Questions = append(quiz.Questions[:idx], quiz.Questions[idx+1:]...)
	return s.saveQuiz(ctx, quiz)
}

// MoveQuestion relocates a question to a new 0-based position.
func (s *Service) MoveQuestion(ctx context.Context, token, quizID, questionID string, newPosition int) error {
	quiz, err := s.editableQuiz(ctx, token, quizID)
	if err != nil {
		return err
	}
	idx, err := findQuestion(quiz, questionID)
	if err != nil {
		return err
	}
	if newPosition < 0 || newPosition >= len(quiz.Questions) {
		return domain.Validationf("new position %d is out of range", newPosition)
	}
	if newPosition == idx {
		return domain.Validationf("question is already at position %d", newPosition)
	}

	question := quiz.Questions[idx]
	rest := append(quiz.Questions[:idx], quiz.Questions[idx+1:]...)
	quiz.Questions = append(rest[:newPosition], append([]domain.Question{question}, rest[newPosition:]...)...)
	return s.saveQuiz(ctx, quiz)
}

// DuplicateQuestion inserts a copy immediately after the original. The copy
// keeps the content and colours but gets fresh question and answer ids.
func (s *Service) DuplicateQuestion(ctx context.Context, token, quizID, questionID string) (string, error) {
	quiz, err := s.editableQuiz(ctx, token, quizID)
	if err != nil {
		return "", err
	}
	idx, err := findQuestion(quiz, questionID)
	if err != nil {
		return "", err
	}

	original := quiz.Questions[idx]
	duplicate := original
	duplicate.ID = uuid.NewString()
	duplicate.Answers = make([]domain.Answer, len(original.Answers))
	copy(duplicate.Answers, original.Answers)
	for i := range duplicate.Answers {
		duplicate.Answers[i].ID = uuid.NewString()
	}

	quiz.Questions = append(quiz.Questions[:idx+1], append([]domain.Question{duplicate}, quiz.Questions[idx+1:]...)...)
	if err := s.saveQuiz(ctx, quiz); err != nil {
		return "", err
	}
	return duplicate.ID, nil
}

// editableQuiz authorizes the caller and refuses structural edits while any
// non-END session references the quiz. The question list is deep-copied so
// in-place edits never reach the repository's stored copy before saveQuiz.
func (s *Service) editableQuiz(ctx context.Context, token, quizID string) (domain.Quiz, error) {
	quiz, err := s.authQuiz(ctx, token, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if s.sessions.CountActiveByQuiz(quizID) > 0 {
		return domain.Quiz{}, domain.StateConflictf("quiz %s has active sessions and cannot be edited", quizID)
	}
	quiz.Questions = quiz.CloneQuestions()
	return quiz, nil
}

func (s *Service) saveQuiz(ctx context.Context, quiz domain.Quiz) error {
	quiz.TimeLastEdited = time.Now()
	return s.quizzes.PutQuiz(ctx, quiz)
}

func (s *Service) buildQuestion(input QuestionInput) domain.Question {
	colours := s.assignColours(len(input.Answers))
	answers := make([]domain.Answer, 0, len(input.Answers))
	for i, a := range input.Answers {
		answers = append(answers, domain.Answer{
			ID:      uuid.NewString(),
			Text:    a.Text,
			Correct: a.Correct,
			Colour:  colours[i],
		})
	}
	return domain.Question{
		ID:        uuid.NewString(),
		Text:      input.Text,
		Duration:  input.Duration,
		Points:    input.Points,
		Thumbnail: input.Thumbnail,
		Answers:   answers,
	}
}

// assignColours draws n distinct colours from the palette.
func (s *Service) assignColours(n int) []string {
	colours := make([]string, len(answerColours))
	copy(colours, answerColours)
	s.rndMu.Lock()
	s.rnd.Shuffle(len(colours), func(i, j int) { colours[i], colours[j] = colours[j], colours[i] })
	s.rndMu.Unlock()
	return colours[:n]
}

func findQuestion(quiz domain.Quiz, questionID string) (int, error) {
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == questionID {
			return i, nil
		}
	}
	return 0, domain.NotFoundf("question %s not found in quiz %s", questionID, quiz.ID)
}

// validateQuestion enforces the question body rules. replaceID names the
// question being replaced so its duration is excluded from the quiz total.
func validateQuestion(quiz domain.Quiz, input QuestionInput, replaceID string) error {
	if n := len([]rune(input.Text)); n < 5 || n > 50 {
		return domain.Validationf("question text must be between 5 and 50 characters")
	}
	if len(input.Answers) < 2 || len(input.Answers) > 6 {
		return domain.Validationf("a question needs between 2 and 6 answers")
	}

	seen := make(map[string]struct{}, len(input.Answers))
	anyCorrect := false
	for _, a := range input.Answers {
		if n := len([]rune(a.Text)); n < 1 || n > 30 {
			return domain.Validationf("answer text must be between 1 and 30 characters")
		}
		if _, dup := seen[a.Text]; dup {
			return domain.Validationf("duplicate answer text %q", a.Text)
		}
		seen[a.Text] = struct{}{}
		if a.Correct {
			anyCorrect = true
		}
	}
	if !anyCorrect {
		return domain.Validationf("at least one answer must be correct")
	}

	if input.Duration <= 0 {
		return domain.Validationf("question duration must be positive")
	}
	total := quiz.DurationTotal() + input.Duration
	for _, q := range quiz.Questions {
		if q.ID == replaceID {
			total -= q.Duration
		}
	}
	if total > maxQuizDuration {
		return domain.Validationf("quiz duration would exceed %d seconds", maxQuizDuration)
	}

	if input.Points < 1 || input.Points > 10 {
		return domain.Validationf("points must be between 1 and 10")
	}
	if input.Thumbnail != "" {
		if err := validateThumbnail(input.Thumbnail); err != nil {
			return err
		}
	}
	return nil
}

func validateThumbnail(url string) error {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return domain.Validationf("thumbnail url must start with http:// or https://")
	}
	if !strings.HasSuffix(lower, ".jpg") && !strings.HasSuffix(lower, ".jpeg") && !strings.HasSuffix(lower, ".png") {
		return domain.Validationf("thumbnail url must end with .jpg, .jpeg or .png")
	}
	return nil
}
