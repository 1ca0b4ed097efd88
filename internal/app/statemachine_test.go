package app_test

import (
	"testing"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

func twoQuestionQuiz(duration int) domain.Quiz {
	return domain.Quiz{
		ID:      "quiz-1",
		OwnerID: "admin-1",
		Name:    "Sample",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Text:     "First question",
				Duration: duration,
				Points:   3,
				Answers: []domain.Answer{
					{ID: "a1", Text: "Right", Correct: true, Colour: "red"},
					{ID: "a2", Text: "Wrong", Correct: false, Colour: "blue"},
				},
			},
			{
				ID:       "q2",
				Text:     "Second question",
				Duration: duration,
				Points:   5,
				Answers: []domain.Answer{
					{ID: "b1", Text: "Right", Correct: true, Colour: "green"},
					{ID: "b2", Text: "Wrong", Correct: false, Colour: "yellow"},
				},
			},
		},
	}
}

// sessionIn drives a fresh session into the requested state. Long countdown
// and question durations keep timers from firing underneath the test.
func sessionIn(t *testing.T, state domain.SessionState) *app.Session {
	t.Helper()
	session := app.NewSession("s1", twoQuestionQuiz(100), 0, time.Hour)

	steps := map[domain.SessionState][]domain.SessionAction{
		domain.StateLobby:        {},
		domain.StateCountdown:    {domain.ActionNextQuestion},
		domain.StateOpen:         {domain.ActionNextQuestion, domain.ActionSkipCountdown},
		domain.StateAnswerShow:   {domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToAnswer},
		domain.StateFinalResults: {domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToAnswer, domain.ActionGoToFinalResults},
		domain.StateEnd:          {domain.ActionEnd},
	}
	actions, ok := steps[state]
	if !ok {
		t.Fatalf("no route to state %s", state)
	}
	for _, action := range actions {
		if err := session.ApplyAction(action); err != nil {
			t.Fatalf("drive to %s: %v", state, err)
		}
	}
	if session.State() != state {
		t.Fatalf("expected state %s, got %s", state, session.State())
	}
	return session
}

// sessionInClose needs a real answer-window expiry, so it uses a zero-length
// question duration and waits for the timer.
func sessionInClose(t *testing.T) *app.Session {
	t.Helper()
	session := app.NewSession("s1", twoQuestionQuiz(0), 0, time.Hour)
	if err := session.ApplyAction(domain.ActionNextQuestion); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if err := session.ApplyAction(domain.ActionSkipCountdown); err != nil {
		t.Fatalf("skip countdown: %v", err)
	}
	waitForState(t, session, domain.StateClose)
	return session
}

func waitForState(t *testing.T, session *app.Session, state domain.SessionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if session.State() == state {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, still %s", state, session.State())
}

func TestTransitionTable(t *testing.T) {
	allActions := []domain.SessionAction{
		domain.ActionNextQuestion,
		domain.ActionSkipCountdown,
		domain.ActionGoToAnswer,
		domain.ActionGoToFinalResults,
		domain.ActionEnd,
	}
	legal := map[domain.SessionState]map[domain.SessionAction]bool{
		domain.StateLobby:        {domain.ActionNextQuestion: true, domain.ActionEnd: true},
		domain.StateCountdown:    {domain.ActionSkipCountdown: true, domain.ActionEnd: true},
		domain.StateOpen:         {domain.ActionGoToAnswer: true, domain.ActionEnd: true},
		domain.StateClose:        {domain.ActionNextQuestion: true, domain.ActionGoToAnswer: true, domain.ActionGoToFinalResults: true, domain.ActionEnd: true},
		domain.StateAnswerShow:   {domain.ActionNextQuestion: true, domain.ActionGoToFinalResults: true, domain.ActionEnd: true},
		domain.StateFinalResults: {domain.ActionEnd: true},
		domain.StateEnd:          {},
	}

	for state, allowed := range legal {
		for _, action := range allActions {
			session := buildState(t, state)
			err := session.ApplyAction(action)
			if allowed[action] {
				if err != nil {
					t.Errorf("state %s action %s: unexpected error %v", state, action, err)
				}
				continue
			}
			if err == nil {
				t.Errorf("state %s action %s: expected rejection", state, action)
			} else if !domain.IsKind(err, domain.KindStateConflict) {
				t.Errorf("state %s action %s: expected state conflict, got %v", state, action, err)
			}
			if session.State() != state {
				t.Errorf("state %s action %s: rejected action changed state to %s", state, action, session.State())
			}
		}
	}
}

func buildState(t *testing.T, state domain.SessionState) *app.Session {
	t.Helper()
	if state == domain.StateClose {
		return sessionInClose(t)
	}
	return sessionIn(t, state)
}

func TestCountdownExpiryOpensQuestion(t *testing.T) {
	session := app.NewSession("s1", twoQuestionQuiz(100), 0, 20*time.Millisecond)
	if err := session.ApplyAction(domain.ActionNextQuestion); err != nil {
		t.Fatalf("next question: %v", err)
	}
	waitForState(t, session, domain.StateOpen)
}

func TestAnswerWindowExpiryClosesQuestion(t *testing.T) {
	session := app.NewSession("s1", twoQuestionQuiz(0), 0, 20*time.Millisecond)
	if err := session.ApplyAction(domain.ActionNextQuestion); err != nil {
		t.Fatalf("next question: %v", err)
	}
	waitForState(t, session, domain.StateClose)
}

func TestEndCancelsPendingTimer(t *testing.T) {
	session := app.NewSession("s1", twoQuestionQuiz(100), 0, 30*time.Millisecond)
	if err := session.ApplyAction(domain.ActionNextQuestion); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if err := session.ApplyAction(domain.ActionEnd); err != nil {
		t.Fatalf("end: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if session.State() != domain.StateEnd {
		t.Fatalf("stale countdown timer fired after END, state %s", session.State())
	}
}

func TestSkipCountdownCancelsCountdownTimer(t *testing.T) {
	session := app.NewSession("s1", twoQuestionQuiz(100), 0, 30*time.Millisecond)
	if err := session.ApplyAction(domain.ActionNextQuestion); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if err := session.ApplyAction(domain.ActionSkipCountdown); err != nil {
		t.Fatalf("skip countdown: %v", err)
	}
	if err := session.ApplyAction(domain.ActionGoToAnswer); err != nil {
		t.Fatalf("go to answer: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if session.State() != domain.StateAnswerShow {
		t.Fatalf("cancelled timer still fired, state %s", session.State())
	}
}

func TestNextQuestionPastLastIsRejected(t *testing.T) {
	session := sessionIn(t, domain.StateAnswerShow)
	// Play the second (last) question.
	if err := session.ApplyAction(domain.ActionNextQuestion); err != nil {
		t.Fatalf("advance to question 2: %v", err)
	}
	if err := session.ApplyAction(domain.ActionSkipCountdown); err != nil {
		t.Fatalf("skip countdown: %v", err)
	}
	if err := session.ApplyAction(domain.ActionGoToAnswer); err != nil {
		t.Fatalf("go to answer: %v", err)
	}
	if err := session.ApplyAction(domain.ActionNextQuestion); err == nil {
		t.Fatalf("expected NEXT_QUESTION past the last question to fail")
	}
	if session.Status().AtQuestion != 2 {
		t.Fatalf("atQuestion changed on rejected action: %d", session.Status().AtQuestion)
	}
}

func TestAtQuestionIsMonotonic(t *testing.T) {
	session := app.NewSession("s1", twoQuestionQuiz(100), 0, time.Hour)
	last := session.Status().AtQuestion
	advance := func(action domain.SessionAction) {
		t.Helper()
		if err := session.ApplyAction(action); err != nil {
			t.Fatalf("apply %s: %v", action, err)
		}
		at := session.Status().AtQuestion
		if at < last {
			t.Fatalf("atQuestion decreased from %d to %d", last, at)
		}
		last = at
	}
	advance(domain.ActionNextQuestion)
	advance(domain.ActionSkipCountdown)
	advance(domain.ActionGoToAnswer)
	advance(domain.ActionNextQuestion)
	advance(domain.ActionSkipCountdown)
	advance(domain.ActionGoToAnswer)
	advance(domain.ActionGoToFinalResults)
	advance(domain.ActionEnd)
	if last != 2 {
		t.Fatalf("expected atQuestion 2 at the end, got %d", last)
	}
}
