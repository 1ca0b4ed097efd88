package app

import (
	"time"

	"quiz-session-service/internal/domain"
)

// ApplyAction runs one state machine action against the session.
// Legal transitions:
//
//	NEXT_QUESTION        LOBBY | QUESTION_CLOSE | ANSWER_SHOW -> QUESTION_COUNTDOWN
//	SKIP_COUNTDOWN       QUESTION_COUNTDOWN                   -> QUESTION_OPEN
//	GO_TO_ANSWER         QUESTION_OPEN | QUESTION_CLOSE       -> ANSWER_SHOW
//	GO_TO_FINAL_RESULTS  QUESTION_CLOSE | ANSWER_SHOW         -> FINAL_RESULTS
//	END                  any non-END                          -> END
//
// The countdown and answer-window expiries fire automatically on timers.
// Every other (state, action) pair fails and leaves the state unchanged.
func (s *Session) ApplyAction(action domain.SessionAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyActionLocked(action)
}

func (s *Session) applyActionLocked(action domain.SessionAction) error {
	switch action {
	case domain.ActionEnd:
		if s.state == domain.StateEnd {
			return domain.StateConflictf("session %s has already ended", s.id)
		}
		s.cancelTimerLocked()
		s.state = domain.StateEnd

	case domain.ActionNextQuestion:
		if s.state != domain.StateLobby && s.state != domain.StateClose && s.state != domain.StateAnswerShow {
			return domain.StateConflictf("NEXT_QUESTION is not valid in state %s", s.state)
		}
		if s.atQuestion >= len(s.questions) {
			return domain.StateConflictf("session %s has no more questions", s.id)
		}
		s.atQuestion++
		s.state = domain.StateCountdown
		s.armTimerLocked(s.countdown, s.countdownExpiredLocked)

	case domain.ActionSkipCountdown:
		if s.state != domain.StateCountdown {
			return domain.StateConflictf("SKIP_COUNTDOWN is not valid in state %s", s.state)
		}
		s.cancelTimerLocked()
		s.openQuestionLocked()

	case domain.ActionGoToAnswer:
		if s.state != domain.StateOpen && s.state != domain.StateClose {
			return domain.StateConflictf("GO_TO_ANSWER is not valid in state %s", s.state)
		}
		s.cancelTimerLocked()
		s.state = domain.StateAnswerShow

	case domain.ActionGoToFinalResults:
		if s.state != domain.StateClose && s.state != domain.StateAnswerShow {
			return domain.StateConflictf("GO_TO_FINAL_RESULTS is not valid in state %s", s.state)
		}
		s.state = domain.StateFinalResults

	default:
		return domain.Validationf("unknown session action %q", action)
	}

	s.broadcastLocked(domain.SessionUpdate{Type: "status", Status: s.statusLocked()})
	return nil
}

// openQuestionLocked moves to QUESTION_OPEN, stamps the open time used for
// answer timing, and arms the answer-window timer.
func (s *Session) openQuestionLocked() {
	s.state = domain.StateOpen
	s.openedAt[s.atQuestion-1] = s.now()
	duration := time.Duration(s.questions[s.atQuestion-1].Duration) * time.Second
	s.armTimerLocked(duration, s.answerWindowExpiredLocked)
}

func (s *Session) countdownExpiredLocked() {
	if s.state != domain.StateCountdown {
		return
	}
	s.openQuestionLocked()
	s.broadcastLocked(domain.SessionUpdate{Type: "status", Status: s.statusLocked()})
}

func (s *Session) answerWindowExpiredLocked() {
	if s.state != domain.StateOpen {
		return
	}
	s.pending = nil
	s.state = domain.StateClose
	s.broadcastLocked(domain.SessionUpdate{Type: "status", Status: s.statusLocked()})
}

// armTimerLocked schedules fire after d. At most one timer is outstanding:
// arming bumps the generation so any previously scheduled callback becomes a
// no-op even if it has already left the runtime's timer heap.
func (s *Session) armTimerLocked(d time.Duration, fire func()) {
	s.timerGen++
	gen := s.timerGen
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.timerGen != gen || s.state == domain.StateEnd {
			return
		}
		fire()
	})
}

func (s *Session) cancelTimerLocked() {
	s.timerGen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
