package app

import (
	"math"
	"sort"

	"quiz-session-service/internal/domain"
)

// QuestionResults aggregates submissions for a question whose answer window
// has closed. Available from ANSWER_SHOW onwards for any shown position.
func (s *Session) QuestionResults(position int) (domain.QuestionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionResultsLocked(position)
}

func (s *Session) questionResultsLocked(position int) (domain.QuestionResult, error) {
	if s.state != domain.StateAnswerShow && s.state != domain.StateFinalResults {
		return domain.QuestionResult{}, domain.StateConflictf("question results are not available in state %s", s.state)
	}
	if position < 1 || position > s.atQuestion {
		return domain.QuestionResult{}, domain.Validationf("question position %d has not been played", position)
	}

	question := s.questions[position-1]
	submitters := s.orderedSubmittersLocked(position)

	var correctNames []string
	totalSeconds := 0.0
	for _, entry := range submitters {
		totalSeconds += entry.submission.SubmittedAt.Sub(s.openedAt[position-1]).Seconds()
		if entry.submission.Correct {
			correctNames = append(correctNames, entry.player.Name)
		}
	}

	averageTime := 0
	if len(submitters) > 0 {
		averageTime = int(math.Round(totalSeconds / float64(len(submitters))))
	}
	percent := 0
	if len(s.players) > 0 {
		percent = int(math.Round(100 * float64(len(correctNames)) / float64(len(s.players))))
	}

	return domain.QuestionResult{
		QuestionID:        question.ID,
		PlayersCorrect:    correctNames,
		AverageAnswerTime: averageTime,
		PercentCorrect:    percent,
	}, nil
}

// FinalResults computes the ranked scoreboard and per-question breakdown.
// Only available once the session reaches FINAL_RESULTS.
func (s *Session) FinalResults() (domain.FinalResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != domain.StateFinalResults {
		return domain.FinalResults{}, domain.StateConflictf("final results are not available in state %s", s.state)
	}

	// Fastest correct submitter takes full points, the next one half, and so
	// on down the correct-submission order of each question.
	scores := make(map[string]float64, len(s.players))
	for position := 1; position <= s.atQuestion; position++ {
		points := float64(s.questions[position-1].Points)
		rank := 0
		for _, entry := range s.orderedSubmittersLocked(position) {
			if !entry.submission.Correct {
				continue
			}
			rank++
			scores[entry.player.ID] += points / float64(rank)
		}
	}

	ranked := make([]domain.RankedPlayer, 0, len(s.players))
	for _, p := range s.players { // join order is the tie break
		ranked = append(ranked, domain.RankedPlayer{
			Name:  p.Name,
			Score: math.Round(scores[p.ID]*10) / 10,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	questionResults := make([]domain.QuestionResult, 0, s.atQuestion)
	for position := 1; position <= s.atQuestion; position++ {
		result, err := s.questionResultsLocked(position)
		if err != nil {
			return domain.FinalResults{}, err
		}
		questionResults = append(questionResults, result)
	}

	return domain.FinalResults{
		UsersRankedByScore: ranked,
		QuestionResults:    questionResults,
	}, nil
}

type submissionEntry struct {
	player     *domain.Player
	submission *domain.Submission
}

// orderedSubmittersLocked lists submissions for a position sorted by
// submission time ascending, ties broken by join order.
func (s *Session) orderedSubmittersLocked(position int) []submissionEntry {
	entries := make([]submissionEntry, 0, len(s.players))
	for _, p := range s.players {
		if sub, ok := s.submissions[position-1][p.ID]; ok {
			entries = append(entries, submissionEntry{player: p, submission: sub})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].submission.SubmittedAt.Before(entries[j].submission.SubmittedAt)
	})
	return entries
}
