// Package session runs one quiz attempt: it presents questions in order,
// records answers and scores the result.
package session

import (
	"fmt"
	"time"

	"quizforge/internal/domain"

	"github.com/samber/lo"
)

// Session is not safe for concurrent use.
type Session struct {
	id        string
	quiz      domain.Quiz
	state     domain.SessionState
	answers   []domain.AnswerRecord
	updatedAt time.Time
	now       func() time.Time
}

// QuestionResult is one line of the score breakdown. Record is nil when the
// question was never answered.
type QuestionResult struct {
	Index     int                  `json:"index"`
	Question  domain.Question      `json:"question"`
	Record    *domain.AnswerRecord `json:"record"`
	IsCorrect bool                 `json:"is_correct"`
}

type Score struct {
	Correct     int              `json:"correct"`
	Total       int              `json:"total"`
	PerQuestion []QuestionResult `json:"per_question"`
}

func New(id string, quiz domain.Quiz) *Session {
	s := &Session{
		id:    id,
		quiz:  quiz,
		state: domain.SessionNotStarted,
		now:   time.Now,
	}
	s.updatedAt = s.now()
	return s
}

// Restore rebuilds a session from a snapshot.
func Restore(snapshot *domain.SessionSnapshot) (*Session, error) {
	if snapshot == nil {
		return nil, domain.NewInvalidInputError("nil session snapshot")
	}
	switch snapshot.State {
	case domain.SessionNotStarted, domain.SessionInProgress, domain.SessionCompleted:
	default:
		return nil, domain.NewInvalidInputError(fmt.Sprintf("unknown session state %q", snapshot.State))
	}
	if len(snapshot.Answers) > len(snapshot.Quiz.Questions) {
		return nil, domain.NewInvalidInputError("snapshot has more answers than questions")
	}
	return &Session{
		id:        snapshot.ID,
		quiz:      snapshot.Quiz,
		state:     snapshot.State,
		answers:   append([]domain.AnswerRecord(nil), snapshot.Answers...),
		updatedAt: snapshot.UpdatedAt,
		now:       time.Now,
	}, nil
}

func (s *Session) ID() string                 { return s.id }
func (s *Session) State() domain.SessionState { return s.state }
func (s *Session) Quiz() domain.Quiz          { return s.quiz }

// Answers returns a copy of the answers recorded so far.
func (s *Session) Answers() []domain.AnswerRecord {
	return append([]domain.AnswerRecord(nil), s.answers...)
}

// CurrentQuestion returns the first unanswered question and its index, or
// false once the session is completed. The first call starts the session.
func (s *Session) CurrentQuestion() (domain.Question, int, bool) {
	if s.state == domain.SessionCompleted {
		return domain.Question{}, 0, false
	}
	idx := len(s.answers)
	if idx >= len(s.quiz.Questions) {
		s.complete()
		return domain.Question{}, 0, false
	}
	if s.state == domain.SessionNotStarted {
		s.state = domain.SessionInProgress
		s.touch()
	}
	return s.quiz.Questions[idx], idx, true
}

// SubmitAnswer answers the current question. Repeated indices count once.
func (s *Session) SubmitAnswer(chosen []int) error {
	if s.state == domain.SessionCompleted {
		return domain.NewInvalidStateError("session is already completed")
	}
	if len(chosen) == 0 {
		return domain.NewEmptySelectionError()
	}
	q, idx, ok := s.CurrentQuestion()
	if !ok {
		return domain.NewInvalidStateError("session has no remaining questions")
	}
	set := lo.Uniq(chosen)
	for _, c := range set {
		if c < 0 || c >= len(q.Options) {
			return domain.NewInvalidSelectionError(c, len(q.Options))
		}
	}

	s.answers = append(s.answers, domain.AnswerRecord{QuestionIndex: idx, ChosenIndices: set})
	s.touch()
	if len(s.answers) == len(s.quiz.Questions) {
		s.complete()
	}
	return nil
}

// End completes the session early. Unanswered questions score as incorrect.
func (s *Session) End() {
	s.complete()
}

// Score is only available once the session is completed.
func (s *Session) Score() (Score, error) {
	if s.state != domain.SessionCompleted {
		return Score{}, domain.NewInvalidStateError(fmt.Sprintf("score is not available while session is %s", s.state))
	}

	byIndex := lo.SliceToMap(s.answers, func(r domain.AnswerRecord) (int, domain.AnswerRecord) {
		return r.QuestionIndex, r
	})

	score := Score{Total: len(s.quiz.Questions), PerQuestion: make([]QuestionResult, 0, len(s.quiz.Questions))}
	for i, q := range s.quiz.Questions {
		result := QuestionResult{Index: i, Question: q}
		if rec, ok := byIndex[i]; ok {
			result.Record = &rec
			result.IsCorrect = q.IsCorrect(rec.ChosenIndices)
		}
		if result.IsCorrect {
			score.Correct++
		}
		score.PerQuestion = append(score.PerQuestion, result)
	}
	return score, nil
}

// Snapshot returns the serializable state of the session.
func (s *Session) Snapshot() *domain.SessionSnapshot {
	return &domain.SessionSnapshot{
		ID:        s.id,
		Quiz:      s.quiz,
		State:     s.state,
		Answers:   s.Answers(),
		UpdatedAt: s.updatedAt,
	}
}

func (s *Session) complete() {
	if s.state != domain.SessionCompleted {
		s.state = domain.SessionCompleted
		s.touch()
	}
}

func (s *Session) touch() {
	s.updatedAt = s.now()
}
