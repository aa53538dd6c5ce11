package session

import (
	"encoding/json"
	"testing"

	"quizforge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuiz(t *testing.T) domain.Quiz {
	t.Helper()
	q1, err := domain.NewQuestion("Q1", []string{"a", "b", "c"}, []int{0})
	require.NoError(t, err)
	q2, err := domain.NewQuestion("Q2", []string{"a", "b", "c"}, []int{1, 2})
	require.NoError(t, err)
	q3, err := domain.NewQuestion("Q3", []string{"a", "b"}, []int{1})
	require.NoError(t, err)
	return domain.Quiz{ID: "quiz-1", Questions: []domain.Question{q1, q2, q3}, RequestedCount: 3}
}

func TestSession_FullRun(t *testing.T) {
	s := New("s-1", testQuiz(t))
	assert.Equal(t, domain.SessionNotStarted, s.State())

	q, idx, ok := s.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "Q1", q.Text)
	assert.Equal(t, domain.SessionInProgress, s.State())

	_, err := s.Score()
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, s.SubmitAnswer([]int{0}))
	require.NoError(t, s.SubmitAnswer([]int{2, 1, 2}))
	assert.Equal(t, domain.SessionInProgress, s.State())
	require.NoError(t, s.SubmitAnswer([]int{0}))
	assert.Equal(t, domain.SessionCompleted, s.State())

	_, _, ok = s.CurrentQuestion()
	assert.False(t, ok)

	score, err := s.Score()
	require.NoError(t, err)
	assert.Equal(t, 2, score.Correct)
	assert.Equal(t, 3, score.Total)
	require.Len(t, score.PerQuestion, 3)
	assert.True(t, score.PerQuestion[0].IsCorrect)
	assert.True(t, score.PerQuestion[1].IsCorrect)
	assert.False(t, score.PerQuestion[2].IsCorrect)
	assert.Equal(t, []int{2, 1}, score.PerQuestion[1].Record.ChosenIndices)
}

func TestSession_NoPartialCredit(t *testing.T) {
	s := New("s", testQuiz(t))
	require.NoError(t, s.SubmitAnswer([]int{0}))
	require.NoError(t, s.SubmitAnswer([]int{1}))
	require.NoError(t, s.SubmitAnswer([]int{1}))

	score, err := s.Score()
	require.NoError(t, err)
	assert.Equal(t, 2, score.Correct)
	assert.False(t, score.PerQuestion[1].IsCorrect)
}

func TestSession_SubmitErrors(t *testing.T) {
	s := New("s", testQuiz(t))

	assert.ErrorIs(t, s.SubmitAnswer(nil), domain.ErrEmptySelection)
	assert.ErrorIs(t, s.SubmitAnswer([]int{}), domain.ErrEmptySelection)
	assert.ErrorIs(t, s.SubmitAnswer([]int{3}), domain.ErrInvalidSelection)
	assert.ErrorIs(t, s.SubmitAnswer([]int{-1}), domain.ErrInvalidSelection)
	assert.Empty(t, s.Answers())

	s.End()
	assert.ErrorIs(t, s.SubmitAnswer([]int{0}), domain.ErrInvalidState)
}

func TestSession_EndEarly(t *testing.T) {
	s := New("s", testQuiz(t))
	require.NoError(t, s.SubmitAnswer([]int{0}))
	s.End()
	assert.Equal(t, domain.SessionCompleted, s.State())

	score, err := s.Score()
	require.NoError(t, err)
	assert.Equal(t, 1, score.Correct)
	assert.Equal(t, 3, score.Total)
	assert.Nil(t, score.PerQuestion[1].Record)
	assert.Nil(t, score.PerQuestion[2].Record)
	assert.False(t, score.PerQuestion[2].IsCorrect)
}

func TestSession_EmptyQuizCompletesImmediately(t *testing.T) {
	s := New("s", domain.Quiz{})
	_, _, ok := s.CurrentQuestion()
	assert.False(t, ok)
	assert.Equal(t, domain.SessionCompleted, s.State())

	score, err := s.Score()
	require.NoError(t, err)
	assert.Equal(t, 0, score.Total)
}

func TestSession_SnapshotRestore(t *testing.T) {
	s := New("s-9", testQuiz(t))
	require.NoError(t, s.SubmitAnswer([]int{0}))

	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	var snap domain.SessionSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored, err := Restore(&snap)
	require.NoError(t, err)
	assert.Equal(t, "s-9", restored.ID())
	assert.Equal(t, domain.SessionInProgress, restored.State())

	q, idx, ok := restored.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "Q2", q.Text)
}

func TestRestore_RejectsBadSnapshots(t *testing.T) {
	_, err := Restore(nil)
	assert.Error(t, err)

	_, err = Restore(&domain.SessionSnapshot{State: "paused"})
	assert.Error(t, err)

	_, err = Restore(&domain.SessionSnapshot{
		State:   domain.SessionInProgress,
		Answers: []domain.AnswerRecord{{QuestionIndex: 0, ChosenIndices: []int{0}}},
	})
	assert.Error(t, err)
}
