package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// AnswerMode is the answer-type policy requested for a quiz.
type AnswerMode string

const (
	AnswerModeSingle   AnswerMode = "single"
	AnswerModeMultiple AnswerMode = "multiple"
	AnswerModeMixed    AnswerMode = "mixed"
)

// GenerationMode selects between one model call per question and one call for the whole quiz.
type GenerationMode string

const (
	GenerationModeSingleCall GenerationMode = "single_call_per_question"
	GenerationModeBatched    GenerationMode = "batched"
)

// QuestionType is the type of an individual question.
type QuestionType string

const (
	QuestionTypeSingle   QuestionType = "single"
	QuestionTypeMultiple QuestionType = "multiple"
)

// ParseAnswerMode accepts the mode names plus their long labels.
func ParseAnswerMode(s string) (AnswerMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "single correct answer":
		return AnswerModeSingle, nil
	case "multiple", "multiple correct answers":
		return AnswerModeMultiple, nil
	case "mixed":
		return AnswerModeMixed, nil
	}
	return "", fmt.Errorf("unknown answer mode %q", s)
}

// ParseGenerationMode accepts the mode names plus short aliases.
func ParseGenerationMode(s string) (GenerationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single_call_per_question", "single", "single mode":
		return GenerationModeSingleCall, nil
	case "batched", "batch", "batch mode":
		return GenerationModeBatched, nil
	}
	return "", fmt.Errorf("unknown generation mode %q", s)
}

// Topic is one body of study text, identified by its folder name.
type Topic struct {
	ID          string
	DisplayName string
	SourceText  string
}

// QuizSpec describes the quiz the user asked for.
// TopicIDs is kept in selection order; the first entry is the least recently selected.
type QuizSpec struct {
	TopicIDs       []string
	QuestionCount  int
	AnswerMode     AnswerMode
	GenerationMode GenerationMode
}

// NewQuizSpec builds a spec, dropping repeated topic ids while keeping selection order.
func NewQuizSpec(topicIDs []string, questionCount int, answerMode AnswerMode, generationMode GenerationMode) QuizSpec {
	return QuizSpec{
		TopicIDs:       lo.Uniq(topicIDs),
		QuestionCount:  questionCount,
		AnswerMode:     answerMode,
		GenerationMode: generationMode,
	}
}

// Validate reports every invalid field at once.
func (s QuizSpec) Validate() error {
	var errs ValidationErrors
	if len(s.TopicIDs) == 0 {
		errs = append(errs, NewMissingFieldError("topic_ids"))
	}
	if s.QuestionCount <= 0 {
		errs = append(errs, ValidationError{Field: "question_count", Code: CodeOutOfRange, Message: "must be greater than 0", Value: s.QuestionCount})
	}
	switch s.AnswerMode {
	case AnswerModeSingle, AnswerModeMultiple, AnswerModeMixed:
	default:
		errs = append(errs, NewInvalidFormatError("answer_mode", s.AnswerMode))
	}
	switch s.GenerationMode {
	case GenerationModeSingleCall, GenerationModeBatched:
	default:
		errs = append(errs, NewInvalidFormatError("generation_mode", s.GenerationMode))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Question is a validated multiple-choice question. Build it with NewQuestion.
type Question struct {
	Text                 string       `json:"text"`
	Options              []string     `json:"options"`
	CorrectOptionIndices []int        `json:"correct_option_indices"`
	Type                 QuestionType `json:"question_type"`
}

// NewQuestion validates the parts of a question and derives its type from the
// number of correct options. Correct indices are de-duplicated and sorted.
func NewQuestion(text string, options []string, correct []int) (Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Question{}, NewValidationFailure("question text is empty")
	}
	if len(options) < 2 {
		return Question{}, NewValidationFailure(fmt.Sprintf("question needs at least 2 options, got %d", len(options)))
	}
	if len(lo.Uniq(options)) != len(options) {
		return Question{}, NewValidationFailure("question options must be unique")
	}
	if len(correct) == 0 {
		return Question{}, NewValidationFailure("question has no correct option")
	}
	indices := lo.Uniq(correct)
	sort.Ints(indices)
	for _, idx := range indices {
		if idx < 0 || idx >= len(options) {
			return Question{}, NewValidationFailure(fmt.Sprintf("correct option index %d out of range", idx))
		}
	}
	qType := QuestionTypeSingle
	if len(indices) > 1 {
		qType = QuestionTypeMultiple
	}
	return Question{
		Text:                 text,
		Options:              append([]string(nil), options...),
		CorrectOptionIndices: indices,
		Type:                 qType,
	}, nil
}

// IsCorrect reports whether chosen equals the correct option set exactly.
func (q Question) IsCorrect(chosen []int) bool {
	set := lo.Uniq(chosen)
	if len(set) != len(q.CorrectOptionIndices) {
		return false
	}
	for _, idx := range set {
		if !lo.Contains(q.CorrectOptionIndices, idx) {
			return false
		}
	}
	return true
}

// Satisfies reports whether the question matches a slot's answer-type policy.
func (q Question) Satisfies(policy AnswerMode) bool {
	switch policy {
	case AnswerModeSingle:
		return q.Type == QuestionTypeSingle
	case AnswerModeMultiple:
		return q.Type == QuestionTypeMultiple
	default:
		return true
	}
}

// ContentTruncatedWarning reports topic text dropped to fit the context window.
type ContentTruncatedWarning struct {
	TopicID       string `json:"topic_id"`
	DroppedTokens int    `json:"dropped_tokens"`
}

func (w ContentTruncatedWarning) String() string {
	return fmt.Sprintf("topic %s truncated by ~%d tokens", w.TopicID, w.DroppedTokens)
}

// Prompt is one model request. Slots holds the answer-type policy of every
// question the prompt asks for, in order.
type Prompt struct {
	Text     string
	Slots    []AnswerMode
	TopicIDs []string
}

// Quiz is the result of a generation run.
type Quiz struct {
	ID             string                    `json:"id"`
	Questions      []Question                `json:"questions"`
	RequestedCount int                       `json:"requested_count"`
	Partial        bool                      `json:"partial"`
	GeneratedAt    time.Time                 `json:"generated_at"`
	EstimatedCost  *Money                    `json:"estimated_cost,omitempty"`
	Warnings       []ContentTruncatedWarning `json:"warnings,omitempty"`
}

// AnswerRecord is the answer given to one question.
type AnswerRecord struct {
	QuestionIndex int   `json:"question_index"`
	ChosenIndices []int `json:"chosen_indices"`
}

// SessionState is the state of a quiz session.
type SessionState string

const (
	SessionNotStarted SessionState = "not_started"
	SessionInProgress SessionState = "in_progress"
	SessionCompleted  SessionState = "completed"
)

// ValidationFailure is returned when model output or a request does not form a valid value.
type ValidationFailure struct {
	message string
}

func (e *ValidationFailure) Error() string {
	return e.message
}

func NewValidationFailure(message string) error {
	return &ValidationFailure{message: message}
}
