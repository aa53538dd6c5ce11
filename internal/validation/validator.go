package validation

import (
	"regexp"
	"strings"

	"quizforge/internal/domain"
	"quizforge/internal/util"
)

// MaxQuestionCount caps the question count accepted over HTTP.
const MaxQuestionCount = 50

var topicIDPattern = regexp.MustCompile(`^[^/\\.][^/\\]{0,127}$`)

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateQuizSpec validates the raw quiz setup fields and returns the parsed spec.
func (v *Validator) ValidateQuizSpec(topicIDs []string, count int, answerMode, generationMode string) (domain.QuizSpec, domain.ValidationErrors) {
	var errors domain.ValidationErrors

	if len(topicIDs) == 0 {
		errors = append(errors, domain.NewMissingFieldError("topic_ids"))
	}
	for _, id := range topicIDs {
		if !isValidTopicID(id) {
			errors = append(errors, domain.NewInvalidFormatError("topic_ids", id))
		}
	}

	if count <= 0 || count > MaxQuestionCount {
		errors = append(errors, domain.NewOutOfRangeError("question_count", count, 1, MaxQuestionCount))
	}

	aMode, err := domain.ParseAnswerMode(answerMode)
	if err != nil {
		errors = append(errors, domain.NewInvalidFormatError("answer_mode", answerMode))
	}
	gMode, err := domain.ParseGenerationMode(generationMode)
	if err != nil {
		errors = append(errors, domain.NewInvalidFormatError("generation_mode", generationMode))
	}

	if len(errors) > 0 {
		return domain.QuizSpec{}, errors
	}
	return domain.NewQuizSpec(topicIDs, count, aMode, gMode), nil
}

// ValidatePricing checks optional per-million prices.
func (v *Validator) ValidatePricing(inputPerMillion, outputPerMillion *float64) domain.ValidationErrors {
	var errors domain.ValidationErrors
	if inputPerMillion != nil && *inputPerMillion < 0 {
		errors = append(errors, domain.ValidationError{Field: "input_per_million", Code: domain.CodeOutOfRange, Message: "must not be negative", Value: *inputPerMillion})
	}
	if outputPerMillion != nil && *outputPerMillion < 0 {
		errors = append(errors, domain.ValidationError{Field: "output_per_million", Code: domain.CodeOutOfRange, Message: "must not be negative", Value: *outputPerMillion})
	}
	return errors
}

// ValidateSessionID validates a session id path parameter
func (v *Validator) ValidateSessionID(id string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(id) == "" {
		errors = append(errors, domain.NewMissingFieldError("session_id"))
	} else if !util.IsULID(id) {
		errors = append(errors, domain.NewInvalidFormatError("session_id", id))
	}

	return errors
}

// isValidTopicID accepts folder names: no separators, not hidden, not empty.
func isValidTopicID(s string) bool {
	return strings.TrimSpace(s) != "" && topicIDPattern.MatchString(s)
}
