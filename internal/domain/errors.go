package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeMissingField  ErrorCode = "MISSING_FIELD"
	CodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	CodeOutOfRange    ErrorCode = "OUT_OF_RANGE"

	// Generation errors
	CodeContentNotFound   ErrorCode = "CONTENT_NOT_FOUND"
	CodePromptTooLarge    ErrorCode = "PROMPT_TOO_LARGE"
	CodeTransientProvider ErrorCode = "TRANSIENT_PROVIDER_ERROR"
	CodeFatalProvider     ErrorCode = "FATAL_PROVIDER_ERROR"
	CodeNoValidQuestions  ErrorCode = "NO_VALID_QUESTIONS"

	// Session errors
	CodeInvalidState     ErrorCode = "INVALID_STATE"
	CodeEmptySelection   ErrorCode = "EMPTY_SELECTION"
	CodeInvalidSelection ErrorCode = "INVALID_SELECTION"
	CodeSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError carrying the same code, so the
// Err* sentinels below can be used with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// WithContext attaches a key/value pair that is reported with the error.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	ErrContentNotFound   = &DomainError{Code: CodeContentNotFound}
	ErrPromptTooLarge    = &DomainError{Code: CodePromptTooLarge}
	ErrTransientProvider = &DomainError{Code: CodeTransientProvider}
	ErrFatalProvider     = &DomainError{Code: CodeFatalProvider}
	ErrNoValidQuestions  = &DomainError{Code: CodeNoValidQuestions}
	ErrInvalidState      = &DomainError{Code: CodeInvalidState}
	ErrEmptySelection    = &DomainError{Code: CodeEmptySelection}
	ErrInvalidSelection  = &DomainError{Code: CodeInvalidSelection}
	ErrSessionNotFound   = &DomainError{Code: CodeSessionNotFound}
)

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewInternalError(message string, cause error) *DomainError {
	return NewError(CodeInternal, message, cause)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(CodeInvalidInput, message, nil)
}

func NewContentNotFoundError(message string, cause error) *DomainError {
	return NewError(CodeContentNotFound, message, cause)
}

func NewPromptTooLargeError(contextWindow, required int) *DomainError {
	return NewError(CodePromptTooLarge,
		fmt.Sprintf("prompt needs at least %d tokens but the context window is %d", required, contextWindow), nil).
		WithContext("context_window", contextWindow).
		WithContext("required_tokens", required)
}

// NewTransientProviderError marks a provider failure as retryable (rate limit, timeout, 5xx).
func NewTransientProviderError(cause error) *DomainError {
	return NewError(CodeTransientProvider, "model provider temporarily unavailable", cause)
}

// NewFatalProviderError marks a provider failure as not retryable (auth, malformed request).
func NewFatalProviderError(cause error) *DomainError {
	return NewError(CodeFatalProvider, "model provider rejected the request", cause)
}

func NewNoValidQuestionsError(blocks int) *DomainError {
	return NewError(CodeNoValidQuestions,
		fmt.Sprintf("no valid questions in model response (%d blocks inspected)", blocks), nil).
		WithContext("blocks", blocks)
}

func NewInvalidStateError(message string) *DomainError {
	return NewError(CodeInvalidState, message, nil)
}

func NewEmptySelectionError() *DomainError {
	return NewError(CodeEmptySelection, "at least one option must be selected", nil)
}

func NewInvalidSelectionError(index, optionCount int) *DomainError {
	return NewError(CodeInvalidSelection,
		fmt.Sprintf("option index %d is out of range (question has %d options)", index, optionCount), nil)
}

func NewSessionNotFoundError(id string) *DomainError {
	return NewError(CodeSessionNotFound, fmt.Sprintf("session not found: %s", id), nil)
}

// IsTransient reports whether err is a retryable provider error.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientProvider)
}

// GenerationErrorKind classifies why a generation run stopped.
type GenerationErrorKind string

const (
	KindFatal     GenerationErrorKind = "fatal"
	KindTransient GenerationErrorKind = "transient"
	KindCancelled GenerationErrorKind = "cancelled"
	KindEmpty     GenerationErrorKind = "empty"
)

// GenerationError is returned by the quiz generator when a run aborts.
// Structural errors (content, prompt size) are returned untouched instead.
type GenerationError struct {
	Kind GenerationErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quiz generation %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("quiz generation %s", e.Kind)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ValidationError describes a single invalid request field
type ValidationError struct {
	Field   string      `json:"field"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a list of field errors returned together
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Code: CodeMissingField, Message: "field is required"}
}

func NewInvalidFormatError(field string, value interface{}) ValidationError {
	return ValidationError{Field: field, Code: CodeInvalidFormat, Message: "invalid format", Value: value}
}

func NewOutOfRangeError(field string, value interface{}, min, max int) ValidationError {
	return ValidationError{
		Field:   field,
		Code:    CodeOutOfRange,
		Message: fmt.Sprintf("must be between %d and %d", min, max),
		Value:   value,
	}
}
