package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("calling model: %w", NewTransientProviderError(errors.New("429 too many requests")))

	assert.True(t, errors.Is(err, ErrTransientProvider))
	assert.False(t, errors.Is(err, ErrFatalProvider))
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(NewFatalProviderError(errors.New("401"))))
	assert.False(t, IsTransient(nil))
}

func TestDomainError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewContentNotFoundError("content root unreadable", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrContentNotFound)
	assert.Equal(t, "content root unreadable: disk on fire", err.Error())
}

func TestDomainError_MarshalJSON(t *testing.T) {
	err := NewPromptTooLargeError(100, 450)
	data, mErr := json.Marshal(err)
	require.NoError(t, mErr)

	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, string(CodePromptTooLarge), out["code"])
	assert.Contains(t, out["message"], "450")
	assert.Equal(t, 100, err.Context["context_window"])
}

func TestGenerationError(t *testing.T) {
	inner := NewFatalProviderError(errors.New("invalid api key"))
	err := error(&GenerationError{Kind: KindFatal, Err: inner})

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, KindFatal, genErr.Kind)
	assert.ErrorIs(t, err, ErrFatalProvider)
	assert.Equal(t, "quiz generation cancelled", (&GenerationError{Kind: KindCancelled}).Error())
}
