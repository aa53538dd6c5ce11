package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizforge/internal/cost"
	"quizforge/internal/domain"
	"quizforge/internal/dto"
	"quizforge/internal/middleware"
	"quizforge/internal/service"
	"quizforge/internal/session"
	"quizforge/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPlayService struct {
	mock.Mock
}

func (m *MockPlayService) Topics() []domain.Topic {
	args := m.Called()
	return args.Get(0).([]domain.Topic)
}

func (m *MockPlayService) Estimate(spec domain.QuizSpec, pricing *cost.Pricing) (*service.Estimate, error) {
	args := m.Called(spec, pricing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Estimate), args.Error(1)
}

func (m *MockPlayService) StartQuiz(ctx context.Context, spec domain.QuizSpec) (*domain.SessionSnapshot, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionSnapshot), args.Error(1)
}

func (m *MockPlayService) GetSession(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionSnapshot), args.Error(1)
}

func (m *MockPlayService) CurrentQuestion(ctx context.Context, sessionID string) (*service.CurrentQuestion, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CurrentQuestion), args.Error(1)
}

func (m *MockPlayService) SubmitAnswer(ctx context.Context, sessionID string, chosen []int) (*domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID, chosen)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionSnapshot), args.Error(1)
}

func (m *MockPlayService) EndSession(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionSnapshot), args.Error(1)
}

func (m *MockPlayService) Score(ctx context.Context, sessionID string) (*session.Score, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Score), args.Error(1)
}

func setupApp(svc service.PlayService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	RegisterRoutes(app, NewQuizHandler(svc))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func mustQuestion(t *testing.T, text string, options []string, correct ...int) domain.Question {
	t.Helper()
	q, err := domain.NewQuestion(text, options, correct)
	require.NoError(t, err)
	return q
}

func sampleSnapshot(t *testing.T, id string) *domain.SessionSnapshot {
	price := domain.Money(2_000_000)
	return &domain.SessionSnapshot{
		ID: id,
		Quiz: domain.Quiz{
			ID: util.NewULID(),
			Questions: []domain.Question{
				mustQuestion(t, "Which port does HTTPS use?", []string{"80", "443", "22"}, 1),
			},
			RequestedCount: 2,
			Partial:        true,
			GeneratedAt:    time.Now(),
			EstimatedCost:  &price,
		},
		State:     domain.SessionNotStarted,
		UpdatedAt: time.Now(),
	}
}

func TestHealth(t *testing.T) {
	app := setupApp(new(MockPlayService))

	resp, body := doRequest(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestListTopics(t *testing.T) {
	svc := new(MockPlayService)
	svc.On("Topics").Return([]domain.Topic{
		{ID: "networking", DisplayName: "Networking", SourceText: "12345678"},
		{ID: "crypto", DisplayName: "Crypto", SourceText: "abc"},
	})
	app := setupApp(svc)

	resp, body := doRequest(t, app, http.MethodGet, "/api/topics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got dto.TopicsResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Topics, 2)
	assert.Equal(t, "networking", got.Topics[0].ID)
	assert.Equal(t, 2, got.Topics[0].Tokens)
	assert.Equal(t, 1, got.Topics[1].Tokens)
	svc.AssertExpectations(t)
}

func TestEstimate(t *testing.T) {
	spec := domain.NewQuizSpec([]string{"networking"}, 3, domain.AnswerModeSingle, domain.GenerationModeBatched)
	estimate := &service.Estimate{
		Breakdown: cost.Breakdown{Prompts: 1, InputTokens: 1000, OutputTokens: 1200, InputCost: 500_000, OutputCost: 1_800_000, Total: 2_300_000},
	}

	t.Run("request pricing", func(t *testing.T) {
		svc := new(MockPlayService)
		svc.On("Estimate", spec, mock.MatchedBy(func(p *cost.Pricing) bool {
			return p != nil && p.InputPerToken == cost.PricePerMillion(0.5) && p.OutputPerToken == cost.PricePerMillion(1.5)
		})).Return(estimate, nil)
		app := setupApp(svc)

		in, out := 0.5, 1.5
		resp, body := doRequest(t, app, http.MethodPost, "/api/estimate", dto.EstimateRequest{
			QuizSpecRequest:  dto.QuizSpecRequest{TopicIDs: []string{"networking"}, QuestionCount: 3, AnswerMode: "single", GenerationMode: "batched"},
			InputPerMillion:  &in,
			OutputPerMillion: &out,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var got dto.EstimateResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "$0.002300", got.Total)
		assert.Equal(t, int64(2_300_000), got.TotalNanoUSD)
		assert.Equal(t, 1200, got.OutputTokens)
		svc.AssertExpectations(t)
	})

	t.Run("configured pricing", func(t *testing.T) {
		svc := new(MockPlayService)
		svc.On("Estimate", spec, (*cost.Pricing)(nil)).Return(estimate, nil)
		app := setupApp(svc)

		resp, _ := doRequest(t, app, http.MethodPost, "/api/estimate", dto.QuizSpecRequest{
			TopicIDs: []string{"networking"}, QuestionCount: 3, AnswerMode: "single", GenerationMode: "batched",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	t.Run("validation errors", func(t *testing.T) {
		svc := new(MockPlayService)
		app := setupApp(svc)

		negative := -1.0
		resp, body := doRequest(t, app, http.MethodPost, "/api/estimate", dto.EstimateRequest{
			QuizSpecRequest: dto.QuizSpecRequest{QuestionCount: 0, AnswerMode: "sometimes", GenerationMode: "batched"},
			InputPerMillion: &negative,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var got middleware.ValidationErrorResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, string(domain.CodeValidation), got.Code)
		assert.Len(t, got.Errors, 4)
		svc.AssertNotCalled(t, "Estimate", mock.Anything, mock.Anything)
	})
}

func TestStartQuiz(t *testing.T) {
	req := dto.QuizSpecRequest{TopicIDs: []string{"networking", "crypto"}, QuestionCount: 2, AnswerMode: "mixed", GenerationMode: "single"}
	spec := domain.NewQuizSpec(req.TopicIDs, 2, domain.AnswerModeMixed, domain.GenerationModeSingleCall)

	t.Run("created", func(t *testing.T) {
		id := util.NewULID()
		svc := new(MockPlayService)
		svc.On("StartQuiz", mock.Anything, spec).Return(sampleSnapshot(t, id), nil)
		app := setupApp(svc)

		resp, body := doRequest(t, app, http.MethodPost, "/api/quizzes", req)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		var got dto.SessionResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "not_started", got.State)
		assert.Equal(t, 1, got.QuestionCount)
		assert.Equal(t, 2, got.RequestedCount)
		assert.True(t, got.Partial)
		assert.Equal(t, "$0.002000", got.EstimatedCost)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"transient", &domain.GenerationError{Kind: domain.KindTransient, Err: domain.NewTransientProviderError(errors.New("429"))}, http.StatusServiceUnavailable, string(domain.CodeTransientProvider)},
		{"fatal", &domain.GenerationError{Kind: domain.KindFatal, Err: domain.NewFatalProviderError(errors.New("401"))}, http.StatusBadGateway, string(domain.CodeFatalProvider)},
		{"empty", &domain.GenerationError{Kind: domain.KindEmpty, Err: domain.NewNoValidQuestionsError(0)}, http.StatusBadGateway, string(domain.CodeNoValidQuestions)},
		{"cancelled", &domain.GenerationError{Kind: domain.KindCancelled, Err: context.Canceled}, http.StatusRequestTimeout, "GENERATION_cancelled"},
		{"prompt too large", domain.NewPromptTooLargeError(512, 900), http.StatusUnprocessableEntity, string(domain.CodePromptTooLarge)},
		{"unknown topic", domain.NewContentNotFoundError("unknown topic: crypto", nil), http.StatusNotFound, string(domain.CodeContentNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPlayService)
			svc.On("StartQuiz", mock.Anything, spec).Return(nil, tt.err)
			app := setupApp(svc)

			resp, body := doRequest(t, app, http.MethodPost, "/api/quizzes", req)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var got middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestStartQuiz_InvalidBody(t *testing.T) {
	app := setupApp(new(MockPlayService))

	req := httptest.NewRequest(http.MethodPost, "/api/quizzes", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionRoutes_InvalidID(t *testing.T) {
	svc := new(MockPlayService)
	app := setupApp(svc)

	resp, body := doRequest(t, app, http.MethodGet, "/api/sessions/not-a-ulid", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var got middleware.ValidationErrorResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "session_id", got.Errors[0].Field)
	svc.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestGetSession_NotFound(t *testing.T) {
	id := util.NewULID()
	svc := new(MockPlayService)
	svc.On("GetSession", mock.Anything, id).Return(nil, domain.NewSessionNotFoundError(id))
	app := setupApp(svc)

	resp, _ := doRequest(t, app, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetCurrentQuestion(t *testing.T) {
	id := util.NewULID()
	svc := new(MockPlayService)
	svc.On("CurrentQuestion", mock.Anything, id).Return(&service.CurrentQuestion{
		SessionID: id,
		Index:     0,
		Total:     2,
		Question:  mustQuestion(t, "Pick the symmetric ciphers", []string{"AES", "RSA", "ChaCha20"}, 0, 2),
	}, nil)
	app := setupApp(svc)

	resp, body := doRequest(t, app, http.MethodGet, "/api/sessions/"+id+"/question", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got dto.QuestionResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "multiple", got.QuestionType)
	assert.Equal(t, []dto.OptionResponse{{Key: "A", Text: "AES"}, {Key: "B", Text: "RSA"}, {Key: "C", Text: "ChaCha20"}}, got.Options)
	assert.NotContains(t, string(body), "correct")
}

func TestSubmitAnswer(t *testing.T) {
	id := util.NewULID()

	t.Run("accepted", func(t *testing.T) {
		snapshot := sampleSnapshot(t, id)
		snapshot.State = domain.SessionCompleted
		snapshot.Answers = []domain.AnswerRecord{{QuestionIndex: 0, ChosenIndices: []int{1}}}

		svc := new(MockPlayService)
		svc.On("SubmitAnswer", mock.Anything, id, []int{1}).Return(snapshot, nil)
		app := setupApp(svc)

		resp, body := doRequest(t, app, http.MethodPost, "/api/sessions/"+id+"/answers", dto.AnswerRequest{Chosen: []int{1}})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got dto.SessionResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "completed", got.State)
		assert.Equal(t, 1, got.Answered)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty selection", domain.NewEmptySelectionError(), http.StatusBadRequest},
		{"out of range", domain.NewInvalidSelectionError(7, 3), http.StatusBadRequest},
		{"completed session", domain.NewInvalidStateError("session is completed"), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPlayService)
			svc.On("SubmitAnswer", mock.Anything, id, mock.Anything).Return(nil, tt.err)
			app := setupApp(svc)

			resp, _ := doRequest(t, app, http.MethodPost, "/api/sessions/"+id+"/answers", dto.AnswerRequest{Chosen: []int{7}})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestEndSessionAndScore(t *testing.T) {
	id := util.NewULID()
	snapshot := sampleSnapshot(t, id)
	snapshot.State = domain.SessionCompleted
	q := snapshot.Quiz.Questions[0]

	svc := new(MockPlayService)
	svc.On("EndSession", mock.Anything, id).Return(snapshot, nil)
	svc.On("Score", mock.Anything, id).Return(&session.Score{
		Correct: 0,
		Total:   1,
		PerQuestion: []session.QuestionResult{
			{Index: 0, Question: q},
		},
	}, nil)
	app := setupApp(svc)

	resp, _ := doRequest(t, app, http.MethodPost, "/api/sessions/"+id+"/end", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doRequest(t, app, http.MethodGet, "/api/sessions/"+id+"/score", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got dto.ScoreResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 0, got.Correct)
	assert.Equal(t, 1, got.Total)
	require.Len(t, got.Questions, 1)
	assert.False(t, got.Questions[0].Answered)
	assert.Equal(t, []int{1}, got.Questions[0].CorrectOptionIndices)
	svc.AssertExpectations(t)
}
