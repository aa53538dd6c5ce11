package handler

import (
	"quizforge/internal/cost"
	"quizforge/internal/domain"
	"quizforge/internal/dto"
	"quizforge/internal/logger"
	"quizforge/internal/middleware"
	"quizforge/internal/service"
	"quizforge/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	service   service.PlayService
	validator *validation.Validator
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(service service.PlayService) *QuizHandler {
	return &QuizHandler{
		service:   service,
		validator: validation.NewValidator(),
	}
}

// ListTopics godoc
// @Summary List study topics
// @Description Returns every topic loaded from the content root
// @Tags topics
// @Produce json
// @Success 200 {object} dto.TopicsResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /topics [get]
func (h *QuizHandler) ListTopics(c *fiber.Ctx) error {
	topics := h.service.Topics()
	resp := dto.TopicsResponse{Topics: make([]dto.TopicResponse, 0, len(topics))}
	for _, t := range topics {
		resp.Topics = append(resp.Topics, dto.TopicResponse{
			ID:          t.ID,
			DisplayName: t.DisplayName,
			Tokens:      cost.EstimateTokens(t.SourceText),
		})
	}
	return c.JSON(resp)
}

// Estimate godoc
// @Summary Estimate quiz cost
// @Description Prices the prompts a quiz request would send without calling the model
// @Tags quiz
// @Accept json
// @Produce json
// @Param request body dto.EstimateRequest true "Quiz request with optional prices"
// @Success 200 {object} dto.EstimateResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /estimate [post]
func (h *QuizHandler) Estimate(c *fiber.Ctx) error {
	var req dto.EstimateRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}

	spec, errs := h.validator.ValidateQuizSpec(req.TopicIDs, req.QuestionCount, req.AnswerMode, req.GenerationMode)
	errs = append(errs, h.validator.ValidatePricing(req.InputPerMillion, req.OutputPerMillion)...)
	if len(errs) > 0 {
		return errs
	}

	estimate, err := h.service.Estimate(spec, req.Pricing())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewEstimateResponse(estimate))
}

// StartQuiz godoc
// @Summary Generate a quiz and start a session
// @Description Blocks until generation finishes. Answers are not included in the response.
// @Tags quiz
// @Accept json
// @Produce json
// @Param request body dto.QuizSpecRequest true "Quiz request"
// @Success 201 {object} dto.SessionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 408 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Router /quizzes [post]
func (h *QuizHandler) StartQuiz(c *fiber.Ctx) error {
	var req dto.QuizSpecRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}

	spec, errs := h.validator.ValidateQuizSpec(req.TopicIDs, req.QuestionCount, req.AnswerMode, req.GenerationMode)
	if len(errs) > 0 {
		return errs
	}

	snapshot, err := h.service.StartQuiz(c.UserContext(), spec)
	if err != nil {
		logger.Get().Error("Failed to start quiz",
			zap.Error(err),
			zap.Strings("topics", spec.TopicIDs),
			zap.Int("questions", spec.QuestionCount),
		)
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewSessionResponse(snapshot))
}

// GetSession godoc
// @Summary Get a session
// @Tags session
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id} [get]
func (h *QuizHandler) GetSession(c *fiber.Ctx) error {
	snapshot, err := h.service.GetSession(c.UserContext(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSessionResponse(snapshot))
}

// GetCurrentQuestion godoc
// @Summary Get the current question
// @Description Starts the session on first call
// @Tags session
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.QuestionResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /sessions/{id}/question [get]
func (h *QuizHandler) GetCurrentQuestion(c *fiber.Ctx) error {
	q, err := h.service.CurrentQuestion(c.UserContext(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewQuestionResponse(q))
}

// SubmitAnswer godoc
// @Summary Answer the current question
// @Tags session
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body dto.AnswerRequest true "Chosen option indexes"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /sessions/{id}/answers [post]
func (h *QuizHandler) SubmitAnswer(c *fiber.Ctx) error {
	var req dto.AnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}

	snapshot, err := h.service.SubmitAnswer(c.UserContext(), sessionID(c), req.Chosen)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSessionResponse(snapshot))
}

// EndSession godoc
// @Summary End a session early
// @Tags session
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id}/end [post]
func (h *QuizHandler) EndSession(c *fiber.Ctx) error {
	snapshot, err := h.service.EndSession(c.UserContext(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSessionResponse(snapshot))
}

// GetScore godoc
// @Summary Get the score of a completed session
// @Tags session
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.ScoreResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /sessions/{id}/score [get]
func (h *QuizHandler) GetScore(c *fiber.Ctx) error {
	score, err := h.service.Score(c.UserContext(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewScoreResponse(score))
}

func sessionID(c *fiber.Ctx) string {
	if id, ok := c.Locals(middleware.SessionIDLocal).(string); ok {
		return id
	}
	return c.Params("id")
}
