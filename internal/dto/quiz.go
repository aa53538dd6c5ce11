package dto

import (
	"quizforge/internal/cost"
	"quizforge/internal/domain"
	"quizforge/internal/parser"
	"quizforge/internal/service"
	"quizforge/internal/session"
)

// TopicResponse is one available topic
type TopicResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tokens      int    `json:"estimated_tokens"`
}

// TopicsResponse lists the loaded topics
type TopicsResponse struct {
	Topics []TopicResponse `json:"topics"`
}

// QuizSpecRequest is the quiz setup sent by the client
type QuizSpecRequest struct {
	TopicIDs       []string `json:"topic_ids"`
	QuestionCount  int      `json:"question_count"`
	AnswerMode     string   `json:"answer_mode"`
	GenerationMode string   `json:"generation_mode"`
}

// EstimateRequest asks for a cost estimate. Prices are USD per one million
// tokens; when both are omitted the server's configured pricing is used.
type EstimateRequest struct {
	QuizSpecRequest
	InputPerMillion           *float64 `json:"input_per_million,omitempty"`
	OutputPerMillion          *float64 `json:"output_per_million,omitempty"`
	ResponseTokensPerQuestion int      `json:"response_tokens_per_question,omitempty"`
}

// HasPricing reports whether the request carries its own prices.
func (r EstimateRequest) HasPricing() bool {
	return r.InputPerMillion != nil || r.OutputPerMillion != nil
}

// Pricing converts the request prices. Missing prices count as zero.
func (r EstimateRequest) Pricing() *cost.Pricing {
	if !r.HasPricing() {
		return nil
	}
	var in, out float64
	if r.InputPerMillion != nil {
		in = *r.InputPerMillion
	}
	if r.OutputPerMillion != nil {
		out = *r.OutputPerMillion
	}
	return &cost.Pricing{
		InputPerToken:             cost.PricePerMillion(in),
		OutputPerToken:            cost.PricePerMillion(out),
		ResponseTokensPerQuestion: r.ResponseTokensPerQuestion,
	}
}

// EstimateResponse is an itemized cost estimate
type EstimateResponse struct {
	Prompts      int                              `json:"prompts"`
	InputTokens  int                              `json:"input_tokens"`
	OutputTokens int                              `json:"output_tokens"`
	InputCost    string                           `json:"input_cost"`
	OutputCost   string                           `json:"output_cost"`
	Total        string                           `json:"total"`
	TotalNanoUSD int64                            `json:"total_nano_usd"`
	Free         bool                             `json:"free"`
	Warnings     []domain.ContentTruncatedWarning `json:"warnings,omitempty"`
}

func NewEstimateResponse(e *service.Estimate) EstimateResponse {
	return EstimateResponse{
		Prompts:      e.Prompts,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		InputCost:    e.InputCost.String(),
		OutputCost:   e.OutputCost.String(),
		Total:        e.Total.String(),
		TotalNanoUSD: int64(e.Total),
		Free:         e.Free,
		Warnings:     e.Warnings,
	}
}

// SessionResponse describes a quiz session without revealing answers
type SessionResponse struct {
	ID             string                           `json:"id"`
	QuizID         string                           `json:"quiz_id"`
	State          string                           `json:"state"`
	QuestionCount  int                              `json:"question_count"`
	RequestedCount int                              `json:"requested_count"`
	Answered       int                              `json:"answered"`
	Partial        bool                             `json:"partial"`
	EstimatedCost  string                           `json:"estimated_cost,omitempty"`
	Warnings       []domain.ContentTruncatedWarning `json:"warnings,omitempty"`
}

func NewSessionResponse(s *domain.SessionSnapshot) SessionResponse {
	resp := SessionResponse{
		ID:             s.ID,
		QuizID:         s.Quiz.ID,
		State:          string(s.State),
		QuestionCount:  len(s.Quiz.Questions),
		RequestedCount: s.Quiz.RequestedCount,
		Answered:       len(s.Answers),
		Partial:        s.Quiz.Partial,
		Warnings:       s.Quiz.Warnings,
	}
	if s.Quiz.EstimatedCost != nil {
		resp.EstimatedCost = s.Quiz.EstimatedCost.String()
	}
	return resp
}

// OptionResponse is one answer option with its display key (A, B, ...)
type OptionResponse struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

func newOptions(options []string) []OptionResponse {
	out := make([]OptionResponse, len(options))
	for i, text := range options {
		out[i] = OptionResponse{Key: parser.OptionKey(i), Text: text}
	}
	return out
}

// QuestionResponse is the question a session is waiting on
type QuestionResponse struct {
	SessionID    string           `json:"session_id"`
	Index        int              `json:"index"`
	Total        int              `json:"total"`
	Text         string           `json:"text"`
	QuestionType string           `json:"question_type"`
	Options      []OptionResponse `json:"options"`
}

func NewQuestionResponse(q *service.CurrentQuestion) QuestionResponse {
	return QuestionResponse{
		SessionID:    q.SessionID,
		Index:        q.Index,
		Total:        q.Total,
		Text:         q.Question.Text,
		QuestionType: string(q.Question.Type),
		Options:      newOptions(q.Question.Options),
	}
}

// AnswerRequest carries the chosen option indices for the current question
type AnswerRequest struct {
	Chosen []int `json:"chosen"`
}

// QuestionResultResponse is one row of the results breakdown
type QuestionResultResponse struct {
	Index                int              `json:"index"`
	Text                 string           `json:"text"`
	Options              []OptionResponse `json:"options"`
	CorrectOptionIndices []int            `json:"correct_option_indices"`
	ChosenIndices        []int            `json:"chosen_indices,omitempty"`
	Answered             bool             `json:"answered"`
	IsCorrect            bool             `json:"is_correct"`
}

// ScoreResponse is the final score of a completed session
type ScoreResponse struct {
	Correct   int                      `json:"correct"`
	Total     int                      `json:"total"`
	Questions []QuestionResultResponse `json:"questions"`
}

func NewScoreResponse(s *session.Score) ScoreResponse {
	resp := ScoreResponse{
		Correct:   s.Correct,
		Total:     s.Total,
		Questions: make([]QuestionResultResponse, 0, len(s.PerQuestion)),
	}
	for _, r := range s.PerQuestion {
		row := QuestionResultResponse{
			Index:                r.Index,
			Text:                 r.Question.Text,
			Options:              newOptions(r.Question.Options),
			CorrectOptionIndices: r.Question.CorrectOptionIndices,
			IsCorrect:            r.IsCorrect,
		}
		if r.Record != nil {
			row.Answered = true
			row.ChosenIndices = r.Record.ChosenIndices
		}
		resp.Questions = append(resp.Questions, row)
	}
	return resp
}
