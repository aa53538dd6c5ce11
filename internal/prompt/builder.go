// Package prompt turns a quiz request and its topics into model prompts that
// fit the model's context window.
package prompt

import (
	"fmt"

	"quizforge/internal/cost"
	"quizforge/internal/domain"

	"github.com/samber/lo"
)

// MinExcerptTokens is the smallest amount of topic text worth sending.
// A prompt whose budget cannot hold this much, or the whole text of its
// topics when that is shorter, is rejected.
const MinExcerptTokens = 32

// Result holds the prompts for one quiz request in issue order.
type Result struct {
	Prompts  []domain.Prompt
	Warnings []domain.ContentTruncatedWarning
}

// Builder builds prompts. The response reserve of every prompt is
// responseTokensPerQuestion times the number of questions it asks for.
type Builder struct {
	responseTokensPerQuestion int
}

func NewBuilder(responseTokensPerQuestion int) *Builder {
	if responseTokensPerQuestion <= 0 {
		responseTokensPerQuestion = cost.ResponseTokensPerQuestion
	}
	return &Builder{responseTokensPerQuestion: responseTokensPerQuestion}
}

// SlotPolicies returns the answer-type policy of every question slot.
// Mixed quizzes alternate single and multiple, starting with single.
func SlotPolicies(spec domain.QuizSpec) []domain.AnswerMode {
	slots := make([]domain.AnswerMode, spec.QuestionCount)
	for i := range slots {
		switch spec.AnswerMode {
		case domain.AnswerModeMixed:
			if i%2 == 0 {
				slots[i] = domain.AnswerModeSingle
			} else {
				slots[i] = domain.AnswerModeMultiple
			}
		default:
			slots[i] = spec.AnswerMode
		}
	}
	return slots
}

// Build returns one prompt for a batched spec, or one prompt per question for
// single-call generation. Single-call prompts take the selected topics in
// round-robin order.
func (b *Builder) Build(spec domain.QuizSpec, topics map[string]domain.Topic, contextWindow int) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	selected := make([]domain.Topic, 0, len(spec.TopicIDs))
	for _, id := range spec.TopicIDs {
		topic, ok := topics[id]
		if !ok {
			return nil, domain.NewContentNotFoundError(fmt.Sprintf("unknown topic %q", id), nil)
		}
		selected = append(selected, topic)
	}

	slots := SlotPolicies(spec)
	result := &Result{}

	switch spec.GenerationMode {
	case domain.GenerationModeBatched:
		p, warnings, err := b.buildPrompt(slots, selected, contextWindow)
		if err != nil {
			return nil, err
		}
		result.Prompts = append(result.Prompts, p)
		result.Warnings = warnings
	default:
		for i, slot := range slots {
			topic := selected[i%len(selected)]
			p, warnings, err := b.buildPrompt([]domain.AnswerMode{slot}, []domain.Topic{topic}, contextWindow)
			if err != nil {
				return nil, err
			}
			result.Prompts = append(result.Prompts, p)
			result.Warnings = append(result.Warnings, warnings...)
		}
		result.Warnings = lo.UniqBy(result.Warnings, func(w domain.ContentTruncatedWarning) string {
			return w.TopicID
		})
	}
	return result, nil
}

func (b *Builder) buildPrompt(slots []domain.AnswerMode, topics []domain.Topic, contextWindow int) (domain.Prompt, []domain.ContentTruncatedWarning, error) {
	overhead := cost.EstimateTokens(render(slots, topics, make([]string, len(topics))))
	reserve := b.responseTokensPerQuestion * len(slots)
	budget := contextWindow - overhead - reserve
	floor := min(MinExcerptTokens, lo.SumBy(topics, func(t domain.Topic) int { return cost.EstimateTokens(t.SourceText) }))
	if budget < floor {
		return domain.Prompt{}, nil, domain.NewPromptTooLargeError(contextWindow, overhead+reserve+floor)
	}

	excerpts, warnings := fit(topics, budget)

	kept := make([]domain.Topic, 0, len(topics))
	keptExcerpts := make([]string, 0, len(topics))
	for i, topic := range topics {
		if excerpts[i] == "" {
			continue
		}
		kept = append(kept, topic)
		keptExcerpts = append(keptExcerpts, excerpts[i])
	}

	return domain.Prompt{
		Text:     render(slots, kept, keptExcerpts),
		Slots:    slots,
		TopicIDs: lo.Map(kept, func(t domain.Topic, _ int) string { return t.ID }),
	}, warnings, nil
}

// fit trims topic text until the estimated total fits budget. Text is dropped
// from the end of the first topic, then the next, in order.
func fit(topics []domain.Topic, budget int) ([]string, []domain.ContentTruncatedWarning) {
	excerpts := make([]string, len(topics))
	tokens := make([]int, len(topics))
	total := 0
	for i, topic := range topics {
		excerpts[i] = topic.SourceText
		tokens[i] = cost.EstimateTokens(topic.SourceText)
		total += tokens[i]
	}

	var warnings []domain.ContentTruncatedWarning
	excess := total - budget
	for i := 0; i < len(topics) && excess > 0; i++ {
		drop := min(excess, tokens[i])
		if drop == 0 {
			continue
		}
		excerpts[i] = truncateTokens(excerpts[i], tokens[i]-drop)
		excess -= drop
		warnings = append(warnings, domain.ContentTruncatedWarning{TopicID: topics[i].ID, DroppedTokens: drop})
	}
	return excerpts, warnings
}

func truncateTokens(text string, keep int) string {
	runes := []rune(text)
	n := keep * cost.CharsPerToken
	if n >= len(runes) {
		return text
	}
	return string(runes[:n])
}
