// Package cost estimates what a generation run will cost before it is issued.
package cost

import (
	"math"
	"unicode/utf8"

	"quizforge/internal/config"
	"quizforge/internal/domain"
)

// CharsPerToken is the fixed character-to-token ratio used for every estimate.
const CharsPerToken = 4

// ResponseTokensPerQuestion is the expected completion size of one question.
const ResponseTokensPerQuestion = 400

// EstimateTokens approximates the token count of text, rounding up.
func EstimateTokens(text string) int {
	runes := utf8.RuneCountInString(text)
	return (runes + CharsPerToken - 1) / CharsPerToken
}

// Estimate returns the cost of sending prompts and receiving
// responseTokensPerPrompt tokens back for each of them.
// Prices are per token.
func Estimate(prompts []string, responseTokensPerPrompt int, inPrice, outPrice domain.Money) domain.Money {
	var inputTokens int64
	for _, p := range prompts {
		inputTokens += int64(EstimateTokens(p))
	}
	outputTokens := int64(len(prompts)) * int64(responseTokensPerPrompt)
	return domain.Money(inputTokens)*inPrice + domain.Money(outputTokens)*outPrice
}

// PricePerMillion converts a USD price per one million tokens into a per-token
// price, rounded to the nearest nano-dollar.
func PricePerMillion(usd float64) domain.Money {
	return domain.Money(math.Round(usd * float64(domain.USD) / 1_000_000))
}

// Pricing holds per-token prices and the completion size assumed per question.
type Pricing struct {
	InputPerToken             domain.Money
	OutputPerToken            domain.Money
	ResponseTokensPerQuestion int
}

// PricingFromConfig converts the configured per-million prices. It returns nil
// when manual pricing is disabled.
func PricingFromConfig(cfg config.PricingConfig) *Pricing {
	if !cfg.Enabled {
		return nil
	}
	respTokens := cfg.ResponseTokensPerQuestion
	if respTokens <= 0 {
		respTokens = ResponseTokensPerQuestion
	}
	return &Pricing{
		InputPerToken:             PricePerMillion(cfg.InputPerMillion),
		OutputPerToken:            PricePerMillion(cfg.OutputPerMillion),
		ResponseTokensPerQuestion: respTokens,
	}
}

// Free reports whether both prices are zero.
func (p Pricing) Free() bool {
	return p.InputPerToken == 0 && p.OutputPerToken == 0
}

// Breakdown is an itemized estimate for a set of built prompts.
type Breakdown struct {
	Prompts      int          `json:"prompts"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	InputCost    domain.Money `json:"input_cost"`
	OutputCost   domain.Money `json:"output_cost"`
	Total        domain.Money `json:"total"`
	Free         bool         `json:"free"`
}

// EstimatePrompts estimates built prompts. Each prompt is expected to return
// ResponseTokensPerQuestion tokens for every question slot it asks for, so a
// batched prompt of N questions counts N times the per-question response.
func EstimatePrompts(prompts []domain.Prompt, pricing Pricing) Breakdown {
	perQuestion := pricing.ResponseTokensPerQuestion
	if perQuestion <= 0 {
		perQuestion = ResponseTokensPerQuestion
	}

	b := Breakdown{Prompts: len(prompts), Free: pricing.Free()}
	for _, p := range prompts {
		in := EstimateTokens(p.Text)
		out := perQuestion * len(p.Slots)
		b.InputTokens += in
		b.OutputTokens += out
		b.InputCost += Estimate([]string{p.Text}, 0, pricing.InputPerToken, 0)
		b.OutputCost += domain.Money(out) * pricing.OutputPerToken
	}
	b.Total = b.InputCost + b.OutputCost
	return b
}
