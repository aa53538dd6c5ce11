// Package parser turns raw model output into validated questions.
//
// The expected shape is a JSON object holding either one question
//
//	{"question": "...", "options": {"A": "...", "B": "..."}, "answers": ["A"]}
//
// or a list of them under "questions". Options may also be a JSON array, in
// which case they are keyed A, B, C... by position. Anything before the first
// '{' or after the last '}' is ignored, as are <think> blocks.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"quizforge/internal/domain"

	"go.uber.org/zap"
)

// Report describes what a parse inspected.
type Report struct {
	Blocks  int
	Valid   int
	Skipped []string
}

type Parser struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse returns at most expected valid questions from raw (expected <= 0 means
// no limit). Invalid blocks are skipped. If no block is valid it returns a
// NoValidQuestions error.
func (p *Parser) Parse(raw string, expected int) ([]domain.Question, error) {
	questions, _, err := p.ParseWithReport(raw, expected)
	return questions, err
}

// ParseWithReport is Parse plus a record of skipped blocks.
func (p *Parser) ParseWithReport(raw string, expected int) ([]domain.Question, Report, error) {
	var report Report

	blocks, err := splitBlocks(extractJSON(raw))
	if err != nil {
		p.logger.Debug("Model response is not a JSON object", zap.Error(err), zap.String("raw", raw))
		noValid := domain.NewNoValidQuestionsError(0)
		noValid.Cause = err
		return nil, report, noValid
	}
	report.Blocks = len(blocks)

	var questions []domain.Question
	for i, block := range blocks {
		q, err := parseBlock(block)
		if err != nil {
			reason := fmt.Sprintf("block %d: %v", i+1, err)
			report.Skipped = append(report.Skipped, reason)
			p.logger.Debug("Skipping invalid question block", zap.Int("block", i+1), zap.Error(err))
			continue
		}
		report.Valid++
		if expected > 0 && len(questions) >= expected {
			continue
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, report, domain.NewNoValidQuestionsError(report.Blocks)
	}
	return questions, report, nil
}

// extractJSON strips <think> blocks and returns the text between the first
// '{' and the last '}'.
func extractJSON(raw string) string {
	s := raw
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}

	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

func splitBlocks(obj string) ([]json.RawMessage, error) {
	if obj == "" {
		return nil, fmt.Errorf("no JSON object found")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &top); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	list, ok := top["questions"]
	if !ok {
		return []json.RawMessage{json.RawMessage(obj)}, nil
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal(list, &blocks); err != nil {
		return nil, fmt.Errorf("\"questions\" is not a list: %w", err)
	}
	return blocks, nil
}

type rawBlock struct {
	Question string          `json:"question"`
	Options  json.RawMessage `json:"options"`
	Answers  json.RawMessage `json:"answers"`
}

func parseBlock(data json.RawMessage) (domain.Question, error) {
	var block rawBlock
	if err := json.Unmarshal(data, &block); err != nil {
		return domain.Question{}, fmt.Errorf("malformed block: %w", err)
	}
	if strings.TrimSpace(block.Question) == "" {
		return domain.Question{}, fmt.Errorf("empty question")
	}

	keys, texts, err := parseOptions(block.Options)
	if err != nil {
		return domain.Question{}, err
	}

	// Duplicate option texts collapse onto their first occurrence.
	var options []string
	indexByKey := make(map[string]int, len(keys))
	indexByText := make(map[string]int, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return domain.Question{}, fmt.Errorf("option %s is blank", keys[i])
		}
		idx, seen := indexByText[text]
		if !seen {
			idx = len(options)
			options = append(options, text)
			indexByText[text] = idx
		}
		indexByKey[normalizeKey(keys[i])] = idx
	}

	markers, err := parseAnswers(block.Answers)
	if err != nil {
		return domain.Question{}, err
	}
	if len(markers) == 0 {
		return domain.Question{}, fmt.Errorf("no correct answer marked")
	}
	correct := make([]int, 0, len(markers))
	for _, m := range markers {
		idx, ok := indexByKey[normalizeKey(m)]
		if !ok {
			return domain.Question{}, fmt.Errorf("answer %q does not match any option", m)
		}
		correct = append(correct, idx)
	}

	return domain.NewQuestion(block.Question, options, correct)
}

// parseOptions returns option keys and texts in document order.
func parseOptions(data json.RawMessage) ([]string, []string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil, fmt.Errorf("missing options")
	}

	if data[0] == '[' {
		var texts []string
		if err := json.Unmarshal(data, &texts); err != nil {
			return nil, nil, fmt.Errorf("options must be strings: %w", err)
		}
		keys := make([]string, len(texts))
		for i := range texts {
			keys[i] = OptionKey(i)
		}
		return keys, texts, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, nil, fmt.Errorf("options must be an object or a list")
	}
	var keys, texts []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("malformed options: %w", err)
		}
		key, _ := tok.(string)
		var text string
		if err := dec.Decode(&text); err != nil {
			return nil, nil, fmt.Errorf("option %s must be a string: %w", key, err)
		}
		keys = append(keys, key)
		texts = append(texts, text)
	}
	return keys, texts, nil
}

func parseAnswers(data json.RawMessage) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("malformed answers: %w", err)
		}
		return []string{single}, nil
	}
	var markers []string
	if err := json.Unmarshal(data, &markers); err != nil {
		return nil, fmt.Errorf("answers must be a list of option letters: %w", err)
	}
	return markers, nil
}

func normalizeKey(k string) string {
	return strings.ToUpper(strings.TrimSpace(k))
}

// OptionKey returns the letter shown for the option at index i: A, B, ... Z, AA, AB ...
func OptionKey(i int) string {
	key := ""
	for i >= 0 {
		key = string(rune('A'+i%26)) + key
		i = i/26 - 1
	}
	return key
}
