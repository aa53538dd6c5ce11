package parser

import (
	"bytes"
	"encoding/json"

	"quizforge/internal/domain"
)

type orderedOptions []string

func (o orderedOptions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, text := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(OptionKey(i))
		val, err := json.Marshal(text)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type wireQuestion struct {
	Question string         `json:"question"`
	Options  orderedOptions `json:"options"`
	Answers  []string       `json:"answers"`
}

type wireQuiz struct {
	Questions []wireQuestion `json:"questions"`
}

// Format serializes questions in the shape Parse accepts.
func Format(questions []domain.Question) string {
	out := wireQuiz{Questions: make([]wireQuestion, 0, len(questions))}
	for _, q := range questions {
		answers := make([]string, len(q.CorrectOptionIndices))
		for i, idx := range q.CorrectOptionIndices {
			answers[i] = OptionKey(idx)
		}
		out.Questions = append(out.Questions, wireQuestion{
			Question: q.Text,
			Options:  orderedOptions(q.Options),
			Answers:  answers,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		// strings and string slices always marshal
		panic(err)
	}
	return string(data)
}
