package prompt

import (
	"fmt"
	"strings"

	"quizforge/internal/domain"
)

const instructionTemplate = `You are an expert certification exam question author. Create %s that mirror the style and complexity of a professional certification exam.
Your entire response, including the questions, options, and answers, must be derived SOLELY from the provided context.

Question style guidelines:
1. Scenario-based: present a realistic problem a practitioner might face.
2. Application of knowledge: test how concepts are applied, not definition recall.
3. Plausible options: every answer choice must be plausible and relevant to the scenario.
4. Acronyms: use acronyms defined in the context where a real exam would, never forced.

Answer requirements:
%s

Output format:
Your response MUST be a single, valid JSON object without any extra text or markdown. %s
%s
`

const contextTemplate = `
Context:
---
%s
---
`

const singleExample = `{
  "question": "...",
  "options": {"A": "...", "B": "...", "C": "...", "D": "..."},
  "answers": ["A"]
}`

const batchExample = `{
  "questions": [
    {
      "question": "...",
      "options": {"A": "...", "B": "...", "C": "...", "D": "..."},
      "answers": ["A"]
    }
  ]
}`

func requirement(slot domain.AnswerMode) string {
	switch slot {
	case domain.AnswerModeSingle:
		return "exactly one correct answer"
	case domain.AnswerModeMultiple:
		return "two or more correct answers (list every correct letter in \"answers\")"
	default:
		return "either one or several correct answers"
	}
}

// render produces the prompt text for the given slots and topic excerpts.
// excerpts[i] belongs to topics[i].
func render(slots []domain.AnswerMode, topics []domain.Topic, excerpts []string) string {
	var count, structure, example string
	var reqs strings.Builder
	if len(slots) == 1 {
		count = "exactly one question"
		structure = "The JSON object must have the structure shown below."
		example = singleExample
		fmt.Fprintf(&reqs, "The question must have %s.", requirement(slots[0]))
	} else {
		count = fmt.Sprintf("exactly %d questions", len(slots))
		structure = `The JSON object must have a single key "questions" holding the list of questions, in the order given above.`
		example = batchExample
		for i, slot := range slots {
			if i > 0 {
				reqs.WriteByte('\n')
			}
			fmt.Fprintf(&reqs, "Question %d: %s.", i+1, requirement(slot))
		}
	}

	sections := make([]string, 0, len(topics))
	for i, topic := range topics {
		sections = append(sections, fmt.Sprintf("### %s\n%s", topic.DisplayName, excerpts[i]))
	}

	return fmt.Sprintf(instructionTemplate, count, reqs.String(), structure, example) +
		fmt.Sprintf(contextTemplate, strings.Join(sections, "\n\n"))
}
