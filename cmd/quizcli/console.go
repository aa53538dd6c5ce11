package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"quizforge/internal/cost"
	"quizforge/internal/domain"
	"quizforge/internal/parser"
	"quizforge/internal/service"
	"quizforge/internal/session"

	"github.com/samber/lo"
)

type console struct {
	in  *bufio.Scanner
	out io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewScanner(in), out: out}
}

// parseChoice reads option keys ("A", "a,c", "B D", "AC") or 1-based numbers
// into zero-based indices. Range checks are left to the session.
func parseChoice(input string) ([]int, error) {
	tokens := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})

	var chosen []int
	for _, tok := range tokens {
		if n, err := strconv.Atoi(tok); err == nil {
			if n < 1 {
				return nil, fmt.Errorf("option numbers start at 1, got %d", n)
			}
			chosen = append(chosen, n-1)
			continue
		}
		for _, r := range strings.ToUpper(tok) {
			if r < 'A' || r > 'Z' {
				return nil, fmt.Errorf("unrecognized option %q", tok)
			}
			chosen = append(chosen, int(r-'A'))
		}
	}
	return chosen, nil
}

func formatKeys(indices []int) string {
	return strings.Join(lo.Map(indices, func(i int, _ int) string { return parser.OptionKey(i) }), ", ")
}

func (c *console) printTopics(topics []domain.Topic) {
	fmt.Fprintln(c.out, "Available topics:")
	for _, t := range topics {
		fmt.Fprintf(c.out, "  %-32s %s (~%d tokens)\n", t.ID, t.DisplayName, cost.EstimateTokens(t.SourceText))
	}
}

func (c *console) printEstimate(e *service.Estimate) {
	if e.Free {
		fmt.Fprintf(c.out, "Estimated cost: free model (%d prompts, ~%d input tokens, ~%d output tokens)\n",
			e.Prompts, e.InputTokens, e.OutputTokens)
	} else {
		fmt.Fprintf(c.out, "Estimated cost: %s (%d prompts, ~%d input tokens at %s, ~%d output tokens at %s)\n",
			e.Total, e.Prompts, e.InputTokens, e.InputCost, e.OutputTokens, e.OutputCost)
	}
	for _, w := range e.Warnings {
		fmt.Fprintf(c.out, "Warning: %s\n", w)
	}
}

func (c *console) printProgress(p service.Progress) {
	fmt.Fprintf(c.out, "  [%d] %d/%d questions ready", p.Slot, p.Generated, p.Requested)
	if p.Dropped > 0 {
		fmt.Fprintf(c.out, ", %d dropped", p.Dropped)
	}
	fmt.Fprintln(c.out)
}

// play asks every remaining question. Typing q or closing input ends the
// session early.
func (c *console) play(sess *session.Session) error {
	total := len(sess.Quiz().Questions)
	for {
		q, idx, ok := sess.CurrentQuestion()
		if !ok {
			return nil
		}

		fmt.Fprintf(c.out, "\nQuestion %d of %d", idx+1, total)
		if q.Type == domain.QuestionTypeMultiple {
			fmt.Fprint(c.out, " (select all that apply)")
		}
		fmt.Fprintf(c.out, "\n%s\n", q.Text)
		for i, opt := range q.Options {
			fmt.Fprintf(c.out, "  %s) %s\n", parser.OptionKey(i), opt)
		}

		for {
			fmt.Fprint(c.out, "Answer (q to end): ")
			if !c.in.Scan() {
				sess.End()
				return c.in.Err()
			}
			line := strings.TrimSpace(c.in.Text())
			if strings.EqualFold(line, "q") || strings.EqualFold(line, "quit") {
				sess.End()
				return nil
			}

			chosen, err := parseChoice(line)
			if err == nil {
				err = sess.SubmitAnswer(chosen)
			}
			if err != nil {
				fmt.Fprintf(c.out, "  %v\n", err)
				continue
			}
			break
		}
	}
}

func (c *console) printScore(score session.Score) {
	fmt.Fprintf(c.out, "\nFinal Score: %d out of %d\n", score.Correct, score.Total)
	for _, r := range score.PerQuestion {
		mark := "incorrect"
		if r.IsCorrect {
			mark = "correct"
		}
		fmt.Fprintf(c.out, "\n%d. [%s] %s\n", r.Index+1, mark, r.Question.Text)
		if r.Record == nil {
			fmt.Fprintln(c.out, "   Your answer: (not answered)")
		} else {
			fmt.Fprintf(c.out, "   Your answer: %s\n", formatKeys(r.Record.ChosenIndices))
		}
		fmt.Fprintf(c.out, "   Correct answer: %s\n", formatKeys(r.Question.CorrectOptionIndices))
	}
}
