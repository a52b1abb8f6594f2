// Package parser turns flat-text question bank submissions into structured
// question/answer records. It is pure: no I/O, no persistence.
package parser

import (
	"fmt"
	"strings"

	"exam-session-service/internal/domain"
)

// Dialect names one of the supported bulk-import grammars. The caller
// selects the dialect; the parser never auto-detects.
type Dialect string

const (
	// DialectHashPrefix: questions separated by '#', answers one per line,
	// a leading '+' marks the correct ones.
	DialectHashPrefix Dialect = "hash-prefix"
	// DialectSJMarker: questions introduced by 'S:', answers by 'J:', a
	// trailing '+' marks the correct ones.
	DialectSJMarker Dialect = "sj-marker"
)

// Parse splits raw text into questions with their answers in source order.
func Parse(raw string, dialect Dialect) ([]domain.ParsedQuestion, error) {
	switch dialect {
	case DialectHashPrefix:
		return parseHashPrefix(raw)
	case DialectSJMarker:
		return parseSJMarker(raw)
	default:
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}
}

func parseHashPrefix(raw string) ([]domain.ParsedQuestion, error) {
	var questions []domain.ParsedQuestion
	for _, block := range splitTrim(raw, "#") {
		lines := splitTrim(block, "\n")
		if len(lines) == 0 {
			continue
		}

		question := domain.ParsedQuestion{Text: lines[0]}
		hasCorrect := false
		for _, line := range lines[1:] {
			correct := line[0] == '+'
			if correct {
				hasCorrect = true
			}
			question.Answers = append(question.Answers, domain.ParsedAnswer{
				Text:      strings.TrimSpace(line[1:]),
				IsCorrect: correct,
			})
		}
		if !hasCorrect {
			return nil, &domain.MalformedQuestionError{
				QuestionText: question.Text,
				Reason:       "no answer is marked correct",
			}
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func parseSJMarker(raw string) ([]domain.ParsedQuestion, error) {
	var questions []domain.ParsedQuestion
	for _, block := range splitTrim(raw, "S:") {
		segments := splitTrim(block, "J:")
		if len(segments) == 0 {
			continue
		}

		// A 'J:' inside answer text would silently merge segments; the
		// segment count must match the literal marker count.
		if len(segments)-1 != strings.Count(block, "J:") {
			return nil, &domain.MalformedQuestionError{
				QuestionText: segments[0],
				Reason:       "answer markers do not line up",
			}
		}

		question := domain.ParsedQuestion{Text: segments[0]}
		for _, seg := range segments[1:] {
			correct := seg[len(seg)-1] == '+'
			text := seg
			if correct {
				text = strings.TrimSpace(seg[:len(seg)-1])
			}
			question.Answers = append(question.Answers, domain.ParsedAnswer{
				Text:      text,
				IsCorrect: correct,
			})
		}
		questions = append(questions, question)
	}
	return questions, nil
}

// splitTrim splits on sep, trims each piece, and drops empty ones.
func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Export renders a question bank back to hash-prefix text, the inverse of
// DialectHashPrefix parsing. Used for collection downloads.
func Export(questions []domain.Question) string {
	var b strings.Builder
	for _, q := range questions {
		fmt.Fprintf(&b, "# %s\n", q.Text)
		for _, a := range q.Answers {
			marker := "-"
			if a.IsCorrect {
				marker = "+"
			}
			fmt.Fprintf(&b, "%s %s\n", marker, a.Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}
