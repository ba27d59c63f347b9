package demo

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// questionTemplates are filled with the session domain.
var questionTemplates = []string{
	"In %s, explain the concept of polymorphism and provide a concise example.",
	"What are common trade-offs when designing scalable systems related to %s?",
	"Describe a challenging problem in %s you've solved and the approach taken.",
	"How would you optimize performance for a typical workload in %s?",
	"What are the key security considerations when working in %s?",
}

// pickQuestion chooses the n-th question for a session. The starting point
// is derived from the session id so sessions differ, and consecutive
// questions do not repeat until the pool is exhausted.
func pickQuestion(sessionID, domain string, n int) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	idx := (int(h.Sum32()%uint32(len(questionTemplates))) + n) % len(questionTemplates)
	return fmt.Sprintf(questionTemplates[idx], orField(domain))
}

func orField(domain string) string {
	if strings.TrimSpace(domain) == "" {
		return "your field"
	}
	return domain
}

// Verdicts.
const (
	VerdictCorrect   = "Correct"
	VerdictPartial   = "Partially Correct"
	VerdictIncorrect = "Incorrect"
)

// evaluation is the outcome of grading one answer on a 0-100 scale.
type evaluation struct {
	Score         int
	Verdict       string
	Feedback      string
	CorrectAnswer string
}

// evaluate grades an answer by length: fewer than three words scores zero,
// otherwise 50 plus half of three points per word beyond ten, capped at 100.
func evaluate(question, answer, domain string) evaluation {
	words := len(strings.Fields(answer))
	invalid := words < 3

	var ev evaluation
	if invalid {
		ev.Score = 0
		ev.Verdict = VerdictIncorrect
	} else {
		bonus := min(50, max(0, words-10)*3)
		ev.Score = min(100, 50+bonus/2)
		switch {
		case ev.Score >= 75:
			ev.Verdict = VerdictCorrect
		case ev.Score >= 55:
			ev.Verdict = VerdictPartial
		default:
			ev.Verdict = VerdictIncorrect
		}
	}

	var lines []string
	if invalid {
		lines = append(lines, "Your answer seems too short or incomplete. Please provide more detail and address the question directly.")
	}
	if ev.Score >= 75 {
		lines = append(lines, "Good structure and clarity.")
	} else {
		lines = append(lines, "Decent attempt, add more detail and examples.")
	}
	if ev.Score >= 55 {
		lines = append(lines, "Consider emphasizing trade-offs.")
	} else {
		lines = append(lines, "Address key concepts explicitly.")
	}
	lines = append(lines, "Provide real-world examples to strengthen your answer.")
	ev.Feedback = strings.Join(lines, " ")

	if question == "" {
		question = "the previous question"
	}
	ev.CorrectAnswer = fmt.Sprintf("A strong answer to the question %q would typically cover: a clear definition, key concepts, "+
		"trade-offs, a concise real-world example, and best practices related to %s.", question, orField(domain))
	return ev
}

// followupFor builds a guiding follow-up to the last graded question.
func followupFor(question, verdict string) string {
	if question == "" {
		return "Can you walk me through a recent project and the decisions you made along the way?"
	}
	switch verdict {
	case VerdictPartial:
		return fmt.Sprintf("You were on the right track with %q. Which key concept or trade-off did you leave out, and why does it matter?", question)
	case VerdictIncorrect:
		return fmt.Sprintf("Let's revisit %q. Start from the basic definition, then give one concrete example.", question)
	default:
		return fmt.Sprintf("Building on %q: how would your approach change at ten times the scale?", question)
	}
}

// inferProvider guesses the provider a key belongs to. Demo keys and
// unrecognised formats return "unknown".
func inferProvider(apiKey string) string {
	if isDemoKey(apiKey) {
		return "unknown"
	}
	switch {
	case strings.HasPrefix(apiKey, "sk-"):
		return "openai"
	case strings.HasPrefix(apiKey, "pplx-"):
		return "perplexity"
	case strings.HasPrefix(apiKey, "gsk_"):
		return "grok"
	}
	return "unknown"
}

func isDemoKey(apiKey string) bool {
	low := strings.ToLower(apiKey)
	return low == "demo" || low == "test" || strings.HasPrefix(low, "sk-test") || strings.HasPrefix(low, "demo-")
}
