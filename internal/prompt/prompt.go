// Package prompt assembles the system instructions and tool schema handed to
// the remote agent at connect time.
//
// The assembler is pure: it performs no I/O and is safe for concurrent use.
// Reference documents (job description, résumé) are truncated to a bounded
// character budget each, so a large upload cannot blow the agent's context
// window.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/cadenza-ai/cadenza/pkg/provider/agent"
)

// DefaultDocumentBudget is the per-document character budget applied when
// Params does not set one.
const DefaultDocumentBudget = 2000

// Duration breakpoints for the question budget.
const (
	shortFormat  = 15 * time.Minute
	mediumFormat = 30 * time.Minute
)

// Params carries everything needed to assemble the interview instructions.
type Params struct {
	// Role is the position being interviewed for, e.g. "Backend Engineer".
	Role string

	// Difficulty is a free-text difficulty label, e.g. "junior", "senior".
	Difficulty string

	// Duration is the requested interview length; it determines the
	// question budget via fixed breakpoints.
	Duration time.Duration

	// JobDescription and Resume are the extracted reference document texts.
	// Either may be empty; both are truncated to DocumentBudget characters.
	JobDescription string
	Resume         string

	// DocumentBudget overrides the per-document character budget.
	// Zero means DefaultDocumentBudget.
	DocumentBudget int
}

// QuestionBudget maps the requested duration to the number of questions:
// short format 3, medium 5, long 7.
func QuestionBudget(d time.Duration) int {
	switch {
	case d <= shortFormat:
		return 3
	case d <= mediumFormat:
		return 5
	default:
		return 7
	}
}

// BuildInstructions assembles the full system prompt for the agent session.
// Empty reference documents are omitted entirely rather than rendering as
// empty headers.
func BuildInstructions(p Params) string {
	role := strings.TrimSpace(p.Role)
	if role == "" {
		role = "a software engineering position"
	}
	difficulty := strings.TrimSpace(p.Difficulty)
	if difficulty == "" {
		difficulty = "mid-level"
	}
	questions := QuestionBudget(p.Duration)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional interviewer conducting a spoken interview for the role of %s. "+
		"Pitch your questions at a %s level.", role, difficulty)

	sb.WriteString("\n\n## Interview Structure\n")
	fmt.Fprintf(&sb, "Ask exactly %d questions, one at a time. Speak naturally and keep each question short. "+
		"Wait for the candidate to finish answering before moving on.\n", questions)
	sb.WriteString("After each answer, call the save_assessment tool with your evaluation before asking " +
		"the next question. When instructed to wrap up, deliver a brief, encouraging closing statement " +
		"and do not ask further questions.")

	budget := p.DocumentBudget
	if budget <= 0 {
		budget = DefaultDocumentBudget
	}
	if doc := Truncate(p.JobDescription, budget); doc != "" {
		sb.WriteString("\n\n## Job Description\n")
		sb.WriteString(doc)
	}
	if doc := Truncate(p.Resume, budget); doc != "" {
		sb.WriteString("\n\n## Candidate Résumé\n")
		sb.WriteString(doc)
	}

	return sb.String()
}

// Truncate trims whitespace and cuts s to at most budget characters (runes),
// appending an ellipsis marker when content was dropped.
func Truncate(s string, budget int) string {
	s = strings.TrimSpace(s)
	if budget <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return strings.TrimSpace(string(runes[:budget])) + " [truncated]"
}

// SaveAssessmentTool declares the save_assessment tool the agent must call
// after each candidate answer.
func SaveAssessmentTool() agent.ToolDefinition {
	return agent.ToolDefinition{
		Name: "save_assessment",
		Description: "Record your evaluation of the candidate's answer to the question just asked. " +
			"Call this exactly once per question, after the candidate has finished answering.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The question that was asked, verbatim.",
				},
				"topic": map[string]any{
					"type":        "string",
					"description": "Short topic label for the question.",
				},
				"answer_summary": map[string]any{
					"type":        "string",
					"description": "One-sentence paraphrase of the candidate's answer.",
				},
				"content_score": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     10,
					"description": "Technical quality of the answer's content, 1-10.",
				},
				"delivery_score": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     10,
					"description": "Quality of the spoken delivery, 1-10.",
				},
				"feedback": map[string]any{
					"type":        "string",
					"description": "Two to three sentences of constructive feedback.",
				},
				"strengths": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"minItems":    2,
					"maxItems":    3,
					"description": "What the candidate did well.",
				},
				"improvements": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"minItems":    2,
					"maxItems":    3,
					"description": "Concrete areas to improve.",
				},
			},
			"required": []string{
				"question", "topic", "answer_summary", "content_score",
				"delivery_score", "feedback", "strengths", "improvements",
			},
		},
	}
}
