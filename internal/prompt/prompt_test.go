package prompt

import (
	"strings"
	"testing"
	"time"
)

func TestQuestionBudget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		duration time.Duration
		want     int
	}{
		{name: "ten minutes", duration: 10 * time.Minute, want: 3},
		{name: "short boundary", duration: 15 * time.Minute, want: 3},
		{name: "twenty minutes", duration: 20 * time.Minute, want: 5},
		{name: "medium boundary", duration: 30 * time.Minute, want: 5},
		{name: "forty-five minutes", duration: 45 * time.Minute, want: 7},
		{name: "one hour", duration: time.Hour, want: 7},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := QuestionBudget(tt.duration); got != tt.want {
				t.Errorf("QuestionBudget(%v) = %d, want %d", tt.duration, got, tt.want)
			}
		})
	}
}

func TestBuildInstructions(t *testing.T) {
	t.Parallel()

	got := BuildInstructions(Params{
		Role:           "Backend Engineer",
		Difficulty:     "senior",
		Duration:       10 * time.Minute,
		JobDescription: "We are looking for a Go developer.",
		Resume:         "Five years of distributed systems work.",
	})

	for _, want := range []string{
		"Backend Engineer",
		"senior",
		"Ask exactly 3 questions",
		"save_assessment",
		"## Job Description",
		"We are looking for a Go developer.",
		"## Candidate Résumé",
		"Five years of distributed systems work.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("instructions missing %q", want)
		}
	}
}

func TestBuildInstructions_Defaults(t *testing.T) {
	t.Parallel()

	got := BuildInstructions(Params{Duration: 10 * time.Minute})
	if !strings.Contains(got, "a software engineering position") {
		t.Error("missing default role")
	}
	if !strings.Contains(got, "mid-level") {
		t.Error("missing default difficulty")
	}
	if strings.Contains(got, "## Job Description") {
		t.Error("empty job description should be omitted")
	}
	if strings.Contains(got, "## Candidate Résumé") {
		t.Error("empty résumé should be omitted")
	}
}

func TestBuildInstructions_TruncatesDocuments(t *testing.T) {
	t.Parallel()

	got := BuildInstructions(Params{
		Duration:       10 * time.Minute,
		JobDescription: strings.Repeat("x", 5000),
		DocumentBudget: 100,
	})
	if !strings.Contains(got, "[truncated]") {
		t.Error("oversized document not marked as truncated")
	}
	if strings.Contains(got, strings.Repeat("x", 101)) {
		t.Error("document exceeds its character budget")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		budget int
		want   string
	}{
		{name: "under budget", in: "short", budget: 10, want: "short"},
		{name: "exact budget", in: "12345", budget: 5, want: "12345"},
		{name: "over budget", in: "hello world", budget: 5, want: "hello [truncated]"},
		{name: "whitespace trimmed", in: "  padded  ", budget: 20, want: "padded"},
		{name: "zero budget keeps all", in: "keep", budget: 0, want: "keep"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Truncate(tt.in, tt.budget); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.budget, got, tt.want)
			}
		})
	}
}

func TestSaveAssessmentTool(t *testing.T) {
	t.Parallel()

	tool := SaveAssessmentTool()
	if tool.Name != "save_assessment" {
		t.Errorf("Name = %q", tool.Name)
	}

	props, ok := tool.Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatal("Parameters missing properties object")
	}
	for _, field := range []string{
		"question", "topic", "answer_summary", "content_score",
		"delivery_score", "feedback", "strengths", "improvements",
	} {
		if _, ok := props[field]; !ok {
			t.Errorf("schema missing field %q", field)
		}
	}

	required, ok := tool.Parameters["required"].([]string)
	if !ok || len(required) != 8 {
		t.Errorf("required = %v, want all 8 fields", tool.Parameters["required"])
	}
}
