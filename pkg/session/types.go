// Package session defines the durable record of one interview session: the
// append-only transcript and the per-question assessment log, plus the Store
// interface persisting them.
//
// Records are written exactly once and never mutated afterward. The
// orchestrator appends an assessment before acknowledging the tool call that
// produced it, so a crash between receipt and acknowledgment is recoverable
// by at-least-once semantics on the remote side.
//
// Every Store implementation must be safe for concurrent use.
package session

import "time"

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	// SpeakerAgent marks interviewer speech.
	SpeakerAgent Speaker = "agent"

	// SpeakerCandidate marks candidate speech.
	SpeakerCandidate Speaker = "candidate"
)

// MetricsSnapshot is a point-in-time copy of the delivery metrics computed by
// the analysis engine. All values are already clamped to their documented
// ranges.
type MetricsSnapshot struct {
	// SpeechRate is the estimated speaking pace in words per minute (≥0).
	SpeechRate float64 `json:"speech_rate"`

	// PauseRatio is the fraction of recent time spent silent, 0–100.
	PauseRatio float64 `json:"pause_ratio"`

	// VolumeStability scores loudness consistency, 0–10.
	VolumeStability float64 `json:"volume_stability"`

	// EyeContact scores gaze consistency toward the camera, 0–100.
	EyeContact float64 `json:"eye_contact"`

	// Confidence blends gaze, volume stability, and pace, 0–100.
	Confidence float64 `json:"confidence"`

	// Clarity scores articulation, 0–10.
	Clarity float64 `json:"clarity"`

	// AudioLevel is the log-compressed microphone level, 0–100.
	AudioLevel float64 `json:"audio_level"`
}

// TranscriptEntry is one turn of the conversation. Two entries are appended
// per completed question: the agent's question and the candidate's answer.
type TranscriptEntry struct {
	// Speaker is who said it.
	Speaker Speaker

	// Text is what was said.
	Text string

	// Timestamp is when the entry was committed.
	Timestamp time.Time
}

// QuestionAssessment is the durable scoring record for one completed
// question. Created exactly once per question and never mutated.
type QuestionAssessment struct {
	// QuestionID is the 1-based sequence number within the session.
	QuestionID int

	// QuestionText is the question as asked.
	QuestionText string

	// UserAnswer is the candidate's transcribed answer.
	UserAnswer string

	// Metrics is the delivery snapshot captured when the assessment was
	// saved, not a live reference.
	Metrics MetricsSnapshot

	// ContentScore rates the answer's substance, 1–10.
	ContentScore int

	// DeliveryScore rates the answer's delivery, 1–10.
	DeliveryScore int

	// Feedback is the agent's qualitative feedback.
	Feedback string

	// Strengths lists 2–3 things the candidate did well.
	Strengths []string

	// Weaknesses lists 2–3 areas to improve.
	Weaknesses []string
}
