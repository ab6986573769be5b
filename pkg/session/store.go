package session

import "context"

// Store persists the durable record of interview sessions.
//
// Both logs are append-only: implementations must never update or delete
// rows. Reads return entries in append order.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// AppendTranscript appends one transcript entry to the session's log.
	// sessionID must be non-empty. Returns an error only on persistent
	// storage failure.
	AppendTranscript(ctx context.Context, sessionID string, entry TranscriptEntry) error

	// AppendAssessment appends one question assessment to the session's log.
	AppendAssessment(ctx context.Context, sessionID string, assessment QuestionAssessment) error

	// Transcript returns the full transcript for the session in append order.
	// Returns an empty (non-nil) slice when the session has no entries.
	Transcript(ctx context.Context, sessionID string) ([]TranscriptEntry, error)

	// Assessments returns the full assessment log for the session in append
	// order. Returns an empty (non-nil) slice when the session has none.
	Assessments(ctx context.Context, sessionID string) ([]QuestionAssessment, error)
}
