package session

import (
	"context"
	"errors"
	"sync"
)

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a Store kept entirely in process memory. It backs tests
// and DSN-less runs where no PostgreSQL instance is configured.
//
// All methods are safe for concurrent use. The zero value is not usable;
// construct with NewInMemoryStore.
type InMemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string][]TranscriptEntry
	assessments map[string][]QuestionAssessment
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		transcripts: make(map[string][]TranscriptEntry),
		assessments: make(map[string][]QuestionAssessment),
	}
}

// AppendTranscript implements Store.
func (s *InMemoryStore) AppendTranscript(_ context.Context, sessionID string, entry TranscriptEntry) error {
	if sessionID == "" {
		return errors.New("session: sessionID must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[sessionID] = append(s.transcripts[sessionID], entry)
	return nil
}

// AppendAssessment implements Store.
func (s *InMemoryStore) AppendAssessment(_ context.Context, sessionID string, assessment QuestionAssessment) error {
	if sessionID == "" {
		return errors.New("session: sessionID must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments[sessionID] = append(s.assessments[sessionID], assessment)
	return nil
}

// Transcript implements Store. The returned slice is a copy; mutating it does
// not affect the store.
func (s *InMemoryStore) Transcript(_ context.Context, sessionID string) ([]TranscriptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.transcripts[sessionID]
	out := make([]TranscriptEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Assessments implements Store. The returned slice is a copy.
func (s *InMemoryStore) Assessments(_ context.Context, sessionID string) ([]QuestionAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.assessments[sessionID]
	out := make([]QuestionAssessment, len(log))
	copy(out, log)
	return out, nil
}
