// Package postgres provides a PostgreSQL-backed implementation of the
// session.Store interface.
//
// Both tables are insert-only; Migrate is idempotent and safe to run on every
// application start.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.AppendTranscript(ctx, sessionID, entry)
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cadenza-ai/cadenza/pkg/session"
)

// Compile-time interface check.
var _ session.Store = (*Store)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS interview_transcripts (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    speaker     TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interview_transcripts_session
    ON interview_transcripts (session_id, id);

CREATE TABLE IF NOT EXISTS interview_assessments (
    id             BIGSERIAL    PRIMARY KEY,
    session_id     TEXT         NOT NULL,
    question_id    INT          NOT NULL,
    question_text  TEXT         NOT NULL,
    user_answer    TEXT         NOT NULL,
    metrics        JSONB        NOT NULL DEFAULT '{}',
    content_score  INT          NOT NULL,
    delivery_score INT          NOT NULL,
    feedback       TEXT         NOT NULL DEFAULT '',
    strengths      TEXT[]       NOT NULL DEFAULT '{}',
    weaknesses     TEXT[]       NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interview_assessments_session
    ON interview_assessments (session_id, question_id);
`

// Store is the PostgreSQL-backed session record store. It holds a single
// pgxpool.Pool; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, and runs Migrate to ensure the required tables
// exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates or ensures the session record tables exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// AppendTranscript implements session.Store.
func (s *Store) AppendTranscript(ctx context.Context, sessionID string, entry session.TranscriptEntry) error {
	const q = `
		INSERT INTO interview_transcripts (session_id, speaker, text, timestamp)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, sessionID, string(entry.Speaker), entry.Text, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres store: append transcript: %w", err)
	}
	return nil
}

// AppendAssessment implements session.Store.
func (s *Store) AppendAssessment(ctx context.Context, sessionID string, a session.QuestionAssessment) error {
	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return fmt.Errorf("postgres store: marshal metrics: %w", err)
	}

	const q = `
		INSERT INTO interview_assessments
		    (session_id, question_id, question_text, user_answer, metrics,
		     content_score, delivery_score, feedback, strengths, weaknesses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.pool.Exec(ctx, q,
		sessionID,
		a.QuestionID,
		a.QuestionText,
		a.UserAnswer,
		metrics,
		a.ContentScore,
		a.DeliveryScore,
		a.Feedback,
		a.Strengths,
		a.Weaknesses,
	)
	if err != nil {
		return fmt.Errorf("postgres store: append assessment: %w", err)
	}
	return nil
}

// Transcript implements session.Store.
func (s *Store) Transcript(ctx context.Context, sessionID string) ([]session.TranscriptEntry, error) {
	const q = `
		SELECT speaker, text, timestamp
		FROM   interview_transcripts
		WHERE  session_id = $1
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: transcript: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (session.TranscriptEntry, error) {
		var (
			e       session.TranscriptEntry
			speaker string
		)
		if err := row.Scan(&speaker, &e.Text, &e.Timestamp); err != nil {
			return session.TranscriptEntry{}, err
		}
		e.Speaker = session.Speaker(speaker)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan transcript: %w", err)
	}
	if entries == nil {
		entries = []session.TranscriptEntry{}
	}
	return entries, nil
}

// Assessments implements session.Store.
func (s *Store) Assessments(ctx context.Context, sessionID string) ([]session.QuestionAssessment, error) {
	const q = `
		SELECT question_id, question_text, user_answer, metrics,
		       content_score, delivery_score, feedback, strengths, weaknesses
		FROM   interview_assessments
		WHERE  session_id = $1
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: assessments: %w", err)
	}

	log, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (session.QuestionAssessment, error) {
		var (
			a       session.QuestionAssessment
			metrics []byte
		)
		if err := row.Scan(
			&a.QuestionID,
			&a.QuestionText,
			&a.UserAnswer,
			&metrics,
			&a.ContentScore,
			&a.DeliveryScore,
			&a.Feedback,
			&a.Strengths,
			&a.Weaknesses,
		); err != nil {
			return session.QuestionAssessment{}, err
		}
		if err := json.Unmarshal(metrics, &a.Metrics); err != nil {
			return session.QuestionAssessment{}, err
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan assessments: %w", err)
	}
	if log == nil {
		log = []session.QuestionAssessment{}
	}
	return log, nil
}
