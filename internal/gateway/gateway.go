// Package gateway exposes the HTTP surface of the Cadenza interview server:
// session control endpoints, a camera frame endpoint, and the WebSocket
// audio bridge that carries microphone and agent audio.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cadenza-ai/cadenza/internal/app"
	"github.com/cadenza-ai/cadenza/internal/interview"
	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/pkg/session"
)

// maxVideoFrameBytes bounds the camera frame endpoint's request body.
const maxVideoFrameBytes = 4 << 20

// SessionController is the slice of the session manager the gateway needs.
// *app.SessionManager satisfies it.
type SessionController interface {
	Start(ctx context.Context, req app.StartRequest) (app.SessionInfo, error)
	Stop() error
	IsActive() bool
	Info() app.SessionInfo
	Snapshot() (interview.Snapshot, bool)
	ProcessVideoFrame(ctx context.Context, image []byte) error
}

var _ SessionController = (*app.SessionManager)(nil)

// Gateway routes session control requests to the session manager and serves
// the audio bridge. Handlers log through [observe.Logger] so request log
// lines carry the active trace identifiers.
type Gateway struct {
	sessions SessionController
	bridge   *Bridge
}

// New creates a Gateway. The bridge may be nil when audio is served by a
// platform device adapter instead; the audio endpoint then returns 404.
func New(sessions SessionController, bridge *Bridge) *Gateway {
	return &Gateway{
		sessions: sessions,
		bridge:   bridge,
	}
}

// Register mounts all gateway routes on mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("/session/start", withMethod(http.MethodPost, g.handleStart))
	mux.HandleFunc("/session/stop", withMethod(http.MethodPost, g.handleStop))
	mux.HandleFunc("/session/state", withMethod(http.MethodGet, g.handleState))
	mux.HandleFunc("/session/video", withMethod(http.MethodPost, g.handleVideo))
	if g.bridge != nil {
		mux.HandleFunc("/session/audio", withMethod(http.MethodGet, g.bridge.Handle))
	}
}

// withMethod restricts a handler to one HTTP method, matching the behaviour
// of ServeMux method patterns in Go 1.22+ (GET also accepts HEAD; other
// methods receive 405 with an Allow header). Needed while building with a
// pre-1.22 toolchain, which lacks method patterns.
func withMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
			w.Header().Set("Allow", method)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// ─── wire types ──────────────────────────────────────────────────────────────

type startRequest struct {
	Role            string `json:"role"`
	Difficulty      string `json:"difficulty"`
	DurationMinutes int    `json:"duration_minutes"`
	JobDescription  string `json:"job_description"`
	Resume          string `json:"resume"`
}

type startResponse struct {
	SessionID       string    `json:"session_id"`
	Role            string    `json:"role"`
	StartedAt       time.Time `json:"started_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

type transcriptEntry struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type assessmentSummary struct {
	QuestionID    int    `json:"question_id"`
	QuestionText  string `json:"question_text"`
	ContentScore  int    `json:"content_score"`
	DeliveryScore int    `json:"delivery_score"`
	Feedback      string `json:"feedback"`
}

type stateResponse struct {
	SessionID       string                  `json:"session_id"`
	Connection      string                  `json:"connection"`
	CurrentQuestion int                     `json:"current_question"`
	TotalQuestions  int                     `json:"total_questions"`
	QuestionText    string                  `json:"question_text"`
	AnswerText      string                  `json:"answer_text"`
	Metrics         session.MetricsSnapshot `json:"metrics"`
	Transcript      []transcriptEntry       `json:"transcript"`
	Assessments     []assessmentSummary     `json:"assessments"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ─── handlers ────────────────────────────────────────────────────────────────

func (g *Gateway) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	info, err := g.sessions.Start(r.Context(), app.StartRequest{
		Role:            req.Role,
		Difficulty:      req.Difficulty,
		DurationMinutes: req.DurationMinutes,
		JobDescription:  req.JobDescription,
		Resume:          req.Resume,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("gateway: session start failed", "err", err)
		status := http.StatusBadGateway
		if g.sessions.IsActive() {
			status = http.StatusConflict
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		SessionID:       info.SessionID,
		Role:            info.Role,
		StartedAt:       info.StartedAt,
		DurationMinutes: int(info.Duration.Minutes()),
	})
}

func (g *Gateway) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := g.sessions.Stop(); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleState(w http.ResponseWriter, r *http.Request) {
	snap, ok := g.sessions.Snapshot()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no active session"})
		return
	}
	info := g.sessions.Info()

	resp := stateResponse{
		SessionID:       info.SessionID,
		Connection:      snap.Connection.String(),
		CurrentQuestion: snap.CurrentQuestion,
		TotalQuestions:  snap.TotalQuestions,
		QuestionText:    snap.QuestionText,
		AnswerText:      snap.AnswerText,
		Metrics:         snap.Metrics,
		Transcript:      make([]transcriptEntry, 0, len(snap.Transcript)),
		Assessments:     make([]assessmentSummary, 0, len(snap.Assessments)),
	}
	for _, e := range snap.Transcript {
		resp.Transcript = append(resp.Transcript, transcriptEntry{
			Speaker:   string(e.Speaker),
			Text:      e.Text,
			Timestamp: e.Timestamp,
		})
	}
	for _, a := range snap.Assessments {
		resp.Assessments = append(resp.Assessments, assessmentSummary{
			QuestionID:    a.QuestionID,
			QuestionText:  a.QuestionText,
			ContentScore:  a.ContentScore,
			DeliveryScore: a.DeliveryScore,
			Feedback:      a.Feedback,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleVideo(w http.ResponseWriter, r *http.Request) {
	if !g.sessions.IsActive() {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no active session"})
		return
	}

	image, err := io.ReadAll(io.LimitReader(r.Body, maxVideoFrameBytes))
	if err != nil || len(image) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty or unreadable frame"})
		return
	}

	if err := g.sessions.ProcessVideoFrame(r.Context(), image); err != nil {
		// Tick errors are non-fatal; report them without failing the session.
		observe.Logger(r.Context()).Debug("gateway: video frame error", "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
