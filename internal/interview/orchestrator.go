// Package interview drives the question lifecycle of one simulated spoken
// interview and produces its durable session record.
//
// The [Orchestrator] wires the streaming channel, the biometric analysis
// engine, and the speech-to-text collaborator together: agent speech
// fragments and finalized candidate utterances accumulate in per-turn scratch
// buffers, each save_assessment tool call from the agent flushes a turn into
// the append-only transcript and assessment logs, and reaching the question
// budget triggers the wrap-up sequence and, after a grace delay, the
// completion callback.
package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cadenza-ai/cadenza/internal/analysis"
	"github.com/cadenza-ai/cadenza/internal/channel"
	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/internal/prompt"
	"github.com/cadenza-ai/cadenza/pkg/audio"
	"github.com/cadenza-ai/cadenza/pkg/provider/agent"
	"github.com/cadenza-ai/cadenza/pkg/provider/landmarks"
	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
	"github.com/cadenza-ai/cadenza/pkg/session"
)

// DefaultGraceDelay gives the agent's closing statement time to play out
// before the channel is force-disconnected.
const DefaultGraceDelay = 6 * time.Second

// storeTimeout bounds each durable append performed from the tool-call path.
const storeTimeout = 10 * time.Second

// wrapUpMessage is the control message instructing the agent to end the
// interview.
const wrapUpMessage = "The interview is complete. Thank the candidate and deliver a short, " +
	"encouraging closing statement. Do not ask any further questions."

// defaultScore substitutes a missing or out-of-range tool-call score.
const defaultScore = 5

// toolSaveAssessment is the tool name the agent calls to flush a turn.
const toolSaveAssessment = "save_assessment"

// Config describes one interview session.
type Config struct {
	// SessionID keys the durable record. Required.
	SessionID string

	// Role, Difficulty, Duration, JobDescription, Resume and DocumentBudget
	// feed the system prompt; see the prompt package.
	Role           string
	Difficulty     string
	Duration       time.Duration
	JobDescription string
	Resume         string
	DocumentBudget int

	// Voice selects the agent's synthesised voice. Empty selects the
	// provider default.
	Voice string

	// Language is the recognition language passed to the speech-to-text
	// collaborator.
	Language string

	// Keywords boost domain terms during recognition.
	Keywords []stt.KeywordBoost
}

// Deps are the collaborators an Orchestrator needs. Landmarks is optional;
// everything else is required.
type Deps struct {
	Agent     agent.Provider
	STT       stt.Provider
	Landmarks landmarks.Detector
	Devices   audio.Devices
	Store     session.Store
}

// CompletionFunc receives the final transcript and assessment log when the
// interview completes. Called exactly once per session, and only on normal
// completion — an aborted session never fires it.
type CompletionFunc func(transcript []session.TranscriptEntry, assessments []session.QuestionAssessment)

// Snapshot is the immutable observer view of the session, rebuilt after each
// mutation.
type Snapshot struct {
	Connection      channel.State
	CurrentQuestion int
	TotalQuestions  int

	// QuestionText is the in-progress agent question, updated per fragment
	// without waiting for a turn boundary.
	QuestionText string

	// AnswerText is the in-progress candidate answer.
	AnswerText string

	Transcript  []session.TranscriptEntry
	Assessments []session.QuestionAssessment
	Metrics     session.MetricsSnapshot
}

// Orchestrator owns one interview session end to end.
//
// All exported methods are safe for concurrent use. Callback registration
// (OnComplete, OnError, OnUpdate) must happen before StartSession.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	log     *slog.Logger
	metrics *observe.Metrics

	graceDelay time.Duration
	chanOpts   []channel.Option

	onComplete CompletionFunc
	onError    func(error)
	onUpdate   func(Snapshot)

	engine *analysis.Engine

	mu          sync.Mutex
	ch          *channel.Channel
	sink        audio.PlaybackSink
	sttSess     stt.SessionHandle
	sttCfg      stt.StreamConfig
	turn        turn
	currentQ    int
	totalQ      int
	transcript  []session.TranscriptEntry
	assessments []session.QuestionAssessment
	started     bool
	stopped     bool
	wrapped     bool
	completed   bool
	graceTimer  *time.Timer
	sessCtx     context.Context
	sessCancel  context.CancelFunc
}

// Option configures an [Orchestrator] during construction.
type Option func(*Orchestrator)

// WithLogger sets the structured logger. The default is slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithGraceDelay overrides the delay between the wrap-up message and the
// forced disconnect. Tests use a short delay for determinism.
func WithGraceDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.graceDelay = d }
}

// WithChannelOptions forwards options to the streaming channel created by
// StartSession.
func WithChannelOptions(opts ...channel.Option) Option {
	return func(o *Orchestrator) { o.chanOpts = opts }
}

// WithMetrics overrides the metrics instance recording tool calls, saved
// assessments, and analysis latency. The default is the package-wide observe
// default.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// New creates an Orchestrator for one session. The question budget is derived
// from cfg.Duration once, at construction.
func New(cfg Config, deps Deps, opts ...Option) (*Orchestrator, error) {
	var errs []error
	if cfg.SessionID == "" {
		errs = append(errs, errors.New("SessionID must not be empty"))
	}
	if deps.Agent == nil {
		errs = append(errs, errors.New("Agent provider is required"))
	}
	if deps.STT == nil {
		errs = append(errs, errors.New("STT provider is required"))
	}
	if deps.Devices == nil {
		errs = append(errs, errors.New("Devices is required"))
	}
	if deps.Store == nil {
		errs = append(errs, errors.New("Store is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("interview: invalid configuration: %w", err)
	}

	o := &Orchestrator{
		cfg:        cfg,
		deps:       deps,
		log:        slog.Default(),
		metrics:    observe.DefaultMetrics(),
		graceDelay: DefaultGraceDelay,
		engine:     analysis.NewEngine(),
		totalQ:     prompt.QuestionBudget(cfg.Duration),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// OnComplete registers the completion callback.
func (o *Orchestrator) OnComplete(fn CompletionFunc) { o.onComplete = fn }

// OnError registers the callback for connection-lifecycle errors.
func (o *Orchestrator) OnError(fn func(error)) { o.onError = fn }

// OnUpdate registers the observer receiving a fresh Snapshot after each
// session mutation.
func (o *Orchestrator) OnUpdate(fn func(Snapshot)) { o.onUpdate = fn }

// StartSession acquires the audio devices, starts speech recognition,
// connects the agent channel, and begins gated audio transmission — in that
// order, since transmission requires an open channel. Any failure is
// surfaced synchronously and leaves no resource open.
func (o *Orchestrator) StartSession(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return errors.New("interview: session already started")
	}
	o.started = true
	o.sessCtx, o.sessCancel = context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Unlock()

	capture, err := o.deps.Devices.OpenCapture(ctx)
	if err != nil {
		o.sessCancel()
		return fmt.Errorf("interview: acquire microphone: %w", err)
	}
	sink, err := o.deps.Devices.OpenPlayback(ctx)
	if err != nil {
		_ = capture.Close()
		o.sessCancel()
		return fmt.Errorf("interview: acquire playback device: %w", err)
	}

	sttCfg := stt.StreamConfig{
		SampleRate: capture.SampleRate(),
		Channels:   1,
		Language:   o.cfg.Language,
		Keywords:   o.cfg.Keywords,
	}
	sttSess, err := o.deps.STT.StartStream(ctx, sttCfg)
	if err != nil {
		_ = capture.Close()
		_ = sink.Close()
		o.sessCancel()
		return fmt.Errorf("interview: start speech recognition: %w", err)
	}

	chanOpts := append([]channel.Option{channel.WithMetrics(o.metrics)}, o.chanOpts...)
	ch := channel.New(o.deps.Agent, sink, chanOpts...)
	ch.OnText(o.agentText)
	ch.OnToolCall(o.handleToolCall)
	ch.OnError(o.transportFault)
	ch.OnStateChange(func(channel.State) { o.publish() })

	params := agent.SessionParams{
		Instructions: prompt.BuildInstructions(prompt.Params{
			Role:           o.cfg.Role,
			Difficulty:     o.cfg.Difficulty,
			Duration:       o.cfg.Duration,
			JobDescription: o.cfg.JobDescription,
			Resume:         o.cfg.Resume,
			DocumentBudget: o.cfg.DocumentBudget,
		}),
		Voice: o.cfg.Voice,
		Tools: []agent.ToolDefinition{prompt.SaveAssessmentTool()},
	}

	o.mu.Lock()
	o.ch = ch
	o.sink = sink
	o.sttSess = sttSess
	o.sttCfg = sttCfg
	o.mu.Unlock()

	go o.finalsLoop(sttSess)
	go drainPartials(sttSess)

	if err := ch.Connect(ctx, params); err != nil {
		_ = capture.Close()
		o.abortStart()
		return err
	}
	stream := o.tee(capture)
	if err := ch.StartAudioInput(stream); err != nil {
		ch.Disconnect()
		_ = stream.Close()
		o.abortStart()
		return err
	}

	o.publish()
	return nil
}

// abortStart releases the collaborators opened by a failed StartSession. The
// channel is left alone so a connect failure keeps reading as StateError.
func (o *Orchestrator) abortStart() {
	o.mu.Lock()
	o.stopped = true
	sttSess := o.sttSess
	sink := o.sink
	cancel := o.sessCancel
	o.sttSess = nil
	o.sink = nil
	o.mu.Unlock()

	o.engine.Stop()
	if sttSess != nil {
		_ = sttSess.Close()
	}
	if sink != nil {
		_ = sink.Close()
	}
	if cancel != nil {
		cancel()
	}
}

// StopSession aborts the session: the channel disconnects, the analysis
// engine and speech recognition stop, and the connection state lands in
// DISCONNECTED. Idempotent and safe to call from any state, including
// mid-termination — a pending completion timer is cancelled.
func (o *Orchestrator) StopSession() {
	o.mu.Lock()
	timer := o.graceTimer
	o.graceTimer = nil
	o.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}

	o.teardown()
	o.publish()
}

// Snapshot returns the current immutable view of the session.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// ProcessVideoFrame runs facial landmark detection on one video frame and
// feeds the result to the analysis engine. A no-op when no landmark detector
// is configured.
func (o *Orchestrator) ProcessVideoFrame(ctx context.Context, image []byte) error {
	if o.deps.Landmarks == nil {
		return nil
	}
	frame, err := o.deps.Landmarks.Detect(ctx, image)
	if err != nil {
		return fmt.Errorf("interview: detect landmarks: %w", err)
	}
	o.engine.VideoTick(frame)
	o.publish()
	return nil
}

// ── inbound events ────────────────────────────────────────────────────────────

// agentText accumulates an agent speech fragment into the question scratch
// buffer and reflects it to observers immediately.
func (o *Orchestrator) agentText(fragment string) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.turn.AppendQuestion(fragment)
	o.mu.Unlock()
	o.publish()
}

// candidateFinal accumulates a finalized candidate utterance into the answer
// scratch buffer.
func (o *Orchestrator) candidateFinal(text string) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.turn.AppendAnswer(text)
	o.mu.Unlock()
	o.publish()
}

// toolPayload is the expected save_assessment argument shape.
type toolPayload struct {
	Question      string   `json:"question"`
	Topic         string   `json:"topic"`
	AnswerSummary string   `json:"answer_summary"`
	ContentScore  int      `json:"content_score"`
	DeliveryScore int      `json:"delivery_score"`
	Feedback      string   `json:"feedback"`
	Strengths     []string `json:"strengths"`
	Improvements  []string `json:"improvements"`
}

// handleToolCall flushes the in-progress turn into the durable record. The
// returned acknowledgment is withheld until the appends succeeded, so the
// agent's at-least-once semantics can recover a crash between receipt and
// acknowledgment. A malformed payload is never fatal: defaults are
// substituted and the conversation continues.
func (o *Orchestrator) handleToolCall(name, args string) (string, error) {
	if name != toolSaveAssessment {
		o.log.Warn("ignoring unknown tool call", "tool", name)
		o.metrics.RecordToolCall(context.Background(), name, "ignored")
		return `{"status": "ignored"}`, nil
	}

	var payload toolPayload
	if err := json.Unmarshal([]byte(args), &payload); err != nil {
		o.log.Warn("malformed assessment payload, substituting defaults", "error", err)
		payload = toolPayload{}
	}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return "", errors.New("interview: session stopped")
	}

	questionID := o.currentQ + 1
	questionText := payload.Question
	if questionText == "" {
		questionText = o.turn.Question()
	}
	if questionText == "" {
		questionText = fmt.Sprintf("Interview question %d", questionID)
	}
	answerText := o.turn.Answer()
	if answerText == "" {
		answerText = payload.AnswerSummary
	}
	if answerText == "" {
		answerText = "no response detected"
	}

	now := time.Now()
	assessment := session.QuestionAssessment{
		QuestionID:    questionID,
		QuestionText:  questionText,
		UserAnswer:    answerText,
		Metrics:       o.engine.Snapshot(),
		ContentScore:  clampScore(payload.ContentScore),
		DeliveryScore: clampScore(payload.DeliveryScore),
		Feedback:      payload.Feedback,
		Strengths:     payload.Strengths,
		Weaknesses:    payload.Improvements,
	}
	questionEntry := session.TranscriptEntry{Speaker: session.SpeakerAgent, Text: questionText, Timestamp: now}
	answerEntry := session.TranscriptEntry{Speaker: session.SpeakerCandidate, Text: answerText, Timestamp: now}
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := o.persistTurn(ctx, questionEntry, answerEntry, assessment); err != nil {
		o.metrics.RecordToolCall(ctx, toolSaveAssessment, "error")
		return "", err
	}
	o.metrics.RecordToolCall(ctx, toolSaveAssessment, "ok")
	o.metrics.AssessmentsSaved.Add(ctx, 1)

	o.mu.Lock()
	o.transcript = append(o.transcript, questionEntry, answerEntry)
	o.assessments = append(o.assessments, assessment)
	o.turn.Flush()
	o.currentQ++
	done := o.currentQ >= o.totalQ && !o.wrapped
	if done {
		o.wrapped = true
	}
	o.mu.Unlock()

	o.log.Info("assessment saved",
		"session_id", o.cfg.SessionID,
		"question", questionID,
		"of", o.totalQ,
	)
	o.publish()

	if done {
		o.beginWrapUp()
	}
	return fmt.Sprintf(`{"status": "saved", "question_id": %d}`, questionID), nil
}

// persistTurn appends both transcript entries and the assessment to the
// durable store. Any failure withholds the tool-call acknowledgment.
func (o *Orchestrator) persistTurn(ctx context.Context, question, answer session.TranscriptEntry, assessment session.QuestionAssessment) error {
	if err := o.deps.Store.AppendTranscript(ctx, o.cfg.SessionID, question); err != nil {
		return fmt.Errorf("interview: persist question: %w", err)
	}
	if err := o.deps.Store.AppendTranscript(ctx, o.cfg.SessionID, answer); err != nil {
		return fmt.Errorf("interview: persist answer: %w", err)
	}
	if err := o.deps.Store.AppendAssessment(ctx, o.cfg.SessionID, assessment); err != nil {
		return fmt.Errorf("interview: persist assessment: %w", err)
	}
	return nil
}

// beginWrapUp instructs the agent to close the interview and arms the grace
// timer that force-disconnects once the closing audio had time to play out.
func (o *Orchestrator) beginWrapUp() {
	o.mu.Lock()
	ch := o.ch
	o.mu.Unlock()
	if ch != nil {
		if err := ch.SendText(wrapUpMessage); err != nil {
			o.log.Warn("send wrap-up message", "error", err)
		}
	}

	o.mu.Lock()
	if !o.stopped && o.graceTimer == nil {
		o.graceTimer = time.AfterFunc(o.graceDelay, o.finish)
	}
	o.mu.Unlock()
}

// finish completes the session: exactly one invocation survives, tears
// everything down, and hands the accumulated record to the completion
// callback.
func (o *Orchestrator) finish() {
	o.mu.Lock()
	if o.completed {
		o.mu.Unlock()
		return
	}
	o.completed = true
	transcript := append([]session.TranscriptEntry(nil), o.transcript...)
	assessments := append([]session.QuestionAssessment(nil), o.assessments...)
	o.mu.Unlock()

	o.teardown()
	o.publish()

	o.log.Info("interview complete",
		"session_id", o.cfg.SessionID,
		"questions", len(assessments),
	)
	if o.onComplete != nil {
		o.onComplete(transcript, assessments)
	}
}

// transportFault reacts to a mid-session channel fault: metric updates halt
// and the error surfaces to the caller, but the transcript collected so far
// is kept.
func (o *Orchestrator) transportFault(err error) {
	o.engine.Stop()

	o.mu.Lock()
	sttSess := o.sttSess
	o.sttSess = nil
	o.mu.Unlock()
	if sttSess != nil {
		_ = sttSess.Close()
	}

	o.publish()
	if o.onError != nil {
		o.onError(err)
	}
}

// ── speech recognition plumbing ───────────────────────────────────────────────

// finalsLoop consumes finalized recognition segments. If the stream ends
// while the channel is still connected, recognition is restarted — the
// collaborator must not silently die mid-interview.
func (o *Orchestrator) finalsLoop(sess stt.SessionHandle) {
	for tr := range sess.Finals() {
		o.candidateFinal(tr.Text)
	}

	o.mu.Lock()
	stopped := o.stopped
	ch := o.ch
	cfg := o.sttCfg
	ctx := o.sessCtx
	o.mu.Unlock()
	if stopped || ch == nil || ch.State() != channel.StateConnected {
		return
	}

	o.log.Warn("speech recognition stream ended, restarting", "session_id", o.cfg.SessionID)
	next, err := o.deps.STT.StartStream(ctx, cfg)
	if err != nil {
		o.log.Error("restart speech recognition", "error", err)
		return
	}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		_ = next.Close()
		return
	}
	o.sttSess = next
	o.mu.Unlock()

	go o.finalsLoop(next)
	go drainPartials(next)
}

// drainPartials discards interim segments so a slow consumer can never stall
// the recognizer's receive loop. Interim text is a UI concern outside the
// session core.
func drainPartials(sess stt.SessionHandle) {
	for range sess.Partials() {
	}
}

// tee duplicates the capture stream: every frame feeds the analysis engine
// and the recognizer before being forwarded to the channel's capture loop.
// Forwarding drops on backpressure; a stalled consumer must not stall the
// device.
func (o *Orchestrator) tee(src audio.CaptureStream) audio.CaptureStream {
	out := make(chan audio.Frame, 32)
	go func() {
		defer close(out)
		ctx := context.Background()
		for f := range src.Frames() {
			tickStart := time.Now()
			o.engine.AudioTick(f.PCM, f.Timestamp)
			o.metrics.AnalysisTickDuration.Record(ctx, time.Since(tickStart).Seconds())

			o.mu.Lock()
			sttSess := o.sttSess
			o.mu.Unlock()
			if sttSess != nil {
				if err := sttSess.SendAudio(f.PCM); err != nil {
					o.log.Debug("recognizer rejected frame", "error", err)
					o.metrics.RecordFrameDropped(ctx, "stt")
				}
			}

			select {
			case out <- f:
			default:
				o.metrics.RecordFrameDropped(ctx, "channel")
			}
		}
	}()
	return &teeStream{src: src, out: out}
}

// teeStream presents the forwarded leg of the tee as a capture stream.
// Closing it closes the underlying device stream.
type teeStream struct {
	src audio.CaptureStream
	out chan audio.Frame
}

func (t *teeStream) Frames() <-chan audio.Frame { return t.out }
func (t *teeStream) SampleRate() int            { return t.src.SampleRate() }
func (t *teeStream) Close() error               { return t.src.Close() }

// ── internals ─────────────────────────────────────────────────────────────────

// teardown releases the channel, engine, recognizer, and playback sink.
// Idempotent: already-released collaborators are skipped.
func (o *Orchestrator) teardown() {
	o.mu.Lock()
	o.stopped = true
	ch := o.ch
	sttSess := o.sttSess
	sink := o.sink
	cancel := o.sessCancel
	o.sttSess = nil
	o.sink = nil
	o.mu.Unlock()

	if ch != nil {
		ch.Disconnect()
	}
	o.engine.Stop()
	if sttSess != nil {
		_ = sttSess.Close()
	}
	if sink != nil {
		_ = sink.Close()
	}
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Connection:      channel.StateDisconnected,
		CurrentQuestion: o.currentQ,
		TotalQuestions:  o.totalQ,
		QuestionText:    o.turn.Question(),
		AnswerText:      o.turn.Answer(),
		Transcript:      append([]session.TranscriptEntry(nil), o.transcript...),
		Assessments:     append([]session.QuestionAssessment(nil), o.assessments...),
		Metrics:         o.engine.Snapshot(),
	}
	if o.ch != nil {
		snap.Connection = o.ch.State()
	}
	return snap
}

func (o *Orchestrator) publish() {
	if o.onUpdate == nil {
		return
	}
	o.mu.Lock()
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.onUpdate(snap)
}

func clampScore(score int) int {
	if score < 1 || score > 10 {
		return defaultScore
	}
	return score
}
