// Package mock provides test doubles for the agent package interfaces.
//
// Use Provider to verify Connect calls and feed controlled agent sessions.
// Use Session to drive the bidirectional audio/text streams and inspect
// which methods were invoked by the orchestrator.
//
// Example:
//
//	sess := &mock.Session{
//	    AudioCh: make(chan []byte, 8),
//	    TextCh:  make(chan string, 4),
//	}
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, params)
package mock

import (
	"context"
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/provider/agent"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Params is the SessionParams passed to Connect.
	Params agent.SessionParams
}

// Provider is a mock implementation of agent.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect
	// returns a new default Session with buffered channels.
	Session agent.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, params agent.SessionParams) (agent.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Params: params})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{
		AudioCh: make(chan []byte, 64),
		TextCh:  make(chan string, 16),
	}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = nil
}

// Ensure Provider implements agent.Provider at compile time.
var _ agent.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// SendTextCall records a single invocation of Session.SendText.
type SendTextCall struct {
	// Text is the string passed to SendText.
	Text string
}

// Session is a mock implementation of agent.SessionHandle.
// Callers should pre-populate AudioCh and TextCh, then close them to signal
// end-of-session.
type Session struct {
	mu sync.Mutex

	// AudioCh is the channel returned by Audio(). Callers own this channel.
	AudioCh chan []byte

	// TextCh is the channel returned by Text(). Callers own this channel.
	TextCh chan string

	// toolCallHandler is the currently registered ToolCallHandler.
	toolCallHandler agent.ToolCallHandler

	// errorHandler is the currently registered error callback.
	errorHandler func(error)

	// --- Configurable errors ---

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// SendTextErr, if non-nil, is returned by every SendText call.
	SendTextErr error

	// ErrResult is returned by Err.
	ErrResult error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// SendTextCalls records every call to SendText in order.
	SendTextCalls []SendTextCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	// OnToolCallSetCount is the number of times OnToolCall was called.
	OnToolCallSetCount int
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// SendText records the call and returns SendTextErr.
func (s *Session) SendText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendTextCalls = append(s.SendTextCalls, SendTextCall{Text: text})
	return s.SendTextErr
}

// Audio returns AudioCh.
func (s *Session) Audio() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AudioCh
}

// Text returns TextCh.
func (s *Session) Text() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TextCh
}

// OnToolCall stores the handler and increments OnToolCallSetCount.
func (s *Session) OnToolCall(handler agent.ToolCallHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCallHandler = handler
	s.OnToolCallSetCount++
}

// OnError stores the error callback.
func (s *Session) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

// Handler returns the currently registered ToolCallHandler. Thread-safe.
// Useful in tests to drive tool calls through the orchestrator.
func (s *Session) Handler() agent.ToolCallHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolCallHandler
}

// ErrorHandler returns the currently registered error callback. Thread-safe.
func (s *Session) ErrorHandler() func(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorHandler
}

// InvokeToolCall calls the registered handler with the given name and
// arguments, as the real session's receive loop would. Returns the handler's
// result. Fails with a zero-value result when no handler is registered.
func (s *Session) InvokeToolCall(name, args string) (string, error) {
	h := s.Handler()
	if h == nil {
		return "", nil
	}
	return h(name, args)
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// SendTextCallCount returns the number of SendText calls. Thread-safe.
func (s *Session) SendTextCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendTextCalls)
}

// LastSendText returns the text of the most recent SendText call, or "".
func (s *Session) LastSendText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.SendTextCalls) == 0 {
		return ""
	}
	return s.SendTextCalls[len(s.SendTextCalls)-1].Text
}

// Err returns ErrResult.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrResult
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.SendTextCalls = nil
	s.CloseCallCount = 0
	s.OnToolCallSetCount = 0
}

// Ensure Session implements agent.SessionHandle at compile time.
var _ agent.SessionHandle = (*Session)(nil)
