// Package agent defines the Provider interface for remote conversational
// agent backends.
//
// An agent provider wraps a real-time voice AI service that conducts the
// interview: it accepts a continuous stream of candidate audio and emits
// synthesised interviewer speech, incremental text fragments, and structured
// tool calls — all multiplexed over one long-lived session. Examples include
// the Gemini Live API and the OpenAI Realtime API.
//
// The central abstraction is SessionHandle: a bidirectional, stateful channel
// that is the hot path of the streaming session — every method must return
// quickly, and audio I/O is channel-based so the capture loop is never
// blocked by the network.
//
// All implementations must be safe for concurrent use.
package agent

import "context"

// InputSampleRate is the PCM sample rate (Hz) the agent expects for
// candidate audio.
const InputSampleRate = 16000

// OutputSampleRate is the PCM sample rate (Hz) of the agent's synthesised
// speech.
const OutputSampleRate = 24000

// ToolCallHandler is a callback invoked by the session whenever the agent
// requests a tool call. The handler receives the tool name and a
// JSON-encoded arguments string and must return a JSON-encoded result
// string, or an error. The session sends the returned value back to the
// agent as the acknowledgment naming the original call — the agent will not
// proceed with the conversation until it arrives, so the handler must only
// return once the call's effects are durable.
//
// The handler is called from the session's internal receive goroutine and
// must not call blocking session methods.
type ToolCallHandler func(name string, args string) (string, error)

// ToolDefinition declares one tool offered to the agent at connect time.
type ToolDefinition struct {
	// Name is the tool's identifier (e.g., "save_assessment").
	Name string

	// Description tells the agent when to invoke the tool.
	Description string

	// Parameters is the JSON-schema object describing the arguments.
	Parameters map[string]any
}

// SessionParams is the initial configuration for a new agent session.
type SessionParams struct {
	// Instructions is the fully assembled system prompt: interviewer persona,
	// role context, difficulty, question budget, and truncated reference
	// documents. See the prompt package for assembly and budgeting.
	Instructions string

	// Voice selects the provider-specific voice for synthesised speech.
	// Empty selects the provider default.
	Voice string

	// Tools is the set of tool definitions offered to the agent.
	Tools []ToolDefinition
}

// SessionHandle represents an open agent session.
//
// Callers must call Close when the session is no longer needed; Close is
// idempotent. All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of 16 kHz mono s16le PCM candidate audio.
	// Returns an error if the session is closed or the transport fails.
	SendAudio(chunk []byte) error

	// SendText delivers a discrete control text message to the agent (e.g.,
	// the instruction to deliver the closing statement).
	SendText(text string) error

	// Audio returns a read-only channel emitting 24 kHz mono s16le PCM
	// fragments of the agent's speech. Closed when the session ends.
	// Consumers must drain promptly to avoid stalling the receive loop.
	Audio() <-chan []byte

	// Text returns a read-only channel emitting incremental text fragments
	// of the agent's speech, in arrival order. Closed when the session ends.
	Text() <-chan string

	// OnToolCall registers the handler invoked for agent tool calls. Only
	// one handler may be active; subsequent calls replace it. Passing nil
	// clears the handler.
	OnToolCall(handler ToolCallHandler)

	// OnError registers a callback for non-fatal error events surfaced by
	// the provider mid-session.
	OnError(handler func(error))

	// Err returns the error that terminated the session, or nil if it ended
	// cleanly. Check after the Audio channel closes.
	Err() error

	// Close terminates the session and releases all resources, closing the
	// Audio and Text channels. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any conversational agent backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Connect establishes a new agent session. The returned SessionHandle is
	// ready to accept audio immediately. Returns an error if the session
	// cannot be established; the caller owns the handle and must Close it.
	Connect(ctx context.Context, params SessionParams) (SessionHandle, error)
}
