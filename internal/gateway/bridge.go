package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cadenza-ai/cadenza/pkg/audio"
)

// DefaultBridgeSampleRate is the capture rate the client is expected to
// stream at.
const DefaultBridgeSampleRate = 48000

// bridgeFrameBuffer bounds the inbound frame queue. Frames beyond it are
// dropped rather than stalling the WebSocket read loop.
const bridgeFrameBuffer = 64

// ErrNoClient is returned by OpenCapture and OpenPlayback when no audio
// client is connected.
var ErrNoClient = errors.New("gateway: no audio client connected")

// Bridge implements [audio.Devices] over a WebSocket connection.
//
// The client streams raw s16le mono PCM as binary messages; agent audio is
// written back the same way. One client may be connected at a time; a second
// connection attempt is rejected before the upgrade.
type Bridge struct {
	sampleRate int
	log        *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	frames chan audio.Frame
}

// BridgeOption configures a [Bridge].
type BridgeOption func(*Bridge)

// WithBridgeSampleRate sets the capture rate announced for inbound frames.
func WithBridgeSampleRate(rate int) BridgeOption {
	return func(b *Bridge) {
		if rate > 0 {
			b.sampleRate = rate
		}
	}
}

// WithBridgeLogger sets the logger. Defaults to slog.Default.
func WithBridgeLogger(log *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// NewBridge creates an audio bridge with no client connected.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{
		sampleRate: DefaultBridgeSampleRate,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle upgrades the request to a WebSocket and serves the audio stream
// until the client disconnects. It blocks for the lifetime of the
// connection.
func (b *Bridge) Handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	if b.conn != nil {
		b.mu.Unlock()
		http.Error(w, "an audio client is already connected", http.StatusConflict)
		return
	}
	b.mu.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		b.log.Warn("gateway: websocket accept failed", "err", err)
		return
	}

	frames := make(chan audio.Frame, bridgeFrameBuffer)

	b.mu.Lock()
	if b.conn != nil {
		// Raced with another upgrade.
		b.mu.Unlock()
		conn.Close(websocket.StatusPolicyViolation, "an audio client is already connected")
		return
	}
	b.conn = conn
	b.frames = frames
	b.mu.Unlock()

	b.log.Info("gateway: audio client connected", "remote", r.RemoteAddr)
	b.readLoop(r.Context(), conn, frames)
}

// readLoop pumps binary messages into the frame channel until the
// connection dies, then detaches the client.
func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn, frames chan audio.Frame) {
	start := time.Now()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		if typ != websocket.MessageBinary || len(data) == 0 {
			continue
		}
		frame := audio.Frame{
			PCM:        data,
			SampleRate: b.sampleRate,
			Timestamp:  time.Since(start),
		}
		select {
		case frames <- frame:
		default:
			// Drop rather than stall the socket.
		}
	}

	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
		b.frames = nil
	}
	b.mu.Unlock()

	close(frames)
	conn.Close(websocket.StatusNormalClosure, "")
	b.log.Info("gateway: audio client disconnected")
}

// Connected reports whether an audio client is currently attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// OpenCapture implements [audio.Devices]. It returns the connected client's
// inbound frame stream, or [ErrNoClient] when no client is attached.
func (b *Bridge) OpenCapture(_ context.Context) (audio.CaptureStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil, ErrNoClient
	}
	return &bridgeCapture{bridge: b, conn: b.conn, frames: b.frames, rate: b.sampleRate}, nil
}

// OpenPlayback implements [audio.Devices]. Writes go to the connected
// client as binary messages.
func (b *Bridge) OpenPlayback(_ context.Context) (audio.PlaybackSink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil, ErrNoClient
	}
	return &bridgePlayback{bridge: b}, nil
}

// writeBinary sends pcm to the current client, if any.
func (b *Bridge) writeBinary(pcm []byte) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNoClient
	}
	return conn.Write(context.Background(), websocket.MessageBinary, pcm)
}

// ─── device handles ──────────────────────────────────────────────────────────

// bridgeCapture is the capture-side device handle for one client connection.
type bridgeCapture struct {
	bridge *Bridge
	conn   *websocket.Conn
	frames chan audio.Frame
	rate   int

	closeOnce sync.Once
}

func (c *bridgeCapture) Frames() <-chan audio.Frame { return c.frames }

func (c *bridgeCapture) SampleRate() int { return c.rate }

// Close ends the client connection; the read loop then closes the frame
// channel.
func (c *bridgeCapture) Close() error {
	c.closeOnce.Do(func() {
		c.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

type bridgePlayback struct {
	bridge    *Bridge
	mu        sync.Mutex
	closedVal bool
}

func (p *bridgePlayback) Write(pcm []byte) error {
	p.mu.Lock()
	closed := p.closedVal
	p.mu.Unlock()
	if closed {
		return errors.New("gateway: playback sink closed")
	}
	return p.bridge.writeBinary(pcm)
}

func (p *bridgePlayback) Close() error {
	p.mu.Lock()
	p.closedVal = true
	p.mu.Unlock()
	return nil
}

// Compile-time interface checks.
var (
	_ audio.Devices       = (*Bridge)(nil)
	_ audio.CaptureStream = (*bridgeCapture)(nil)
	_ audio.PlaybackSink  = (*bridgePlayback)(nil)
)
