// Package playback implements gapless scheduling of decoded agent audio.
//
// Inbound audio fragments arrive in bursts that are faster than real time.
// The [Scheduler] arranges them on a monotonic playback clock so that each
// buffer begins exactly when the previous one ends — or immediately, if the
// queue has drained — eliminating both overlap and gap-induced clicks.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/pkg/audio"
)

// Clock reports the current position on the playback timeline, relative to
// session start. Injected so tests can drive scheduling deterministically.
type Clock func() time.Duration

// ErrClosed is returned by [Scheduler.Schedule] after Close.
var ErrClosed = errors.New("playback: scheduler is closed")

// queued is one scheduled buffer awaiting playout.
type queued struct {
	pcm   []byte
	start time.Duration
}

// Scheduler queues inbound PCM buffers for gapless, in-order playout.
//
// Invariant: for consecutive buffers i and i+1,
// start[i+1] == max(clock at scheduling time, start[i]+duration[i]).
//
// A single playout goroutine drains the queue in order, so sink writes never
// overlap: a sink that writes slower than the schedule delays later buffers
// instead of racing them.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	clock      Clock
	sink       audio.PlaybackSink
	sampleRate int
	metrics    *observe.Metrics

	mu        sync.Mutex
	nextStart time.Duration
	queue     []queued
	gen       uint64
	closed    bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// Option configures a [Scheduler] during construction.
type Option func(*Scheduler)

// WithMetrics records the scheduled-buffer counter and lead-time histogram
// on m. Without it, scheduling is not instrumented.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a Scheduler that plays buffers of the given sample rate into
// sink. When clock is nil, a wall clock anchored at the call time is used.
func New(sink audio.PlaybackSink, sampleRate int, clock Clock, opts ...Option) *Scheduler {
	if clock == nil {
		start := time.Now()
		clock = func() time.Duration { return time.Since(start) }
	}
	s := &Scheduler{
		clock:      clock,
		sink:       sink,
		sampleRate: sampleRate,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Schedule queues pcm for playout and returns the start position assigned to
// it on the playback timeline: the later of the current clock position and
// the previous buffer's end.
func (s *Scheduler) Schedule(pcm []byte) (time.Duration, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if len(pcm) == 0 {
		next := s.nextStart
		s.mu.Unlock()
		return next, nil
	}

	now := s.clock()
	start := now
	if s.nextStart > start {
		start = s.nextStart
	}
	s.nextStart = start + audio.PCMDuration(len(pcm), s.sampleRate)
	s.queue = append(s.queue, queued{pcm: pcm, start: start})
	s.mu.Unlock()

	if s.metrics != nil {
		ctx := context.Background()
		s.metrics.PlaybackScheduled.Add(ctx, 1)
		s.metrics.PlaybackLeadTime.Record(ctx, (start - now).Seconds())
	}
	s.signal()
	return start, nil
}

// signal nudges the playout goroutine without blocking. The channel holds
// one pending wake-up; the goroutine re-reads the queue on every cycle, so
// collapsed signals are harmless.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the playout goroutine. It sleeps until the head of the queue is due
// and then writes it to the sink. Being the only writer, it keeps sink
// writes serialized and in arrival order.
func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		head := s.queue[0]
		gen := s.gen
		delay := head.start - s.clock()
		s.mu.Unlock()

		if delay > 0 {
			timer.Reset(delay)
			select {
			case <-timer.C:
			case <-s.wake:
				// The queue changed under us; re-evaluate the head.
				if !timer.Stop() {
					<-timer.C
				}
				continue
			case <-s.done:
				if !timer.Stop() {
					<-timer.C
				}
				return
			}
		}

		s.mu.Lock()
		// A flush while we slept invalidated the snapshot taken above.
		if s.closed || gen != s.gen || len(s.queue) == 0 {
			s.mu.Unlock()
			continue
		}
		pcm := s.queue[0].pcm
		s.queue[0] = queued{}
		s.queue = s.queue[1:]
		sink := s.sink
		s.mu.Unlock()

		// A dropped frame must never crash the playout path.
		_ = sink.Write(pcm)
	}
}

// Flush cancels all pending buffers without letting them finish and resets
// the timeline so the next buffer starts immediately. A buffer already being
// written to the sink completes; nothing queued behind it survives.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	s.flushLocked()
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) flushLocked() {
	s.queue = nil
	s.gen++
	s.nextStart = 0
}

// Pending reports whether the timeline still has scheduled audio ahead of
// the current clock position.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart > s.clock()
}

// Close flushes all pending buffers and prevents further scheduling.
// Safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.flushLocked()
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}
