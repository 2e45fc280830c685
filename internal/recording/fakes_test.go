package recording

import (
	"context"
	"sync"
	"time"

	"github.com/audiolibrelab/interviewprep/internal/audio"
)

// fakeDevice hands out fakeStreams. Events are emitted synchronously by the
// test through the stream.
type fakeDevice struct {
	mu       sync.Mutex
	openErr  error
	caps     audio.Capabilities
	streams  []*fakeStream
	opened   chan struct{} // signalled when Open is entered, if set
	unblock  chan struct{} // Open waits on this, if set
	lastOpen audio.Constraints
}

func newFakeDevice(pauseCapable bool) *fakeDevice {
	return &fakeDevice{
		caps: audio.Capabilities{
			PauseCapable: pauseCapable,
			Encodings:    []string{"audio/webm;codecs=opus", audio.BaselineMIMEType},
		},
	}
}

func (d *fakeDevice) Open(ctx context.Context, c audio.Constraints) (audio.Stream, error) {
	if d.opened != nil {
		d.opened <- struct{}{}
	}
	if d.unblock != nil {
		select {
		case <-d.unblock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastOpen = c
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeStream{caps: d.caps}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) last() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

type fakeStream struct {
	mu        sync.Mutex
	caps      audio.Capabilities
	handler   audio.Handler
	format    audio.Format
	timeslice time.Duration
	started   bool
	paused    bool
	stopped   bool
	released  int
	tail      []byte // delivered by Stop
	stopErr   error
	pauseErr  error
	startErr  error
}

func (s *fakeStream) Capabilities() audio.Capabilities { return s.caps }

func (s *fakeStream) Start(format audio.Format, timeslice time.Duration, h audio.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.format = format
	s.timeslice = timeslice
	s.handler = h
	s.started = true
	return nil
}

func (s *fakeStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pauseErr != nil {
		return s.pauseErr
	}
	s.paused = true
	return nil
}

func (s *fakeStream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	h := s.handler
	tail := s.tail
	s.tail = nil
	s.stopped = true
	err := s.stopErr
	s.mu.Unlock()

	if len(tail) > 0 {
		h.OnChunk(tail)
	}
	return err
}

func (s *fakeStream) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

func (s *fakeStream) releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *fakeStream) emit(data []byte) {
	s.handler.OnChunk(data)
}

func (s *fakeStream) fail(err error) {
	s.handler.OnError(err)
}

func (s *fakeStream) end() {
	s.handler.OnStop()
}

// manualClock fires tickers only when advanced.
type manualClock struct {
	mu      sync.Mutex
	next    int
	tickers map[int]*manualTicker
}

type manualTicker struct {
	every   time.Duration
	elapsed time.Duration
	fn      func()
}

func newManualClock() *manualClock {
	return &manualClock{tickers: make(map[int]*manualTicker)}
}

func (m *manualClock) Every(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.tickers[id] = &manualTicker{every: d, fn: fn}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.tickers, id)
	}
}

// Advance moves time forward in 100ms steps, firing due tickers.
func (m *manualClock) Advance(d time.Duration) {
	const step = 100 * time.Millisecond
	for passed := time.Duration(0); passed < d; passed += step {
		m.mu.Lock()
		var due []func()
		for _, t := range m.tickers {
			t.elapsed += step
			if t.elapsed >= t.every {
				t.elapsed -= t.every
				due = append(due, t.fn)
			}
		}
		m.mu.Unlock()

		for _, fn := range due {
			fn()
		}
	}
}

func (m *manualClock) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}
