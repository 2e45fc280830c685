package recording

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/interviewprep/internal/audio"
)

// Consumer receives a finalized artifact on Submit, typically to upload it.
type Consumer interface {
	Consume(ctx context.Context, a *Artifact) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, a *Artifact) error

func (f ConsumerFunc) Consume(ctx context.Context, a *Artifact) error {
	return f(ctx, a)
}

// Status is an observable snapshot of the session.
type Status struct {
	State          State     `json:"state"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	PauseCapable   bool      `json:"pause_capable"`
	MIMEType       string    `json:"mime_type,omitempty"`
	ChunkCount     int       `json:"chunk_count"`
	ArtifactSize   int       `json:"artifact_size,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorKind  ErrorKind `json:"last_error_kind,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithConstraints(constraints audio.Constraints) Option {
	return func(c *Controller) { c.constraints = constraints }
}

// WithPreferences sets the encoding preference list, best first.
func WithPreferences(prefs []string) Option {
	return func(c *Controller) {
		if len(prefs) > 0 {
			c.prefs = append([]string(nil), prefs...)
		}
	}
}

// WithTimeslice sets the chunk delivery cadence.
func WithTimeslice(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeslice = d
		}
	}
}

// WithOnComplete registers the callback invoked once per session with the
// finalized artifact.
func WithOnComplete(fn func(*Artifact)) Option {
	return func(c *Controller) { c.onComplete = fn }
}

func WithConsumer(consumer Consumer) Option {
	return func(c *Controller) { c.consumer = consumer }
}

func WithOnStateChange(fn func(from, to State)) Option {
	return func(c *Controller) { c.onStateChange = fn }
}

type stateChange struct {
	from, to State
}

// Controller owns the lifecycle of one microphone capture session at a
// time. It is safe for concurrent use; callbacks are never invoked with
// the internal lock held.
type Controller struct {
	device        audio.Device
	clock         Clock
	constraints   audio.Constraints
	prefs         []string
	timeslice     time.Duration
	onComplete    func(*Artifact)
	onStateChange func(from, to State)
	consumer      Consumer

	mu           sync.Mutex
	state        State
	elapsed      int
	chunks       [][]byte
	artifact     *Artifact
	pauseCapable bool
	format       audio.Format
	stream       audio.Stream
	cancelOpen   context.CancelFunc
	cancelTick   func()
	tickID       uint64
	gen          uint64 // bumped whenever the session is abandoned
	finalizing   bool
	closed       bool
	lastErr      error

	pending   []stateChange
	completed *Artifact
}

// New creates an idle controller for device.
func New(device audio.Device, opts ...Option) *Controller {
	c := &Controller{
		device:      device,
		clock:       SystemClock,
		constraints: audio.DefaultConstraints(),
		prefs:       audio.DefaultPreferences(),
		timeslice:   time.Second,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start acquires the input device and begins recording.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.unlock()
		return newError(KindInvalidState, "start", errors.New("controller is closed"))
	}
	if c.state != StateIdle {
		err := invalidState("start", c.state)
		c.unlock()
		return err
	}
	c.apply(EventStart)
	c.gen++
	gen := c.gen
	openCtx, cancel := context.WithCancel(ctx)
	c.cancelOpen = cancel
	c.lastErr = nil
	c.unlock()

	slog.Debug("Requesting audio input",
		"echo_cancellation", c.constraints.EchoCancellation,
		"noise_suppression", c.constraints.NoiseSuppression,
		"sample_rate", c.constraints.SampleRate)

	stream, err := c.device.Open(openCtx, c.constraints)
	cancel()

	c.mu.Lock()
	if c.gen != gen || c.state != StateRequesting {
		c.unlock()
		if stream != nil {
			stream.Release()
		}
		return newError(KindInvalidState, "start", errors.New("session was cancelled while requesting the device"))
	}
	c.cancelOpen = nil

	if err != nil {
		e := newError(classifyOpenError(err), "start", err)
		c.lastErr = e
		c.apply(EventDeny)
		c.unlock()
		slog.Error("Failed to acquire audio input", "kind", e.Kind, "error", err)
		return e
	}

	caps := stream.Capabilities()
	format, err := audio.SelectFormat(c.prefs, caps)
	if err != nil {
		stream.Release()
		e := newError(KindUnsupported, "start", err)
		c.lastErr = e
		c.apply(EventDeny)
		c.unlock()
		slog.Error("No usable encoding", "available", caps.Encodings, "error", err)
		return e
	}

	c.stream = stream
	c.format = format
	c.pauseCapable = caps.PauseCapable
	c.chunks = nil
	c.elapsed = 0
	c.artifact = nil
	c.apply(EventGrant)

	if err := stream.Start(format, c.timeslice, &streamHandler{c: c, gen: gen}); err != nil {
		c.stream = nil
		stream.Release()
		e := newError(KindDeviceError, "start", err)
		c.lastErr = e
		c.apply(EventDeviceError)
		c.unlock()
		slog.Error("Failed to start capture", "error", err)
		return e
	}
	c.startTicker()
	c.unlock()

	slog.Info("Recording started", "mime", format.MIMEType, "pause_capable", caps.PauseCapable)
	return nil
}

// Pause suspends capture. It fails with CapabilityUnavailable, without
// changing state, when the device cannot pause.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if !c.pauseCapable {
		c.unlock()
		return newError(KindCapabilityUnavailable, "pause", errors.New("input device does not support pause"))
	}
	if c.state != StateRecording || c.finalizing {
		err := invalidState("pause", c.state)
		c.unlock()
		return err
	}
	if err := c.stream.Pause(); err != nil {
		if errors.Is(err, audio.ErrUnsupported) {
			c.unlock()
			return newError(KindCapabilityUnavailable, "pause", err)
		}
		e := c.failLocked("pause", err)
		c.unlock()
		return e
	}
	c.stopTicker()
	c.apply(EventPause)
	c.unlock()

	slog.Debug("Recording paused")
	return nil
}

// Resume continues a paused capture without resetting the elapsed counter.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if !c.pauseCapable {
		c.unlock()
		return newError(KindCapabilityUnavailable, "resume", errors.New("input device does not support resume"))
	}
	if c.state != StatePaused || c.finalizing {
		err := invalidState("resume", c.state)
		c.unlock()
		return err
	}
	if err := c.stream.Resume(); err != nil {
		if errors.Is(err, audio.ErrUnsupported) {
			c.unlock()
			return newError(KindCapabilityUnavailable, "resume", err)
		}
		e := c.failLocked("resume", err)
		c.unlock()
		return e
	}
	c.apply(EventResume)
	c.startTicker()
	c.unlock()

	slog.Debug("Recording resumed")
	return nil
}

// Stop finalizes the recording. Outside Recording and Paused it does
// nothing.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.state.Active() || c.finalizing {
		c.unlock()
		return nil
	}
	c.finalizing = true
	c.stopTicker()
	stream := c.stream
	gen := c.gen
	c.unlock()

	// Stop delivers the tail of the recording through OnChunk, which
	// needs the lock.
	stopErr := stream.Stop()

	c.mu.Lock()
	if c.gen != gen {
		// reset or closed meanwhile
		c.unlock()
		return nil
	}
	c.finalizing = false
	c.stream = nil
	stream.Release()

	if stopErr != nil {
		e := newError(KindDeviceError, "stop", stopErr)
		c.lastErr = e
		c.chunks = nil
		c.apply(EventDeviceError)
		c.unlock()
		slog.Error("Failed to finalize recording", "error", stopErr)
		return e
	}
	c.finalizeLocked()
	c.unlock()
	return nil
}

// Reset discards the current session and returns to Idle. An active
// session is aborted and its device released.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.closed {
		c.unlock()
		return newError(KindInvalidState, "reset", errors.New("controller is closed"))
	}
	c.abandonLocked()
	c.unlock()

	slog.Debug("Recording session reset")
	return nil
}

// Close releases the device and cancels timers synchronously. The
// controller cannot be started again.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.unlock()
		return
	}
	c.closed = true
	c.abandonLocked()
	c.unlock()
}

// Submit hands the finalized artifact to the consumer. Consumer errors are
// returned unchanged and the artifact stays available for another attempt.
func (c *Controller) Submit(ctx context.Context, a *Artifact) error {
	c.mu.Lock()
	if c.state != StateStopped || c.artifact == nil {
		err := invalidState("submit", c.state)
		c.unlock()
		return err
	}
	if a == nil || a != c.artifact {
		c.unlock()
		return newError(KindInvalidState, "submit", errors.New("artifact does not belong to the current session"))
	}
	consumer := c.consumer
	c.unlock()

	if consumer == nil {
		return errors.New("no consumer configured")
	}
	return consumer.Consume(ctx, a)
}

// Status returns a snapshot of the session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:          c.state,
		ElapsedSeconds: c.elapsed,
		PauseCapable:   c.pauseCapable,
		MIMEType:       c.format.MIMEType,
		ChunkCount:     len(c.chunks),
	}
	if c.artifact != nil {
		s.ArtifactSize = c.artifact.Size()
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
		s.LastErrorKind = KindOf(c.lastErr)
	}
	return s
}

// Artifact returns the finalized recording, or nil outside Stopped.
func (c *Controller) Artifact() *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// LastError returns the error that ended the last session, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) apply(ev Event) {
	to, err := Transition(c.state, ev)
	if err != nil {
		slog.Debug("Ignoring event", "state", c.state, "event", ev)
		return
	}
	if to != c.state {
		c.pending = append(c.pending, stateChange{from: c.state, to: to})
	}
	c.state = to
}

// unlock releases the lock and then runs the callbacks queued while it
// was held.
func (c *Controller) unlock() {
	pending := c.pending
	completed := c.completed
	c.pending = nil
	c.completed = nil
	c.mu.Unlock()

	if c.onStateChange != nil {
		for _, p := range pending {
			c.onStateChange(p.from, p.to)
		}
	}
	if completed != nil && c.onComplete != nil {
		c.onComplete(completed)
	}
}

func (c *Controller) startTicker() {
	c.tickID++
	id := c.tickID
	c.cancelTick = c.clock.Every(time.Second, func() { c.tick(id) })
}

func (c *Controller) stopTicker() {
	if c.cancelTick != nil {
		c.cancelTick()
		c.cancelTick = nil
	}
	c.tickID++
}

func (c *Controller) tick(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.tickID || c.state != StateRecording || c.finalizing {
		return
	}
	c.elapsed++
}

func (c *Controller) releaseLocked() {
	c.stopTicker()
	if c.stream != nil {
		c.stream.Release()
		c.stream = nil
	}
}

// failLocked ends an active session with a DeviceError.
func (c *Controller) failLocked(op string, err error) *Error {
	e := newError(KindDeviceError, op, err)
	c.lastErr = e
	c.releaseLocked()
	c.chunks = nil
	c.finalizing = false
	c.apply(EventDeviceError)
	slog.Error("Recording failed", "op", op, "error", err)
	return e
}

func (c *Controller) finalizeLocked() {
	c.artifact = newArtifact(c.chunks, c.format, c.elapsed)
	c.completed = c.artifact
	c.apply(EventStop)
	slog.Info("Recording stopped",
		"elapsed_seconds", c.elapsed,
		"chunks", len(c.chunks),
		"bytes", c.artifact.Size(),
		"mime", c.format.MIMEType)
}

func (c *Controller) abandonLocked() {
	c.gen++
	if c.cancelOpen != nil {
		c.cancelOpen()
		c.cancelOpen = nil
	}
	c.releaseLocked()
	c.finalizing = false
	c.chunks = nil
	c.artifact = nil
	c.elapsed = 0
	c.pauseCapable = false
	c.format = audio.Format{}
	c.lastErr = nil
	c.apply(EventReset)
}

// streamHandler routes device events for one session. Events from an
// abandoned session are dropped.
type streamHandler struct {
	c   *Controller
	gen uint64
}

func (h *streamHandler) OnChunk(data []byte) {
	c := h.c
	c.mu.Lock()
	defer c.unlock()
	if h.gen != c.gen || !c.state.Active() || len(data) == 0 {
		return
	}
	c.chunks = append(c.chunks, append([]byte(nil), data...))
	c.apply(EventChunk)
}

func (h *streamHandler) OnError(err error) {
	c := h.c
	c.mu.Lock()
	defer c.unlock()
	if h.gen != c.gen || !c.state.Active() || c.finalizing {
		return
	}
	c.failLocked("record", err)
}

// OnStop handles the device ending the stream on its own, e.g. when a
// maximum duration is reached.
func (h *streamHandler) OnStop() {
	c := h.c
	c.mu.Lock()
	defer c.unlock()
	if h.gen != c.gen || !c.state.Active() || c.finalizing {
		return
	}
	c.releaseLocked()
	c.finalizeLocked()
}
