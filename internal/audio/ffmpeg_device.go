package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/interviewprep/internal/config"
)

const (
	probeTimeout = 5 * time.Second
	stopTimeout  = 5 * time.Second
	stderrLines  = 20
)

// FFmpegDevice captures the system microphone with an ffmpeg subprocess
// that writes the encoded stream to its stdout.
type FFmpegDevice struct {
	Binary      string
	InputFormat string // ffmpeg -f value
	Input       string
	MaxDuration time.Duration

	sources *PipeWire
}

// NewFFmpegDevice creates a device from the audio section of cfg.
func NewFFmpegDevice(cfg *config.Config) *FFmpegDevice {
	d := &FFmpegDevice{
		Binary:      "ffmpeg",
		InputFormat: cfg.Audio.InputFormat,
		Input:       cfg.Audio.Input,
		sources:     NewPipeWire(),
	}
	if cfg.Audio.MaxDurationSeconds > 0 {
		d.MaxDuration = time.Duration(cfg.Audio.MaxDurationSeconds) * time.Second
	}
	if d.InputFormat == "" {
		d.InputFormat = defaultInputFormat()
	}
	if d.Input == "" || d.Input == "default" {
		d.Input = defaultInput(d.InputFormat)
	}
	return d
}

func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func defaultInput(inputFormat string) string {
	switch inputFormat {
	case "avfoundation":
		return ":default"
	case "dshow":
		return "audio=default"
	default:
		return "default"
	}
}

// Open probes the input with a short capture and resolves the stream
// capabilities. Failures are classified into the package error sentinels.
func (d *FFmpegDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if _, err := exec.LookPath(d.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", ErrUnsupported, d.Binary)
	}

	input := d.resolveInput(c)

	if d.InputFormat == "pulse" && d.sources.Available() {
		if err := d.sources.ValidateInput(input); err != nil {
			return nil, err
		}
	}

	if err := d.probe(ctx, input); err != nil {
		return nil, err
	}

	encoders, err := d.listEncoders(ctx)
	if err != nil {
		slog.Debug("Failed to list ffmpeg encoders, using baseline only", "error", err)
		encoders = map[string]bool{}
	}

	caps := Capabilities{PauseCapable: pauseSupported}
	for _, f := range knownFormats {
		if encoders[f.Encoder] || f.MIMEType == BaselineMIMEType {
			caps.Encodings = append(caps.Encodings, f.MIMEType)
		}
	}

	slog.Debug("Audio input opened", "format", d.InputFormat, "input", input, "encodings", caps.Encodings, "pause_capable", caps.PauseCapable)

	return &ffmpegStream{
		dev:         d,
		input:       input,
		constraints: c,
		caps:        caps,
		done:        make(chan struct{}),
	}, nil
}

func (d *FFmpegDevice) resolveInput(c Constraints) string {
	input := d.Input
	if c.Input != "" && c.Input != "default" {
		input = c.Input
	}
	if c.EchoCancellation && d.InputFormat == "pulse" && input == "default" && d.sources.Available() {
		if d.sources.HasEchoCancelSource() {
			slog.Debug("Using echo cancelled source", "source", EchoCancelSource)
			return EchoCancelSource
		}
		slog.Debug("Echo cancellation requested but module-echo-cancel is not loaded")
	}
	return input
}

// probe runs a 100ms capture to surface permission and device errors
// before the session starts.
func (d *FFmpegDevice) probe(ctx context.Context, input string) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, d.Binary,
		"-hide_banner", "-nostdin",
		"-f", d.InputFormat,
		"-i", input,
		"-t", "0.1",
		"-f", "null", "-",
	)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: input probe timed out after %s", ErrDeviceFailure, probeTimeout)
	}
	return classifyFFmpegError(string(output), err)
}

// Encodings returns the MIME types the installed ffmpeg can produce, in
// preference order.
func (d *FFmpegDevice) Encodings(ctx context.Context) ([]string, error) {
	encoders, err := d.listEncoders(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range knownFormats {
		if encoders[f.Encoder] {
			out = append(out, f.MIMEType)
		}
	}
	return out, nil
}

// Sources lists PipeWire/PulseAudio capture sources, or nil when pactl is
// not installed.
func (d *FFmpegDevice) Sources() ([]string, error) {
	if !d.sources.Available() {
		return nil, nil
	}
	return d.sources.ListInputs()
}

func (d *FFmpegDevice) listEncoders(ctx context.Context) (map[string]bool, error) {
	output, err := exec.CommandContext(ctx, d.Binary, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list encoders: %w", err)
	}
	return parseEncoders(string(output)), nil
}

// parseEncoders extracts encoder names from `ffmpeg -encoders` output.
// Entry lines look like " A....D libopus  libopus Opus".
func parseEncoders(output string) map[string]bool {
	encoders := make(map[string]bool)
	inList := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

type ffmpegStream struct {
	dev         *FFmpegDevice
	input       string
	constraints Constraints
	caps        Capabilities

	mu       sync.Mutex
	cmd      *exec.Cmd
	buf      bytes.Buffer
	started  bool
	paused   bool
	exitErr  error
	stopping atomic.Bool
	stderr   tailBuffer

	done        chan struct{}
	releaseOnce sync.Once
}

func (s *ffmpegStream) Capabilities() Capabilities {
	return s.caps
}

func (s *ffmpegStream) Start(format Format, timeslice time.Duration, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("stream already started")
	}
	if timeslice <= 0 {
		timeslice = time.Second
	}

	args := s.buildArgs(format)
	cmd := exec.Command(s.dev.Binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	slog.Info("Starting FFmpeg capture", "command", s.dev.Binary+" "+strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		return classifyFFmpegError("", err)
	}

	s.cmd = cmd
	s.started = true

	var readers sync.WaitGroup
	readers.Add(2)
	go s.readStdout(stdout, &readers)
	go s.readStderr(stderr, &readers)

	exit := make(chan error, 1)
	go func() {
		// Wait closes the pipes, so all reads must finish first.
		readers.Wait()
		exit <- cmd.Wait()
	}()

	go s.supervise(timeslice, h, exit)
	return nil
}

func (s *ffmpegStream) buildArgs(format Format) []string {
	c := s.constraints

	rate := c.SampleRate
	if rate == 0 {
		rate = 44100
	}
	if !format.SupportsRate(rate) {
		slog.Debug("Sample rate not supported by encoder, using 48000", "requested", rate, "encoder", format.Encoder)
		rate = 48000
	}
	channels := c.Channels
	if channels == 0 {
		channels = 1
	}

	args := []string{
		"-hide_banner", "-nostdin",
		"-loglevel", ffmpegLogLevel(),
		"-f", s.dev.InputFormat,
		"-i", s.input,
	}
	if s.dev.MaxDuration > 0 {
		args = append(args, "-t", strconv.FormatFloat(s.dev.MaxDuration.Seconds(), 'f', -1, 64))
	}
	args = append(args,
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(rate),
	)
	if c.NoiseSuppression {
		args = append(args, "-af", "highpass=f=80,afftdn=nf=-25")
	}
	args = append(args, "-c:a", format.Encoder)
	args = append(args, format.MuxerArgs...)
	args = append(args, "-f", format.Muxer, "pipe:1")
	return args
}

func (s *ffmpegStream) readStdout(r io.ReadCloser, wg *sync.WaitGroup) {
	defer wg.Done()
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// ffmpegLogLevel honours FFMPEG_LOGLEVEL, which -vv sets to info and -vvv
// to debug.
func ffmpegLogLevel() string {
	if level := os.Getenv("FFMPEG_LOGLEVEL"); level != "" {
		return level
	}
	return "warning"
}

// readStderr keeps the last lines of ffmpeg output for error reports
func (s *ffmpegStream) readStderr(r io.ReadCloser, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		s.stderr.Add(line)
		slog.Debug("FFmpeg output", "stream", "stderr", "line", line)
	}
}

// supervise delivers buffered data every timeslice and reports how the
// process ended. It is the only goroutine that calls h.
func (s *ffmpegStream) supervise(timeslice time.Duration, h Handler, exit <-chan error) {
	defer close(s.done)

	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush(h)
		case err := <-exit:
			s.flush(h)
			s.mu.Lock()
			s.exitErr = err
			s.mu.Unlock()

			if s.stopping.Load() {
				return
			}
			if err != nil {
				slog.Error("FFmpeg capture ended unexpectedly", "error", err, "stderr", s.stderr.Last())
				h.OnError(classifyFFmpegError(s.stderr.String(), err))
				return
			}
			slog.Debug("FFmpeg capture reached end of stream")
			h.OnStop()
			return
		}
	}
}

func (s *ffmpegStream) flush(h Handler) {
	s.mu.Lock()
	if s.buf.Len() == 0 {
		s.mu.Unlock()
		return
	}
	data := bytes.Clone(s.buf.Bytes())
	s.buf.Reset()
	s.mu.Unlock()

	h.OnChunk(data)
}

// Pause suspends ffmpeg. The capture source keeps running, so with PulseAudio
// input the samples captured while suspended may be delivered after Resume.
// The encoded stream cannot be cut afterwards.
func (s *ffmpegStream) Pause() error {
	if !pauseSupported {
		return fmt.Errorf("%w: pause is not available on %s", ErrUnsupported, runtime.GOOS)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopping.Load() {
		return fmt.Errorf("stream is not capturing")
	}
	if s.paused {
		return nil
	}
	if err := suspendProcess(s.cmd.Process); err != nil {
		return fmt.Errorf("failed to pause ffmpeg: %w", err)
	}
	s.paused = true
	return nil
}

func (s *ffmpegStream) Resume() error {
	if !pauseSupported {
		return fmt.Errorf("%w: resume is not available on %s", ErrUnsupported, runtime.GOOS)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopping.Load() {
		return fmt.Errorf("stream is not capturing")
	}
	if !s.paused {
		return nil
	}
	if err := continueProcess(s.cmd.Process); err != nil {
		return fmt.Errorf("failed to resume ffmpeg: %w", err)
	}
	s.paused = false
	return nil
}

// Stop interrupts ffmpeg so it finalizes the container, waits for the last
// data to be delivered and force kills after stopTimeout.
func (s *ffmpegStream) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	if !s.stopping.CompareAndSwap(false, true) {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	proc := s.cmd.Process
	paused := s.paused
	s.paused = false
	s.mu.Unlock()

	if paused {
		continueProcess(proc)
	}

	slog.Debug("Sending interrupt to FFmpeg process")
	if err := interruptProcess(proc); err != nil {
		slog.Debug("Failed to send interrupt to FFmpeg, falling back to kill", "error", err)
		proc.Kill()
	}

	select {
	case <-s.done:
	case <-time.After(stopTimeout):
		slog.Warn("FFmpeg did not exit within timeout, force killing")
		proc.Kill()
		<-s.done
	}

	s.mu.Lock()
	exitErr := s.exitErr
	s.mu.Unlock()

	if exitErr != nil && !isInterruptExit(exitErr) {
		return fmt.Errorf("%w: ffmpeg exited: %v: %s", ErrDeviceFailure, exitErr, s.stderr.Last())
	}
	slog.Debug("FFmpeg capture stopped")
	return nil
}

func (s *ffmpegStream) Release() {
	s.releaseOnce.Do(func() {
		s.stopping.Store(true)

		s.mu.Lock()
		started := s.started
		var proc *os.Process
		if s.cmd != nil {
			proc = s.cmd.Process
		}
		s.mu.Unlock()

		if !started || proc == nil {
			return
		}
		select {
		case <-s.done:
		default:
			proc.Kill()
			slog.Debug("FFmpeg capture released")
		}
	})
}

// isInterruptExit reports whether ffmpeg exited because we asked it to.
func isInterruptExit(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	// Exit code 255 often means the process was interrupted gracefully
	if exitErr.ExitCode() == 255 {
		return true
	}
	if exitErr.ProcessState != nil {
		state := exitErr.ProcessState.String()
		if state == "signal: interrupt" || state == "signal: killed" {
			return true
		}
	}
	return false
}

type tailBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (t *tailBuffer) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > stderrLines {
		t.lines = t.lines[len(t.lines)-stderrLines:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

func (t *tailBuffer) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == 0 {
		return ""
	}
	return t.lines[len(t.lines)-1]
}
