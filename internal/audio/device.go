package audio

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Errors returned by Device.Open and delivered through Handler.OnError.
// Callers match them with errors.Is.
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrDeviceNotFound   = errors.New("audio input device not found")
	ErrUnsupported      = errors.New("audio capture not supported")
	ErrDeviceBusy       = errors.New("audio input device busy")
	ErrDeviceFailure    = errors.New("audio device failure")
)

// Constraints is the capture configuration requested when opening a device.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
	Channels         int
	Input            string
}

// DefaultConstraints matches the browser-side capture settings: echo
// cancellation and noise suppression on, 44.1 kHz mono.
func DefaultConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		SampleRate:       44100,
		Channels:         1,
	}
}

// Capabilities describes what an opened stream can do. It is resolved once
// when the stream is opened.
type Capabilities struct {
	PauseCapable bool
	Encodings    []string
}

// Supports reports whether the stream can encode the given MIME type.
func (c Capabilities) Supports(mimeType string) bool {
	want := normalizeMIME(mimeType)
	for _, enc := range c.Encodings {
		if normalizeMIME(enc) == want {
			return true
		}
	}
	return false
}

// Handler receives stream events. Implementations must not block for long;
// events for one stream are delivered from a single goroutine, in order.
type Handler interface {
	OnChunk(data []byte)
	OnError(err error)
	OnStop()
}

// Device acquires exclusive access to an audio input.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an acquired audio input.
type Stream interface {
	Capabilities() Capabilities

	// Start begins capture in the given format, delivering chunks to h every
	// timeslice. It must not invoke h synchronously.
	Start(format Format, timeslice time.Duration, h Handler) error
	Pause() error
	Resume() error

	// Stop ends capture. Data buffered since the last chunk is delivered
	// through OnChunk before Stop returns; no events follow it.
	Stop() error

	// Release frees the input. It is idempotent, safe to call from a
	// Handler callback, and never waits on the delivery goroutine.
	Release()
}

func normalizeMIME(m string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(m)), " ", "")
}
