package audio

import (
	"os/exec"
	"strings"

	"github.com/audiolibrelab/interviewprep/internal/config"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypeFFmpeg BackendType = "ffmpeg"
	BackendTypeAuto   BackendType = "auto"
)

// NewDevice creates the capture device selected by configuration. The
// returned device allows a single open stream at a time.
func NewDevice(cfg *config.Config) Device {
	switch determineBackend(cfg) {
	case BackendTypeFFmpeg:
		return Exclusive(NewFFmpegDevice(cfg))
	default:
		// ffmpeg is the only capture backend
		return Exclusive(NewFFmpegDevice(cfg))
	}
}

// ConstraintsFromConfig builds the capture constraints for cfg.
func ConstraintsFromConfig(cfg *config.Config) Constraints {
	c := DefaultConstraints()
	if cfg.Audio.SampleRate > 0 {
		c.SampleRate = cfg.Audio.SampleRate
	}
	if cfg.Audio.Channels > 0 {
		c.Channels = cfg.Audio.Channels
	}
	if cfg.Audio.EchoCancellation != nil {
		c.EchoCancellation = *cfg.Audio.EchoCancellation
	}
	if cfg.Audio.NoiseSuppression != nil {
		c.NoiseSuppression = *cfg.Audio.NoiseSuppression
	}
	c.Input = cfg.Audio.Input
	return c
}

// determineBackend determines which backend to use based on configuration
func determineBackend(cfg *config.Config) BackendType {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "ffmpeg", "auto", "":
		return BackendTypeFFmpeg
	}
	return BackendTypeFFmpeg
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	var backends []BackendType
	if _, err := exec.LookPath("ffmpeg"); err == nil {
		backends = append(backends, BackendTypeFFmpeg)
	}
	return backends
}
