package audio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// PipeWire lists capture sources through the PulseAudio compatibility
// layer (pipewire-pulse or pulseaudio itself).
type PipeWire struct {
	run func(name string, args ...string) ([]byte, error)
}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
	}
}

// Available reports whether pactl can be found.
func (pw *PipeWire) Available() bool {
	_, err := exec.LookPath("pactl")
	return err == nil
}

// ListInputs returns the names of all capture sources, excluding the
// monitor sources that mirror playback.
func (pw *PipeWire) ListInputs() ([]string, error) {
	output, err := pw.run("pactl", "list", "short", "sources")
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire sources: %w", err)
	}
	return parseShortSources(string(output)), nil
}

// ValidateInput checks that a source exists and is not ambiguous.
func (pw *PipeWire) ValidateInput(name string) error {
	if name == "" || name == "default" {
		return nil
	}

	inputs, err := pw.ListInputs()
	if err != nil {
		return err
	}

	duplicates := pw.findDuplicatesInList(name, inputs)
	switch {
	case len(duplicates) == 0:
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	case len(duplicates) > 1:
		return fmt.Errorf("%w: duplicate sources detected for '%s': %v", ErrDeviceBusy, name, duplicates)
	}
	return nil
}

// HasEchoCancelSource reports whether module-echo-cancel is loaded.
func (pw *PipeWire) HasEchoCancelSource() bool {
	inputs, err := pw.ListInputs()
	if err != nil {
		slog.Debug("Failed to list sources for echo cancellation", "error", err)
		return false
	}
	for _, in := range inputs {
		if in == EchoCancelSource {
			return true
		}
	}
	return false
}

// EchoCancelSource is the source name created by module-echo-cancel.
const EchoCancelSource = "echo-cancel-source"

// findDuplicatesInList finds all entries with exactly the same name
func (pw *PipeWire) findDuplicatesInList(name string, all []string) []string {
	var duplicates []string
	for _, in := range all {
		if in == name {
			duplicates = append(duplicates, in)
		}
	}
	return duplicates
}

// parseShortSources parses `pactl list short sources` output:
// index<TAB>name<TAB>driver<TAB>spec<TAB>state
func parseShortSources(output string) []string {
	var inputs []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		if strings.HasSuffix(name, ".monitor") {
			continue
		}
		inputs = append(inputs, name)
	}
	return inputs
}
