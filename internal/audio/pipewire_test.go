package audio

import (
	"errors"
	"strings"
	"testing"
)

const shortSources = `45	alsa_output.pci-0000_00_1f.3.analog-stereo.monitor	PipeWire	s32le 2ch 48000Hz	SUSPENDED
46	alsa_input.pci-0000_00_1f.3.analog-stereo	PipeWire	s32le 2ch 48000Hz	RUNNING
51	echo-cancel-source	PipeWire	float32le 1ch 48000Hz	IDLE
`

func fakePipeWire(output string, err error) *PipeWire {
	return &PipeWire{
		run: func(name string, args ...string) ([]byte, error) {
			return []byte(output), err
		},
	}
}

func TestParseShortSources_SkipsMonitors(t *testing.T) {
	inputs := parseShortSources(shortSources)

	if len(inputs) != 2 {
		t.Fatalf("Expected 2 inputs, got %d: %v", len(inputs), inputs)
	}
	for _, in := range inputs {
		if strings.HasSuffix(in, ".monitor") {
			t.Errorf("Monitor source should be excluded: %s", in)
		}
	}
}

func TestParseShortSources_Empty(t *testing.T) {
	if inputs := parseShortSources("\n\n"); len(inputs) != 0 {
		t.Errorf("Expected no inputs, got %v", inputs)
	}
}

func TestValidateInput_Success(t *testing.T) {
	pw := fakePipeWire(shortSources, nil)

	if err := pw.ValidateInput("alsa_input.pci-0000_00_1f.3.analog-stereo"); err != nil {
		t.Errorf("Expected no error for valid single input, got: %v", err)
	}
}

func TestValidateInput_DefaultSkipsLookup(t *testing.T) {
	pw := fakePipeWire("", errors.New("pactl unavailable"))

	if err := pw.ValidateInput("default"); err != nil {
		t.Errorf("Expected default input to be accepted, got: %v", err)
	}
	if err := pw.ValidateInput(""); err != nil {
		t.Errorf("Expected empty input to be accepted, got: %v", err)
	}
}

func TestValidateInput_NotFound(t *testing.T) {
	pw := fakePipeWire(shortSources, nil)

	err := pw.ValidateInput("usb_mic")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got: %v", err)
	}
}

func TestValidateInput_DuplicateDetection(t *testing.T) {
	output := shortSources + "52\techo-cancel-source\tPipeWire\tfloat32le 1ch 48000Hz\tIDLE\n"
	pw := fakePipeWire(output, nil)

	err := pw.ValidateInput(EchoCancelSource)
	if !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("Expected ErrDeviceBusy for duplicate sources, got: %v", err)
	}
	if !strings.Contains(err.Error(), "duplicate sources detected") {
		t.Errorf("Expected duplicate error message, got: %v", err)
	}
}

func TestValidateInput_ListFailure(t *testing.T) {
	pw := fakePipeWire("", errors.New("connection refused"))

	err := pw.ValidateInput("usb_mic")
	if err == nil || !strings.Contains(err.Error(), "failed to list PipeWire sources") {
		t.Errorf("Expected list failure, got: %v", err)
	}
}

func TestHasEchoCancelSource(t *testing.T) {
	if !fakePipeWire(shortSources, nil).HasEchoCancelSource() {
		t.Error("Expected echo cancel source to be detected")
	}

	without := "46\talsa_input.pci-0000_00_1f.3.analog-stereo\tPipeWire\ts32le 2ch 48000Hz\tRUNNING\n"
	if fakePipeWire(without, nil).HasEchoCancelSource() {
		t.Error("Expected no echo cancel source")
	}
}

func TestFindDuplicatesInList(t *testing.T) {
	pw := &PipeWire{}

	testCases := []struct {
		name     string
		target   string
		inputs   []string
		expected int
	}{
		{"no match", "mic", []string{"a", "b"}, 0},
		{"single match", "mic", []string{"mic", "b"}, 1},
		{"exact names only", "mic", []string{"mic", "mic-2", "mic"}, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := pw.findDuplicatesInList(tc.target, tc.inputs)
			if len(got) != tc.expected {
				t.Errorf("Expected %d duplicates, got %d: %v", tc.expected, len(got), got)
			}
		})
	}
}
