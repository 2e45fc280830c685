package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMergeConfigs_SelectionAndFallback(t *testing.T) {
	base := Default()
	base.Audio.SampleRate = 48000
	base.Output.Directory = "~/Audio/Default"

	profile := &Config{
		Audio: AudioConfig{
			SampleRate:       16000, // Override sample rate
			NoiseSuppression: boolPtr(false),
			Encodings:        []string{"audio/ogg;codecs=opus", "audio/wav"},
		},
		Output: OutputConfig{
			Directory: "~/Audio/Studio",
		},
	}

	result := mergeConfigs(base, profile)

	if result.Audio.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", result.Audio.SampleRate)
	}
	if result.Audio.Channels != base.Audio.Channels {
		t.Errorf("Expected channels %d inherited, got %d", base.Audio.Channels, result.Audio.Channels)
	}
	if result.Audio.NoiseSuppression == nil || *result.Audio.NoiseSuppression {
		t.Errorf("Expected noise suppression disabled by profile, got %v", result.Audio.NoiseSuppression)
	}
	if result.Audio.EchoCancellation == nil || !*result.Audio.EchoCancellation {
		t.Errorf("Expected echo cancellation inherited as true, got %v", result.Audio.EchoCancellation)
	}
	if len(result.Audio.Encodings) != 2 || result.Audio.Encodings[0] != "audio/ogg;codecs=opus" {
		t.Errorf("Expected profile encodings, got %v", result.Audio.Encodings)
	}
	if result.Output.Directory != "~/Audio/Studio" {
		t.Errorf("Expected directory '~/Audio/Studio', got %s", result.Output.Directory)
	}

	if result.Inheritance == nil {
		t.Fatal("Inheritance tracking not initialized")
	}
	if result.Inheritance.Audio.SampleRate != "profile-specific" {
		t.Errorf("Expected sample rate to be profile-specific, got %s", result.Inheritance.Audio.SampleRate)
	}
	if result.Inheritance.Audio.Channels != "inherited" {
		t.Errorf("Expected channels to be inherited, got %s", result.Inheritance.Audio.Channels)
	}
	if result.Inheritance.Audio.NoiseSuppression != "profile-specific" {
		t.Errorf("Expected noise suppression to be profile-specific, got %s", result.Inheritance.Audio.NoiseSuppression)
	}
	if result.Inheritance.Output.KeepArtifacts != "inherited" {
		t.Errorf("Expected keep_artifacts to be inherited, got %s", result.Inheritance.Output.KeepArtifacts)
	}
}

func TestMergeConfigs_DoesNotAliasBaseEncodings(t *testing.T) {
	base := Default()
	result := mergeConfigs(base, &Config{})

	result.Audio.Encodings[0] = "audio/flac"
	if base.Audio.Encodings[0] == "audio/flac" {
		t.Error("Expected merged encodings to be a copy of the base slice")
	}
}

func TestMergeConfigs_ProfileOnly(t *testing.T) {
	profile := &Config{
		Audio: AudioConfig{
			SampleRate: 48000,
			Input:      "hw:1,0",
		},
	}

	result := mergeConfigs(nil, profile)

	if result.Audio.SampleRate != 48000 || result.Audio.Input != "hw:1,0" {
		t.Errorf("Audio config not preserved: %+v", result.Audio)
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/Audio/InterviewPrep", filepath.Join(homeDir, "Audio", "InterviewPrep")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, test := range tests {
		result := expandPath(test.input)
		if result != test.expected {
			t.Errorf("expandPath(%s) = %s, expected %s", test.input, result, test.expected)
		}
	}
}

func TestLoadWithProfile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithProfile(filepath.Join(t.TempDir(), "absent.yaml"), "")
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got error: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8000/api" {
		t.Errorf("Expected default base URL, got %s", cfg.API.BaseURL)
	}
	if cfg.Timeslice() != time.Second {
		t.Errorf("Expected 1s timeslice, got %s", cfg.Timeslice())
	}
	if !cfg.KeepArtifacts() {
		t.Error("Expected keep_artifacts to default to true")
	}
}

func TestLoadWithProfile_MissingFileUnknownProfile(t *testing.T) {
	_, err := LoadWithProfile(filepath.Join(t.TempDir(), "absent.yaml"), "studio")
	if err == nil {
		t.Error("Expected error for unknown profile without config file")
	}
}

func TestGlobalsRecordingsDirectory(t *testing.T) {
	configContent := `
active_config: test
globals:
    output:
        recordings_directory: /global/recordings
configs:
    test:
        output:
            directory: /profile/recordings
            keep_artifacts: false
`
	configFile := createTempConfig(t, configContent)

	cfg, err := LoadWithProfile(configFile, "test")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	expectedDir := "/global/recordings"
	if cfg.Output.Directory != expectedDir {
		t.Errorf("Expected directory '%s' from globals, got '%s'", expectedDir, cfg.Output.Directory)
	}
	if cfg.KeepArtifacts() {
		t.Error("Expected keep_artifacts false from profile")
	}
	if cfg.Inheritance.Output.Directory != "global" {
		t.Errorf("Expected directory inheritance 'global', got %s", cfg.Inheritance.Output.Directory)
	}
}

func TestLoadWithProfile_ProfileInheritsFromDefault(t *testing.T) {
	configContent := `
active_config: studio
api:
    base_url: https://coach.example.com/api/
    timeout: 15s
configs:
    default:
        audio:
            sample_rate: 48000
            timeslice_ms: 500
    studio:
        audio:
            input: "hw:2,0"
`
	configFile := createTempConfig(t, configContent)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Profile != "studio" {
		t.Errorf("Expected active profile 'studio', got %s", cfg.Profile)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000 from default profile, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Input != "hw:2,0" {
		t.Errorf("Expected input 'hw:2,0', got %s", cfg.Audio.Input)
	}
	if cfg.Timeslice() != 500*time.Millisecond {
		t.Errorf("Expected 500ms timeslice, got %s", cfg.Timeslice())
	}
	if cfg.API.BaseURL != "https://coach.example.com/api" {
		t.Errorf("Expected trimmed base URL, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Errorf("Expected 15s timeout, got %s", cfg.API.Timeout)
	}
}

func TestLoadWithProfile_UnknownProfile(t *testing.T) {
	configFile := createTempConfig(t, `
configs:
    default:
        audio:
            sample_rate: 44100
`)

	_, err := LoadWithProfile(configFile, "nope")
	if err == nil {
		t.Fatal("Expected error for unknown profile")
	}
}

func TestUpdateActiveConfig(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: default
configs:
    default:
        audio:
            sample_rate: 44100
    quiet:
        audio:
            noise_suppression: true
`)

	if err := UpdateActiveConfig(configFile, "quiet"); err != nil {
		t.Fatalf("UpdateActiveConfig failed: %v", err)
	}

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Failed to reload configuration: %v", err)
	}
	if cfg.Profile != "quiet" {
		t.Errorf("Expected active profile 'quiet', got %s", cfg.Profile)
	}

	if err := UpdateActiveConfig(configFile, "missing"); err == nil {
		t.Error("Expected error when activating a missing profile")
	}
}

func TestLoadWithProfile_APIOfflineFallbackDefault(t *testing.T) {
	configFile := createTempConfig(t, `
api:
  base_url: https://interview.example.com/api/
configs:
  default:
    audio:
      sample_rate: 44100
`)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.API.BaseURL != "https://interview.example.com/api" {
		t.Errorf("Expected trimmed base URL, got %s", cfg.API.BaseURL)
	}
	if !cfg.API.Offline() {
		t.Error("Expected offline_fallback to stay enabled when only base_url is set")
	}

	configFile = createTempConfig(t, `
api:
  offline_fallback: false
configs:
  default:
    audio:
      sample_rate: 44100
`)
	cfg, err = LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.API.Offline() {
		t.Error("Expected offline_fallback false to disable the fallback")
	}
	if cfg.API.BaseURL != "http://localhost:8000/api" {
		t.Errorf("Expected default base URL, got %s", cfg.API.BaseURL)
	}
}
