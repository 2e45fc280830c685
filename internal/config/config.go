package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultEncodings is the capture format preference list, best first.
// audio/wav is the guaranteed baseline.
var DefaultEncodings = []string{
	"audio/webm;codecs=opus",
	"audio/ogg;codecs=opus",
	"audio/mp4",
	"audio/mpeg",
	"audio/wav",
}

type GlobalsConfig struct {
	Output GlobalOutputConfig `mapstructure:"output" yaml:"output"`
}

type GlobalOutputConfig struct {
	RecordingsDirectory string `mapstructure:"recordings_directory" yaml:"recordings_directory"`
}

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals      *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	API          *APIConfig                `mapstructure:"api,omitempty" yaml:"api,omitempty"`
	Storage      *StorageConfig            `mapstructure:"storage,omitempty" yaml:"storage,omitempty"`
	Logging      *LoggingConfig            `mapstructure:"logging,omitempty" yaml:"logging,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

// Config is the resolved configuration for one profile.
type Config struct {
	Profile string        `mapstructure:"-" yaml:"profile"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Internal field to track inheritance information for config info
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

type ConfigProfile struct {
	Audio  AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
}

type InheritanceInfo struct {
	Audio struct {
		Backend          string // "inherited" or "profile-specific"
		Input            string
		SampleRate       string
		Channels         string
		EchoCancellation string
		NoiseSuppression string
		Timeslice        string
		MaxDuration      string
		Encodings        string
	}
	Output struct {
		Directory     string
		KeepArtifacts string
	}
}

type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	OfflineFallback *bool         `mapstructure:"offline_fallback" yaml:"offline_fallback,omitempty"`
}

type AudioConfig struct {
	Backend            string   `mapstructure:"backend" yaml:"backend" validate:"omitempty,oneof=auto ffmpeg"`
	Input              string   `mapstructure:"input" yaml:"input"`               // ffmpeg input device, e.g. "default" or ":0"
	InputFormat        string   `mapstructure:"input_format" yaml:"input_format"` // ffmpeg -f value: pulse, alsa, avfoundation, dshow
	SampleRate         int      `mapstructure:"sample_rate" yaml:"sample_rate" validate:"omitempty,oneof=8000 16000 22050 24000 32000 44100 48000"`
	Channels           int      `mapstructure:"channels" yaml:"channels" validate:"omitempty,min=1,max=2"`
	EchoCancellation   *bool    `mapstructure:"echo_cancellation" yaml:"echo_cancellation,omitempty"`
	NoiseSuppression   *bool    `mapstructure:"noise_suppression" yaml:"noise_suppression,omitempty"`
	TimesliceMS        int      `mapstructure:"timeslice_ms" yaml:"timeslice_ms" validate:"omitempty,min=100,max=10000"`
	MaxDurationSeconds int      `mapstructure:"max_duration_seconds" yaml:"max_duration_seconds" validate:"min=0"`
	Encodings          []string `mapstructure:"encodings" yaml:"encodings" validate:"dive,required"`
}

type OutputConfig struct {
	Directory     string `mapstructure:"directory" yaml:"directory"`
	KeepArtifacts *bool  `mapstructure:"keep_artifacts" yaml:"keep_artifacts,omitempty"`
}

type StorageConfig struct {
	SessionFile   string `mapstructure:"session_file" yaml:"session_file"`
	QuestionsFile string `mapstructure:"questions_file" yaml:"questions_file"`
}

type LoggingConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"min=0"`
}

var validate = validator.New()

func boolPtr(b bool) *bool { return &b }

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Profile: "default",
		API: APIConfig{
			BaseURL:         "http://localhost:8000/api",
			Timeout:         60 * time.Second,
			OfflineFallback: boolPtr(true),
		},
		Audio: AudioConfig{
			Backend:          "auto",
			Input:            "default",
			SampleRate:       44100,
			Channels:         1,
			EchoCancellation: boolPtr(true),
			NoiseSuppression: boolPtr(true),
			TimesliceMS:      1000,
			Encodings:        append([]string(nil), DefaultEncodings...),
		},
		Output: OutputConfig{
			Directory:     filepath.Join(home, "Audio", "InterviewPrep"),
			KeepArtifacts: boolPtr(true),
		},
		Storage: StorageConfig{
			SessionFile:   filepath.Join(home, ".config", "interviewprep", "session.yaml"),
			QuestionsFile: filepath.Join(home, ".config", "interviewprep", "questions.json"),
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// DefaultPath is the config file location used when --config is not given.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/interviewprep.yaml")
}

// LoadWithProfile reads configFile and resolves the requested profile
// (or active_config, or "default"). A missing file yields Default().
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if profile != "" && profile != "default" {
			return nil, fmt.Errorf("configuration profile '%s' not found (no config file at %s)", profile, configFile)
		}
		return cfg, nil
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		if configName != "default" {
			return nil, fmt.Errorf("configuration profile '%s' not found", configName)
		}
		selectedProfile = &ConfigProfile{}
	}

	base := Default()
	if configName != "default" {
		if defaultProfile, ok := rootConfig.Configs["default"]; ok {
			base = mergeConfigs(base, profileToConfig(defaultProfile))
		}
	}
	selectedConfig := mergeConfigs(base, profileToConfig(selectedProfile))
	selectedConfig.Profile = configName

	if rootConfig.API != nil {
		if rootConfig.API.BaseURL != "" {
			selectedConfig.API.BaseURL = strings.TrimRight(rootConfig.API.BaseURL, "/")
		}
		if rootConfig.API.Timeout > 0 {
			selectedConfig.API.Timeout = rootConfig.API.Timeout
		}
		if rootConfig.API.OfflineFallback != nil {
			selectedConfig.API.OfflineFallback = rootConfig.API.OfflineFallback
		}
	}
	if rootConfig.Storage != nil {
		if rootConfig.Storage.SessionFile != "" {
			selectedConfig.Storage.SessionFile = rootConfig.Storage.SessionFile
		}
		if rootConfig.Storage.QuestionsFile != "" {
			selectedConfig.Storage.QuestionsFile = rootConfig.Storage.QuestionsFile
		}
	}
	if rootConfig.Logging != nil {
		selectedConfig.Logging.File = rootConfig.Logging.File
		if rootConfig.Logging.MaxSizeMB > 0 {
			selectedConfig.Logging.MaxSizeMB = rootConfig.Logging.MaxSizeMB
		}
		if rootConfig.Logging.MaxBackups > 0 {
			selectedConfig.Logging.MaxBackups = rootConfig.Logging.MaxBackups
		}
		if rootConfig.Logging.MaxAgeDays > 0 {
			selectedConfig.Logging.MaxAgeDays = rootConfig.Logging.MaxAgeDays
		}
	}

	// Global recordings directory takes priority over profile-specific directory
	if rootConfig.Globals != nil && rootConfig.Globals.Output.RecordingsDirectory != "" {
		selectedConfig.Output.Directory = rootConfig.Globals.Output.RecordingsDirectory
		selectedConfig.Inheritance.Output.Directory = "global"
	}

	if v := os.Getenv("INTERVIEWPREP_API_BASE_URL"); v != "" {
		selectedConfig.API.BaseURL = strings.TrimRight(v, "/")
	}

	selectedConfig.Output.Directory = expandPath(selectedConfig.Output.Directory)
	selectedConfig.Storage.SessionFile = expandPath(selectedConfig.Storage.SessionFile)
	selectedConfig.Storage.QuestionsFile = expandPath(selectedConfig.Storage.QuestionsFile)
	selectedConfig.Logging.File = expandPath(selectedConfig.Logging.File)

	if err := selectedConfig.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// Validate checks field constraints of a resolved config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Timeslice is the chunk delivery cadence.
func (c *Config) Timeslice() time.Duration {
	if c.Audio.TimesliceMS <= 0 {
		return time.Second
	}
	return time.Duration(c.Audio.TimesliceMS) * time.Millisecond
}

// Offline reports whether sample questions are served when the service
// cannot be reached.
func (c APIConfig) Offline() bool {
	return c.OfflineFallback == nil || *c.OfflineFallback
}

// KeepArtifacts reports whether finalized recordings are saved to disk.
func (c *Config) KeepArtifacts() bool {
	return c.Output.KeepArtifacts == nil || *c.Output.KeepArtifacts
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	if _, ok := v.GetStringMap("configs")[newActiveConfig]; !ok && newActiveConfig != "default" {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// AvailableProfiles lists the profile names defined in configFile.
func AvailableProfiles(configFile string) ([]string, error) {
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	return names, nil
}

func profileToConfig(profile *ConfigProfile) *Config {
	if profile == nil {
		return nil
	}
	return &Config{Audio: profile.Audio, Output: profile.Output}
}

// mergeConfigs overlays profile values on base. Zero values in the profile
// inherit from base; every field records where its value came from.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{}
	result.Inheritance = &InheritanceInfo{}

	if base != nil {
		result.Profile = base.Profile
		result.API = base.API
		result.Audio = base.Audio
		result.Audio.Encodings = append([]string(nil), base.Audio.Encodings...)
		result.Output = base.Output
		result.Storage = base.Storage
		result.Logging = base.Logging

		result.Inheritance.Audio.Backend = "inherited"
		result.Inheritance.Audio.Input = "inherited"
		result.Inheritance.Audio.SampleRate = "inherited"
		result.Inheritance.Audio.Channels = "inherited"
		result.Inheritance.Audio.EchoCancellation = "inherited"
		result.Inheritance.Audio.NoiseSuppression = "inherited"
		result.Inheritance.Audio.Timeslice = "inherited"
		result.Inheritance.Audio.MaxDuration = "inherited"
		result.Inheritance.Audio.Encodings = "inherited"
		result.Inheritance.Output.Directory = "inherited"
		result.Inheritance.Output.KeepArtifacts = "inherited"
	}

	if profile == nil {
		return result
	}

	a := profile.Audio
	if a.Backend != "" {
		result.Audio.Backend = a.Backend
		result.Inheritance.Audio.Backend = "profile-specific"
	}
	if a.Input != "" {
		result.Audio.Input = a.Input
		result.Inheritance.Audio.Input = "profile-specific"
	}
	if a.InputFormat != "" {
		result.Audio.InputFormat = a.InputFormat
	}
	if a.SampleRate != 0 {
		result.Audio.SampleRate = a.SampleRate
		result.Inheritance.Audio.SampleRate = "profile-specific"
	}
	if a.Channels != 0 {
		result.Audio.Channels = a.Channels
		result.Inheritance.Audio.Channels = "profile-specific"
	}
	if a.EchoCancellation != nil {
		result.Audio.EchoCancellation = boolPtr(*a.EchoCancellation)
		result.Inheritance.Audio.EchoCancellation = "profile-specific"
	}
	if a.NoiseSuppression != nil {
		result.Audio.NoiseSuppression = boolPtr(*a.NoiseSuppression)
		result.Inheritance.Audio.NoiseSuppression = "profile-specific"
	}
	if a.TimesliceMS != 0 {
		result.Audio.TimesliceMS = a.TimesliceMS
		result.Inheritance.Audio.Timeslice = "profile-specific"
	}
	if a.MaxDurationSeconds != 0 {
		result.Audio.MaxDurationSeconds = a.MaxDurationSeconds
		result.Inheritance.Audio.MaxDuration = "profile-specific"
	}
	if len(a.Encodings) > 0 {
		result.Audio.Encodings = append([]string(nil), a.Encodings...)
		result.Inheritance.Audio.Encodings = "profile-specific"
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
		result.Inheritance.Output.Directory = "profile-specific"
	}
	if profile.Output.KeepArtifacts != nil {
		result.Output.KeepArtifacts = boolPtr(*profile.Output.KeepArtifacts)
		result.Inheritance.Output.KeepArtifacts = "profile-specific"
	}

	return result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("INTERVIEWPREP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for name, profile := range rootConfig.Configs {
		if profile == nil {
			return nil, fmt.Errorf("invalid config '%s': profile is empty", name)
		}
		if err := validate.Struct(profile.Audio); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", name, err)
		}
		for i, enc := range profile.Audio.Encodings {
			if !strings.HasPrefix(enc, "audio/") {
				return nil, fmt.Errorf("invalid config '%s': encodings[%d] '%s' is not an audio MIME type", name, i, enc)
			}
		}
	}

	return &rootConfig, nil
}
