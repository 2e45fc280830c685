package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/interviewprep/internal/config"
	"github.com/audiolibrelab/interviewprep/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage interviewprep configuration settings and profiles.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show resolved configuration with inheritance indicators",
	Long:  `Display the resolved configuration and show which values are inherited from the default profile and which are profile-specific.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inh := cfg.Inheritance
		if inh == nil {
			inh = &config.InheritanceInfo{}
		}

		fmt.Printf("=== PROFILE ===\n")
		fmt.Printf("config_file: %s\n", cfgFile)
		fmt.Printf("profile: %s\n", cfg.Profile)

		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")

		fmt.Printf("\n[API]\n")
		fmt.Printf("base_url: %s\n", cfg.API.BaseURL)
		fmt.Printf("timeout: %s\n", cfg.API.Timeout)
		fmt.Printf("offline_fallback: %t\n", cfg.API.Offline())

		a := cfg.Audio
		fmt.Printf("\n[Audio]\n")
		fmt.Printf("backend: %s %s\n", a.Backend, getInheritanceIndicator(inh.Audio.Backend))
		fmt.Printf("input: %s %s\n", a.Input, getInheritanceIndicator(inh.Audio.Input))
		fmt.Printf("sample_rate: %d %s\n", a.SampleRate, getInheritanceIndicator(inh.Audio.SampleRate))
		fmt.Printf("channels: %d %s\n", a.Channels, getInheritanceIndicator(inh.Audio.Channels))
		fmt.Printf("echo_cancellation: %s %s\n", formatBoolPtr(a.EchoCancellation), getInheritanceIndicator(inh.Audio.EchoCancellation))
		fmt.Printf("noise_suppression: %s %s\n", formatBoolPtr(a.NoiseSuppression), getInheritanceIndicator(inh.Audio.NoiseSuppression))
		fmt.Printf("timeslice: %s %s\n", cfg.Timeslice(), getInheritanceIndicator(inh.Audio.Timeslice))
		fmt.Printf("max_duration_seconds: %d %s\n", a.MaxDurationSeconds, getInheritanceIndicator(inh.Audio.MaxDuration))
		fmt.Printf("encodings: %s %s\n", strings.Join(a.Encodings, ", "), getInheritanceIndicator(inh.Audio.Encodings))

		fmt.Printf("\n[Output]\n")
		fmt.Printf("directory: %s %s\n", cfg.Output.Directory, getInheritanceIndicator(inh.Output.Directory))
		fmt.Printf("keep_artifacts: %t %s\n", cfg.KeepArtifacts(), getInheritanceIndicator(inh.Output.KeepArtifacts))

		fmt.Printf("\n[Storage]\n")
		fmt.Printf("session_file: %s\n", cfg.Storage.SessionFile)
		fmt.Printf("questions_file: %s\n", cfg.Storage.QuestionsFile)

		return nil
	},
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List configuration profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := config.AvailableProfiles(cfgFile)
		if err != nil {
			return err
		}
		sort.Strings(profiles)
		for _, p := range profiles {
			marker := "  "
			if p == cfg.Profile {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, p)
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <profile>",
	Short: "Set the active configuration profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UpdateActiveConfig(cfgFile, args[0]); err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).Success(fmt.Sprintf("Active profile set to '%s'", args[0]))
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", cfgFile, editor)

		c := exec.CommandContext(cmd.Context(), editor, cfgFile)
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("editor failed: %w", err)
		}
		if _, err := config.ValidateConfigurationFormat(cfgFile); err != nil {
			return fmt.Errorf("configuration is invalid after edit: %w", err)
		}
		return nil
	},
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[default]"
	}
}

func formatBoolPtr(b *bool) string {
	if b == nil {
		return "unset"
	}
	return fmt.Sprintf("%t", *b)
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInfoCmd)
	configCmd.AddCommand(configProfilesCmd)
	configCmd.AddCommand(configUseCmd)
	configCmd.AddCommand(configEditCmd)
}
