package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/audiolibrelab/interviewprep/internal/config"
	"github.com/audiolibrelab/interviewprep/internal/output"
	"github.com/audiolibrelab/interviewprep/internal/service"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	logFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "interviewprep [question-id]",
	Short: "Practice interview answers from the terminal",
	Long: `interviewprep records spoken answers to interview questions from your
microphone, uploads them to the interview service and shows the feedback.

When a question id is provided, it acts as 'interviewprep practice [question-id]'.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			cfgFile = config.DefaultPath()
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			setupLogging(verboseLevel, config.LoggingConfig{File: logFile})
			return fmt.Errorf("failed to load config: %w", err)
		}

		logging := cfg.Logging
		if logFile != "" {
			logging.File = logFile
		}
		setupLogging(verboseLevel, logging)
		slog.Debug("Configuration loaded", "file", cfgFile, "profile", cfg.Profile)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return runPractice(cmd, args)
		}
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.NewFormatter(os.Stderr).Failure(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/interviewprep.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated (overrides logging.file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=ffmpeg info output, 3=ffmpeg debug output")

	addPracticeFlags(rootCmd)

	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(recordingsCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int, logging config.LoggingConfig) {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	case 1, 2, 3:
		// Levels 2 and 3 also raise ffmpeg's own log level
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if logging.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logging.File,
			MaxSize:    logging.MaxSizeMB,
			MaxBackups: logging.MaxBackups,
			MaxAge:     logging.MaxAgeDays,
		})
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))

	switch {
	case level >= 3:
		os.Setenv("FFMPEG_LOGLEVEL", "debug")
	case level == 2:
		os.Setenv("FFMPEG_LOGLEVEL", "info")
	}
}

func newService(opts ...service.Option) (*service.PracticeService, error) {
	svc, err := service.New(cfg, cfgFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}
