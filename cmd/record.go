package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/interviewprep/internal/audio"
	"github.com/audiolibrelab/interviewprep/internal/output"
	"github.com/audiolibrelab/interviewprep/internal/recording"
)

var recordCmd = &cobra.Command{
	Use:   "record [file]",
	Short: "Record from the microphone into a file",
	Long: `Record from the microphone without a question and without uploading.
Press Enter or Ctrl+C to stop. The answer is written to the given file, or
to the output directory with a timestamped name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := output.NewFormatter(os.Stdout)

		ctrl := recording.New(audio.NewDevice(cfg),
			recording.WithConstraints(audio.ConstraintsFromConfig(cfg)),
			recording.WithPreferences(cfg.Audio.Encodings),
			recording.WithTimeslice(cfg.Timeslice()),
			recording.WithOnStateChange(func(from, to recording.State) {
				slog.Debug("Recording state changed", "from", from, "to", to)
			}),
		)
		defer ctrl.Close()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		if err := ctrl.Start(cmd.Context()); err != nil {
			return err
		}
		out.Info("Recording - press Enter or Ctrl+C to stop")

		lines := readLines(os.Stdin)
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()

	wait:
		for {
			select {
			case <-sigChan:
				break wait
			case <-lines:
				break wait
			case <-ticker.C:
				st := ctrl.Status()
				out.Status(st)
				if st.State == recording.StateStopped {
					break wait
				}
				if st.State == recording.StateFailed {
					fmt.Println()
					return ctrl.LastError()
				}
			}
		}

		if ctrl.Status().State.Active() {
			if err := ctrl.Stop(); err != nil {
				fmt.Println()
				return err
			}
		}
		out.Status(ctrl.Status())
		fmt.Println()

		artifact := ctrl.Artifact()
		if artifact == nil {
			return fmt.Errorf("recording produced no audio")
		}

		path := filepath.Join(cfg.Output.Directory, artifact.Filename())
		if len(args) == 1 {
			path = args[0]
			if filepath.Ext(path) == "" {
				path += "." + artifact.Extension()
			}
		}
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(path, artifact.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write recording: %w", err)
		}

		slog.Debug("Recording written", "path", path, "bytes", artifact.Size(), "mime", artifact.MIMEType())
		out.Success(fmt.Sprintf("Saved %s (%s)", path, output.FormatElapsed(artifact.ElapsedSeconds())))
		return nil
	},
}
