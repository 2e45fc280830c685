package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/interviewprep/internal/api"
	"github.com/audiolibrelab/interviewprep/internal/output"
	"github.com/audiolibrelab/interviewprep/internal/service"
)

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "List uploaded answers and their feedback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return recordingsListCmd.RunE(cmd, args)
	},
}

var recordingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		search, _ := cmd.Flags().GetString("search")
		date, _ := cmd.Flags().GetString("date")
		filter, err := recordingFilter(search, date)
		if err != nil {
			return err
		}

		recordings, err := svc.SearchRecordings(cmd.Context(), filter)
		if err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).RecordingList(recordings)
		return nil
	},
}

// recordingFilter parses the list flags. date is a local calendar day.
func recordingFilter(search, date string) (service.RecordingFilter, error) {
	f := service.RecordingFilter{Search: search}
	if date == "" {
		return f, nil
	}
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return f, fmt.Errorf("invalid date '%s', expected YYYY-MM-DD", date)
	}
	f.Date = day
	return f, nil
}

var recordingsShowCmd = &cobra.Command{
	Use:   "show <recording-id>",
	Short: "Show the transcript and feedback of an answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		rec, err := svc.Recording(cmd.Context(), api.ID(args[0]))
		if err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).Feedback(rec)
		return nil
	},
}

var recordingsDeleteCmd = &cobra.Command{
	Use:     "delete <recording-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an uploaded answer",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.DeleteRecording(cmd.Context(), api.ID(args[0])); err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).Success(fmt.Sprintf("Recording %s deleted", args[0]))
		return nil
	},
}

var recordingsUploadCmd = &cobra.Command{
	Use:   "upload [question-id file]",
	Short: "Upload a saved answer",
	Long: `Upload an answer file for a question and show the feedback. With --pending
every answer kept after a failed upload is retried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pendingOnly, _ := cmd.Flags().GetBool("pending")
		if !pendingOnly && len(args) != 2 {
			return fmt.Errorf("expected <question-id> <file>, or --pending")
		}

		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		out := output.NewFormatter(os.Stdout)
		if !pendingOnly {
			rec, err := svc.UploadFile(cmd.Context(), api.ID(args[0]), args[1])
			if err != nil {
				return err
			}
			out.Success("Answer uploaded")
			out.Feedback(rec)
			return nil
		}

		pending, err := svc.ListPending()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			out.Info("No pending answers")
			return nil
		}

		var errs []error
		for _, p := range pending {
			if _, err := svc.UploadFile(cmd.Context(), p.QuestionID, p.Path); err != nil {
				out.Error(fmt.Sprintf("%s: %v", p.Name, err))
				errs = append(errs, err)
				continue
			}
			out.Success(fmt.Sprintf("%s uploaded", p.Name))
		}
		if len(errs) > 0 {
			return fmt.Errorf("%d of %d uploads failed: %w", len(errs), len(pending), errors.Join(errs...))
		}
		return nil
	},
}

var recordingsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List answers waiting for upload",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		pending, err := svc.ListPending()
		if err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).PendingList(pending)
		return nil
	},
}

func init() {
	recordingsUploadCmd.Flags().Bool("pending", false, "upload every pending answer")
	for _, c := range []*cobra.Command{recordingsCmd, recordingsListCmd} {
		c.Flags().String("search", "", "only answers whose transcript or question contains this text")
		c.Flags().String("date", "", "only answers recorded on this day (YYYY-MM-DD)")
	}

	recordingsCmd.AddCommand(recordingsListCmd)
	recordingsCmd.AddCommand(recordingsShowCmd)
	recordingsCmd.AddCommand(recordingsDeleteCmd)
	recordingsCmd.AddCommand(recordingsUploadCmd)
	recordingsCmd.AddCommand(recordingsPendingCmd)
}
