package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/interviewprep/internal/api"
	"github.com/audiolibrelab/interviewprep/internal/output"
	"github.com/audiolibrelab/interviewprep/internal/play"
	"github.com/audiolibrelab/interviewprep/internal/recording"
	"github.com/audiolibrelab/interviewprep/internal/service"
)

var (
	pipeline           string
	saveAnswer         bool
	randomQuestion     bool
	practiceCategory   string
	practiceDifficulty string
)

var errAborted = errors.New("practice aborted")

const statusInterval = 250 * time.Millisecond

var practiceCmd = &cobra.Command{
	Use:   "practice [question-id]",
	Short: "Record, review and submit an answer to a question",
	Long: `Practice answering an interview question. Use -p to choose the steps:
r=record, p=play back the answer, s=submit it for feedback (default 'rs').

While recording: Enter stops, 'p' pauses or resumes, 'r' starts over and
'q' aborts. Each key is followed by Enter. Ctrl+C releases the microphone
and exits.

Without a question id the available questions are listed and you are asked
to pick one. With --random a question is drawn from the ones matching
--category and --difficulty. After each answer you can go on with another
random question; a session summary is shown at the end.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPractice,
}

func runPractice(cmd *cobra.Command, args []string) error {
	steps := strings.ToLower(pipeline)
	if err := service.ValidatePipeline(steps); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := output.NewFormatter(os.Stdout)
	lines := readLines(os.Stdin)

	var question *api.Question
	switch {
	case len(args) == 1:
		question, err = svc.Question(ctx, api.ID(args[0]))
	case randomQuestion:
		question, err = randomPick(ctx, svc, "")
	default:
		question, err = pickQuestion(ctx, svc, out, lines)
	}
	if err != nil {
		return err
	}

	var session service.SessionStats
	defer func() {
		if session.Completed > 0 {
			out.SessionSummary(session)
		}
	}()

	for {
		fmt.Println()
		out.Question(question)
		fmt.Println()

		rec, err := runSteps(ctx, svc, steps, question.ID, out, lines)
		switch {
		case errors.Is(err, errAborted):
			out.Info("Answer discarded")
		case ctx.Err() != nil:
			// Close runs from the deferred call and releases the device
			fmt.Println()
			out.Warning("Interrupted")
			return nil
		case err != nil:
			return err
		default:
			elapsed := 0
			if a := svc.CurrentArtifact(); a != nil {
				elapsed = a.ElapsedSeconds()
			}
			session.Add(rec, elapsed)
		}

		next, err := prompt(ctx, lines, "Next question? [y/N] ")
		if err != nil || !strings.HasPrefix(strings.ToLower(next), "y") {
			return nil
		}
		if question, err = randomPick(ctx, svc, question.ID); err != nil {
			return err
		}
	}
}

// runSteps runs the pipeline for one question. The returned recording is
// nil unless the answer was submitted.
func runSteps(ctx context.Context, svc *service.PracticeService, steps string, questionID api.ID, out *output.Formatter, lines <-chan string) (*api.Recording, error) {
	var rec *api.Recording
	for i, step := range steps {
		slog.Debug("Pipeline step", "index", i+1, "total", len(steps), "step", string(step))

		var err error
		switch step {
		case 'r':
			err = recordAnswer(ctx, svc, questionID, out, lines)
		case 'p':
			err = playAnswer(ctx, svc)
		case 's':
			rec, err = submitAnswer(ctx, svc, out, lines)
		}
		if err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func randomPick(ctx context.Context, svc *service.PracticeService, exclude api.ID) (*api.Question, error) {
	questions, err := svc.Questions(ctx)
	if err != nil {
		return nil, err
	}
	return service.PickQuestion(questions, practiceCategory, practiceDifficulty, exclude, rand.IntN)
}

func addPracticeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&pipeline, "pipeline", "p", "rs", "pipeline steps: r=record, p=play, s=submit (e.g., 'rs', 'rps')")
	cmd.Flags().BoolVar(&saveAnswer, "save", false, "also save the answer to the output directory")
	cmd.Flags().BoolVar(&randomQuestion, "random", false, "practice a random question")
	cmd.Flags().StringVar(&practiceCategory, "category", "", "category for random questions (default all)")
	cmd.Flags().StringVar(&practiceDifficulty, "difficulty", "", "difficulty for random questions (default all)")
}

func init() {
	addPracticeFlags(practiceCmd)
}

// readLines forwards stdin lines until it is closed.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func prompt(ctx context.Context, lines <-chan string, format string, args ...interface{}) (string, error) {
	fmt.Printf(format, args...)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

func pickQuestion(ctx context.Context, svc *service.PracticeService, out *output.Formatter, lines <-chan string) (*api.Question, error) {
	questions, err := svc.Questions(ctx)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions available, add one with 'interviewprep questions add'")
	}
	out.QuestionList(questions)
	fmt.Println()

	for {
		answer, err := prompt(ctx, lines, "Question id: ")
		if err != nil {
			return nil, err
		}
		for i := range questions {
			if string(questions[i].ID) == answer {
				return &questions[i], nil
			}
		}
		out.Warning(fmt.Sprintf("Unknown question id '%s'", answer))
	}
}

func recordAnswer(ctx context.Context, svc *service.PracticeService, questionID api.ID, out *output.Formatter, lines <-chan string) error {
	if err := svc.StartAnswer(ctx, questionID); err != nil {
		return err
	}
	out.Info("Recording - Enter=stop, p=pause/resume, r=start over, q=abort")

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			st := svc.GetRecordingStatus()
			out.Status(st.Status)
			switch st.State {
			case recording.StateStopped:
				// maximum duration reached
				fmt.Println()
				return saveIfRequested(svc, out)
			case recording.StateFailed:
				fmt.Println()
				return svc.RecordingError()
			}

		case line, ok := <-lines:
			if !ok {
				line = ""
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "":
				if err := svc.StopAnswer(); err != nil {
					fmt.Println()
					return err
				}
				out.Status(svc.GetRecordingStatus().Status)
				fmt.Println()
				return saveIfRequested(svc, out)

			case "p":
				var err error
				if svc.GetRecordingStatus().State == recording.StatePaused {
					err = svc.ResumeAnswer()
				} else {
					err = svc.PauseAnswer()
				}
				if err != nil {
					fmt.Println()
					if recording.KindOf(err) != recording.KindCapabilityUnavailable {
						return err
					}
					out.Failure(err)
				}

			case "r":
				if err := svc.ResetAnswer(); err != nil {
					return err
				}
				fmt.Println()
				out.Info("Starting over")
				if err := svc.StartAnswer(ctx, questionID); err != nil {
					return err
				}

			case "q":
				if err := svc.ResetAnswer(); err != nil {
					return err
				}
				fmt.Println()
				return errAborted
			}
		}
	}
}

type artifactSaver interface {
	SaveArtifact(dir string) (string, error)
}

func saveIfRequested(svc artifactSaver, out *output.Formatter) error {
	if !saveAnswer {
		return nil
	}
	path, err := svc.SaveArtifact("")
	if err != nil {
		return err
	}
	out.Success(fmt.Sprintf("Answer saved: %s", path))
	return nil
}

func playAnswer(ctx context.Context, svc *service.PracticeService) error {
	a := svc.CurrentArtifact()
	if a == nil {
		return fmt.Errorf("no recorded answer to play")
	}
	return play.New(os.Stdout).PlayBytes(ctx, a.Bytes(), a.Extension())
}

func submitAnswer(ctx context.Context, svc *service.PracticeService, out *output.Formatter, lines <-chan string) (*api.Recording, error) {
	for {
		out.Info("Uploading answer for feedback...")
		rec, err := svc.SubmitAnswer(ctx)
		if err == nil {
			out.Success("Answer uploaded")
			out.Feedback(rec)
			return rec, nil
		}
		if !errors.Is(err, service.ErrUploadFailed) || ctx.Err() != nil {
			return nil, err
		}

		out.Failure(err)
		answer, perr := prompt(ctx, lines, "Retry upload? [Y/n] ")
		if perr != nil {
			return nil, perr
		}
		if strings.HasPrefix(strings.ToLower(answer), "n") {
			if svc.GetConfig().KeepArtifacts() {
				out.Info("The answer was saved; upload it later with 'interviewprep recordings upload --pending'")
			}
			return nil, nil
		}
	}
}
