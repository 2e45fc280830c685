package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/audiolibrelab/interviewprep/internal/api"
	"github.com/audiolibrelab/interviewprep/internal/recording"
	"github.com/audiolibrelab/interviewprep/internal/service"
)

var (
	good = color.New(color.FgGreen)
	fair = color.New(color.FgYellow)
	poor = color.New(color.FgRed)
	bold = color.New(color.Bold)
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Error(msg string) {
	poor.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	good.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fair.Fprintf(f.w, "⚠️  %s\n", msg)
}

// Failure prints err followed by guidance for its kind, if any.
func (f *Formatter) Failure(err error) {
	f.Error(err.Error())
	if hint := Guidance(err); hint != "" {
		fmt.Fprintf(f.w, "   %s\n", hint)
	}
}

// Guidance returns a user-facing suggestion for err.
func Guidance(err error) string {
	switch recording.KindOf(err) {
	case recording.KindPermissionDenied:
		return "Could not access the microphone. Allow microphone access for this terminal and try again."
	case recording.KindDeviceNotFound:
		return "No microphone was found. Connect one or set audio.input in the config (see 'interviewprep devices')."
	case recording.KindUnsupported:
		return "The recorder cannot encode any configured format. Check audio.encodings or install an ffmpeg with libopus."
	case recording.KindCapabilityUnavailable:
		return "This input cannot pause. Stop the recording instead."
	case recording.KindDeviceError:
		return "The microphone stopped working during the recording. Start a new answer."
	case recording.KindInvalidState:
		return "That action is not available right now."
	}
	switch {
	case errors.Is(err, service.ErrUploadFailed):
		return "Your answer was kept. Retry the upload or run 'interviewprep recordings upload'."
	case api.IsUnauthorized(err), errors.Is(err, api.ErrNotAuthenticated):
		return "Log in with 'interviewprep auth login'."
	case errors.Is(err, api.ErrUnavailable):
		return "The interview service is unreachable. Check api.base_url and your connection."
	}
	return ""
}

// FormatElapsed renders seconds as mm:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// StatusLine is a one-line summary of the recording state.
func StatusLine(st recording.Status) string {
	switch st.State {
	case recording.StateRequesting:
		return "🎙️  Requesting microphone..."
	case recording.StateRecording:
		return fmt.Sprintf("🔴 Recording %s", FormatElapsed(st.ElapsedSeconds))
	case recording.StatePaused:
		return fmt.Sprintf("⏸️  Paused %s", FormatElapsed(st.ElapsedSeconds))
	case recording.StateStopped:
		return fmt.Sprintf("⏹️  Recording stopped (%s)", FormatElapsed(st.ElapsedSeconds))
	case recording.StateFailed:
		if st.LastErrorKind != "" {
			return fmt.Sprintf("❌ Recording failed: %s", st.LastErrorKind)
		}
		return "❌ Recording failed"
	}
	return "⚪ Ready"
}

// Status rewrites the current terminal line with the recording state.
func (f *Formatter) Status(st recording.Status) {
	fmt.Fprintf(f.w, "\r\033[K%s", StatusLine(st))
}

func (f *Formatter) QuestionList(questions []api.Question) {
	if len(questions) == 0 {
		fmt.Fprintln(f.w, "No questions found.")
		return
	}
	bold.Fprintf(f.w, "📋 Questions:\n\n")
	tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tLEVEL\tQUESTION")
	for _, q := range questions {
		level := q.DifficultyLevel
		if level == "" {
			level = "-"
		}
		text := truncate(q.QuestionText, 70)
		if q.IsGenerated {
			text += " ✨"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", q.ID, q.Category, level, text)
	}
	tw.Flush()
}

func (f *Formatter) Question(q *api.Question) {
	bold.Fprintf(f.w, "❓ %s\n", q.QuestionText)
	fmt.Fprintf(f.w, "   id: %s\n", q.ID)
	fmt.Fprintf(f.w, "   category: %s\n", q.Category)
	if q.DifficultyLevel != "" {
		fmt.Fprintf(f.w, "   difficulty: %s\n", q.DifficultyLevel)
	}
	if q.Role != "" {
		fmt.Fprintf(f.w, "   role: %s\n", q.Role)
	}
	if q.Reasoning != "" {
		fmt.Fprintf(f.w, "   why it is asked: %s\n", q.Reasoning)
	}
}

func (f *Formatter) RecordingList(recordings []api.Recording) {
	if len(recordings) == 0 {
		fmt.Fprintln(f.w, "No recordings yet.")
		return
	}
	bold.Fprintf(f.w, "🎧 Recordings:\n\n")
	tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUESTION\tDURATION\tSCORE\tCREATED")
	for _, r := range recordings {
		score := "-"
		if r.Feedback != nil && r.Feedback.OverallScore > 0 {
			score = fmt.Sprintf("%.1f/10", r.Feedback.OverallScore)
		}
		created := "-"
		if r.CreatedAt != nil {
			created = r.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.QuestionID, FormatElapsed(int(r.DurationSeconds)), score, created)
	}
	tw.Flush()
}

func (f *Formatter) PendingList(pending []service.PendingUpload) {
	if len(pending) == 0 {
		fmt.Fprintln(f.w, "No answers waiting for upload.")
		return
	}
	bold.Fprintf(f.w, "📤 Waiting for upload:\n\n")
	tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUESTION\tSIZE\tSAVED\tFILE")
	for _, p := range pending {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.QuestionID, p.SizeHuman, p.ModTimeHuman, p.Path)
	}
	tw.Flush()
}

// Feedback renders a scored recording.
func (f *Formatter) Feedback(r *api.Recording) {
	bold.Fprintf(f.w, "\n⭐ Feedback")
	if r.DurationSeconds > 0 {
		fmt.Fprintf(f.w, " (%s)", FormatElapsed(int(r.DurationSeconds)))
	}
	fmt.Fprintln(f.w)

	fb := r.Feedback
	if fb == nil {
		fmt.Fprintln(f.w, "   No feedback available yet.")
	} else {
		if fb.OverallScore > 0 {
			fmt.Fprint(f.w, "\nOverall score: ")
			scoreColor(fb.OverallScore).Fprintf(f.w, "%.1f/10\n", fb.OverallScore)
		}

		if len(fb.DetailedScores) > 0 {
			fmt.Fprintln(f.w)
			names := make([]string, 0, len(fb.DetailedScores))
			for name := range fb.DetailedScores {
				names = append(names, name)
			}
			sort.Strings(names)
			tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
			for _, name := range names {
				score := fb.DetailedScores[name]
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", categoryLabel(name), scoreColor(score).Sprintf("%.1f/10", score), scoreBar(score))
			}
			tw.Flush()
		}

		f.list("✅ Strengths", fb.Strengths)
		f.list("⚠️  Areas for Improvement", fb.Improvements)

		if fb.GeneralFeedback != "" {
			bold.Fprintf(f.w, "\n💬 Additional Feedback\n")
			fmt.Fprintf(f.w, "  %s\n", fb.GeneralFeedback)
		}

		keys := make([]string, 0, len(fb.Extra))
		for k := range fb.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			bold.Fprintf(f.w, "\n%s\n", categoryLabel(k))
			f.value(fb.Extra[k], "  ")
		}
	}

	if r.Transcript != "" {
		bold.Fprintf(f.w, "\n📝 Transcript\n")
		fmt.Fprintf(f.w, "  %s\n", r.Transcript)
	}
}

// Stats renders practice totals.
func (f *Formatter) Stats(st service.Stats) {
	bold.Fprintf(f.w, "📊 Practice summary\n\n")
	tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Questions\t%d\n", st.TotalQuestions)
	fmt.Fprintf(tw, "  Answers uploaded\t%d\n", st.TotalRecordings)
	fmt.Fprintf(tw, "  Average score\t%s\n", averageScore(st.AverageScore, st.ScoredRecordings))
	if st.PendingUploads > 0 {
		fmt.Fprintf(tw, "  Waiting for upload\t%d\n", st.PendingUploads)
	}
	if st.LastPracticed != nil {
		fmt.Fprintf(tw, "  Last practiced\t%s\n", st.LastPracticed.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

// SessionSummary renders the answers submitted in one practice session.
func (f *Formatter) SessionSummary(st service.SessionStats) {
	bold.Fprintf(f.w, "\n🏁 Session summary\n")
	fmt.Fprintf(f.w, "  Questions completed: %d\n", st.Completed)
	fmt.Fprintf(f.w, "  Average score: %s\n", averageScore(st.AverageScore, st.Scored))
	fmt.Fprintf(f.w, "  Time spent: %s\n", FormatElapsed(st.TimeSpentSeconds))
}

func averageScore(avg float64, scored int) string {
	if scored == 0 {
		return "N/A"
	}
	return scoreColor(avg).Sprintf("%.1f/10", avg)
}

func (f *Formatter) User(u *api.User) {
	if u == nil {
		fmt.Fprintln(f.w, "Not logged in.")
		return
	}
	name := u.Username
	if name == "" {
		name = u.Email
	}
	fmt.Fprintf(f.w, "👤 %s <%s> (id %s)\n", name, u.Email, u.ID)
}

func (f *Formatter) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	bold.Fprintf(f.w, "\n%s\n", title)
	for _, item := range items {
		fmt.Fprintf(f.w, "  • %s\n", item)
	}
}

func (f *Formatter) value(v any, indent string) {
	switch val := v.(type) {
	case string:
		fmt.Fprintf(f.w, "%s%s\n", indent, val)
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				fmt.Fprintf(f.w, "%s• %s\n", indent, s)
				continue
			}
			f.value(item, indent+"  ")
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if nested, ok := val[k].(map[string]any); ok {
				fmt.Fprintf(f.w, "%s%s:\n", indent, categoryLabel(k))
				f.value(nested, indent+"  ")
				continue
			}
			if nested, ok := val[k].([]any); ok {
				fmt.Fprintf(f.w, "%s%s:\n", indent, categoryLabel(k))
				f.value(nested, indent+"  ")
				continue
			}
			fmt.Fprintf(f.w, "%s%s: %v\n", indent, categoryLabel(k), val[k])
		}
	default:
		fmt.Fprintf(f.w, "%s%v\n", indent, val)
	}
}

func scoreColor(score float64) *color.Color {
	switch {
	case score >= 8:
		return good
	case score >= 6:
		return fair
	}
	return poor
}

func scoreBar(score float64) string {
	filled := int(score + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// categoryLabel turns "problem_solving" into "Problem solving".
func categoryLabel(name string) string {
	label := strings.ReplaceAll(name, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
