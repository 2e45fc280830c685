package output

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/audiolibrelab/interviewprep/internal/api"
	"github.com/audiolibrelab/interviewprep/internal/recording"
	"github.com/audiolibrelab/interviewprep/internal/service"
)

func init() {
	color.NoColor = true
}

func TestFormatElapsed(t *testing.T) {
	cases := map[int]string{0: "00:00", 5: "00:05", 65: "01:05", 600: "10:00", -3: "00:00"}
	for in, want := range cases {
		assert.Equal(t, want, FormatElapsed(in))
	}
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "🔴 Recording 01:05", StatusLine(recording.Status{State: recording.StateRecording, ElapsedSeconds: 65}))
	assert.Equal(t, "⏸️  Paused 00:03", StatusLine(recording.Status{State: recording.StatePaused, ElapsedSeconds: 3}))
	assert.Contains(t, StatusLine(recording.Status{State: recording.StateFailed, LastErrorKind: recording.KindDeviceNotFound}), "DeviceNotFound")
	assert.Equal(t, "⚪ Ready", StatusLine(recording.Status{State: recording.StateIdle}))
}

func TestGuidance(t *testing.T) {
	assert.Contains(t, Guidance(recording.ErrPermissionDenied), "Allow microphone access")
	assert.Contains(t, Guidance(recording.ErrDeviceNotFound), "No microphone")
	assert.Contains(t, Guidance(recording.ErrCapabilityUnavailable), "cannot pause")
	assert.Contains(t, Guidance(fmt.Errorf("%w: %w", service.ErrUploadFailed, errors.New("x"))), "Retry")
	assert.Contains(t, Guidance(&api.APIError{StatusCode: 401}), "auth login")
	assert.Empty(t, Guidance(errors.New("plain")))

	// each kind gets its own guidance
	seen := map[string]bool{}
	for _, err := range []error{
		recording.ErrPermissionDenied, recording.ErrDeviceNotFound, recording.ErrUnsupported,
		recording.ErrCapabilityUnavailable, recording.ErrDeviceError, recording.ErrInvalidState,
	} {
		hint := Guidance(err)
		assert.NotEmpty(t, hint)
		assert.False(t, seen[hint], hint)
		seen[hint] = true
	}
}

func TestFeedback(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.Feedback(&api.Recording{
		DurationSeconds: 75,
		Transcript:      "I led the migration.",
		Feedback: &api.Feedback{
			OverallScore:    7.5,
			DetailedScores:  map[string]float64{"structure": 8, "clarity": 6, "problem_solving": 4},
			Strengths:       []string{"Clear example"},
			Improvements:    []string{"Quantify impact"},
			GeneralFeedback: "Solid answer.",
			Extra: map[string]any{
				"tone":     "Confident",
				"keywords": []any{"migration", "ownership"},
			},
		},
	})
	out := buf.String()

	assert.Contains(t, out, "(01:15)")
	assert.Contains(t, out, "Overall score: 7.5/10")
	clarity := strings.Index(out, "Clarity")
	problem := strings.Index(out, "Problem solving")
	structure := strings.Index(out, "Structure")
	assert.True(t, clarity < problem && problem < structure, "detailed scores sorted by name")
	assert.Contains(t, out, "• Clear example")
	assert.Contains(t, out, "• Quantify impact")
	assert.Contains(t, out, "Solid answer.")
	assert.Contains(t, out, "Tone\n  Confident")
	assert.Contains(t, out, "• ownership")
	assert.Contains(t, out, "I led the migration.")
}

func TestFeedbackMissing(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter(&buf).Feedback(&api.Recording{})
	assert.Contains(t, buf.String(), "No feedback available yet.")
}

func TestQuestionList(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.QuestionList(nil)
	assert.Contains(t, buf.String(), "No questions found.")

	buf.Reset()
	f.QuestionList([]api.Question{
		{ID: "1", QuestionText: "Tell me about yourself", Category: "behavioral"},
		{ID: "abc", QuestionText: strings.Repeat("x", 100), Category: "technical", DifficultyLevel: "hard", IsGenerated: true},
	})
	out := buf.String()
	assert.Contains(t, out, "Tell me about yourself")
	assert.Contains(t, out, "hard")
	assert.Contains(t, out, "…")
	assert.Contains(t, out, "✨")
}

func TestScoreBar(t *testing.T) {
	assert.Equal(t, "██████░░░░", scoreBar(6))
	assert.Equal(t, "██████████", scoreBar(12))
	assert.Equal(t, "░░░░░░░░░░", scoreBar(-1))
}

func TestUser(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.User(nil)
	assert.Contains(t, buf.String(), "Not logged in.")

	buf.Reset()
	f.User(&api.User{ID: "7", Email: "a@b.c"})
	assert.Equal(t, "👤 a@b.c <a@b.c> (id 7)\n", buf.String())
}

func TestStats(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.Stats(service.Stats{TotalQuestions: 12, TotalRecordings: 4})
	out := buf.String()
	assert.Contains(t, out, "Questions")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "N/A")
	assert.NotContains(t, out, "Waiting for upload")

	buf.Reset()
	f.Stats(service.Stats{TotalRecordings: 3, ScoredRecordings: 2, AverageScore: 7.3, PendingUploads: 1})
	out = buf.String()
	assert.Contains(t, out, "7.3/10")
	assert.Contains(t, out, "Waiting for upload")
}

func TestSessionSummary(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter(&buf).SessionSummary(service.SessionStats{Completed: 2, Scored: 2, AverageScore: 8.25, TimeSpentSeconds: 95})
	out := buf.String()
	assert.Contains(t, out, "Questions completed: 2")
	assert.Contains(t, out, "Average score: 8.2/10")
	assert.Contains(t, out, "Time spent: 01:35")
}
