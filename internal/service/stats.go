package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/audiolibrelab/interviewprep/internal/api"
)

// Stats summarizes questions and uploaded answers.
type Stats struct {
	TotalQuestions   int        `json:"total_questions"`
	TotalRecordings  int        `json:"total_recordings"`
	ScoredRecordings int        `json:"scored_recordings"`
	AverageScore     float64    `json:"average_score"`
	PendingUploads   int        `json:"pending_uploads"`
	LastPracticed    *time.Time `json:"last_practiced,omitempty"`
}

// SessionStats tracks the answers submitted during one practice session.
type SessionStats struct {
	Completed        int     `json:"completed"`
	Scored           int     `json:"scored"`
	AverageScore     float64 `json:"average_score"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
}

// Add counts a submitted answer. Answers without a score do not move the
// average.
func (st *SessionStats) Add(rec *api.Recording, elapsedSeconds int) {
	st.Completed++
	st.TimeSpentSeconds += elapsedSeconds
	if rec == nil || rec.Feedback == nil || rec.Feedback.OverallScore <= 0 {
		return
	}
	st.AverageScore = (st.AverageScore*float64(st.Scored) + rec.Feedback.OverallScore) / float64(st.Scored+1)
	st.Scored++
}

// RecordingFilter narrows a recordings listing. Empty fields match
// everything.
type RecordingFilter struct {
	Search string
	Date   time.Time
}

func (f RecordingFilter) empty() bool {
	return strings.TrimSpace(f.Search) == "" && f.Date.IsZero()
}

// FilterQuestions keeps questions of the given category and difficulty.
// An empty value or "all" matches any.
func FilterQuestions(questions []api.Question, category, difficulty string) []api.Question {
	var out []api.Question
	for _, q := range questions {
		if !matchesAll(category, q.Category) || !matchesAll(difficulty, q.DifficultyLevel) {
			continue
		}
		out = append(out, q)
	}
	return out
}

func matchesAll(want, got string) bool {
	return want == "" || strings.EqualFold(want, "all") || strings.EqualFold(want, got)
}

// PickQuestion chooses a random question from the filtered set. The
// excluded id is skipped unless it is the only candidate. intn returns a
// value in [0, n).
func PickQuestion(questions []api.Question, category, difficulty string, exclude api.ID, intn func(n int) int) (*api.Question, error) {
	candidates := FilterQuestions(questions, category, difficulty)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no questions match category '%s' and difficulty '%s'", orAll(category), orAll(difficulty))
	}
	if exclude != "" && len(candidates) > 1 {
		var kept []api.Question
		for _, q := range candidates {
			if q.ID != exclude {
				kept = append(kept, q)
			}
		}
		candidates = kept
	}
	q := candidates[intn(len(candidates))]
	return &q, nil
}

func orAll(v string) string {
	if v == "" {
		return "all"
	}
	return v
}

// FilterRecordings keeps recordings whose transcript or question text
// contains the search text, created on the filter's calendar day.
// questionText maps question ids to their text.
func FilterRecordings(recordings []api.Recording, f RecordingFilter, questionText map[api.ID]string) []api.Recording {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []api.Recording
	for _, r := range recordings {
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Transcript), search) &&
			!strings.Contains(strings.ToLower(questionText[r.QuestionID]), search) {
			continue
		}
		if !f.Date.IsZero() && (r.CreatedAt == nil || !sameDay(*r.CreatedAt, f.Date)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sameDay(t, day time.Time) bool {
	y1, m1, d1 := t.In(day.Location()).Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ComputeStats summarizes questions and recordings. The average covers
// scored recordings only and is rounded to one decimal.
func ComputeStats(questions []api.Question, recordings []api.Recording) Stats {
	st := Stats{TotalQuestions: len(questions), TotalRecordings: len(recordings)}
	var sum float64
	for _, r := range recordings {
		if r.CreatedAt != nil && (st.LastPracticed == nil || r.CreatedAt.After(*st.LastPracticed)) {
			created := *r.CreatedAt
			st.LastPracticed = &created
		}
		if r.Feedback == nil || r.Feedback.OverallScore <= 0 {
			continue
		}
		sum += r.Feedback.OverallScore
		st.ScoredRecordings++
	}
	if st.ScoredRecordings > 0 {
		st.AverageScore = math.Round(sum/float64(st.ScoredRecordings)*10) / 10
	}
	return st
}

// SearchRecordings lists uploaded answers narrowed by f.
func (s *PracticeService) SearchRecordings(ctx context.Context, f RecordingFilter) ([]api.Recording, error) {
	recordings, err := s.Recordings(ctx)
	if err != nil || f.empty() {
		return recordings, err
	}

	var texts map[api.ID]string
	if strings.TrimSpace(f.Search) != "" {
		questions, err := s.Questions(ctx)
		if err != nil {
			slog.Warn("Failed to load questions for recording search", "error", err)
		}
		texts = make(map[api.ID]string, len(questions))
		for _, q := range questions {
			texts[q.ID] = q.QuestionText
		}
	}
	return FilterRecordings(recordings, f, texts), nil
}

// Stats returns totals and the average score of uploaded answers.
func (s *PracticeService) Stats(ctx context.Context) (Stats, error) {
	recordings, err := s.Recordings(ctx)
	if err != nil {
		return Stats{}, err
	}
	questions, err := s.Questions(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := ComputeStats(questions, recordings)

	pending, err := s.ListPending()
	if err != nil {
		slog.Warn("Failed to list pending uploads", "error", err)
	}
	st.PendingUploads = len(pending)
	return st, nil
}
