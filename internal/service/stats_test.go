package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/interviewprep/internal/api"
)

func scored(score float64) *api.Feedback {
	return &api.Feedback{OverallScore: score}
}

func at(t time.Time) *time.Time { return &t }

var sampleQuestions = []api.Question{
	{ID: "1", QuestionText: "Tell me about yourself", Category: "behavioral", DifficultyLevel: "easy"},
	{ID: "2", QuestionText: "Design a rate limiter", Category: "technical", DifficultyLevel: "hard"},
	{ID: "3", QuestionText: "Describe a conflict", Category: "behavioral", DifficultyLevel: "medium"},
}

func TestFilterQuestions(t *testing.T) {
	assert.Len(t, FilterQuestions(sampleQuestions, "", ""), 3)
	assert.Len(t, FilterQuestions(sampleQuestions, "all", "ALL"), 3)

	behavioral := FilterQuestions(sampleQuestions, "Behavioral", "")
	require.Len(t, behavioral, 2)
	assert.Equal(t, api.ID("1"), behavioral[0].ID)

	hard := FilterQuestions(sampleQuestions, "", "hard")
	require.Len(t, hard, 1)
	assert.Equal(t, api.ID("2"), hard[0].ID)

	assert.Empty(t, FilterQuestions(sampleQuestions, "technical", "easy"))
}

func TestPickQuestion(t *testing.T) {
	first := func(int) int { return 0 }

	q, err := PickQuestion(sampleQuestions, "behavioral", "", "1", first)
	require.NoError(t, err)
	assert.Equal(t, api.ID("3"), q.ID, "the current question is skipped")

	q, err = PickQuestion(sampleQuestions, "technical", "", "2", first)
	require.NoError(t, err)
	assert.Equal(t, api.ID("2"), q.ID, "a single candidate is repeated")

	var bound int
	_, err = PickQuestion(sampleQuestions, "", "", "", func(n int) int { bound = n; return n - 1 })
	require.NoError(t, err)
	assert.Equal(t, 3, bound)

	_, err = PickQuestion(sampleQuestions, "sales", "", "", first)
	assert.ErrorContains(t, err, "no questions match category 'sales' and difficulty 'all'")
}

func TestFilterRecordings(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	recordings := []api.Recording{
		{ID: "a", QuestionID: "1", Transcript: "I led the migration", CreatedAt: at(day.Add(9 * time.Hour))},
		{ID: "b", QuestionID: "2", Transcript: "token bucket", CreatedAt: at(day.Add(30 * time.Hour))},
		{ID: "c", QuestionID: "3"},
	}
	texts := map[api.ID]string{"1": "Tell me about yourself", "2": "Design a rate limiter", "3": "Describe a conflict"}

	ids := func(rs []api.Recording) []api.ID {
		var out []api.ID
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []api.ID{"a", "b", "c"}, ids(FilterRecordings(recordings, RecordingFilter{}, texts)))
	assert.Equal(t, []api.ID{"a"}, ids(FilterRecordings(recordings, RecordingFilter{Search: "MIGRATION"}, texts)))
	assert.Equal(t, []api.ID{"b"}, ids(FilterRecordings(recordings, RecordingFilter{Search: "rate limiter"}, texts)))
	assert.Equal(t, []api.ID{"a"}, ids(FilterRecordings(recordings, RecordingFilter{Date: day}, texts)))
	assert.Empty(t, FilterRecordings(recordings, RecordingFilter{Search: "conflict", Date: day}, texts))
}

func TestComputeStats(t *testing.T) {
	older := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	st := ComputeStats(sampleQuestions, []api.Recording{
		{ID: "a", Feedback: scored(7), CreatedAt: at(older)},
		{ID: "b", Feedback: scored(8.5), CreatedAt: at(newer)},
		{ID: "c", Feedback: scored(6)},
		{ID: "d"},
	})

	assert.Equal(t, 3, st.TotalQuestions)
	assert.Equal(t, 4, st.TotalRecordings)
	assert.Equal(t, 3, st.ScoredRecordings)
	assert.Equal(t, 7.2, st.AverageScore)
	require.NotNil(t, st.LastPracticed)
	assert.True(t, st.LastPracticed.Equal(newer))

	empty := ComputeStats(nil, nil)
	assert.Zero(t, empty.AverageScore)
	assert.Nil(t, empty.LastPracticed)
}

func TestSessionStatsAdd(t *testing.T) {
	var st SessionStats
	st.Add(&api.Recording{Feedback: scored(8)}, 40)
	st.Add(nil, 15)
	st.Add(&api.Recording{Feedback: scored(6)}, 20)

	assert.Equal(t, 3, st.Completed)
	assert.Equal(t, 2, st.Scored)
	assert.Equal(t, 7.0, st.AverageScore)
	assert.Equal(t, 75, st.TimeSpentSeconds)
}

func TestServiceStats(t *testing.T) {
	svc, _ := newTestService(t, &fakeDevice{})

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalQuestions)
	assert.Zero(t, st.TotalRecordings)
	assert.Zero(t, st.PendingUploads)
}
