package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/interviewprep/internal/api"
	"github.com/audiolibrelab/interviewprep/internal/audio"
	"github.com/audiolibrelab/interviewprep/internal/config"
	"github.com/audiolibrelab/interviewprep/internal/recording"
	"github.com/audiolibrelab/interviewprep/internal/store"
)

type fakeDevice struct {
	openErr error
}

func (d *fakeDevice) Open(ctx context.Context, c audio.Constraints) (audio.Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &fakeStream{}, nil
}

type fakeStream struct {
	mu      sync.Mutex
	handler audio.Handler
}

func (s *fakeStream) Capabilities() audio.Capabilities {
	return audio.Capabilities{PauseCapable: true, Encodings: []string{"audio/webm;codecs=opus"}}
}

func (s *fakeStream) Start(format audio.Format, timeslice time.Duration, h audio.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
	return nil
}

func (s *fakeStream) Pause() error  { return nil }
func (s *fakeStream) Resume() error { return nil }

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h.OnChunk([]byte("first"))
	h.OnChunk([]byte("-second"))
	return nil
}

func (s *fakeStream) Release() {}

type noopClock struct{}

func (noopClock) Every(time.Duration, func()) func() { return func() {} }

type upload struct {
	questionID string
	filename   string
	mimeType   string
	body       string
}

type fakeBackend struct {
	failUploads atomic.Bool
	failList    atomic.Bool

	mu      sync.Mutex
	uploads []upload
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/questions/":
		if b.failList.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"boom"}`))
			return
		}
		w.Write([]byte(`[{"id":1,"question_text":"Tell me about yourself","category":"behavioral"},{"id":2,"question_text":"Why this role?","category":"behavioral"}]`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/questions/7":
		w.Write([]byte(`{"id":7,"question_text":"Remote seven","category":"technical"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/recordings/":
		w.Write([]byte(`[]`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/recordings/":
		if b.failUploads.Load() {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"detail":"scoring unavailable"}`))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		b.mu.Lock()
		b.uploads = append(b.uploads, upload{
			questionID: r.FormValue("question_id"),
			filename:   header.Filename,
			mimeType:   header.Header.Get("Content-Type"),
			body:       string(data),
		})
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"id":          42,
			"question_id": r.FormValue("question_id"),
			"transcript":  "hello",
			"feedback_json": map[string]any{
				"overall_score": 8.5,
			},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"not found"}`))
	}
}

func (b *fakeBackend) received() []upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]upload(nil), b.uploads...)
}

func newTestService(t *testing.T, device audio.Device) (*PracticeService, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.API.BaseURL = srv.URL + "/api"
	cfg.API.Timeout = 5 * time.Second
	cfg.Output.Directory = filepath.Join(dir, "recordings")
	cfg.Storage.SessionFile = filepath.Join(dir, "session.yaml")
	cfg.Storage.QuestionsFile = filepath.Join(dir, "questions.json")

	svc, err := New(cfg, "",
		WithDevice(device),
		WithSessionStore(store.NewMemoryStore()),
		WithClock(noopClock{}))
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, backend
}

func recordAnswer(t *testing.T, svc *PracticeService, qid api.ID) {
	t.Helper()
	require.NoError(t, svc.StartAnswer(context.Background(), qid))
	assert.Equal(t, recording.StateRecording, svc.GetRecordingStatus().State)
	require.NoError(t, svc.StopAnswer())
	require.Equal(t, recording.StateStopped, svc.GetRecordingStatus().State)
}

func TestSubmitAnswerUploads(t *testing.T) {
	svc, backend := newTestService(t, &fakeDevice{})
	recordAnswer(t, svc, "3")

	status := svc.GetRecordingStatus()
	assert.Equal(t, api.ID("3"), status.QuestionID)
	assert.Equal(t, len("first-second"), status.ArtifactSize)

	rec, err := svc.SubmitAnswer(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, api.ID("42"), rec.ID)
	require.NotNil(t, rec.Feedback)
	assert.Equal(t, 8.5, rec.Feedback.OverallScore)
	assert.Same(t, rec, svc.LastRecording())

	uploads := backend.received()
	require.Len(t, uploads, 1)
	assert.Equal(t, "3", uploads[0].questionID)
	assert.Equal(t, "first-second", uploads[0].body)
	assert.Equal(t, "audio/webm;codecs=opus", uploads[0].mimeType)
	assert.Equal(t, svc.CurrentArtifact().Filename(), uploads[0].filename)
	assert.Empty(t, svc.GetLastError())
}

func TestSubmitAnswerFailureKeepsArtifact(t *testing.T) {
	svc, backend := newTestService(t, &fakeDevice{})
	backend.failUploads.Store(true)
	recordAnswer(t, svc, "5")

	_, err := svc.SubmitAnswer(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUploadFailed))
	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.NotEmpty(t, svc.GetLastError())

	// artifact stays available for another attempt
	assert.Equal(t, recording.StateStopped, svc.GetRecordingStatus().State)
	require.NotNil(t, svc.CurrentArtifact())

	pending, err := svc.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, api.ID("5"), pending[0].QuestionID)
	assert.Equal(t, "audio/webm;codecs=opus", pending[0].MIMEType)

	backend.failUploads.Store(false)
	rec, err := svc.UploadFile(context.Background(), pending[0].QuestionID, pending[0].Path)
	require.NoError(t, err)
	assert.Equal(t, api.ID("42"), rec.ID)
	_, statErr := os.Stat(pending[0].Path)
	assert.True(t, os.IsNotExist(statErr))

	rec, err = svc.SubmitAnswer(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Len(t, backend.received(), 2)
}

func TestSubmitWithoutRecording(t *testing.T) {
	svc, _ := newTestService(t, &fakeDevice{})

	_, err := svc.SubmitAnswer(context.Background())
	assert.True(t, errors.Is(err, recording.ErrInvalidState))
	assert.False(t, errors.Is(err, ErrUploadFailed))
}

func TestStartAnswerRequiresQuestion(t *testing.T) {
	svc, _ := newTestService(t, &fakeDevice{})
	assert.ErrorIs(t, svc.StartAnswer(context.Background(), ""), ErrNoQuestion)
	assert.Equal(t, recording.StateIdle, svc.GetRecordingStatus().State)
}

func TestStartAnswerPermissionDenied(t *testing.T) {
	svc, _ := newTestService(t, &fakeDevice{openErr: audio.ErrPermissionDenied})

	err := svc.StartAnswer(context.Background(), "1")
	assert.Equal(t, recording.KindPermissionDenied, recording.KindOf(err))
	assert.Equal(t, recording.StateFailed, svc.GetRecordingStatus().State)
	assert.Contains(t, svc.GetLastError(), "PermissionDenied")

	require.NoError(t, svc.ResetAnswer())
	assert.Equal(t, recording.StateIdle, svc.GetRecordingStatus().State)
	assert.Empty(t, svc.GetLastError())
}

func TestStartAnswerDiscardsFinishedSession(t *testing.T) {
	svc, _ := newTestService(t, &fakeDevice{})
	recordAnswer(t, svc, "1")
	first := svc.CurrentArtifact()

	recordAnswer(t, svc, "2")
	assert.NotEqual(t, first.ID(), svc.CurrentArtifact().ID())
	assert.Equal(t, api.ID("2"), svc.GetRecordingStatus().QuestionID)
}

func TestPauseAndResume(t *testing.T) {
	svc, _ := newTestService(t, &fakeDevice{})
	require.NoError(t, svc.StartAnswer(context.Background(), "1"))

	require.NoError(t, svc.PauseAnswer())
	assert.Equal(t, recording.StatePaused, svc.GetRecordingStatus().State)
	assert.ErrorIs(t, svc.PauseAnswer(), recording.ErrInvalidState)
	require.NoError(t, svc.ResumeAnswer())
	assert.Equal(t, recording.StateRecording, svc.GetRecordingStatus().State)
}

func TestSaveArtifact(t *testing.T) {
	svc, _ := newTestService(t, &fakeDevice{})

	_, err := svc.SaveArtifact("")
	assert.Error(t, err)

	recordAnswer(t, svc, "1")
	path, err := svc.SaveArtifact("")
	require.NoError(t, err)
	assert.Equal(t, svc.GetConfig().Output.Directory, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first-second", string(data))
}

func TestQuestionsMergesLocal(t *testing.T) {
	svc, backend := newTestService(t, &fakeDevice{})
	local, err := svc.LocalQuestions().Add(api.Question{QuestionText: "Local one", Category: "technical"})
	require.NoError(t, err)
	_, err = svc.LocalQuestions().Add(api.Question{ID: "1", QuestionText: "Duplicate", Category: "technical"})
	require.NoError(t, err)

	questions, err := svc.Questions(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, "Tell me about yourself", questions[0].QuestionText)
	assert.Equal(t, local.ID, questions[2].ID)

	backend.failList.Store(true)
	questions, err = svc.Questions(context.Background())
	require.NoError(t, err)
	assert.Len(t, questions, 2)
}

func TestQuestionsRemoteErrorWithoutLocal(t *testing.T) {
	svc, backend := newTestService(t, &fakeDevice{})
	backend.failList.Store(true)

	_, err := svc.Questions(context.Background())
	var apiErr *api.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestQuestionLookup(t *testing.T) {
	svc, _ := newTestService(t, &fakeDevice{})
	local, err := svc.LocalQuestions().Add(api.Question{QuestionText: "Local", Category: "technical"})
	require.NoError(t, err)

	q, err := svc.Question(context.Background(), local.ID)
	require.NoError(t, err)
	assert.Equal(t, "Local", q.QuestionText)

	q, err = svc.Question(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Remote seven", q.QuestionText)
}

func TestUploadFileRejectsUnknownExtension(t *testing.T) {
	svc, _ := newTestService(t, &fakeDevice{})
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := svc.UploadFile(context.Background(), "1", path)
	assert.Error(t, err)
	_, err = svc.UploadFile(context.Background(), "", path)
	assert.ErrorIs(t, err, ErrNoQuestion)
}

func TestValidatePipeline(t *testing.T) {
	for _, steps := range []string{"r", "rs", "rps", "rp"} {
		assert.NoError(t, ValidatePipeline(steps), steps)
	}
	for _, steps := range []string{"", "s", "rx", "pr"} {
		assert.Error(t, ValidatePipeline(steps), steps)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "abc-123", cleanFileName("abc-123"))
	assert.Equal(t, "ab", cleanFileName("a/b"))
}

func writeProfiles(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "interviewprep.yaml")
	content := `active_config: default
storage:
    session_file: ` + filepath.Join(dir, "session.yaml") + `
    questions_file: ` + filepath.Join(dir, "questions.json") + `
configs:
    default:
        output:
            directory: ` + filepath.Join(dir, "recordings") + `
    other:
        output:
            directory: ` + filepath.Join(dir, "other") + `
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newProfileService(t *testing.T) *PracticeService {
	t.Helper()
	dir := t.TempDir()
	path := writeProfiles(t, dir)
	cfg, err := config.LoadWithProfile(path, "")
	require.NoError(t, err)

	svc, err := New(cfg, path,
		WithDevice(&fakeDevice{}),
		WithSessionStore(store.NewMemoryStore()),
		WithClock(noopClock{}))
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestLoadProfileRejectedWhileRecording(t *testing.T) {
	svc := newProfileService(t)
	require.NoError(t, svc.StartAnswer(context.Background(), "1"))

	err := svc.LoadProfile("other")
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.Equal(t, "default", svc.GetConfig().Profile)
	assert.Equal(t, recording.StateRecording, svc.GetRecordingStatus().State)

	require.NoError(t, svc.StopAnswer())
	require.NoError(t, svc.LoadProfile("other"))
	assert.Equal(t, "other", svc.GetConfig().Profile)
	assert.Equal(t, recording.StateIdle, svc.GetRecordingStatus().State)
	assert.Nil(t, svc.CurrentArtifact())
}

func TestLoadProfileConcurrentWithReaders(t *testing.T) {
	svc := newProfileService(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				name := "default"
				if (i+j)%2 == 0 {
					name = "other"
				}
				assert.NoError(t, svc.LoadProfile(name))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = svc.GetRecordingStatus()
				assert.NotNil(t, svc.GetConfig())
				assert.NotNil(t, svc.Client())
				_ = svc.GetLastError()
			}
		}()
	}
	wg.Wait()

	assert.Contains(t, []string{"default", "other"}, svc.GetConfig().Profile)
}
