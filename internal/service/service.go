package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/interviewprep/internal/api"
	"github.com/audiolibrelab/interviewprep/internal/audio"
	"github.com/audiolibrelab/interviewprep/internal/config"
	"github.com/audiolibrelab/interviewprep/internal/recording"
	"github.com/audiolibrelab/interviewprep/internal/store"
)

// ErrUploadFailed wraps upload errors from SubmitAnswer. The artifact is
// kept so the caller can retry.
var ErrUploadFailed = errors.New("upload failed")

// ErrNoQuestion is returned when an answer is started or submitted without
// a question.
var ErrNoQuestion = errors.New("no question selected")

// ErrSessionActive is returned by LoadProfile while an answer is being
// recorded.
var ErrSessionActive = errors.New("cannot change profile while recording")

// Service represents the core practice service interface
type Service interface {
	// Answer operations
	StartAnswer(ctx context.Context, questionID api.ID) error
	PauseAnswer() error
	ResumeAnswer() error
	StopAnswer() error
	ResetAnswer() error
	SubmitAnswer(ctx context.Context) (*api.Recording, error)
	GetRecordingStatus() AnswerStatus
	CurrentArtifact() *recording.Artifact

	// Question operations
	Questions(ctx context.Context) ([]api.Question, error)
	Question(ctx context.Context, id api.ID) (*api.Question, error)

	// Recording operations
	Recordings(ctx context.Context) ([]api.Recording, error)
	Recording(ctx context.Context, id api.ID) (*api.Recording, error)
	SearchRecordings(ctx context.Context, f RecordingFilter) ([]api.Recording, error)
	Stats(ctx context.Context) (Stats, error)

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	GetLastError() string
	Close()
}

// AnswerStatus is the recording status together with the question being
// answered.
type AnswerStatus struct {
	recording.Status
	QuestionID api.ID `json:"question_id,omitempty"`
}

// PendingUpload is a saved answer whose upload has not succeeded yet.
type PendingUpload struct {
	QuestionID   api.ID    `json:"question_id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	MIMEType     string    `json:"mime_type"`
}

// Option configures a PracticeService.
type Option func(*PracticeService)

// WithDevice replaces the configured capture device.
func WithDevice(device audio.Device) Option {
	return func(s *PracticeService) { s.device = device }
}

// WithSessionStore replaces the file-backed credential store.
func WithSessionStore(sessions store.SessionStore) Option {
	return func(s *PracticeService) { s.sessions = sessions }
}

func WithClock(clock recording.Clock) Option {
	return func(s *PracticeService) { s.clock = clock }
}

// WithOnStateChange registers a callback for recording state changes.
func WithOnStateChange(fn func(from, to recording.State)) Option {
	return func(s *PracticeService) { s.onStateChange = fn }
}

// PracticeService is the main service implementation
type PracticeService struct {
	configFile     string
	deviceInjected bool
	clock          recording.Clock
	sessions       store.SessionStore
	onStateChange  func(from, to recording.State)

	// stateMu guards the fields replaced by LoadProfile.
	stateMu    sync.RWMutex
	cfg        *config.Config
	device     audio.Device
	client     *api.Client
	questions  *store.QuestionStore
	controller *recording.Controller

	mu            sync.Mutex
	questionID    api.ID
	lastRecording *api.Recording

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

var _ Service = (*PracticeService)(nil)

// New creates a practice service for cfg.
func New(cfg *config.Config, configFile string, opts ...Option) (*PracticeService, error) {
	s := &PracticeService{
		cfg:        cfg,
		configFile: configFile,
		clock:      recording.SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.deviceInjected = s.device != nil

	if s.sessions == nil {
		fs, err := store.NewFileStore(cfg.Storage.SessionFile)
		if err != nil {
			return nil, err
		}
		s.sessions = fs
	}
	s.build()
	return s, nil
}

func (s *PracticeService) build() {
	if !s.deviceInjected {
		s.device = audio.NewDevice(s.cfg)
	}
	s.client = api.New(s.cfg.API, s.sessions)
	s.questions = store.NewQuestionStore(s.cfg.Storage.QuestionsFile)

	var ctrl *recording.Controller
	ctrl = recording.New(s.device,
		recording.WithClock(s.clock),
		recording.WithConstraints(audio.ConstraintsFromConfig(s.cfg)),
		recording.WithPreferences(s.cfg.Audio.Encodings),
		recording.WithTimeslice(s.cfg.Timeslice()),
		recording.WithConsumer(recording.ConsumerFunc(s.upload)),
		recording.WithOnComplete(s.handleComplete),
		recording.WithOnStateChange(func(from, to recording.State) {
			s.handleStateChange(ctrl, from, to)
		}),
	)
	s.controller = ctrl
}

func (s *PracticeService) ctrl() *recording.Controller {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.controller
}

// Client returns the remote service client.
func (s *PracticeService) Client() *api.Client {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.client
}

// LocalQuestions returns the store of user-authored and generated questions.
func (s *PracticeService) LocalQuestions() *store.QuestionStore {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.questions
}

// StartAnswer starts recording an answer to questionID. A finished session
// is discarded first.
func (s *PracticeService) StartAnswer(ctx context.Context, questionID api.ID) error {
	slog.Debug("Service.StartAnswer called", "question_id", questionID)
	if questionID == "" {
		return ErrNoQuestion
	}
	s.clearLastError()

	ctrl := s.ctrl()
	switch ctrl.Status().State {
	case recording.StateStopped, recording.StateFailed:
		if err := ctrl.Reset(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.questionID = questionID
	s.lastRecording = nil
	s.mu.Unlock()

	if err := ctrl.Start(ctx); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}
	return nil
}

func (s *PracticeService) PauseAnswer() error {
	return s.track("pause", s.ctrl().Pause())
}

func (s *PracticeService) ResumeAnswer() error {
	return s.track("resume", s.ctrl().Resume())
}

// StopAnswer finalizes the answer.
func (s *PracticeService) StopAnswer() error {
	return s.track("stop", s.ctrl().Stop())
}

// ResetAnswer discards the current answer, aborting an active recording.
func (s *PracticeService) ResetAnswer() error {
	if err := s.ctrl().Reset(); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastRecording = nil
	s.mu.Unlock()
	s.clearLastError()
	return nil
}

// SubmitAnswer uploads the finalized answer. Upload failures are wrapped in
// ErrUploadFailed; the artifact is kept and, when keep_artifacts is set,
// saved as a pending upload.
func (s *PracticeService) SubmitAnswer(ctx context.Context) (*api.Recording, error) {
	ctrl := s.ctrl()
	artifact := ctrl.Artifact()
	err := ctrl.Submit(ctx, artifact)
	if err == nil {
		s.clearLastError()
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.lastRecording, nil
	}
	if recording.KindOf(err) != "" || errors.Is(err, ErrNoQuestion) {
		return nil, err
	}

	s.setLastError(fmt.Sprintf("Failed to upload answer: %v", err))
	if s.GetConfig().KeepArtifacts() {
		if path, saveErr := s.savePending(artifact); saveErr != nil {
			slog.Warn("Failed to save pending upload", "error", saveErr)
		} else {
			slog.Info("Answer saved for later upload", "path", path)
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
}

// LastRecording returns the recording created by the last successful
// submit.
func (s *PracticeService) LastRecording() *api.Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRecording
}

// GetRecordingStatus returns the current recording status
func (s *PracticeService) GetRecordingStatus() AnswerStatus {
	s.mu.Lock()
	qid := s.questionID
	s.mu.Unlock()
	return AnswerStatus{Status: s.ctrl().Status(), QuestionID: qid}
}

// RecordingError returns the error that ended the last recording, if any.
func (s *PracticeService) RecordingError() error {
	return s.ctrl().LastError()
}

// CurrentArtifact returns the finalized answer, or nil.
func (s *PracticeService) CurrentArtifact() *recording.Artifact {
	return s.ctrl().Artifact()
}

// SaveArtifact writes the finalized answer into dir, or the configured
// output directory when dir is empty.
func (s *PracticeService) SaveArtifact(dir string) (string, error) {
	artifact := s.ctrl().Artifact()
	if artifact == nil {
		return "", fmt.Errorf("no finished recording to save")
	}
	if dir == "" {
		dir = s.GetConfig().Output.Directory
	}
	return writeArtifact(dir, artifact.Filename(), artifact)
}

// UploadFile uploads a saved answer. Files under the pending directory are
// removed once the upload succeeds.
func (s *PracticeService) UploadFile(ctx context.Context, questionID api.ID, path string) (*api.Recording, error) {
	if questionID == "" {
		return nil, ErrNoQuestion
	}
	format, ok := audio.FormatForExtension(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("unsupported audio file type: %s", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	rec, err := s.Client().CreateRecording(ctx, questionID, filepath.Base(path), format.MIMEType, f)
	f.Close()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to upload %s: %v", path, err))
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	if filepath.Dir(path) == s.pendingDirectory() {
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to remove uploaded file", "path", path, "error", err)
		}
	}
	slog.Info("Answer uploaded", "question_id", questionID, "recording_id", rec.ID)
	return rec, nil
}

// ListPending returns saved answers waiting for upload, newest first.
func (s *PracticeService) ListPending() ([]PendingUpload, error) {
	dir := s.pendingDirectory()
	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending directory: %w", err)
	}

	var pending []PendingUpload
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		format, ok := audio.FormatForExtension(filepath.Ext(file.Name()))
		if !ok {
			continue
		}
		qid, _, found := strings.Cut(file.Name(), "_")
		if !found {
			continue
		}
		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}
		pending = append(pending, PendingUpload{
			QuestionID:   api.ID(qid),
			Name:         file.Name(),
			Path:         filepath.Join(dir, file.Name()),
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			MIMEType:     format.MIMEType,
		})
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ModTime.After(pending[j].ModTime)
	})
	return pending, nil
}

// Questions returns remote questions followed by local ones not already
// listed. Local questions are still returned when the service fails.
func (s *PracticeService) Questions(ctx context.Context) ([]api.Question, error) {
	local, err := s.LocalQuestions().All()
	if err != nil {
		return nil, err
	}
	remote, err := s.Client().ListQuestions(ctx)
	if err != nil {
		if len(local) == 0 {
			return nil, err
		}
		slog.Warn("Failed to list remote questions", "error", err)
	}

	seen := make(map[api.ID]bool, len(remote))
	out := make([]api.Question, 0, len(remote)+len(local))
	for _, q := range remote {
		seen[q.ID] = true
		out = append(out, q)
	}
	for _, q := range local {
		if !seen[q.ID] {
			out = append(out, q)
		}
	}
	return out, nil
}

// Question looks id up locally first, then remotely.
func (s *PracticeService) Question(ctx context.Context, id api.ID) (*api.Question, error) {
	q, ok, err := s.LocalQuestions().Get(id)
	if err != nil {
		return nil, err
	}
	if ok {
		return &q, nil
	}
	return s.Client().GetQuestion(ctx, id)
}

// GenerateQuestions asks the service for questions about a job and stores
// them locally.
func (s *PracticeService) GenerateQuestions(ctx context.Context, req api.GenerateRequest) ([]api.Question, error) {
	resp, err := s.Client().GenerateQuestions(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.LocalQuestions().AddGenerated(resp, req.JobDescription)
}

func (s *PracticeService) Recordings(ctx context.Context) ([]api.Recording, error) {
	return s.Client().ListRecordings(ctx)
}

func (s *PracticeService) Recording(ctx context.Context, id api.ID) (*api.Recording, error) {
	return s.Client().GetRecording(ctx, id)
}

func (s *PracticeService) DeleteRecording(ctx context.Context, id api.ID) error {
	return s.Client().DeleteRecording(ctx, id)
}

func (s *PracticeService) Login(ctx context.Context, email, password string) (*api.AuthResponse, error) {
	return s.Client().Login(ctx, email, password)
}

func (s *PracticeService) Register(ctx context.Context, email, password, username string) (*api.AuthResponse, error) {
	return s.Client().Register(ctx, email, password, username)
}

func (s *PracticeService) Logout(ctx context.Context) error {
	return s.Client().Logout(ctx)
}

func (s *PracticeService) Refresh(ctx context.Context) (*api.AuthResponse, error) {
	return s.Client().Refresh(ctx)
}

func (s *PracticeService) CurrentUser() *api.User {
	return s.Client().CurrentUser()
}

// ValidatePipeline checks practice steps (r=record, p=play, s=submit).
func ValidatePipeline(steps string) error {
	if steps == "" {
		return fmt.Errorf("pipeline cannot be empty")
	}
	validSteps := map[rune]bool{'r': true, 'p': true, 's': true}
	for _, step := range steps {
		if !validSteps[step] {
			return fmt.Errorf("unknown pipeline step: '%c' (valid: r=record, p=play, s=submit)", step)
		}
	}
	if !strings.HasPrefix(steps, "r") {
		return fmt.Errorf("pipeline must start with a record step")
	}
	return nil
}

// LoadProfile loads a new configuration profile and rebuilds the
// controller and client. It fails with ErrSessionActive while an answer is
// being recorded; a finished answer is discarded.
func (s *PracticeService) LoadProfile(profile string) error {
	s.stateMu.Lock()
	old := s.controller
	if st := old.Status().State; st == recording.StateRequesting || st.Active() {
		s.stateMu.Unlock()
		return ErrSessionActive
	}

	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		s.stateMu.Unlock()
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}
	s.cfg = newCfg
	s.build()
	s.stateMu.Unlock()

	// state callbacks of the old controller may read the service
	old.Close()

	s.mu.Lock()
	s.questionID = ""
	s.lastRecording = nil
	s.mu.Unlock()
	return nil
}

// GetConfig returns the current configuration
func (s *PracticeService) GetConfig() *config.Config {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cfg
}

// Close releases the capture device.
func (s *PracticeService) Close() {
	s.ctrl().Close()
}

// GetLastError returns the last error message (thread-safe)
func (s *PracticeService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *PracticeService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

func (s *PracticeService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

func (s *PracticeService) track(op string, err error) error {
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to %s recording: %v", op, err))
	}
	return err
}

// upload is the controller's consumer.
func (s *PracticeService) upload(ctx context.Context, a *recording.Artifact) error {
	s.mu.Lock()
	qid := s.questionID
	s.mu.Unlock()
	if qid == "" {
		return ErrNoQuestion
	}

	rec, err := s.Client().CreateRecording(ctx, qid, a.Filename(), a.MIMEType(), a.Reader())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastRecording = rec
	s.mu.Unlock()
	slog.Info("Answer uploaded", "question_id", qid, "recording_id", rec.ID, "bytes", a.Size())
	return nil
}

func (s *PracticeService) handleComplete(a *recording.Artifact) {
	slog.Debug("Answer finalized", "artifact", a.ID(), "elapsed_seconds", a.ElapsedSeconds())
}

func (s *PracticeService) handleStateChange(ctrl *recording.Controller, from, to recording.State) {
	slog.Debug("Recording state changed", "from", from, "to", to)
	if to == recording.StateFailed {
		if err := ctrl.LastError(); err != nil {
			s.setLastError(fmt.Sprintf("Recording failed: %v", err))
		}
	}
	if s.onStateChange != nil {
		s.onStateChange(from, to)
	}
}

func (s *PracticeService) pendingDirectory() string {
	return filepath.Join(s.GetConfig().Output.Directory, "pending")
}

func (s *PracticeService) savePending(a *recording.Artifact) (string, error) {
	s.mu.Lock()
	qid := s.questionID
	s.mu.Unlock()
	name := cleanFileName(qid.String()) + "_" + a.Filename()
	return writeArtifact(s.pendingDirectory(), name, a)
}

func writeArtifact(dir, name string, a *recording.Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, a.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to save recording: %w", err)
	}
	return path, nil
}

// cleanFileName keeps letters, digits and dashes.
func cleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
