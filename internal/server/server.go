package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/interviewprep/internal/api"
	"github.com/audiolibrelab/interviewprep/internal/config"
	"github.com/audiolibrelab/interviewprep/internal/recording"
	"github.com/audiolibrelab/interviewprep/internal/service"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the practice session over HTTP so a browser or phone can
// drive it.
type Server struct {
	service    service.Service
	configFile string
	port       string
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	service.AnswerStatus
	Message       string `json:"message,omitempty"`
	ActiveProfile string `json:"active_profile"`
	ArtifactURL   string `json:"artifact_url,omitempty"`
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// New creates a server for svc listening on port.
func New(svc service.Service, configFile, port string) *Server {
	return &Server{
		service:    svc,
		configFile: configFile,
		port:       port,
	}
}

// Handler returns the routes of the control surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/pause", s.handleAction("pause", s.service.PauseAnswer, "Recording paused"))
	mux.HandleFunc("/resume", s.handleAction("resume", s.service.ResumeAnswer, "Recording resumed"))
	mux.HandleFunc("/stop", s.handleAction("stop", s.service.StopAnswer, "Recording stopped"))
	mux.HandleFunc("/reset", s.handleAction("reset", s.service.ResetAnswer, "Recording discarded"))
	mux.HandleFunc("/submit", s.handleSubmit)
	mux.HandleFunc("/artifact", s.handleArtifact)
	mux.HandleFunc("/questions", s.handleQuestions)
	mux.HandleFunc("/recordings", s.handleRecordings)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/config/profiles", s.handleProfiles)
	mux.HandleFunc("/config/select", s.handleSelectProfile)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully and closes
// the practice session.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting interview practice server",
			"port", s.port,
			"local_url", fmt.Sprintf("http://%s:%s", getLocalIP(), s.port),
			"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.service.Close()
		return err
	})
	return g.Wait()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendErrorResponse(w, http.StatusNotFound, "Not found", "", "path", r.URL.Path)
		return
	}
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	status := s.service.GetRecordingStatus()
	response := StatusResponse{
		AnswerStatus:  status,
		Message:       s.generateStatusMessage(status),
		ActiveProfile: s.service.GetConfig().Profile,
	}
	if status.State == recording.StateStopped {
		response.ArtifactURL = "/artifact"
	}
	writeJSON(w, http.StatusOK, response)
}

type startRequest struct {
	QuestionID api.ID `json:"question_id"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req startRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", "", "operation", "start")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "", "operation", "start")
			return
		}
		req.QuestionID = api.ID(r.FormValue("question_id"))
	}

	slog.Debug("Start request received", "question_id", req.QuestionID)
	if err := s.service.StartAnswer(r.Context(), req.QuestionID); err != nil {
		s.sendError(w, err, "operation", "start", "question_id", req.QuestionID)
		return
	}
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording started"})
}

func (s *Server) handleAction(op string, action func() error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		if err := action(); err != nil {
			s.sendError(w, err, "operation", op)
			return
		}
		writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: message})
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	rec, err := s.service.SubmitAnswer(r.Context())
	if err != nil {
		s.sendError(w, err, "operation", "submit")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleArtifact streams the finalized answer with its MIME type.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	a := s.service.CurrentArtifact()
	if a == nil {
		s.sendErrorResponse(w, http.StatusNotFound, "No finished recording", "", "operation", "artifact")
		return
	}
	w.Header().Set("Content-Type", a.MIMEType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", a.Filename()))
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, a.Filename(), a.CreatedAt(), bytes.NewReader(a.Bytes()))
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	questions, err := s.service.Questions(r.Context())
	if err != nil {
		s.sendError(w, err, "operation", "questions")
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	f := service.RecordingFilter{Search: r.URL.Query().Get("search")}
	if date := r.URL.Query().Get("date"); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			s.sendErrorResponse(w, http.StatusBadRequest, "date must be YYYY-MM-DD", "", "date", date)
			return
		}
		f.Date = day
	}
	recordings, err := s.service.SearchRecordings(r.Context(), f)
	if err != nil {
		s.sendError(w, err, "operation", "recordings")
		return
	}
	writeJSON(w, http.StatusOK, recordings)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	st, err := s.service.Stats(r.Context())
	if err != nil {
		s.sendError(w, err, "operation", "stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	profiles, err := config.AvailableProfiles(s.configFile)
	if err != nil {
		profiles = []string{"default"}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"active":   s.service.GetConfig().Profile,
	})
}

func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "", "operation", "select_profile")
		return
	}
	profile := r.FormValue("profile")
	if profile == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Profile name is required", "", "operation", "select_profile")
		return
	}
	if err := s.service.LoadProfile(profile); err != nil {
		if errors.Is(err, service.ErrSessionActive) {
			s.sendErrorResponse(w, http.StatusConflict, "Cannot change profile while recording", string(recording.KindInvalidState),
				"profile", profile)
			return
		}
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "", "profile", profile)
		return
	}
	slog.Info("Profile selected", "profile", profile)
	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: fmt.Sprintf("Profile '%s' loaded", profile)})
}

func (s *Server) generateStatusMessage(status service.AnswerStatus) string {
	switch status.State {
	case recording.StateRequesting:
		return "Waiting for microphone access"
	case recording.StateRecording:
		return fmt.Sprintf("Recording %s", formatElapsed(status.ElapsedSeconds))
	case recording.StatePaused:
		return fmt.Sprintf("Paused at %s", formatElapsed(status.ElapsedSeconds))
	case recording.StateStopped:
		return "Recording finished - submit or reset"
	case recording.StateFailed:
		if errorDetails := s.service.GetLastError(); errorDetails != "" {
			return errorDetails
		}
		return "An error occurred during the recording"
	}
	return ""
}

// statusForError maps service and controller errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrNoQuestion):
		return http.StatusBadRequest
	case api.IsUnauthorized(err):
		return http.StatusUnauthorized
	}
	switch recording.KindOf(err) {
	case recording.KindInvalidState:
		return http.StatusConflict
	case recording.KindCapabilityUnavailable:
		return http.StatusUnprocessableEntity
	case recording.KindPermissionDenied:
		return http.StatusForbidden
	case recording.KindDeviceNotFound:
		return http.StatusNotFound
	case recording.KindUnsupported:
		return http.StatusNotImplemented
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) || errors.Is(err, api.ErrUnavailable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) sendError(w http.ResponseWriter, err error, logContext ...interface{}) {
	s.sendErrorResponse(w, statusForError(err), err.Error(), string(recording.KindOf(err)), logContext...)
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg, kind string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if kind != "" {
		logFields = append(logFields, "kind", kind)
	}
	logFields = append(logFields, logContext...)
	if statusCode >= http.StatusInternalServerError {
		slog.Error("Sending error response to client", logFields...)
	} else {
		slog.Warn("Sending error response to client", logFields...)
	}

	writeJSON(w, statusCode, GenericResponse{Success: false, Error: errorMsg, Kind: kind})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, GenericResponse{Success: false, Error: "Method not allowed"})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func getLocalIP() string {
	// dialing UDP sends nothing; it only picks the outbound interface
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
