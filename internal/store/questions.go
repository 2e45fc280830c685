package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/audiolibrelab/interviewprep/internal/api"
)

// ErrQuestionNotFound is returned by Update for unknown ids.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionPatch holds the fields to change; nil fields are left alone.
type QuestionPatch struct {
	QuestionText    *string
	Category        *string
	DifficultyLevel *string
	Role            *string
	Reasoning       *string
}

// QuestionStore keeps user-authored and generated questions in a JSON file.
type QuestionStore struct {
	path     string
	mu       sync.Mutex
	validate *validator.Validate
	now      func() time.Time
}

func NewQuestionStore(path string) *QuestionStore {
	return &QuestionStore{
		path:     path,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *QuestionStore) Path() string { return s.path }

// All returns every stored question. A missing file is an empty store.
func (s *QuestionStore) All() ([]api.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// SaveAll replaces the stored questions.
func (s *QuestionStore) SaveAll(questions []api.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(questions)
}

// Add stores q with a new id unless it already has one.
func (s *QuestionStore) Add(q api.Question) (api.Question, error) {
	if err := s.validate.Struct(q); err != nil {
		return api.Question{}, fmt.Errorf("invalid question: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := s.load()
	if err != nil {
		return api.Question{}, err
	}
	if q.ID == "" {
		q.ID = api.ID(uuid.NewString())
	}
	if q.CreatedAt == nil {
		now := s.now().UTC()
		q.CreatedAt = &now
	}
	questions = append(questions, q)
	if err := s.save(questions); err != nil {
		return api.Question{}, err
	}
	return q, nil
}

// AddGenerated stores questions returned by the generation endpoint.
func (s *QuestionStore) AddGenerated(resp *api.GenerateResponse, jobDescription string) ([]api.Question, error) {
	var added []api.Question
	for _, g := range resp.Questions {
		q, err := s.Add(api.Question{
			QuestionText:   g.Text,
			Category:       g.Category,
			Reasoning:      g.Reasoning,
			Role:           resp.JobTitle,
			JobTitle:       resp.JobTitle,
			JobDescription: jobDescription,
			IsGenerated:    true,
		})
		if err != nil {
			return added, err
		}
		added = append(added, q)
	}
	return added, nil
}

// Update applies patch to the question with id.
func (s *QuestionStore) Update(id api.ID, patch QuestionPatch) (api.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := s.load()
	if err != nil {
		return api.Question{}, err
	}
	for i := range questions {
		if questions[i].ID != id {
			continue
		}
		q := questions[i]
		if patch.QuestionText != nil {
			q.QuestionText = *patch.QuestionText
		}
		if patch.Category != nil {
			q.Category = *patch.Category
		}
		if patch.DifficultyLevel != nil {
			q.DifficultyLevel = *patch.DifficultyLevel
		}
		if patch.Role != nil {
			q.Role = *patch.Role
		}
		if patch.Reasoning != nil {
			q.Reasoning = *patch.Reasoning
		}
		if err := s.validate.Struct(q); err != nil {
			return api.Question{}, fmt.Errorf("invalid question: %w", err)
		}
		questions[i] = q
		return q, s.save(questions)
	}
	return api.Question{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
}

// Delete removes the question with id. Unknown ids are not an error.
func (s *QuestionStore) Delete(id api.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := s.load()
	if err != nil {
		return err
	}
	kept := questions[:0]
	for _, q := range questions {
		if q.ID != id {
			kept = append(kept, q)
		}
	}
	return s.save(kept)
}

// Get returns the question with id.
func (s *QuestionStore) Get(id api.ID) (api.Question, bool, error) {
	questions, err := s.All()
	if err != nil {
		return api.Question{}, false, err
	}
	for _, q := range questions {
		if q.ID == id {
			return q, true, nil
		}
	}
	return api.Question{}, false, nil
}

// ByRole returns questions whose role contains role, case-insensitively.
func (s *QuestionStore) ByRole(role string) ([]api.Question, error) {
	role = strings.ToLower(role)
	return s.where(func(q api.Question) bool {
		return q.Role != "" && strings.Contains(strings.ToLower(q.Role), role)
	})
}

func (s *QuestionStore) Generated() ([]api.Question, error) {
	return s.where(func(q api.Question) bool { return q.IsGenerated })
}

// Search matches query against text, category, role and reasoning.
func (s *QuestionStore) Search(query string) ([]api.Question, error) {
	query = strings.ToLower(query)
	return s.where(func(q api.Question) bool {
		return strings.Contains(strings.ToLower(q.QuestionText), query) ||
			strings.Contains(strings.ToLower(q.Category), query) ||
			strings.Contains(strings.ToLower(q.Role), query) ||
			strings.Contains(strings.ToLower(q.Reasoning), query)
	})
}

// Filter matches category and difficulty exactly; "all" or "" matches
// anything.
func (s *QuestionStore) Filter(category, difficulty string) ([]api.Question, error) {
	return s.where(func(q api.Question) bool {
		categoryMatch := category == "" || category == "all" || q.Category == category
		difficultyMatch := difficulty == "" || difficulty == "all" || q.DifficultyLevel == difficulty
		return categoryMatch && difficultyMatch
	})
}

// Clear removes the store file.
func (s *QuestionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear questions: %w", err)
	}
	return nil
}

func (s *QuestionStore) where(match func(api.Question) bool) ([]api.Question, error) {
	questions, err := s.All()
	if err != nil {
		return nil, err
	}
	var out []api.Question
	for _, q := range questions {
		if match(q) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *QuestionStore) load() ([]api.Question, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var questions []api.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions file %s: %w", s.path, err)
	}
	return questions, nil
}

func (s *QuestionStore) save(questions []api.Question) error {
	if questions == nil {
		questions = []api.Question{}
	}
	data, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create questions directory: %w", err)
	}
	return writeFileAtomic(s.path, data, 0644)
}
