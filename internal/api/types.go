package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a resource identifier. The service uses integers for questions and
// UUIDs for recordings; local questions use UUIDs.
type ID string

func (id ID) String() string { return string(id) }

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*id = ID(str)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("invalid id %s", s)
	}
	*id = ID(s)
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Question is an interview question, remote or locally authored.
type Question struct {
	ID              ID         `json:"id,omitempty"`
	QuestionText    string     `json:"question_text" validate:"required"`
	Category        string     `json:"category" validate:"required"`
	DifficultyLevel string     `json:"difficulty_level,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Role            string     `json:"role,omitempty"`
	Reasoning       string     `json:"reasoning,omitempty"`
	JobTitle        string     `json:"job_title,omitempty"`
	JobDescription  string     `json:"job_description,omitempty"`
	IsGenerated     bool       `json:"is_generated"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

// UnmarshalJSON accepts the question body under either question_text or
// text.
func (q *Question) UnmarshalJSON(b []byte) error {
	type plain Question
	aux := struct {
		*plain
		Text string `json:"text"`
	}{plain: (*plain)(q)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if q.QuestionText == "" {
		q.QuestionText = aux.Text
	}
	return nil
}

// questionPayload is the create/update body; the service reads text.
type questionPayload struct {
	Text            string `json:"text"`
	QuestionText    string `json:"question_text"`
	Category        string `json:"category"`
	DifficultyLevel string `json:"difficulty_level,omitempty"`
	JobTitle        string `json:"job_title,omitempty"`
	JobDescription  string `json:"job_description,omitempty"`
	IsGenerated     bool   `json:"is_generated"`
}

func newQuestionPayload(q Question) questionPayload {
	return questionPayload{
		Text:            q.QuestionText,
		QuestionText:    q.QuestionText,
		Category:        q.Category,
		DifficultyLevel: q.DifficultyLevel,
		JobTitle:        q.JobTitle,
		JobDescription:  q.JobDescription,
		IsGenerated:     q.IsGenerated,
	}
}

// GenerateRequest asks the service for questions tailored to a job.
type GenerateRequest struct {
	JobDescription      string   `json:"job_description" validate:"required"`
	QuestionTypes       []string `json:"question_types" validate:"min=1,dive,oneof=technical behavioral cultural"`
	NumQuestionsPerType int      `json:"num_questions_per_type" validate:"min=1,max=10"`
	JobTitle            string   `json:"job_title,omitempty"`
}

type GeneratedQuestion struct {
	Text      string `json:"text"`
	Category  string `json:"category"`
	Reasoning string `json:"reasoning,omitempty"`
}

type GenerateResponse struct {
	Questions  []GeneratedQuestion `json:"questions"`
	JobSummary string              `json:"job_summary"`
	JobTitle   string              `json:"job_title"`
}

// Recording is an uploaded answer with its transcript and feedback.
type Recording struct {
	ID              ID         `json:"id"`
	QuestionID      ID         `json:"question_id"`
	RecordingURL    string     `json:"recording_url,omitempty"`
	Transcript      string     `json:"transcript,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Feedback        *Feedback  `json:"feedback_json,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// Feedback is the scoring result. Sections the client does not know about
// (for example "Clarity" or "Tone") are kept in Extra.
type Feedback struct {
	OverallScore    float64            `json:"overall_score,omitempty"`
	DetailedScores  map[string]float64 `json:"detailed_scores,omitempty"`
	Strengths       []string           `json:"strengths,omitempty"`
	Improvements    []string           `json:"improvements,omitempty"`
	GeneralFeedback string             `json:"general_feedback,omitempty"`
	Extra           map[string]any     `json:"-"`
}

var knownFeedbackKeys = map[string]bool{
	"overall_score":    true,
	"detailed_scores":  true,
	"strengths":        true,
	"improvements":     true,
	"general_feedback": true,
}

func (f *Feedback) UnmarshalJSON(b []byte) error {
	type plain Feedback
	if err := json.Unmarshal(b, (*plain)(f)); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for k, v := range all {
		if knownFeedbackKeys[k] {
			continue
		}
		if f.Extra == nil {
			f.Extra = make(map[string]any)
		}
		f.Extra[k] = v
	}
	return nil
}

func (f Feedback) MarshalJSON() ([]byte, error) {
	type plain Feedback
	known, err := json.Marshal(plain(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]any, len(f.Extra)+5)
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range f.Extra {
		if !knownFeedbackKeys[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

type User struct {
	ID         ID     `json:"id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	IsActive   bool   `json:"is_active"`
	IsVerified bool   `json:"is_verified"`
}

// Credentials are sent to the login and register endpoints.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
	Username string `json:"username,omitempty"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	User        *User  `json:"user,omitempty"`
}
