package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

func (c *Client) ListRecordings(ctx context.Context) ([]Recording, error) {
	var out []Recording
	resp, err := c.request(ctx).
		SetResult(&out).
		Get("/recordings/")
	if err := checkResponse("list recordings", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRecording(ctx context.Context, id ID) (*Recording, error) {
	var out Recording
	resp, err := c.request(ctx).
		SetResult(&out).
		SetPathParam("id", id.String()).
		Get("/recordings/{id}")
	if err := checkResponse("get recording", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRecording uploads an answer as multipart form data (file and
// question_id). The response carries the transcript and feedback.
func (c *Client) CreateRecording(ctx context.Context, questionID ID, filename, mimeType string, audio io.Reader) (*Recording, error) {
	if questionID == "" {
		return nil, fmt.Errorf("create recording: question id is required")
	}
	var out Recording
	resp, err := c.request(ctx).
		SetMultipartField("file", filename, mimeType, audio).
		SetMultipartFormData(map[string]string{"question_id": questionID.String()}).
		SetResult(&out).
		Post("/recordings/")
	if err := checkResponse("create recording", resp, err); err != nil {
		return nil, err
	}
	slog.Info("Recording uploaded", "id", out.ID, "question_id", questionID, "duration_seconds", out.DurationSeconds)
	return &out, nil
}

func (c *Client) DeleteRecording(ctx context.Context, id ID) error {
	resp, err := c.request(ctx).
		SetPathParam("id", id.String()).
		Delete("/recordings/{id}")
	return checkResponse("delete recording", resp, err)
}
