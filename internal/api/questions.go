package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ListQuestions returns the service's questions. When the service cannot be
// reached and offline fallback is enabled, the built-in samples are
// returned instead.
func (c *Client) ListQuestions(ctx context.Context) ([]Question, error) {
	var out []Question
	resp, err := c.request(ctx).
		SetResult(&out).
		Get("/questions/")
	if err := checkResponse("list questions", resp, err); err != nil {
		if c.offlineFallback && errors.Is(err, ErrUnavailable) {
			slog.Warn("Question service unavailable, using sample questions", "error", err)
			return SampleQuestions(), nil
		}
		return nil, err
	}
	return out, nil
}

func (c *Client) GetQuestion(ctx context.Context, id ID) (*Question, error) {
	var out Question
	resp, err := c.request(ctx).
		SetResult(&out).
		SetPathParam("id", id.String()).
		Get("/questions/{id}")
	if err := checkResponse("get question", resp, err); err != nil {
		if c.offlineFallback && errors.Is(err, ErrUnavailable) {
			if q, ok := sampleQuestion(id); ok {
				return q, nil
			}
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateQuestion(ctx context.Context, q Question) (*Question, error) {
	if err := c.validate.Struct(q); err != nil {
		return nil, fmt.Errorf("invalid question: %w", err)
	}
	var out Question
	resp, err := c.request(ctx).
		SetBody(newQuestionPayload(q)).
		SetResult(&out).
		Post("/questions/")
	if err := checkResponse("create question", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateQuestion(ctx context.Context, id ID, q Question) (*Question, error) {
	if err := c.validate.Struct(q); err != nil {
		return nil, fmt.Errorf("invalid question: %w", err)
	}
	var out Question
	resp, err := c.request(ctx).
		SetBody(newQuestionPayload(q)).
		SetResult(&out).
		SetPathParam("id", id.String()).
		Put("/questions/{id}")
	if err := checkResponse("update question", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteQuestion(ctx context.Context, id ID) error {
	resp, err := c.request(ctx).
		SetPathParam("id", id.String()).
		Delete("/questions/{id}")
	return checkResponse("delete question", resp, err)
}

// GenerateQuestions asks the service for questions tailored to a job
// description.
func (c *Client) GenerateQuestions(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid generation request: %w", err)
	}
	var out GenerateResponse
	resp, err := c.request(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/questions/generate")
	if err := checkResponse("generate questions", resp, err); err != nil {
		return nil, err
	}
	slog.Debug("Generated questions", "count", len(out.Questions), "job_title", out.JobTitle)
	return &out, nil
}
