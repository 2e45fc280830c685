package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// ErrUnavailable wraps transport failures: the service could not be
// reached or did not answer.
var ErrUnavailable = errors.New("service unavailable")

// ErrNotAuthenticated is returned when an operation needs a stored token.
var ErrNotAuthenticated = errors.New("not logged in")

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: HTTP %d: %s", e.StatusCode, e.Detail)
}

// IsUnauthorized reports whether err is a 401 from the service.
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// errorBody is the service's error envelope: {"detail": ...}. detail is a
// string or a list of validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func (b *errorBody) message() string {
	if b == nil || len(b.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Detail, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(b.Detail))
}

// checkResponse converts a resty result into the package errors.
func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok {
		apiErr.Detail = body.message()
	}
	if apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(resp.Body()))
	}
	return fmt.Errorf("%s: %w", op, apiErr)
}
