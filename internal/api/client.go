package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"

	"github.com/audiolibrelab/interviewprep/internal/config"
)

// Keys used in the TokenStore.
const (
	KeyAuthToken = "auth_token"
	KeyUserData  = "user_data"
)

// refreshWindow is how close to expiry a token is refreshed before use.
const refreshWindow = 60 * time.Second

// TokenStore holds the bearer token and the logged-in user between runs.
type TokenStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Clear(keys ...string) error
}

// Client talks to the interview scoring service.
type Client struct {
	http            *resty.Client
	tokens          TokenStore
	offlineFallback bool
	validate        *validator.Validate
	now             func() time.Time

	refreshMu sync.Mutex
}

// New creates a client for cfg.BaseURL.
func New(cfg config.APIConfig, tokens TokenStore) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "interviewprep").
		SetLogger(slogLogger{})

	return &Client{
		http:            http,
		tokens:          tokens,
		offlineFallback: cfg.Offline(),
		validate:        validator.New(),
		now:             time.Now,
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// request builds a request carrying the stored bearer token, refreshing it
// first when it is about to expire.
func (c *Client) request(ctx context.Context) *resty.Request {
	c.refreshIfExpiring(ctx)
	return c.bareRequest(ctx)
}

func (c *Client) bareRequest(ctx context.Context) *resty.Request {
	r := c.http.R().
		SetContext(ctx).
		SetError(&errorBody{})
	if token := c.Token(); token != "" {
		r.SetAuthToken(token)
	}
	return r
}

// Token returns the stored bearer token, or "".
func (c *Client) Token() string {
	if c.tokens == nil {
		return ""
	}
	token, _ := c.tokens.Get(KeyAuthToken)
	return token
}

func (c *Client) refreshIfExpiring(ctx context.Context) {
	token := c.Token()
	if token == "" {
		return
	}
	exp, ok := tokenExpiry(token)
	if !ok || exp.Sub(c.now()) > refreshWindow {
		return
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	// another request may have refreshed already
	if c.Token() != token {
		return
	}
	slog.Debug("Access token expiring, refreshing", "expires", exp)
	if _, err := c.Refresh(ctx); err != nil {
		slog.Warn("Token refresh failed", "error", err)
	}
}

// slogLogger routes resty's internal logging to slog.
type slogLogger struct{}

func (slogLogger) Errorf(format string, v ...interface{}) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "http")
}

func (slogLogger) Warnf(format string, v ...interface{}) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "http")
}

func (slogLogger) Debugf(format string, v ...interface{}) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "http")
}
