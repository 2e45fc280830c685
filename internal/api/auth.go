package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Login exchanges credentials for a bearer token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	creds := Credentials{Email: email, Password: password}
	if err := c.validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	var out AuthResponse
	resp, err := c.bareRequest(ctx).
		SetBody(creds).
		SetResult(&out).
		Post("/auth/login")
	if err := checkResponse("login", resp, err); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("login: response carried no access token")
	}
	if err := c.setAuthData(out); err != nil {
		return nil, err
	}
	slog.Info("Logged in", "email", email)
	return &out, nil
}

// Register creates an account. When the service does not return a token
// with the new user, Register logs in with the same credentials.
func (c *Client) Register(ctx context.Context, email, password, username string) (*AuthResponse, error) {
	creds := Credentials{Email: email, Password: password, Username: username}
	if err := c.validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	var raw json.RawMessage
	resp, err := c.bareRequest(ctx).
		SetBody(creds).
		SetResult(&raw).
		Post("/auth/register")
	if err := checkResponse("register", resp, err); err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("register: failed to decode response: %w", err)
	}
	if out.AccessToken == "" {
		// plain user object
		return c.Login(ctx, email, password)
	}
	if err := c.setAuthData(out); err != nil {
		return nil, err
	}
	slog.Info("Registered", "email", email, "username", username)
	return &out, nil
}

// Logout tells the service and always clears the stored credentials.
func (c *Client) Logout(ctx context.Context) error {
	if c.Token() != "" {
		resp, err := c.bareRequest(ctx).Post("/auth/logout")
		if err := checkResponse("logout", resp, err); err != nil {
			slog.Warn("Logout request failed", "error", err)
		}
	}
	if c.tokens == nil {
		return nil
	}
	if err := c.tokens.Clear(KeyAuthToken, KeyUserData); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Refresh exchanges the stored token for a new one. On failure the stored
// credentials are cleared.
func (c *Client) Refresh(ctx context.Context) (*AuthResponse, error) {
	if c.Token() == "" {
		return nil, fmt.Errorf("refresh: %w", ErrNotAuthenticated)
	}

	var out AuthResponse
	resp, err := c.bareRequest(ctx).
		SetResult(&out).
		Post("/auth/refresh")
	err = checkResponse("refresh", resp, err)
	if err == nil && out.AccessToken == "" {
		err = fmt.Errorf("refresh: response carried no access token")
	}
	if err == nil {
		err = c.setAuthData(out)
	}
	if err != nil {
		if clearErr := c.tokens.Clear(KeyAuthToken, KeyUserData); clearErr != nil {
			slog.Warn("Failed to clear credentials", "error", clearErr)
		}
		return nil, err
	}
	return &out, nil
}

// IsAuthenticated reports whether a token is stored.
func (c *Client) IsAuthenticated() bool {
	return c.Token() != ""
}

// CurrentUser returns the stored user, or nil.
func (c *Client) CurrentUser() *User {
	if c.tokens == nil {
		return nil
	}
	data, ok := c.tokens.Get(KeyUserData)
	if !ok || data == "" {
		return nil
	}
	var u User
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		slog.Debug("Stored user data is invalid", "error", err)
		return nil
	}
	return &u
}

// TokenExpiry returns the expiry of the stored token when it is a JWT
// carrying exp.
func (c *Client) TokenExpiry() (time.Time, bool) {
	return tokenExpiry(c.Token())
}

func (c *Client) setAuthData(out AuthResponse) error {
	if c.tokens == nil {
		return nil
	}
	if err := c.tokens.Set(KeyAuthToken, out.AccessToken); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if out.User == nil {
		return nil
	}
	data, err := json.Marshal(out.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := c.tokens.Set(KeyUserData, string(data)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

// tokenExpiry reads exp from a JWT without verifying it; the service owns
// verification.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
