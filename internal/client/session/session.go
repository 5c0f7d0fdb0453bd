// Package session is the client-side session store: it keeps the bearer
// token persisted on disk, attaches it to outgoing requests, and mirrors
// the authenticated profile in memory. Persisted storage, the outbound
// header, and in-memory state change only through SetToken.
//
// The store is meant for a single goroutine (one UI loop); it is not safe
// for concurrent use.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"rehearsal_scheduler/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotAuthenticated = errors.New("not authenticated")

type Store struct {
	baseURL   string
	tokenPath string
	client    *http.Client

	token string
	user  *models.PublicUser
}

func New(baseURL, tokenPath string) *Store {
	return &Store{
		baseURL:   baseURL,
		tokenPath: tokenPath,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// envelope mirrors the server's uniform response shape.
type envelope struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Token   string             `json:"token"`
	User    *models.PublicUser `json:"user"`
}

// Bootstrap restores the session at startup. A missing token file means
// unauthenticated; an expired token is cleared without a network call;
// otherwise the profile is re-fetched and any failure tears the session
// down.
func (s *Store) Bootstrap(ctx context.Context) error {
	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := string(bytes.TrimSpace(data))
	if token == "" {
		return nil
	}

	if isTokenExpired(token) {
		return s.SetToken("")
	}

	s.token = token
	s.user = nil

	user, err := s.Me(ctx)
	if err != nil {
		_ = s.SetToken("")
		return nil
	}

	s.user = &user

	return nil
}

// SetToken is the single funnel for session state. An empty token clears
// the persisted file, the outbound header, and the cached profile.
func (s *Store) SetToken(token string) error {
	if token == "" {
		s.token = ""
		s.user = nil

		if err := os.Remove(s.tokenPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove token file: %w", err)
		}

		return nil
	}

	if err := os.WriteFile(s.tokenPath, []byte(token), 0o600); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	s.token = token

	return nil
}

func (s *Store) Token() string {
	return s.token
}

func (s *Store) IsAuthenticated() bool {
	return s.token != ""
}

// CurrentUser returns the cached profile, if any.
func (s *Store) CurrentUser() *models.PublicUser {
	return s.user
}

func (s *Store) Register(ctx context.Context, email, name, password string) (models.PublicUser, error) {
	env, err := s.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	})
	if err != nil {
		return models.PublicUser{}, err
	}

	return s.adoptSession(env)
}

func (s *Store) Login(ctx context.Context, email, password string) (models.PublicUser, error) {
	env, err := s.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return models.PublicUser{}, err
	}

	return s.adoptSession(env)
}

// Me fetches the authoritative profile. Any failure clears the local
// session: an invalid token is treated as not authenticated.
func (s *Store) Me(ctx context.Context) (models.PublicUser, error) {
	if s.token == "" {
		return models.PublicUser{}, ErrNotAuthenticated
	}

	env, err := s.do(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		_ = s.SetToken("")
		return models.PublicUser{}, err
	}
	if env.User == nil {
		_ = s.SetToken("")
		return models.PublicUser{}, ErrNotAuthenticated
	}

	s.user = env.User

	return *env.User, nil
}

func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	_, err := s.do(ctx, http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": email,
	})

	return err
}

func (s *Store) ResetPassword(ctx context.Context, resetToken, password string) (models.PublicUser, error) {
	env, err := s.do(ctx, http.MethodPut, "/api/auth/reset-password/"+resetToken, map[string]string{
		"password": password,
	})
	if err != nil {
		return models.PublicUser{}, err
	}

	return s.adoptSession(env)
}

func (s *Store) UpdatePassword(ctx context.Context, currentPassword, newPassword string) error {
	env, err := s.do(ctx, http.MethodPut, "/api/auth/update-password", map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	})
	if err != nil {
		return err
	}

	if env.Token != "" {
		if err := s.SetToken(env.Token); err != nil {
			return err
		}
	}

	return nil
}

// Logout notifies the server (advisory) and discards the local token.
// Session termination happens here, not on the server.
func (s *Store) Logout(ctx context.Context) error {
	if s.token != "" {
		_, _ = s.do(ctx, http.MethodGet, "/api/auth/logout", nil)
	}

	return s.SetToken("")
}

func (s *Store) adoptSession(env *envelope) (models.PublicUser, error) {
	if env.Token == "" || env.User == nil {
		return models.PublicUser{}, errors.New("malformed auth response")
	}

	if err := s.SetToken(env.Token); err != nil {
		return models.PublicUser{}, err
	}
	s.user = env.User

	return *env.User, nil
}

func (s *Store) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Status != "success" {
		if env.Message != "" {
			return nil, errors.New(env.Message)
		}
		return nil, fmt.Errorf("request failed with status %d", res.StatusCode)
	}

	return &env, nil
}

// isTokenExpired decodes the embedded expiry without verifying the
// signature; verification is the server's job.
func isTokenExpired(token string) bool {
	claims := jwt.RegisteredClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}

	return claims.ExpiresAt.Before(time.Now())
}
