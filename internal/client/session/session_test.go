package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	libjwt "rehearsal_scheduler/internal/lib/jwt"
	"rehearsal_scheduler/internal/models"

	"github.com/stretchr/testify/require"
)

func tokenFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "token")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_PersistsTokenAndProfile(t *testing.T) {
	user := models.PublicUser{ID: 7, Email: "a@b.com", Name: "Ann"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a@b.com", body["email"])

		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"token":  "issued-token",
			"user":   user,
		})
	}))
	defer srv.Close()

	path := tokenFile(t)
	s := New(srv.URL, path)

	got, err := s.Login(context.Background(), "a@b.com", "longenough1")
	require.NoError(t, err)
	require.Equal(t, user, got)
	require.True(t, s.IsAuthenticated())
	require.Equal(t, "issued-token", s.Token())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "issued-token", string(data))
}

func TestLogin_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"status":  "error",
			"message": "Invalid credentials",
		})
	}))
	defer srv.Close()

	s := New(srv.URL, tokenFile(t))

	_, err := s.Login(context.Background(), "a@b.com", "wrong")
	require.EqualError(t, err, "Invalid credentials")
	require.False(t, s.IsAuthenticated())
}

func TestDo_AttachesBearerHeader(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"user":   models.PublicUser{ID: 7, Email: "a@b.com"},
		})
	}))
	defer srv.Close()

	s := New(srv.URL, tokenFile(t))
	require.NoError(t, s.SetToken("abc123"))

	_, err := s.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer abc123", gotAuth)
}

func TestBootstrap_NoTokenFile(t *testing.T) {
	s := New("http://unused.invalid", tokenFile(t))

	require.NoError(t, s.Bootstrap(context.Background()))
	require.False(t, s.IsAuthenticated())
}

// An expired token must be discarded locally, with no request sent.
func TestBootstrap_ExpiredTokenClearedOffline(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}))
	defer srv.Close()

	expired, err := libjwt.NewToken(7, "secret", -time.Minute)
	require.NoError(t, err)

	path := tokenFile(t)
	require.NoError(t, os.WriteFile(path, []byte(expired), 0o600))

	s := New(srv.URL, path)
	require.NoError(t, s.Bootstrap(context.Background()))

	require.False(t, s.IsAuthenticated())
	require.Zero(t, calls)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestBootstrap_ValidTokenFetchesProfile(t *testing.T) {
	user := models.PublicUser{ID: 7, Email: "a@b.com", Name: "Ann"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/me", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"user":   user,
		})
	}))
	defer srv.Close()

	tok, err := libjwt.NewToken(7, "secret", time.Hour)
	require.NoError(t, err)

	path := tokenFile(t)
	require.NoError(t, os.WriteFile(path, []byte(tok), 0o600))

	s := New(srv.URL, path)
	require.NoError(t, s.Bootstrap(context.Background()))

	require.True(t, s.IsAuthenticated())
	require.NotNil(t, s.CurrentUser())
	require.Equal(t, user, *s.CurrentUser())
}

func TestBootstrap_RejectedTokenTearsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"status":  "error",
			"message": "Invalid or expired token",
		})
	}))
	defer srv.Close()

	tok, err := libjwt.NewToken(7, "secret", time.Hour)
	require.NoError(t, err)

	path := tokenFile(t)
	require.NoError(t, os.WriteFile(path, []byte(tok), 0o600))

	s := New(srv.URL, path)
	require.NoError(t, s.Bootstrap(context.Background()))

	require.False(t, s.IsAuthenticated())
	require.Nil(t, s.CurrentUser())

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestLogout_ClearsSessionEvenIfServerFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "error",
			"message": "boom",
		})
	}))
	defer srv.Close()

	path := tokenFile(t)
	s := New(srv.URL, path)
	require.NoError(t, s.SetToken("abc123"))

	require.NoError(t, s.Logout(context.Background()))
	require.False(t, s.IsAuthenticated())

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestUpdatePassword_AdoptsReissuedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/auth/update-password", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"token":   "fresh-token",
			"message": "Password updated successfully",
		})
	}))
	defer srv.Close()

	path := tokenFile(t)
	s := New(srv.URL, path)
	require.NoError(t, s.SetToken("old-token"))

	require.NoError(t, s.UpdatePassword(context.Background(), "longenough1", "brandnewpass1"))
	require.Equal(t, "fresh-token", s.Token())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "fresh-token", string(data))
}
