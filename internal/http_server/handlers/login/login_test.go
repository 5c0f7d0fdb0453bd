package login_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rehearsal_scheduler/internal/auth"
	"rehearsal_scheduler/internal/http_server/handlers/login"
	"rehearsal_scheduler/internal/models"
	"rehearsal_scheduler/internal/storage"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// stubStorage serves exactly one account; everything the login path does
// not touch is left unimplemented on purpose.
type stubStorage struct {
	user models.User
}

func (s *stubStorage) SaveUser(context.Context, string, string, []byte, models.Preferences) (int64, error) {
	panic("not used")
}
func (s *stubStorage) UpdatePassword(context.Context, int64, []byte) error { panic("not used") }
func (s *stubStorage) SetResetToken(context.Context, int64, string, time.Time) error {
	panic("not used")
}
func (s *stubStorage) ClearResetToken(context.Context, int64) error { panic("not used") }
func (s *stubStorage) ResetPasswordByTokenHash(context.Context, string, []byte, time.Time) (models.User, error) {
	panic("not used")
}
func (s *stubStorage) UserByID(context.Context, int64) (models.User, error) { panic("not used") }
func (s *stubStorage) UserWithPasswordByID(context.Context, int64) (models.User, error) {
	panic("not used")
}

func (s *stubStorage) UserByEmail(_ context.Context, email string) (models.User, error) {
	if email != s.user.Email {
		return models.User{}, storage.ErrUserNotFound
	}
	u := s.user
	u.PassHash = nil
	return u, nil
}

func (s *stubStorage) UserWithPasswordByEmail(_ context.Context, email string) (models.User, error) {
	if email != s.user.Email {
		return models.User{}, storage.ErrUserNotFound
	}
	return s.user, nil
}

type stubPublisher struct{}

func (stubPublisher) SendMessage(context.Context, models.Message) error { return nil }

type stubLimiter struct{}

func (stubLimiter) MarkResetRequested(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
func (stubLimiter) ClearResetRequested(context.Context, string) error { return nil }

func newHandler(t *testing.T) http.HandlerFunc {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("longenough1"), bcrypt.DefaultCost)
	require.NoError(t, err)

	st := &stubStorage{user: models.User{
		ID:       7,
		Email:    "a@b.com",
		Name:     "Ann",
		Role:     models.RoleMember,
		PassHash: hash,
	}}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := auth.New(log, st, st, stubPublisher{}, stubLimiter{}, "secret", time.Hour, 10*time.Minute, "http://localhost:3000")

	return login.New(log, a)
}

func doLogin(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestLoginHandler_Success(t *testing.T) {
	rec := doLogin(t, newHandler(t), `{"email":"a@b.com","password":"longenough1"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var res login.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	require.Equal(t, "success", res.Status)
	require.NotEmpty(t, res.Token)
	require.Equal(t, int64(7), res.User.ID)
	require.Equal(t, "a@b.com", res.User.Email)
}

func TestLoginHandler_MissingFields(t *testing.T) {
	h := newHandler(t)

	for _, body := range []string{
		`{"email":"a@b.com"}`,
		`{"password":"longenough1"}`,
		`{}`,
	} {
		rec := doLogin(t, h, body)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var res map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Equal(t, "error", res["status"])
		require.Equal(t, "Please provide email and password", res["message"])
	}
}

// Wrong password and unknown email must produce identical responses.
func TestLoginHandler_UniformUnauthorized(t *testing.T) {
	h := newHandler(t)

	wrongPass := doLogin(t, h, `{"email":"a@b.com","password":"not-it"}`)
	noUser := doLogin(t, h, `{"email":"nobody@b.com","password":"longenough1"}`)

	require.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	require.Equal(t, http.StatusUnauthorized, noUser.Code)
	require.JSONEq(t, wrongPass.Body.String(), noUser.Body.String())
}

func TestLoginHandler_BadJSON(t *testing.T) {
	rec := doLogin(t, newHandler(t), `{not json`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
