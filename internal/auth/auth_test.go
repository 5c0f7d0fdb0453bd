package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"rehearsal_scheduler/internal/lib/jwt"
	"rehearsal_scheduler/internal/lib/resettoken"
	"rehearsal_scheduler/internal/models"
	"rehearsal_scheduler/internal/storage"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// ---- fakes ----

type fakeStorage struct {
	users   map[int64]*models.User
	byEmail map[string]int64
	nextID  int64

	setResetErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users:   make(map[int64]*models.User),
		byEmail: make(map[string]int64),
		nextID:  1,
	}
}

func (f *fakeStorage) SaveUser(_ context.Context, email, name string, passHash []byte, prefs models.Preferences) (int64, error) {
	lower := strings.ToLower(email)
	if _, ok := f.byEmail[lower]; ok {
		return 0, storage.ErrUserExists
	}

	id := f.nextID
	f.nextID++

	f.users[id] = &models.User{
		ID:          id,
		Email:       lower,
		Name:        name,
		Role:        models.RoleMember,
		Preferences: prefs,
		PassHash:    passHash,
		CreatedAt:   time.Now(),
	}
	f.byEmail[lower] = id

	return id, nil
}

func (f *fakeStorage) UpdatePassword(_ context.Context, userID int64, passHash []byte) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PassHash = passHash
	return nil
}

func (f *fakeStorage) SetResetToken(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	if f.setResetErr != nil {
		return f.setResetErr
	}

	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.ResetTokenHash = tokenHash
	u.ResetExpiresAt = &expiresAt
	return nil
}

func (f *fakeStorage) ClearResetToken(_ context.Context, userID int64) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.ResetTokenHash = ""
	u.ResetExpiresAt = nil
	return nil
}

func (f *fakeStorage) ResetPasswordByTokenHash(_ context.Context, tokenHash string, passHash []byte, now time.Time) (models.User, error) {
	for _, u := range f.users {
		if u.ResetTokenHash == tokenHash && u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now) {
			u.PassHash = passHash
			u.ResetTokenHash = ""
			u.ResetExpiresAt = nil
			return *u, nil
		}
	}
	return models.User{}, storage.ErrResetTokenInvalid
}

func (f *fakeStorage) UserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	pub := *u
	pub.PassHash = nil
	return pub, nil
}

func (f *fakeStorage) UserByEmail(_ context.Context, email string) (models.User, error) {
	id, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return f.UserByID(context.Background(), id)
}

func (f *fakeStorage) UserWithPasswordByEmail(_ context.Context, email string) (models.User, error) {
	id, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return *f.users[id], nil
}

func (f *fakeStorage) UserWithPasswordByID(_ context.Context, id int64) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return *u, nil
}

type fakePublisher struct {
	msgs []models.Message
	err  error
}

func (f *fakePublisher) SendMessage(_ context.Context, msg models.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeLimiter struct {
	marked map[string]bool
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{marked: make(map[string]bool)}
}

func (f *fakeLimiter) MarkResetRequested(_ context.Context, email string, _ time.Duration) (bool, error) {
	if f.marked[email] {
		return false, nil
	}
	f.marked[email] = true
	return true, nil
}

func (f *fakeLimiter) ClearResetRequested(_ context.Context, email string) error {
	delete(f.marked, email)
	return nil
}

func newTestAuth(st *fakeStorage, pub *fakePublisher, lim *fakeLimiter) *Auth {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, st, st, pub, lim, testSecret, time.Hour, 10*time.Minute, "http://localhost:3000")
}

// ---- tests ----

func TestRegister_Success(t *testing.T) {
	st := newFakeStorage()
	a := newTestAuth(st, &fakePublisher{}, newFakeLimiter())

	token, user, err := a.Register(context.Background(), "A@B.com", "Ann", "longenough1")
	require.NoError(t, err)
	require.Equal(t, "a@b.com", user.Email)
	require.Equal(t, models.RoleMember, user.Role)

	uid, err := jwt.ParseToken(token, testSecret)
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)

	// the plaintext password must not be what reached storage
	stored := st.users[user.ID].PassHash
	require.NotEqual(t, "longenough1", string(stored))
	require.NoError(t, bcrypt.CompareHashAndPassword(stored, []byte("longenough1")))
}

func TestRegister_Duplicate(t *testing.T) {
	st := newFakeStorage()
	a := newTestAuth(st, &fakePublisher{}, newFakeLimiter())

	_, _, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	_, _, err = a.Register(context.Background(), "a@b.com", "Other", "different1")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestLogin_NoCredentialOracle(t *testing.T) {
	st := newFakeStorage()
	a := newTestAuth(st, &fakePublisher{}, newFakeLimiter())

	_, _, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	_, _, errWrongPass := a.Login(context.Background(), "a@b.com", "wrong-password")
	_, _, errNoUser := a.Login(context.Background(), "nobody@b.com", "whatever")

	require.ErrorIs(t, errWrongPass, ErrInvalidCredentials)
	require.ErrorIs(t, errNoUser, ErrInvalidCredentials)
	require.Equal(t, errWrongPass.Error(), errNoUser.Error())
}

func TestLogin_Success(t *testing.T) {
	st := newFakeStorage()
	a := newTestAuth(st, &fakePublisher{}, newFakeLimiter())

	_, reg, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	token, user, err := a.Login(context.Background(), "a@b.com", "longenough1")
	require.NoError(t, err)
	require.Equal(t, reg.ID, user.ID)

	uid, err := jwt.ParseToken(token, testSecret)
	require.NoError(t, err)
	require.Equal(t, reg.ID, uid)
}

func TestForgotPassword_StoresOnlyHash(t *testing.T) {
	st := newFakeStorage()
	pub := &fakePublisher{}
	a := newTestAuth(st, pub, newFakeLimiter())

	_, user, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	require.NoError(t, a.ForgotPassword(context.Background(), "a@b.com"))

	require.Len(t, pub.msgs, 1)
	link := pub.msgs[0].Link
	plaintext := link[strings.LastIndex(link, "/")+1:]

	stored := st.users[user.ID].ResetTokenHash
	require.NotEmpty(t, stored)
	require.NotEqual(t, plaintext, stored)
	require.Equal(t, resettoken.Hash(plaintext), stored)
	require.NotNil(t, st.users[user.ID].ResetExpiresAt)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	a := newTestAuth(newFakeStorage(), &fakePublisher{}, newFakeLimiter())

	err := a.ForgotPassword(context.Background(), "nobody@b.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestForgotPassword_Cooldown(t *testing.T) {
	st := newFakeStorage()
	pub := &fakePublisher{}
	a := newTestAuth(st, pub, newFakeLimiter())

	_, _, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	require.NoError(t, a.ForgotPassword(context.Background(), "a@b.com"))

	err = a.ForgotPassword(context.Background(), "a@b.com")
	require.ErrorIs(t, err, ErrResetCooldown)
	require.Len(t, pub.msgs, 1)
}

func TestForgotPassword_DeliveryFailureRollsBack(t *testing.T) {
	st := newFakeStorage()
	pub := &fakePublisher{err: errors.New("broker down")}
	lim := newFakeLimiter()
	a := newTestAuth(st, pub, lim)

	_, user, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	err = a.ForgotPassword(context.Background(), "a@b.com")
	require.ErrorIs(t, err, ErrDeliveryFailed)

	// no residual active reset token and no lingering cooldown
	require.Empty(t, st.users[user.ID].ResetTokenHash)
	require.Nil(t, st.users[user.ID].ResetExpiresAt)
	require.False(t, lim.marked["a@b.com"])
}

// A storage failure after the cooldown was marked must release the
// cooldown, or the user is locked out with no email ever queued.
func TestForgotPassword_StoreFailureReleasesCooldown(t *testing.T) {
	st := newFakeStorage()
	pub := &fakePublisher{}
	lim := newFakeLimiter()
	a := newTestAuth(st, pub, lim)

	_, user, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	st.setResetErr = errors.New("database down")

	err = a.ForgotPassword(context.Background(), "a@b.com")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrResetCooldown)

	require.Empty(t, pub.msgs)
	require.Empty(t, st.users[user.ID].ResetTokenHash)
	require.False(t, lim.marked["a@b.com"])

	// once storage recovers the retry goes through immediately
	st.setResetErr = nil

	require.NoError(t, a.ForgotPassword(context.Background(), "a@b.com"))
	require.Len(t, pub.msgs, 1)
}

func TestResetPassword_SingleUse(t *testing.T) {
	st := newFakeStorage()
	pub := &fakePublisher{}
	a := newTestAuth(st, pub, newFakeLimiter())

	_, user, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	require.NoError(t, a.ForgotPassword(context.Background(), "a@b.com"))
	link := pub.msgs[0].Link
	plaintext := link[strings.LastIndex(link, "/")+1:]

	token, got, err := a.ResetPassword(context.Background(), plaintext, "brandnewpass1")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	uid, err := jwt.ParseToken(token, testSecret)
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)

	// old password is gone, new one works
	_, _, err = a.Login(context.Background(), "a@b.com", "longenough1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = a.Login(context.Background(), "a@b.com", "brandnewpass1")
	require.NoError(t, err)

	// second use of the same token fails
	_, _, err = a.ResetPassword(context.Background(), plaintext, "anotherpass1")
	require.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPassword_Expired(t *testing.T) {
	st := newFakeStorage()
	a := newTestAuth(st, &fakePublisher{}, newFakeLimiter())

	_, user, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	expired := time.Now().Add(-time.Minute)
	st.users[user.ID].ResetTokenHash = resettoken.Hash("stale-token")
	st.users[user.ID].ResetExpiresAt = &expired

	_, _, err = a.ResetPassword(context.Background(), "stale-token", "brandnewpass1")
	require.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestUpdatePassword(t *testing.T) {
	st := newFakeStorage()
	a := newTestAuth(st, &fakePublisher{}, newFakeLimiter())

	_, user, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	_, err = a.UpdatePassword(context.Background(), user.ID, "wrong-current", "brandnewpass1")
	require.ErrorIs(t, err, ErrWrongPassword)

	token, err := a.UpdatePassword(context.Background(), user.ID, "longenough1", "brandnewpass1")
	require.NoError(t, err)

	uid, err := jwt.ParseToken(token, testSecret)
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)

	_, _, err = a.Login(context.Background(), "a@b.com", "longenough1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = a.Login(context.Background(), "a@b.com", "brandnewpass1")
	require.NoError(t, err)
}

func TestUser_PublicProjection(t *testing.T) {
	st := newFakeStorage()
	a := newTestAuth(st, &fakePublisher{}, newFakeLimiter())

	_, user, err := a.Register(context.Background(), "a@b.com", "Ann", "longenough1")
	require.NoError(t, err)

	got, err := a.User(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, "a@b.com", got.Email)

	_, err = a.User(context.Background(), 9999)
	require.ErrorIs(t, err, ErrUserNotFound)
}
