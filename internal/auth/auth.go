package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rehearsal_scheduler/internal/lib/jwt"
	sl "rehearsal_scheduler/internal/lib/logger"
	"rehearsal_scheduler/internal/lib/resettoken"
	"rehearsal_scheduler/internal/models"
	"rehearsal_scheduler/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrDeliveryFailed     = errors.New("email could not be sent")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrResetCooldown      = errors.New("password reset already requested")
)

type Auth struct {
	log          *slog.Logger
	usrSaver     UserSaver
	usrProvider  UserProvider
	publisher    Publisher
	resetLimiter ResetLimiter
	tokenSecret  string
	tokenTTL     time.Duration
	resetTTL     time.Duration
	clientURL    string
}

type UserSaver interface {
	SaveUser(ctx context.Context, email, name string, passHash []byte, prefs models.Preferences) (int64, error)
	UpdatePassword(ctx context.Context, userID int64, passHash []byte) error
	SetResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, userID int64) error
	ResetPasswordByTokenHash(ctx context.Context, tokenHash string, passHash []byte, now time.Time) (models.User, error)
}

type UserProvider interface {
	UserByID(ctx context.Context, id int64) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserWithPasswordByEmail(ctx context.Context, email string) (models.User, error)
	UserWithPasswordByID(ctx context.Context, id int64) (models.User, error)
}

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

type ResetLimiter interface {
	MarkResetRequested(ctx context.Context, email string, ttl time.Duration) (bool, error)
	ClearResetRequested(ctx context.Context, email string) error
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	publisher Publisher,
	resetLimiter ResetLimiter,
	tokenSecret string,
	tokenTTL, resetTTL time.Duration,
	clientURL string,
) *Auth {
	return &Auth{
		log:          log,
		usrSaver:     userSaver,
		usrProvider:  userProvider,
		publisher:    publisher,
		resetLimiter: resetLimiter,
		tokenSecret:  tokenSecret,
		tokenTTL:     tokenTTL,
		resetTTL:     resetTTL,
		clientURL:    clientURL,
	}
}

// Register creates an account and returns a fresh session token with the
// public view of the new user. The password is hashed before it reaches
// storage; the plaintext never leaves this function.
func (a *Auth) Register(ctx context.Context, email, name, password string) (string, models.PublicUser, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.usrSaver.SaveUser(ctx, email, name, passHash, models.DefaultPreferences())
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return "", models.PublicUser{}, ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrProvider.UserByID(ctx, id)
	if err != nil {
		log.Error("failed to load created user", sl.Err(err))
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	token, err := jwt.NewToken(user.ID, a.tokenSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("uid", user.ID))

	return token, user.Public(), nil
}

// Login verifies credentials and mints a session token. Unknown email and
// wrong password return the same ErrInvalidCredentials.
func (a *Auth) Login(ctx context.Context, email, password string) (string, models.PublicUser, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserWithPasswordByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return "", models.PublicUser{}, ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials")
		return "", models.PublicUser{}, ErrInvalidCredentials
	}

	token, err := jwt.NewToken(user.ID, a.tokenSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))

	return token, user.Public(), nil
}

// User returns the public projection for an already-verified identity.
func (a *Auth) User(ctx context.Context, userID int64) (models.PublicUser, error) {
	const op = "auth.User"

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.PublicUser{}, ErrUserNotFound
		}

		a.log.Error("failed to load user", slog.String("op", op), sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	return user.Public(), nil
}

// ForgotPassword issues a reset token and publishes the reset link for
// out-of-band delivery. If publishing fails the stored hash and expiry
// are rolled back so no undeliverable token stays active.
func (a *Auth) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	first, err := a.resetLimiter.MarkResetRequested(ctx, user.Email, a.resetTTL)
	if err != nil {
		log.Error("failed to check reset cooldown", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if !first {
		log.Warn("reset requested during cooldown")
		return ErrResetCooldown
	}

	plaintext, hash, err := resettoken.New()
	if err != nil {
		log.Error("failed to generate reset token", sl.Err(err))
		a.clearResetCooldown(ctx, log, user.Email)
		return fmt.Errorf("%s: %w", op, err)
	}

	expiresAt := time.Now().Add(a.resetTTL)

	if err := a.usrSaver.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		log.Error("failed to store reset token", sl.Err(err))
		a.clearResetCooldown(ctx, log, user.Email)
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.Message{
		Email:   user.Email,
		Subject: "Password Reset Token",
		Link:    fmt.Sprintf("%s/reset-password/%s", a.clientURL, plaintext),
		Body:    "You are receiving this email because a password reset was requested for your account. The link expires in 10 minutes.",
	}

	if err := a.publisher.SendMessage(ctx, msg); err != nil {
		log.Error("failed to publish reset email", sl.Err(err))

		if clearErr := a.usrSaver.ClearResetToken(ctx, user.ID); clearErr != nil {
			log.Error("failed to roll back reset token", sl.Err(clearErr))
		}
		a.clearResetCooldown(ctx, log, user.Email)

		return ErrDeliveryFailed
	}

	log.Info("reset email queued", slog.Int64("uid", user.ID))

	return nil
}

// clearResetCooldown drops the cooldown flag when the reset flow fails
// after it was marked, so the user can retry without waiting out the TTL.
func (a *Auth) clearResetCooldown(ctx context.Context, log *slog.Logger, email string) {
	if err := a.resetLimiter.ClearResetRequested(ctx, email); err != nil {
		log.Error("failed to roll back reset cooldown", sl.Err(err))
	}
}

// ResetPassword resolves the plaintext token, sets the new password, and
// clears the reset fields in the same statement, then mints a session token.
func (a *Auth) ResetPassword(ctx context.Context, plaintext, newPassword string) (string, models.PublicUser, error) {
	const op = "auth.ResetPassword"

	log := a.log.With(slog.String("op", op))

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrSaver.ResetPasswordByTokenHash(ctx, resettoken.Hash(plaintext), passHash, time.Now())
	if err != nil {
		if errors.Is(err, storage.ErrResetTokenInvalid) {
			log.Warn("invalid or expired reset token")
			return "", models.PublicUser{}, ErrInvalidResetToken
		}

		log.Error("failed to reset password", sl.Err(err))
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	token, err := jwt.NewToken(user.ID, a.tokenSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset", slog.Int64("uid", user.ID))

	return token, user.Public(), nil
}

// UpdatePassword verifies the current password before writing the new one
// and rotates the caller's session token. Previously issued tokens stay
// valid until expiry; there is no revocation list.
func (a *Auth) UpdatePassword(ctx context.Context, userID int64, currentPassword, newPassword string) (string, error) {
	const op = "auth.UpdatePassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserWithPasswordByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(currentPassword)); err != nil {
		log.Info("current password incorrect")
		return "", ErrWrongPassword
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdatePassword(ctx, userID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := jwt.NewToken(userID, a.tokenSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password updated", slog.Int64("uid", userID))

	return token, nil
}
