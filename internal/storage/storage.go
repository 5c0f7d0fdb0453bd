package storage

import "errors"

var (
	ErrUserExists        = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")
	ErrBandNotFound      = errors.New("band not found")
	ErrVenueNotFound     = errors.New("venue not found")
)
