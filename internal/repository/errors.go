package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateDevice indicates the (user, device) uniqueness constraint rejected an insert.
	ErrDuplicateDevice = errors.New("repository: duplicate device session")
	// ErrAlreadyRotated indicates the refresh token was revoked before rotation could claim it.
	ErrAlreadyRotated = errors.New("repository: refresh token already rotated")
)
