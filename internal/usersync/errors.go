package usersync

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserCreationFailed wraps a partial two-phase failure after the
	// compensating delete has run.
	ErrUserCreationFailed = errors.New("user creation failed")
	// ErrUserDeletionFailed means both sides failed to delete; partial
	// deletion is reported as success.
	ErrUserDeletionFailed = errors.New("user deletion failed")

	ErrRoleNotFound      = errors.New("role not found")
	ErrRoleAlreadyExists = errors.New("role already exists")
	ErrInvalidRoleCode   = errors.New("role code must match ROLE_[A-Z_]+")
)
