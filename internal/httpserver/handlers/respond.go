package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"saascore/internal/identity"
	"saascore/internal/store"
	"saascore/internal/usersync"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// errStatus maps domain errors onto HTTP status codes. Unknown errors are
// treated as internal.
func errStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrDuplicateEmail),
		errors.Is(err, store.ErrDuplicateDomain),
		errors.Is(err, usersync.ErrRoleAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, usersync.ErrUserNotFound),
		errors.Is(err, usersync.ErrRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, usersync.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, usersync.ErrInvalidRoleCode):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrUnavailable),
		errors.Is(err, usersync.ErrUserCreationFailed),
		errors.Is(err, usersync.ErrUserDeletionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errStatus(err))
}
