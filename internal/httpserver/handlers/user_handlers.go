package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"saascore/internal/store"
	"saascore/internal/usersync"
)

// GetUserByEmail returns the local record for an email.
func GetUserByEmail(users *store.Users, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")
		u, err := users.ByEmail(r.Context(), email)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if u == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		respondJSON(w, u)
	}
}

// UpdateUser applies profile changes locally then mirrors them to the
// identity provider for synced accounts.
func UpdateUser(co *usersync.Coordinator, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			FirstName   *string `json:"first_name"`
			LastName    *string `json:"last_name"`
			DateOfBirth *string `json:"date_of_birth"`
			Country     *string `json:"country"`
			Phone       *string `json:"phone"`
			Status      *string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		u, err := co.UpdateUser(r.Context(), id, usersync.UpdateInput{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			DateOfBirth: req.DateOfBirth,
			Country:     req.Country,
			Phone:       req.Phone,
			Status:      req.Status,
		})
		if err != nil {
			lg.Warnw("user update failed", "user_id", id, "error", err)
			respondError(w, err)
			return
		}
		respondJSON(w, u)
	}
}

// DeleteUser removes the user from both stores, best effort.
func DeleteUser(co *usersync.Coordinator, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := co.DeleteUser(r.Context(), id); err != nil {
			lg.Warnw("user delete failed", "user_id", id, "error", err)
			respondError(w, err)
			return
		}
		audit(db, nil, "user.delete", map[string]any{"user_id": id})
		respondJSON(w, map[string]any{"deleted": true})
	}
}

// DeleteUserByEmail covers provider-only accounts with no local row.
func DeleteUserByEmail(co *usersync.Coordinator, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")
		if err := co.DeleteUserByEmail(r.Context(), email); err != nil {
			lg.Warnw("user delete failed", "email", email, "error", err)
			respondError(w, err)
			return
		}
		audit(db, nil, "user.delete", map[string]any{"email": email})
		respondJSON(w, map[string]any{"deleted": true})
	}
}

// SyncUser reconciles one user across the two stores on demand.
func SyncUser(co *usersync.Coordinator, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")
		u, err := co.SyncUser(r.Context(), email)
		if err != nil {
			lg.Warnw("user sync failed", "email", email, "error", err)
			respondError(w, err)
			return
		}
		audit(db, &u.ID, "user.sync", map[string]any{"email": email})
		respondJSON(w, u)
	}
}
