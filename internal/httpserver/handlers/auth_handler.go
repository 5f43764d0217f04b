package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"saascore/internal/auth"
	"saascore/internal/models"
	"saascore/internal/store"
	"saascore/internal/usersync"
)

type signupReq struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DateOfBirth string  `json:"date_of_birth"`
	Country     string  `json:"country"`
	Phone       string  `json:"phone"`
	Role        string  `json:"role" validate:"omitempty,rolecode"`
	TenantID    *string `json:"tenant_id"`
}

func (r *signupReq) input() usersync.SignupInput {
	role := r.Role
	if role == "" {
		role = models.RoleUser
	}
	return usersync.SignupInput{
		Email:       strings.TrimSpace(strings.ToLower(r.Email)),
		Password:    r.Password,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: r.DateOfBirth,
		Country:     r.Country,
		Phone:       r.Phone,
		Role:        role,
		TenantID:    r.TenantID,
	}
}

// Signup runs the application signup path: local record first, identity
// provider second, compensating delete on partial failure.
func Signup(co *usersync.Coordinator, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		u, err := co.ApplicationSignup(r.Context(), req.input())
		if err != nil {
			lg.Warnw("signup failed", "email", req.Email, "error", err)
			respondError(w, err)
			return
		}
		audit(db, &u.ID, "user.signup", map[string]any{"email": u.Email})
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, u)
	}
}

// SocialSignup runs the identity-first direction.
func SocialSignup(co *usersync.Coordinator, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Social providers verify email for us; no local credential exists,
		// so the password rule does not apply here.
		if req.Email == "" {
			http.Error(w, "email required", http.StatusBadRequest)
			return
		}
		u, err := co.SocialSignup(r.Context(), req.input())
		if err != nil {
			lg.Warnw("social signup failed", "email", req.Email, "error", err)
			respondError(w, err)
			return
		}
		audit(db, &u.ID, "user.social_signup", map[string]any{"email": u.Email})
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, u)
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates credentials (local first, provider fallback), issues a
// token and records the session.
func Login(co *usersync.Coordinator, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		u, err := co.Login(r.Context(), strings.ToLower(req.Email), req.Password)
		if err != nil {
			respondError(w, err)
			return
		}
		tok, err := auth.Sign(u.Email, u.ID, u.Role, u.TenantID)
		if err != nil {
			http.Error(w, "token error", http.StatusInternalServerError)
			return
		}
		sess := models.Session{
			JTI:       tok.JWTID,
			UserID:    u.ID,
			ExpiresAt: tok.ExpiresAt,
			CreatedAt: time.Now(),
		}
		if err := db.Create(&sess).Error; err != nil {
			lg.Errorw("failed to persist session", "user_id", u.ID, "error", err)
			http.Error(w, "session error", http.StatusInternalServerError)
			return
		}
		audit(db, &u.ID, "user.login", map[string]any{"email": u.Email})
		respondJSON(w, map[string]any{"token": tok.Signed, "expires_at": tok.ExpiresAt})
	}
}

// Logout revokes the current session by jti.
func Logout(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jti := auth.FromContext(r.Context()).JWTID
		now := time.Now()
		_ = db.Model(&models.Session{}).Where("jti = ?", jti).Update("revoked_at", &now).Error
		respondJSON(w, map[string]any{"logged_out": true})
	}
}

// Profile returns the local record for an email.
func Profile(users *store.Users, lg *zap.SugaredLogger) http.HandlerFunc {
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
