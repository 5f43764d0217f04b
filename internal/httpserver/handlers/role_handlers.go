package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"saascore/internal/usersync"
)

type roleReq struct {
	RoleName    string  `json:"role_name" validate:"required"`
	RoleCode    string  `json:"role_code" validate:"required,rolecode"`
	Description string  `json:"description"`
	Category    string  `json:"category" validate:"omitempty,oneof=platform tenant module custom"`
	TenantID    *string `json:"tenant_id"`
}

func (r *roleReq) input() usersync.RoleInput {
	return usersync.RoleInput{
		RoleName:    r.RoleName,
		RoleCode:    r.RoleCode,
		Description: r.Description,
		Category:    r.Category,
		TenantID:    r.TenantID,
	}
}

// CreateRole persists a role and mirrors it to the identity provider.
func CreateRole(reg *usersync.Registry, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		role, err := reg.CreateRole(r.Context(), req.input())
		if err != nil {
			lg.Warnw("role create failed", "role_code", req.RoleCode, "error", err)
			respondError(w, err)
			return
		}
		audit(db, nil, "role.create", map[string]any{
			"role_code": role.RoleCode, "mirrored": role.ExternalRoleID != nil,
		})
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, role)
	}
}

func GetRole(reg *usersync.Registry, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := reg.GetRole(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, role)
	}
}

// ListRoles returns active roles, optionally scoped by ?tenant_id=.
func ListRoles(reg *usersync.Registry, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tenantID := r.URL.Query().Get("tenant_id"); tenantID != "" {
			roles, err := reg.ListRolesByTenant(r.Context(), tenantID)
			if err != nil {
				respondError(w, err)
				return
			}
			respondJSON(w, roles)
			return
		}
		roles, err := reg.ListRoles(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, roles)
	}
}

func UpdateRole(reg *usersync.Registry, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req roleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		role, err := reg.UpdateRole(r.Context(), id, req.input())
		if err != nil {
			lg.Warnw("role update failed", "role_id", id, "error", err)
			respondError(w, err)
			return
		}
		audit(db, nil, "role.update", map[string]any{"role_code": role.RoleCode, "status": role.Status})
		respondJSON(w, role)
	}
}

func DeleteRole(reg *usersync.Registry, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := reg.DeleteRole(r.Context(), id); err != nil {
			lg.Warnw("role delete failed", "role_id", id, "error", err)
			respondError(w, err)
			return
		}
		audit(db, nil, "role.delete", map[string]any{"role_id": id})
		respondJSON(w, map[string]any{"deleted": true})
	}
}
