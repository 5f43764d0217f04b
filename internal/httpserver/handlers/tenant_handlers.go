package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"saascore/internal/models"
	"saascore/internal/store"
)

type tenantReq struct {
	Name     string          `json:"name" validate:"required"`
	Domain   string          `json:"domain" validate:"required,fqdn"`
	Plan     string          `json:"plan"`
	Settings json.RawMessage `json:"settings"`
	Branding json.RawMessage `json:"branding"`
}

func CreateTenant(tenants *store.Tenants, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tenantReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		plan := req.Plan
		if plan == "" {
			plan = models.TenantPlanFree
		}
		t := models.Tenant{
			Name:     strings.TrimSpace(req.Name),
			Domain:   req.Domain,
			Plan:     plan,
			Status:   models.TenantStatusActive,
			Settings: models.JSONB(req.Settings),
			Branding: models.JSONB(req.Branding),
		}
		if err := tenants.Create(r.Context(), &t); err != nil {
			lg.Warnw("tenant create failed", "domain", req.Domain, "error", err)
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, t)
	}
}

func ListTenants(tenants *store.Tenants, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := tenants.List(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, ts)
	}
}

func GetTenant(tenants *store.Tenants, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := tenants.ByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if t == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		respondJSON(w, t)
	}
}

func UpdateTenant(tenants *store.Tenants, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     *string         `json:"name"`
			Plan     *string         `json:"plan"`
			Status   *string         `json:"status"`
			Settings json.RawMessage `json:"settings"`
			Branding json.RawMessage `json:"branding"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		t, err := tenants.ByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if t == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if req.Name != nil {
			t.Name = *req.Name
		}
		if req.Plan != nil {
			t.Plan = *req.Plan
		}
		if req.Status != nil {
			t.Status = *req.Status
		}
		if len(req.Settings) > 0 {
			t.Settings = models.JSONB(req.Settings)
		}
		if len(req.Branding) > 0 {
			t.Branding = models.JSONB(req.Branding)
		}
		if err := tenants.Save(r.Context(), t); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, t)
	}
}
