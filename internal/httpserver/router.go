package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"saascore/internal/auth"
	"saascore/internal/httpserver/handlers"
	"saascore/internal/models"
	"saascore/internal/store"
	"saascore/internal/usersync"
)

// Deps carries everything the routes need.
type Deps struct {
	DB          *gorm.DB
	Coordinator *usersync.Coordinator
	Registry    *usersync.Registry
	Users       *store.Users
	Tenants     *store.Tenants
	Logger      *zap.SugaredLogger
}

func NewRouter(d Deps) http.Handler {
	db, lg := d.DB, d.Logger
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Post("/api/auth/signup", handlers.Signup(d.Coordinator, db, lg))
	r.Post("/api/auth/login", handlers.Login(d.Coordinator, db, lg))
	r.Post("/api/users/login", handlers.Login(d.Coordinator, db, lg))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(db))
		protected.Get("/api/auth/profile/{email}", handlers.Profile(d.Users, lg))
		protected.Post("/api/auth/logout", handlers.Logout(db))
		protected.Get("/api/users/email/{email}", handlers.GetUserByEmail(d.Users, lg))
		protected.Get("/api/registry/roles", handlers.ListRoles(d.Registry, lg))
		protected.Get("/api/registry/roles/{id}", handlers.GetRole(d.Registry, lg))
		protected.Get("/api/tenants/{id}", handlers.GetTenant(d.Tenants, lg))
		protected.Get("/api/logs", handlers.MyLogs(db, lg))

		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole(models.RolePlatformAdmin))
			admin.Post("/api/users/signup", handlers.Signup(d.Coordinator, db, lg))
			admin.Post("/api/users/social-signup", handlers.SocialSignup(d.Coordinator, db, lg))
			admin.Put("/api/users/{id}", handlers.UpdateUser(d.Coordinator, lg))
			admin.Delete("/api/users/{id}", handlers.DeleteUser(d.Coordinator, db, lg))
			admin.Delete("/api/users/email/{email}", handlers.DeleteUserByEmail(d.Coordinator, db, lg))
			admin.Post("/api/users/sync/{email}", handlers.SyncUser(d.Coordinator, db, lg))
			admin.Post("/api/registry/roles/create", handlers.CreateRole(d.Registry, db, lg))
			admin.Put("/api/registry/roles/{id}", handlers.UpdateRole(d.Registry, db, lg))
			admin.Delete("/api/registry/roles/{id}", handlers.DeleteRole(d.Registry, db, lg))
			admin.Post("/api/tenants", handlers.CreateTenant(d.Tenants, lg))
			admin.Get("/api/tenants", handlers.ListTenants(d.Tenants, lg))
			admin.Patch("/api/tenants/{id}", handlers.UpdateTenant(d.Tenants, lg))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
