package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"saascore/internal/auth"
	"saascore/internal/config"
	"saascore/internal/httpserver"
	"saascore/internal/identity"
	"saascore/internal/logger"
	"saascore/internal/models"
	"saascore/internal/store"
	"saascore/internal/usersync"
)

func main() {
	cfg := config.Load()
	lg := logger.New()
	defer lg.Sync()

	if cfg.DatabaseURL == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(&models.Tenant{}, &models.Role{}, &models.User{}, &models.Session{}, &models.AuditLog{}); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaults(db, lg)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}

	tokens := identity.NewTokenSource(cfg.IDPBaseURL, cfg.IDPAdminUsername, cfg.IDPAdminPassword, rdb, lg)
	idp := identity.New(identity.Config{
		BaseURL:  cfg.IDPBaseURL,
		Realm:    cfg.IDPRealm,
		ClientID: cfg.IDPClientID,
	}, tokens, lg)

	users := store.NewUsers(db)
	roles := store.NewRoles(db)
	tenants := store.NewTenants(db)

	router := httpserver.NewRouter(httpserver.Deps{
		DB:          db,
		Coordinator: usersync.NewCoordinator(users, idp, lg),
		Registry:    usersync.NewRegistry(roles, idp, lg),
		Users:       users,
		Tenants:     tenants,
		Logger:      lg,
	})

	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		log.Fatal(err)
	}
}

// seedDefaults makes sure the built-in roles and the bootstrap admin exist.
// The admin is local-only until someone runs a sync; boot must not depend
// on the identity provider being up.
func seedDefaults(db *gorm.DB, lg *zap.SugaredLogger) {
	seedRole := func(name, code, category string) {
		var count int64
		db.Model(&models.Role{}).Where("role_code = ?", code).Count(&count)
		if count > 0 {
			return
		}
		_ = db.Create(&models.Role{
			ID:        uuid.NewString(),
			RoleName:  name,
			RoleCode:  code,
			Category:  category,
			Status:    models.RoleStatusActive,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}).Error
	}
	seedRole("Platform Administrator", models.RolePlatformAdmin, models.RoleCategoryPlatform)
	seedRole("User", models.RoleUser, models.RoleCategoryPlatform)

	adminEmail := strings.ToLower("admin@platform.local")
	var count int64
	db.Model(&models.User{}).Where("email = ?", adminEmail).Count(&count)
	if count > 0 {
		return
	}
	hash, _ := auth.HashPassword("changeme123")
	u := models.User{
		ID:           uuid.NewString(),
		Email:        adminEmail,
		PasswordHash: &hash,
		Role:         models.RolePlatformAdmin,
		Status:       models.UserStatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&u).Error; err != nil {
		lg.Warnw("failed to seed default admin", "error", err)
		return
	}
	lg.Infow("seeded default admin", "email", adminEmail)
}
