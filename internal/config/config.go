package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the process reads from the environment.
type Config struct {
	DatabaseURL string
	HTTPPort    string
	LogLevel    string

	JWTSecret string
	JWTTTL    time.Duration

	// Identity provider admin API.
	IDPBaseURL       string
	IDPRealm         string
	IDPClientID      string
	IDPAdminUsername string
	IDPAdminPassword string

	// Optional shared cache for the admin token. Empty means in-process only.
	RedisAddr     string
	RedisPassword string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		HTTPPort:         getenv("HTTP_PORT", "8080"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTTTL:           getduration("JWT_EXPIRES_IN", 24*time.Hour),
		IDPBaseURL:       getenv("IDP_BASE_URL", "http://localhost:8081"),
		IDPRealm:         getenv("IDP_REALM", "platform"),
		IDPClientID:      getenv("IDP_CLIENT_ID", "platform-client"),
		IDPAdminUsername: getenv("IDP_ADMIN_USERNAME", "admin"),
		IDPAdminPassword: os.Getenv("IDP_ADMIN_PASSWORD"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}
