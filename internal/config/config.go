package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все параметры запуска приложения.
type Config struct {
	Env               string
	HTTPPort          string
	DatabaseURL       string
	JWTSecret         string
	RefreshSecret     string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	ClassifierURL     string
	ClassifierTimeout time.Duration
	MediaStoragePath  string
	MaxUploadSizeMB   int64
	MigrationsPath    string
	AllowedOrigins    []string
	RateLimitLimit    int64
	RateLimitPeriod   time.Duration
}

// Load читает переменные окружения и возвращает готовую конфигурацию.
func Load() (*Config, error) {
	// Загружаем .env только если он существует, иначе используем системные переменные.
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("config: .env не найден, используем переменные окружения: %v", err)
	}

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:              env,
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		DatabaseURL:      getDatabaseURL(),
		ClassifierURL:    getEnv("CLASSIFIER_URL", "http://localhost:9000"),
		MediaStoragePath: getEnv("MEDIA_STORAGE_PATH", "./storage/media"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "./migrations"),
	}

	// Валидация JWT секретов
	jwtSecret := getEnv("JWT_SECRET", "")
	refreshSecret := getEnv("REFRESH_SECRET", "")

	if env == "production" {
		if len(jwtSecret) < 32 {
			return nil, fmt.Errorf("config: JWT_SECRET обязателен и должен быть не менее 32 символов в production")
		}
		if len(refreshSecret) < 32 {
			return nil, fmt.Errorf("config: REFRESH_SECRET обязателен и должен быть не менее 32 символов в production")
		}
	} else {
		if jwtSecret == "" {
			jwtSecret = "super-secret-development-only-change-in-production"
			log.Printf("config: WARNING - используется дефолтный JWT_SECRET, измените в production!")
		}
		if refreshSecret == "" {
			refreshSecret = "super-refresh-secret-development-only-change-in-production"
			log.Printf("config: WARNING - используется дефолтный REFRESH_SECRET, измените в production!")
		}
	}

	cfg.JWTSecret = jwtSecret
	cfg.RefreshSecret = refreshSecret

	cfg.AccessTokenTTL = getDurationEnv("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTokenTTL = getDurationEnv("REFRESH_TOKEN_TTL", 30*24*time.Hour)

	// Таймаут классификатора ограничивает приём вызова: истёк — берём запасной приоритет.
	cfg.ClassifierTimeout = getDurationEnv("CLASSIFIER_TIMEOUT", 3*time.Second)

	cfg.MaxUploadSizeMB = getInt64Env("MAX_UPLOAD_SIZE_MB", 10)

	originsStr := getEnv("CORS_ALLOWED_ORIGINS", "")
	if originsStr == "" {
		cfg.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	} else {
		for _, origin := range strings.Split(originsStr, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	cfg.RateLimitLimit = getInt64Env("RATE_LIMIT_LIMIT", 60)
	cfg.RateLimitPeriod = getDurationEnv("RATE_LIMIT_PERIOD", time.Minute)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL или POSTGRES_* переменные обязательны")
	}

	return cfg, nil
}

// getDatabaseURL возвращает DSN: напрямую из DATABASE_URL или собирает из частей.
func getDatabaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	host := getEnv("POSTGRES_HOST", "")
	if host == "" {
		return ""
	}

	user := getEnv("POSTGRES_USER", "postgres")
	password := os.Getenv("POSTGRES_PASSWORD")
	port := getEnv("POSTGRES_PORT", "5432")
	dbName := getEnv("POSTGRES_DB", "emergency")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgres",
		Host:   host + ":" + port,
		Path:   dbName,
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}

	q := u.Query()
	q.Set("sslmode", sslMode)
	u.RawQuery = q.Encode()

	return u.String()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: некорректное значение %s=%q, используем %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getInt64Env(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("config: некорректное значение %s=%q, используем %d", key, raw, fallback)
		return fallback
	}
	return v
}
