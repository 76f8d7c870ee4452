package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/venue-tournaments/utils"
	"github.com/joho/godotenv"
)

// MemoryDatabaseURL включает хранилище в памяти вместо Postgres.
const MemoryDatabaseURL = "memory://"

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL string
	AutoMigrate bool
	ServerPort  int

	JWTSecretKey      string
	JWTTTL            time.Duration
	AdminEmail        string
	AdminPasswordHash string

	GatewayTimeout    time.Duration
	RefreshInterval   time.Duration
	DefaultCapacity   int
	ReducedCapacity   int
	ReducedGames      []string
	RegistrationRate  int
	CORSAllowedOrigin []string

	OrderWhatsappNumber string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

var defaultReducedGames = []string{"TEKKEN 7", "Naruto Storm 4", "Mortal Kombat 11"}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load() // отсутствие .env не ошибка

	cfg := &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecretKey:        os.Getenv("JWT_SECRET_KEY"),
		AdminEmail:          strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPasswordHash:   os.Getenv("ADMIN_PASSWORD_HASH"),
		OrderWhatsappNumber: getEnvOrDefault("ORDER_WHATSAPP_NUMBER", "+244 950 949 098"),
		CORSAllowedOrigin:   utils.SplitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		R2AccountID:         os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:       os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:   os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:        os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:     os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}
	if cfg.AdminEmail == "" || cfg.AdminPasswordHash == "" {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD_HASH environment variables must be set")
	}

	var err error
	if cfg.ServerPort, err = intFromEnv("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}
	if cfg.AutoMigrate, err = boolFromEnv("AUTO_MIGRATE", false); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = durationFromEnv("JWT_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.GatewayTimeout, err = durationFromEnv("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = durationFromEnv("REFRESH_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DefaultCapacity, err = intFromEnv("DEFAULT_CAPACITY", 20); err != nil {
		return nil, err
	}
	if cfg.ReducedCapacity, err = intFromEnv("REDUCED_CAPACITY", 13); err != nil {
		return nil, err
	}
	if cfg.DefaultCapacity <= 0 || cfg.ReducedCapacity <= 0 {
		return nil, fmt.Errorf("tournament capacities must be positive, got %d and %d", cfg.DefaultCapacity, cfg.ReducedCapacity)
	}
	if cfg.RegistrationRate, err = intFromEnv("REGISTRATION_RATE_PER_MINUTE", 30); err != nil {
		return nil, err
	}

	cfg.ReducedGames = defaultReducedGames
	if raw, ok := os.LookupEnv("REDUCED_CAPACITY_GAMES"); ok {
		cfg.ReducedGames = utils.SplitList(raw)
	}

	return cfg, nil
}

func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == MemoryDatabaseURL
}

// R2Enabled reports whether every R2 credential is present.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intFromEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func boolFromEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return v, nil
}
