package common

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	DBDriver    string
	DatabaseURL string
	RedisURL    string
	CacheDir    string

	JWTSecret     string
	TokenTTL      time.Duration
	SessionSecret string

	OTPTTL          time.Duration
	OTPMaxPerWindow int
	OTPWindow       time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	ClientURL          string
	Domain             string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

// LoadConfig reads .env (if present) and then the process environment.
func LoadConfig() *Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "release"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CacheDir:    getEnv("CACHE_DIR", "cache"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenTTL:      getDuration("TOKEN_TTL", 24*time.Hour),
		SessionSecret: os.Getenv("SESSION_SECRET"),

		OTPTTL:          getDuration("OTP_TTL", 5*time.Minute),
		OTPMaxPerWindow: getInt("OTP_MAX_PER_WINDOW", 5),
		OTPWindow:       getDuration("OTP_WINDOW", 15*time.Minute),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  getEnv("GOOGLE_CALLBACK_URL", "http://localhost:8080/api/auth/google/callback"),
		ClientURL:          strings.TrimSuffix(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),
		Domain:             strings.TrimSuffix(getEnv("DOMAIN", "http://localhost:8080"), "/"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable not set"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET environment variable not set"))
	}
	return errors.Join(errs...)
}

// GoogleEnabled is true when OAuth client credentials are configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
