package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Photo provider (import/export integration)
	PhotoProvider            string // currently only "googlephotos"
	GoogleClientID           string
	GoogleClientSecret       string
	GooglePickerBaseURL      string // overridable for testing against a stub
	GoogleLibraryBaseURL     string
	ImportPollInterval       time.Duration
	ImportPollMaxAttempts    int
	ImportDownloadConcurrent int

	// Ingestion
	UploadMaxFileSize   int64
	IngestWriteParallel int
	DeleteListPageSize  int32

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string        // Optional: for S3-compatible services
	S3PresignExpiry time.Duration // Expiry for signed photo URLs
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "PhotoVault"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envString("APP_URL", "http://localhost:8090"),
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/photovault.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		// Photo provider
		PhotoProvider:            envString("PHOTO_PROVIDER", "googlephotos"),
		GoogleClientID:           envString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:       envString("GOOGLE_CLIENT_SECRET", ""),
		GooglePickerBaseURL:      envString("GOOGLE_PICKER_BASE_URL", "https://photospicker.googleapis.com/v1"),
		GoogleLibraryBaseURL:     envString("GOOGLE_LIBRARY_BASE_URL", "https://photoslibrary.googleapis.com/v1"),
		ImportPollInterval:       envDuration("IMPORT_POLL_INTERVAL", 5*time.Second),
		ImportPollMaxAttempts:    envInt("IMPORT_POLL_MAX_ATTEMPTS", 60),
		ImportDownloadConcurrent: envInt("IMPORT_DOWNLOAD_CONCURRENT", 4),

		// Ingestion
		UploadMaxFileSize:   envInt64("UPLOAD_MAX_FILE_SIZE", 25<<20), // 25MB per file
		IngestWriteParallel: envInt("INGEST_WRITE_PARALLEL", 4),
		DeleteListPageSize:  int32(envInt("DELETE_LIST_PAGE_SIZE", 500)),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage (S3-compatible - required, photos live here)
		S3Region:        envRequired("S3_REGION"),
		S3Bucket:        envRequired("S3_BUCKET"),
		S3AccessKey:     envRequired("S3_ACCESS_KEY"),
		S3SecretKey:     envRequired("S3_SECRET_KEY"),
		S3Endpoint:      envString("S3_ENDPOINT", ""),                  // Optional: for non-AWS providers
		S3PresignExpiry: envDuration("S3_PRESIGN_EXPIRY", 1*time.Hour), // signed photo URL lifetime
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production
// deployments. Development allows the provider credentials to be absent so the
// local upload path works without a Google Cloud project.
func validateProduction(cfg *Config) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		slog.Error("production deployment requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET",
			"hint", "set APP_ENV=development for local testing without provider import/export")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName: c.AppName,
		AppEnv:  c.AppEnv,
		AppURL:  c.AppURL,
		Port:    c.Port,

		PhotoProvider:  c.PhotoProvider,
		GoogleClientID: c.GoogleClientID,

		S3Endpoint: c.S3Endpoint,
	}
}
