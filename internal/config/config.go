package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	Session    SessionConfig
	Processing ProcessingConfig
	Providers  ProvidersConfig
	S3         S3Config
	Email      EmailConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Environment    string        `mapstructure:"environment"`
	MaxUploadMB    int64         `mapstructure:"max_upload_mb"`
	PublicDir      string        `mapstructure:"public_dir"`
	ShutdownPeriod time.Duration `mapstructure:"shutdown_period"`
}

// MaxUploadBytes returns the upload limit in bytes.
func (s *ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig locates the local working directories.
type StorageConfig struct {
	TempDir string `mapstructure:"temp_dir"`
}

// UploadDir is where raw uploads are saved.
func (s *StorageConfig) UploadDir() string {
	return filepath.Join(s.TempDir, "uploads")
}

// SessionsDir is the parent of every per-session work directory.
func (s *StorageConfig) SessionsDir() string {
	return filepath.Join(s.TempDir, "sessions")
}

// SessionConfig holds session retention settings.
type SessionConfig struct {
	Retention    time.Duration `mapstructure:"retention"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

// ProcessingConfig holds retry and concurrency settings.
type ProcessingConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
	Workers    int `mapstructure:"workers"`
}

// ProviderConfig holds settings for one OpenAI-compatible backend.
type ProviderConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// Timeout returns the request timeout, or zero to use the provider default.
func (p *ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// ProvidersConfig holds provider selection settings.
type ProvidersConfig struct {
	Preferred  string         `mapstructure:"preferred"`
	EnableMock bool           `mapstructure:"enable_mock"`
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	LMStudio   ProviderConfig `mapstructure:"lmstudio"`
}

// S3Config holds settings for mirroring result archives to S3.
type S3Config struct {
	Enabled       bool   `mapstructure:"enabled"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Prefix        string `mapstructure:"prefix"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// EmailConfig holds completion notification settings.
type EmailConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	To          []string `mapstructure:"to"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from a .env file, if present, and environment
// variables with the INVOICER_ prefix.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("INVOICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":3001")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 100)
	v.SetDefault("server.public_dir", "public")
	v.SetDefault("server.shutdown_period", "10s")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("storage.temp_dir", filepath.Join(os.TempDir(), "invoice-renamer"))

	v.SetDefault("session.retention", "1h")
	v.SetDefault("session.reap_interval", "5m")

	v.SetDefault("processing.max_retries", 2)
	v.SetDefault("processing.workers", 1)

	// Provider defaults
	v.SetDefault("providers.preferred", "auto")
	v.SetDefault("providers.enable_mock", false)
	v.SetDefault("providers.openrouter.api_key", "")
	v.SetDefault("providers.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("providers.openrouter.model", "qwen/qwen3-vl-235b-a22b-instruct")
	v.SetDefault("providers.openrouter.timeout_secs", 60)
	v.SetDefault("providers.lmstudio.base_url", "http://localhost:1234/v1")
	v.SetDefault("providers.lmstudio.model", "local-model")
	v.SetDefault("providers.lmstudio.timeout_secs", 60)

	// S3 defaults
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "ap-southeast-1")
	v.SetDefault("s3.bucket", "invoice-renamer-archives")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "archives")
	v.SetDefault("s3.presign_expiry", 3600)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "ap-southeast-1")
	v.SetDefault("email.from_address", "noreply@invoice-renamer.local")
	v.SetDefault("email.from_name", "Invoice Renamer")
	v.SetDefault("email.to", "")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                       "INVOICER_SERVER_PORT",
		"server.read_timeout":               "INVOICER_SERVER_READ_TIMEOUT",
		"server.write_timeout":              "INVOICER_SERVER_WRITE_TIMEOUT",
		"server.environment":                "INVOICER_SERVER_ENVIRONMENT",
		"server.max_upload_mb":              "INVOICER_SERVER_MAX_UPLOAD_MB",
		"server.public_dir":                 "INVOICER_SERVER_PUBLIC_DIR",
		"server.shutdown_period":            "INVOICER_SERVER_SHUTDOWN_PERIOD",
		"log.level":                         "INVOICER_LOG_LEVEL",
		"log.format":                        "INVOICER_LOG_FORMAT",
		"storage.temp_dir":                  "INVOICER_STORAGE_TEMP_DIR",
		"session.retention":                 "INVOICER_SESSION_RETENTION",
		"session.reap_interval":             "INVOICER_SESSION_REAP_INTERVAL",
		"processing.max_retries":            "INVOICER_PROCESSING_MAX_RETRIES",
		"processing.workers":                "INVOICER_PROCESSING_WORKERS",
		"providers.preferred":               "INVOICER_PROVIDERS_PREFERRED",
		"providers.enable_mock":             "INVOICER_PROVIDERS_ENABLE_MOCK",
		"providers.openrouter.api_key":      "INVOICER_PROVIDERS_OPENROUTER_API_KEY",
		"providers.openrouter.base_url":     "INVOICER_PROVIDERS_OPENROUTER_BASE_URL",
		"providers.openrouter.model":        "INVOICER_PROVIDERS_OPENROUTER_MODEL",
		"providers.openrouter.timeout_secs": "INVOICER_PROVIDERS_OPENROUTER_TIMEOUT_SECS",
		"providers.lmstudio.base_url":       "INVOICER_PROVIDERS_LMSTUDIO_BASE_URL",
		"providers.lmstudio.model":          "INVOICER_PROVIDERS_LMSTUDIO_MODEL",
		"providers.lmstudio.timeout_secs":   "INVOICER_PROVIDERS_LMSTUDIO_TIMEOUT_SECS",
		"s3.enabled":                        "INVOICER_S3_ENABLED",
		"s3.region":                         "INVOICER_S3_REGION",
		"s3.bucket":                         "INVOICER_S3_BUCKET",
		"s3.endpoint":                       "INVOICER_S3_ENDPOINT",
		"s3.access_key":                     "INVOICER_S3_ACCESS_KEY",
		"s3.secret_key":                     "INVOICER_S3_SECRET_KEY",
		"s3.prefix":                         "INVOICER_S3_PREFIX",
		"s3.presign_expiry":                 "INVOICER_S3_PRESIGN_EXPIRY",
		"email.provider":                    "INVOICER_EMAIL_PROVIDER",
		"email.region":                      "INVOICER_EMAIL_REGION",
		"email.from_address":                "INVOICER_EMAIL_FROM_ADDRESS",
		"email.from_name":                   "INVOICER_EMAIL_FROM_NAME",
		"email.to":                          "INVOICER_EMAIL_TO",
		"cors.allowed_origins":              "INVOICER_CORS_ALLOWED_ORIGINS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// The OpenRouter key is commonly exported without the prefix.
	if key := v.GetString("providers.openrouter.api_key"); key == "" {
		v.Set("providers.openrouter.api_key", os.Getenv("OPENROUTER_API_KEY"))
	}

	// Hosting platforms set PORT. Use it if INVOICER_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("INVOICER_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:           serverPort,
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
		Environment:    v.GetString("server.environment"),
		MaxUploadMB:    v.GetInt64("server.max_upload_mb"),
		PublicDir:      v.GetString("server.public_dir"),
		ShutdownPeriod: v.GetDuration("server.shutdown_period"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Storage = StorageConfig{
		TempDir: v.GetString("storage.temp_dir"),
	}
	cfg.Session = SessionConfig{
		Retention:    v.GetDuration("session.retention"),
		ReapInterval: v.GetDuration("session.reap_interval"),
	}
	cfg.Processing = ProcessingConfig{
		MaxRetries: v.GetInt("processing.max_retries"),
		Workers:    v.GetInt("processing.workers"),
	}
	cfg.Providers = ProvidersConfig{
		Preferred:  strings.ToLower(v.GetString("providers.preferred")),
		EnableMock: v.GetBool("providers.enable_mock"),
		OpenRouter: ProviderConfig{
			APIKey:      v.GetString("providers.openrouter.api_key"),
			BaseURL:     v.GetString("providers.openrouter.base_url"),
			Model:       v.GetString("providers.openrouter.model"),
			TimeoutSecs: v.GetInt("providers.openrouter.timeout_secs"),
		},
		LMStudio: ProviderConfig{
			BaseURL:     v.GetString("providers.lmstudio.base_url"),
			Model:       v.GetString("providers.lmstudio.model"),
			TimeoutSecs: v.GetInt("providers.lmstudio.timeout_secs"),
		},
	}
	cfg.S3 = S3Config{
		Enabled:       v.GetBool("s3.enabled"),
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		Prefix:        v.GetString("s3.prefix"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		To:          splitList(v.GetString("email.to")),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}

	return cfg, nil
}

// splitList parses a comma-separated string, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
