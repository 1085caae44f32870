package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	S3      S3Config
	Log     LogConfig
	CORS    CORSConfig
	Email   EmailConfig
	Signing SigningConfig
}

// EmailConfig holds email delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	FrontendURL string `mapstructure:"frontend_url"`
}

// SigningConfig holds signing-workflow settings.
type SigningConfig struct {
	// LinkTTL is how long a recipient link stays valid after it is sent.
	LinkTTL time.Duration `mapstructure:"link_ttl"`
	// FontsDir is the directory of bundled signature fonts (<name>.ttf).
	FontsDir string `mapstructure:"fonts_dir"`
	// RemoteFontURL is a URL template with one %s for the font name.
	// Empty disables remote font fetching.
	RemoteFontURL     string        `mapstructure:"remote_font_url"`
	RemoteFontTimeout time.Duration `mapstructure:"remote_font_timeout"`
	MaxFileSizeMB     int64         `mapstructure:"max_file_size_mb"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
	// MaxLifetime recycles pooled connections; zero keeps them forever.
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds the settings used to verify owner bearer tokens.
// Tokens are issued by the identity service; this service only verifies them.
type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the SIGNET_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIGNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "signet")
	v.SetDefault("db.password", "signet_secret")
	v.SetDefault("db.name", "signet_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)
	v.SetDefault("db.max_lifetime", "30m")

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "signet-identity")
	v.SetDefault("jwt.audience", "access")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "signet-documents")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 900)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@signet.dev")
	v.SetDefault("email.from_name", "Signet")
	v.SetDefault("email.frontend_url", "http://localhost:3000")

	// Signing defaults
	v.SetDefault("signing.link_ttl", "168h")
	v.SetDefault("signing.fonts_dir", "assets/fonts")
	v.SetDefault("signing.remote_font_url", "")
	v.SetDefault("signing.remote_font_timeout", "5s")
	v.SetDefault("signing.max_file_size_mb", 25)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                 "SIGNET_SERVER_PORT",
		"server.read_timeout":         "SIGNET_SERVER_READ_TIMEOUT",
		"server.write_timeout":        "SIGNET_SERVER_WRITE_TIMEOUT",
		"server.environment":          "SIGNET_SERVER_ENVIRONMENT",
		"db.host":                     "SIGNET_DB_HOST",
		"db.port":                     "SIGNET_DB_PORT",
		"db.user":                     "SIGNET_DB_USER",
		"db.password":                 "SIGNET_DB_PASSWORD",
		"db.name":                     "SIGNET_DB_NAME",
		"db.sslmode":                  "SIGNET_DB_SSLMODE",
		"db.max_open":                 "SIGNET_DB_MAX_OPEN",
		"db.max_idle":                 "SIGNET_DB_MAX_IDLE",
		"db.max_lifetime":             "SIGNET_DB_MAX_LIFETIME",
		"jwt.secret":                  "SIGNET_JWT_SECRET",
		"jwt.issuer":                  "SIGNET_JWT_ISSUER",
		"jwt.audience":                "SIGNET_JWT_AUDIENCE",
		"s3.region":                   "SIGNET_S3_REGION",
		"s3.bucket":                   "SIGNET_S3_BUCKET",
		"s3.endpoint":                 "SIGNET_S3_ENDPOINT",
		"s3.access_key":               "SIGNET_S3_ACCESS_KEY",
		"s3.secret_key":               "SIGNET_S3_SECRET_KEY",
		"s3.presign_expiry":           "SIGNET_S3_PRESIGN_EXPIRY",
		"log.level":                   "SIGNET_LOG_LEVEL",
		"log.format":                  "SIGNET_LOG_FORMAT",
		"cors.allowed_origins":        "SIGNET_CORS_ALLOWED_ORIGINS",
		"email.provider":              "SIGNET_EMAIL_PROVIDER",
		"email.region":                "SIGNET_EMAIL_REGION",
		"email.from_address":          "SIGNET_EMAIL_FROM_ADDRESS",
		"email.from_name":             "SIGNET_EMAIL_FROM_NAME",
		"email.frontend_url":          "SIGNET_EMAIL_FRONTEND_URL",
		"signing.link_ttl":            "SIGNET_SIGNING_LINK_TTL",
		"signing.fonts_dir":           "SIGNET_SIGNING_FONTS_DIR",
		"signing.remote_font_url":     "SIGNET_SIGNING_REMOTE_FONT_URL",
		"signing.remote_font_timeout": "SIGNET_SIGNING_REMOTE_FONT_TIMEOUT",
		"signing.max_file_size_mb":    "SIGNET_SIGNING_MAX_FILE_SIZE_MB",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if SIGNET_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SIGNET_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:        v.GetString("db.host"),
		Port:        v.GetInt("db.port"),
		User:        v.GetString("db.user"),
		Password:    v.GetString("db.password"),
		Name:        v.GetString("db.name"),
		SSLMode:     v.GetString("db.sslmode"),
		MaxOpen:     v.GetInt("db.max_open"),
		MaxIdle:     v.GetInt("db.max_idle"),
		MaxLifetime: v.GetDuration("db.max_lifetime"),
	}
	cfg.JWT = JWTConfig{
		Secret:   v.GetString("jwt.secret"),
		Issuer:   v.GetString("jwt.issuer"),
		Audience: v.GetString("jwt.audience"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		FrontendURL: v.GetString("email.frontend_url"),
	}

	cfg.Signing = SigningConfig{
		LinkTTL:           v.GetDuration("signing.link_ttl"),
		FontsDir:          v.GetString("signing.fonts_dir"),
		RemoteFontURL:     v.GetString("signing.remote_font_url"),
		RemoteFontTimeout: v.GetDuration("signing.remote_font_timeout"),
		MaxFileSizeMB:     v.GetInt64("signing.max_file_size_mb"),
	}
	if cfg.Signing.LinkTTL <= 0 {
		return nil, fmt.Errorf("signing.link_ttl must be positive, got %s", cfg.Signing.LinkTTL)
	}

	return cfg, nil
}
