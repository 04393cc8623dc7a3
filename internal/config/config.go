package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"

	BlobLocal = "local"
	BlobS3    = "s3"
)

type Config struct {
	ListenAddr string
	ConfigFile string

	LogLevel  string
	LogFormat string

	DBDriver          string
	DBDSN             string
	DBPath            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	JWTSecret     string
	TokenTTLHours int

	TrustProxy         bool
	CORSAllowedOrigins []string
	LoginRatePerMinute int

	PasswordMinLength int
	PasswordMaxLength int

	BlobBackend    string
	BlobDir        string
	UploadMaxBytes int64

	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int

	BootstrapAdminName     string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load reads configuration from the environment. When CONFIG_FILE names a
// YAML document its keys act as defaults beneath the environment.
func Load() (Config, error) {
	src := source{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	cfg := Config{
		ListenAddr:               src.env("LISTEN_ADDR", ":8080"),
		ConfigFile:               strings.TrimSpace(os.Getenv("CONFIG_FILE")),
		LogLevel:                 strings.ToLower(src.env("LOG_LEVEL", "info")),
		LogFormat:                strings.ToLower(src.env("LOG_FORMAT", "text")),
		DBDriver:                 strings.ToLower(src.env("APP_DB_DRIVER", DriverSQLite)),
		DBDSN:                    src.env("APP_DB_DSN", ""),
		DBPath:                   src.env("APP_DB_PATH", "./data/evidence.db"),
		DBMaxOpenConns:           src.envInt("APP_DB_MAX_OPEN_CONNS", 4),
		DBMaxIdleConns:           src.envInt("APP_DB_MAX_IDLE_CONNS", 2),
		DBConnMaxLifetime:        time.Duration(src.envInt("APP_DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		JWTSecret:                src.env("JWT_SECRET", ""),
		TokenTTLHours:            src.envInt("TOKEN_TTL_HOURS", 8),
		TrustProxy:               src.envBool("TRUST_PROXY", false),
		CORSAllowedOrigins:       src.envCSV("CORS_ALLOWED_ORIGINS"),
		LoginRatePerMinute:       src.envInt("LOGIN_RATE_LIMIT_PER_MIN", 20),
		PasswordMinLength:        src.envInt("PASSWORD_MIN_LENGTH", 8),
		PasswordMaxLength:        src.envInt("PASSWORD_MAX_LENGTH", 128),
		BlobBackend:              strings.ToLower(src.env("BLOB_BACKEND", BlobLocal)),
		BlobDir:                  src.env("BLOB_DIR", "./data/uploads"),
		UploadMaxBytes:           int64(src.envInt("UPLOAD_MAX_MB", 100)) << 20,
		S3Bucket:                 src.env("S3_BUCKET", ""),
		S3Prefix:                 src.env("S3_PREFIX", "evidence/"),
		S3Region:                 src.env("S3_REGION", "us-east-1"),
		S3Endpoint:               src.env("S3_ENDPOINT", ""),
		S3AccessKey:              src.env("S3_ACCESS_KEY", ""),
		S3SecretKey:              src.env("S3_SECRET_KEY", ""),
		S3UsePathStyle:           src.envBool("S3_USE_PATH_STYLE", true),
		HTTPReadTimeoutSec:       src.envInt("HTTP_READ_TIMEOUT_SEC", 60),
		HTTPReadHeaderTimeoutSec: src.envInt("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		HTTPWriteTimeoutSec:      src.envInt("HTTP_WRITE_TIMEOUT_SEC", 120),
		HTTPIdleTimeoutSec:       src.envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		BootstrapAdminName:       src.env("BOOTSTRAP_ADMIN_NAME", "System Administrator"),
		BootstrapAdminEmail:      src.env("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword:   src.env("BOOTSTRAP_ADMIN_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DBMaxOpenConns <= 0 || c.DBMaxIdleConns < 0 {
		return fmt.Errorf("invalid DB pool config")
	}
	switch c.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" && strings.TrimSpace(c.DBDSN) == "" {
			return fmt.Errorf("APP_DB_PATH is required for the sqlite driver")
		}
	case DriverMySQL, DriverPostgres:
		if strings.TrimSpace(c.DBDSN) == "" {
			return fmt.Errorf("APP_DB_DSN is required for the %s driver", c.DBDriver)
		}
	default:
		return fmt.Errorf("APP_DB_DRIVER must be one of: sqlite, mysql, pgx")
	}
	if len(strings.TrimSpace(c.JWTSecret)) < 32 {
		return fmt.Errorf("JWT_SECRET must be set to a strong value (>=32 chars)")
	}
	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive")
	}
	if c.PasswordMinLength < 8 {
		return fmt.Errorf("password min length must be >= 8")
	}
	if c.PasswordMaxLength < c.PasswordMinLength {
		return fmt.Errorf("password max length must be >= min length")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_MB must be positive")
	}
	if c.LoginRatePerMinute <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_PER_MIN must be positive")
	}
	switch c.BlobBackend {
	case BlobLocal:
		if strings.TrimSpace(c.BlobDir) == "" {
			return fmt.Errorf("BLOB_DIR is required for the local blob backend")
		}
	case BlobS3:
		if strings.TrimSpace(c.S3Bucket) == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND=s3")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be one of: local, s3")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of: text, json")
	}
	return nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

type source struct {
	file map[string]string
}

func (s source) lookup(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return s.file[k]
}

func (s source) env(k, d string) string {
	if v := s.lookup(k); v != "" {
		return v
	}
	return d
}

func (s source) envInt(k string, d int) int {
	v := s.lookup(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func (s source) envBool(k string, d bool) bool {
	v := s.lookup(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func (s source) envCSV(k string) []string {
	v := strings.TrimSpace(s.lookup(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
