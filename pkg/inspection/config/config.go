package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"

	defaultMaxUploadBytes = 16 << 20
)

// Config holds the process settings, read from the environment (and an
// optional .env file).
type Config struct {
	HTTPAddr       string
	DBDriver       string
	DBDSN          string
	UploadDir      string
	SessionSecret  string
	GeneratedKey   bool
	CookieSecure   bool
	OracleURL      string
	OracleTimeout  time.Duration
	PendingTTL     time.Duration
	MaxUploadBytes int64
	SweepSchedule  string
	SweepGrace     time.Duration
	LogLevel       string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from any lookup function, so tests don't have to
// touch the process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		HTTPAddr:      get("HTTP_ADDR", ":1337"),
		DBDriver:      strings.ToLower(get("DB_DRIVER", DriverSQLite)),
		UploadDir:     get("UPLOAD_DIR", "static/uploads"),
		SessionSecret: get("SESSION_SECRET", ""),
		OracleURL:     get("ORACLE_URL", ""),
		SweepSchedule: get("BLOB_SWEEP_SCHEDULE", ""),
		LogLevel:      strings.ToLower(get("LOG_LEVEL", "info")),
	}

	var errs []error
	parseDuration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(get(key, def))
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, get(key, def)))
			return 0
		}
		return d
	}
	cfg.OracleTimeout = parseDuration("ORACLE_TIMEOUT", "10s")
	cfg.PendingTTL = parseDuration("PENDING_TTL", "30m")
	cfg.SweepGrace = parseDuration("BLOB_SWEEP_GRACE", "24h")

	maxBytes, err := strconv.ParseInt(get("MAX_UPLOAD_BYTES", strconv.Itoa(defaultMaxUploadBytes)), 10, 64)
	if err != nil || maxBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES: invalid size %q", getenv("MAX_UPLOAD_BYTES")))
	}
	cfg.MaxUploadBytes = maxBytes

	secure, err := strconv.ParseBool(get("COOKIE_SECURE", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("COOKIE_SECURE: %w", err))
	}
	cfg.CookieSecure = secure

	dsn, err := buildDSN(cfg.DBDriver, get)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.DBDSN = dsn

	if cfg.OracleURL != "" {
		if _, err := url.ParseRequestURI(cfg.OracleURL); err != nil {
			errs = append(errs, fmt.Errorf("ORACLE_URL: %w", err))
		}
	}

	// The sweep must never reach a blob that is still waiting in staging.
	if cfg.SweepGrace > 0 && cfg.PendingTTL > 0 && cfg.SweepGrace <= cfg.PendingTTL {
		errs = append(errs, fmt.Errorf("BLOB_SWEEP_GRACE (%s) must exceed PENDING_TTL (%s)", cfg.SweepGrace, cfg.PendingTTL))
	}

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			errs = append(errs, fmt.Errorf("SESSION_SECRET: %w", err))
		}
		cfg.SessionSecret = secret
		cfg.GeneratedKey = true
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func buildDSN(driver string, get func(key, def string) string) (string, error) {
	if dsn := get("DB_DSN", ""); dsn != "" {
		return dsn, nil
	}
	switch driver {
	case DriverSQLite:
		return "defects.db", nil
	case DriverPostgres:
		host := get("DB_HOSTNAME", "")
		user := get("DB_USERNAME", "")
		dbname := get("DB_DBNAME", "")
		if host == "" || user == "" || dbname == "" {
			return "", fmt.Errorf("missing DB env vars; need DB_HOSTNAME, DB_USERNAME, DB_DBNAME")
		}
		u := &url.URL{
			Scheme: "postgres",
			Host:   host,
			Path:   dbname,
			User:   url.UserPassword(user, get("DB_PASSWORD", "")),
		}
		q := u.Query()
		if schema := get("DB_SCHEMA", ""); schema != "" {
			q.Set("search_path", schema)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	case DriverMySQL:
		host := get("DB_HOSTNAME", "localhost:3306")
		dbname := get("DB_DBNAME", "")
		if dbname == "" {
			return "", fmt.Errorf("missing DB env vars; need DB_DBNAME")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4&loc=Local",
			get("DB_USERNAME", "root"), get("DB_PASSWORD", ""), host, dbname), nil
	default:
		return "", fmt.Errorf("DB_DRIVER: unsupported driver %q", driver)
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
