package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port          string
	PublicBaseURL string

	// Backend selection
	DataBackend string

	// Memory backend
	SeedFile string

	// SQLite backend
	SQLiteDBPath string

	// Firebase (firestore backend and token auth)
	FirebaseCredentialsFile string
	FirebaseProjectID       string
	FirestoreCollection     string
	AuthMode                string

	// AMQP change events
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string
	AMQPExportQueue string

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string
	ExportInterval      time.Duration

	// Presentation
	DefaultGroupBy  string
	ViewCacheSize   int
	ViewCacheTTL    time.Duration
	InspirationFile string

	// Logging
	LogLevel  string
	LogFormat string
}

const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"

	AuthHeader   = "header"
	AuthFirebase = "firebase"
)

var (
	validBackends  = []string{BackendMemory, BackendSQLite, BackendFirestore}
	validAuthModes = []string{AuthHeader, AuthFirebase}
	validGroupKeys = []string{"recipient", "category", "event"}
	validFormats   = []string{"text", "json"}
)

func Load() *Config {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		Port:          port,
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:"+port),

		DataBackend: getEnv("DATA_BACKEND", BackendMemory),

		SeedFile:     getEnv("SEED_FILE", "./data/seed_gifts.json"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/registry.db"),

		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirestoreCollection:     getEnv("FIRESTORE_COLLECTION", "gifts"),
		AuthMode:                getEnv("AUTH_MODE", AuthHeader),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "gift_events"),
		AMQPQueue:       getEnv("AMQP_QUEUE", ""),
		AMQPExportQueue: getEnv("AMQP_EXPORT_QUEUE", "gift_export"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Registry"),
		ExportInterval:      getEnvDuration("EXPORT_INTERVAL", 10*time.Second),

		DefaultGroupBy:  strings.ToLower(getEnv("DEFAULT_GROUP_BY", "recipient")),
		ViewCacheSize:   getEnvInt("VIEW_CACHE_SIZE", 64),
		ViewCacheTTL:    getEnvDuration("VIEW_CACHE_TTL", 5*time.Minute),
		InspirationFile: getEnv("INSPIRATION_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.PublicBaseURL != "" {
		if u, err := url.Parse(c.PublicBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid public base URL '%s': must be an absolute http(s) URL", c.PublicBaseURL))
		}
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if !slices.Contains(validAuthModes, c.AuthMode) {
		errors = append(errors, fmt.Sprintf("invalid auth mode '%s': must be one of %v", c.AuthMode, validAuthModes))
	}

	if c.DataBackend == BackendFirestore || c.AuthMode == AuthFirebase {
		if c.FirebaseProjectID == "" && c.FirebaseCredentialsFile == "" {
			errors = append(errors, "either FIREBASE_PROJECT_ID or FIREBASE_CREDENTIALS_FILE must be provided for firebase")
		}
		if c.FirebaseCredentialsFile != "" {
			if _, err := os.Stat(c.FirebaseCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Firebase credentials file does not exist: %s", c.FirebaseCredentialsFile))
			}
		}
	}
	if c.DataBackend == BackendFirestore && c.FirestoreCollection == "" {
		errors = append(errors, "Firestore collection cannot be empty when using firestore backend")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if !slices.Contains(validGroupKeys, c.DefaultGroupBy) {
		errors = append(errors, fmt.Sprintf("invalid default group by '%s': must be one of %v", c.DefaultGroupBy, validGroupKeys))
	}

	if c.ViewCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid view cache size %d: must be at least 1", c.ViewCacheSize))
	}
	if c.ViewCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid view cache TTL %v: must be positive", c.ViewCacheTTL))
	}

	if c.InspirationFile != "" {
		if _, err := os.Stat(c.InspirationFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("inspiration file does not exist: %s", c.InspirationFile))
		}
	}

	if !slices.Contains(validFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ExportEnabled reports whether a spreadsheet is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
