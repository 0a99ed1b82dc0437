package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var allowedExtensions = []string{
	".mp3",
	".m4a",
	".aac",
	".wav",
	".flac",
	".ogg",
}

const (
	defaultDriver            = "sqlite"
	defaultSQLiteFile        = "data/catalog.db"
	defaultMaxOpenConns      = 10
	defaultMaxIdleConns      = 5
	defaultRefreshDebounceMS = 500
	defaultEnvFile           = ".env"
)

var knownDrivers = map[string]struct{}{
	"sqlite":   {},
	"mysql":    {},
	"postgres": {},
}

// AllowedExtensions returns the list of importable audio file extensions (lowercase).
func AllowedExtensions() []string {
	result := make([]string, len(allowedExtensions))
	copy(result, allowedExtensions)
	return result
}

// LoadEnvFile loads variables from CATALOG_ENV_FILE, or from .env in the
// working directory when unset. Variables already present in the
// environment are kept. A missing default .env is not an error.
func LoadEnvFile() error {
	path := strings.TrimSpace(os.Getenv("CATALOG_ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	path = expandHome(path)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ResolveMediaRoot returns the directory holding the audio and image assets
// referenced by the catalog. The directory is created when it does not yet exist.
func ResolveMediaRoot() (string, error) {
	dir := strings.TrimSpace(os.Getenv("CATALOG_MEDIA_DIR"))
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(cwd, "media")
	}

	abs, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}

	return abs, nil
}

// RefreshDebounce returns the duration to wait before re-importing the media
// directory after file-system change events.
func RefreshDebounce() time.Duration {
	value := strings.TrimSpace(os.Getenv("CATALOG_REFRESH_DEBOUNCE_MS"))
	if value == "" {
		return time.Duration(defaultRefreshDebounceMS) * time.Millisecond
	}

	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return time.Duration(defaultRefreshDebounceMS) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

// Database describes the catalog database connection.
type Database struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	LogSQL       bool
}

type fileConfig struct {
	Database struct {
		Driver       string `yaml:"driver"`
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
		LogSQL       *bool  `yaml:"log_sql"`
	} `yaml:"database"`
}

// ResolveDatabase returns the database settings after applying defaults,
// YAML configuration (when CATALOG_CONFIG is set), and environment variable
// overrides.
func ResolveDatabase() (Database, error) {
	db := Database{
		Driver:       defaultDriver,
		MaxOpenConns: defaultMaxOpenConns,
		MaxIdleConns: defaultMaxIdleConns,
	}

	configPath := strings.TrimSpace(os.Getenv("CATALOG_CONFIG"))
	if configPath != "" {
		resolved, err := filepath.Abs(expandHome(configPath))
		if err != nil {
			return Database{}, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return Database{}, err
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Database{}, fmt.Errorf("parse %s: %w", resolved, err)
		}
		if value := strings.TrimSpace(file.Database.Driver); value != "" {
			db.Driver = value
		}
		if value := strings.TrimSpace(file.Database.DSN); value != "" {
			db.DSN = value
		}
		if file.Database.MaxOpenConns > 0 {
			db.MaxOpenConns = file.Database.MaxOpenConns
		}
		if file.Database.MaxIdleConns > 0 {
			db.MaxIdleConns = file.Database.MaxIdleConns
		}
		if file.Database.LogSQL != nil {
			db.LogSQL = *file.Database.LogSQL
		}
	}

	if value := strings.TrimSpace(os.Getenv("CATALOG_DB_DRIVER")); value != "" {
		db.Driver = value
	}
	if value := strings.TrimSpace(os.Getenv("CATALOG_DB_DSN")); value != "" {
		db.DSN = value
	}
	if n, ok := positiveEnv("CATALOG_DB_MAX_OPEN_CONNS"); ok {
		db.MaxOpenConns = n
	}
	if n, ok := positiveEnv("CATALOG_DB_MAX_IDLE_CONNS"); ok {
		db.MaxIdleConns = n
	}
	if value := strings.TrimSpace(os.Getenv("CATALOG_LOG_SQL")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Database{}, fmt.Errorf("CATALOG_LOG_SQL: %w", err)
		}
		db.LogSQL = enabled
	}

	db.Driver = strings.ToLower(db.Driver)
	if _, ok := knownDrivers[db.Driver]; !ok {
		return Database{}, fmt.Errorf("unknown database driver %q", db.Driver)
	}

	if db.DSN == "" {
		if db.Driver != defaultDriver {
			return Database{}, fmt.Errorf("CATALOG_DB_DSN is required for %s", db.Driver)
		}
		cwd, err := os.Getwd()
		if err != nil {
			return Database{}, err
		}
		db.DSN = filepath.Join(cwd, filepath.FromSlash(defaultSQLiteFile))
	} else if db.Driver == defaultDriver {
		db.DSN = expandHome(db.DSN)
	}

	return db, nil
}

func positiveEnv(name string) (int, bool) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
