// Package database opens the GORM connection used by the catalog store.
package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	connMaxLifetime     = 30 * time.Minute
	slowQueryThreshold  = 200 * time.Millisecond
)

// ErrUnsupportedDriver is returned for driver names other than sqlite, mysql and postgres.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Config describes how to reach the catalog database.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	// LogSQL logs every statement instead of only slow queries and errors.
	LogSQL bool
}

// Open connects to the configured database. SQLite files get their parent
// directory created and foreign key enforcement switched on.
func Open(cfg Config, logger *log.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = log.Default()
	}

	dialector, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if cfg.LogSQL {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newDialector(cfg Config) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(cfg.DSN)

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "":
		resolved, err := sqliteDSN(dsn)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(resolved), nil
	case DriverMySQL:
		if dsn == "" {
			return nil, errors.New("mysql requires a DSN")
		}
		return mysql.Open(dsn), nil
	case DriverPostgres, "postgresql":
		if dsn == "" {
			return nil, errors.New("postgres requires a DSN")
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

func sqliteDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("sqlite requires a database path")
	}

	path := dsn
	query := ""
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		path, query = dsn[:i], dsn[i+1:]
	}

	memory := path == ":memory:" || strings.Contains(query, "mode=memory")
	if !memory {
		file := strings.TrimPrefix(path, "file:")
		if dir := filepath.Dir(file); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	if !strings.Contains(query, "foreign_keys") {
		if query != "" {
			query += "&"
		}
		query += "_pragma=foreign_keys(1)"
	}
	if !strings.Contains(query, "busy_timeout") {
		query += "&_pragma=busy_timeout(5000)"
	}

	return path + "?" + query, nil
}
