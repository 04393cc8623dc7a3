package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"evidencevault/internal/config"
)

// Open connects to the database selected by cfg.DBDriver and returns the
// handle together with its dialect.
func Open(cfg config.Config) (*sql.DB, Dialect, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite, "":
		path := cfg.DBPath
		if strings.TrimSpace(cfg.DBDSN) != "" {
			path = cfg.DBDSN
		}
		conn, err := OpenSQLite(path, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
		return conn, DialectSQLite, err
	case config.DriverMySQL:
		conn, err := OpenMySQL(cfg.DBDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
		return conn, DialectMySQL, err
	case config.DriverPostgres:
		conn, err := openPool("pgx", cfg.DBDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
		return conn, DialectPostgres, err
	default:
		return nil, "", fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

func OpenSQLite(path string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite", path)
	return openPool("sqlite", dsn, maxOpen, maxIdle, maxLifetime)
}

// OpenMySQL forces parseTime and UTC so DATETIME columns scan into
// time.Time, and reports matched rather than changed rows for UPDATE.
func OpenMySQL(dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	return openPool("mysql", mc.FormatDSN(), maxOpen, maxIdle, maxLifetime)
}

func openPool(driver, dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
