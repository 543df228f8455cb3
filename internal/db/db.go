// Package db opens the SQLite databases handlers persist into and runs their migrations.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goran-ethernal/ChainHound/pkg/config"
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB opens path with the default database settings.
func NewSQLiteDB(path string) (*sql.DB, error) {
	cfg := config.DatabaseConfig{Path: path}
	cfg.ApplyDefaults()

	return NewSQLiteDBFromConfig(cfg)
}

// NewSQLiteDBFromConfig opens the database described by cfg, creating its directory when missing.
// Journal mode, synchronous level, busy timeout and cache size are applied to every pooled
// connection through the DSN. The connection is verified before returning.
func NewSQLiteDBFromConfig(cfg config.DatabaseConfig) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	return db, nil
}

func dsn(cfg config.DatabaseConfig) string {
	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", cfg.JournalMode)
	params.Set("_synchronous", cfg.Synchronous)
	params.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout))
	params.Set("_cache_size", strconv.Itoa(cfg.CacheSize))

	return "file:" + cfg.Path + "?" + params.Encode()
}
