package lifeops

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCacheTableName        = "lifeops_cache"
	sqliteCacheOperationTimeout = 5 * time.Second
)

// SQLiteCache is the single-file embedded variant of the Postgres backend,
// for deployments without a database server.
type SQLiteCache struct {
	path      string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewSQLiteCache(path string) (Cache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	return &SQLiteCache{
		path:      path,
		tableName: sqliteCacheTableName,
		openDB:    sql.Open,
	}, nil
}

func (c *SQLiteCache) Get(key Key) (string, bool, error) {
	if c == nil {
		return "", false, nil
	}
	if err := c.ensureReady(); err != nil {
		return "", false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteCacheOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT cache_value FROM %s WHERE cache_key = ?", quoteSQLIdentifier(c.tableName))
	var value string
	err := c.db.QueryRowContext(ctx, query, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *SQLiteCache) Put(key Key, value string) error {
	if c == nil {
		return nil
	}
	if err := c.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteCacheOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (cache_key, cache_value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (cache_key)
		DO UPDATE SET cache_value = excluded.cache_value, updated_at = CURRENT_TIMESTAMP`, quoteSQLIdentifier(c.tableName))
	_, err := c.db.ExecContext(ctx, query, string(key), value)
	return err
}

func (c *SQLiteCache) Delete(key Key) error {
	if c == nil {
		return nil
	}
	if err := c.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteCacheOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", quoteSQLIdentifier(c.tableName))
	_, err := c.db.ExecContext(ctx, query, string(key))
	return err
}

func (c *SQLiteCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *SQLiteCache) ensureReady() error {
	if c == nil {
		return ErrInvalidInput
	}
	c.initOnce.Do(func() {
		db, err := c.openDB("sqlite3", c.path)
		if err != nil {
			c.initErr = err
			return
		}
		// The sqlite3 driver is not safe for concurrent writers on one
		// connection pool; a single connection serializes access.
		db.SetMaxOpenConns(1)
		ctx, cancel := context.WithTimeout(context.Background(), sqliteCacheOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`, quoteSQLIdentifier(c.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			c.initErr = err
			return
		}
		c.db = db
	})
	return c.initErr
}
