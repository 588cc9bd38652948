package lifeops

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	postgresCacheTableName        = "lifeops_cache"
	postgresCacheOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresCache stores each Key as one row and creates its table lazily on
// first use.
type PostgresCache struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresCache(dsn string) (Cache, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	return &PostgresCache{
		dsn:       dsn,
		tableName: postgresCacheTableName,
		openDB:    sql.Open,
	}, nil
}

func (c *PostgresCache) Get(key Key) (string, bool, error) {
	if c == nil {
		return "", false, nil
	}
	if err := c.ensureReady(); err != nil {
		return "", false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresCacheOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT cache_value FROM %s WHERE cache_key = $1", quoteSQLIdentifier(c.tableName))
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

func (c *PostgresCache) Put(key Key, value string) error {
	if c == nil {
		return nil
	}
	if err := c.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresCacheOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (cache_key, cache_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (cache_key)
		DO UPDATE SET cache_value = EXCLUDED.cache_value, updated_at = NOW()`, quoteSQLIdentifier(c.tableName))
	_, err := c.db.ExecContext(ctx, query, string(key), value)
	return err
}

func (c *PostgresCache) Delete(key Key) error {
	if c == nil {
		return nil
	}
	if err := c.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresCacheOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = $1", quoteSQLIdentifier(c.tableName))
	_, err := c.db.ExecContext(ctx, query, string(key))
	return err
}

func (c *PostgresCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *PostgresCache) ensureReady() error {
	if c == nil {
		return ErrInvalidInput
	}
	c.initOnce.Do(func() {
		db, err := c.openDB("postgres", c.dsn)
		if err != nil {
			c.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresCacheOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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

func quoteSQLIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "\"\""
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
