package lifeops

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

type CacheFactory func(dsn string) (Cache, error)

var cacheFactoryRegistry = struct {
	mu        sync.RWMutex
	factories map[string]CacheFactory
}{
	factories: map[string]CacheFactory{},
}

// RegisterCacheFactory lets an external package claim a DSN scheme before
// the built-in dispatch runs.
func RegisterCacheFactory(scheme string, factory CacheFactory) {
	scheme = normalizeCacheScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	cacheFactoryRegistry.mu.Lock()
	defer cacheFactoryRegistry.mu.Unlock()
	cacheFactoryRegistry.factories[scheme] = factory
}

func lookupCacheFactory(scheme string) (CacheFactory, bool) {
	scheme = normalizeCacheScheme(scheme)
	cacheFactoryRegistry.mu.RLock()
	defer cacheFactoryRegistry.mu.RUnlock()
	factory, ok := cacheFactoryRegistry.factories[scheme]
	return factory, ok
}

// BuildCacheFromDSN dispatches on the DSN scheme. A bare path or file://
// selects the JSON file backend; an empty DSN selects memory.
func BuildCacheFromDSN(dsn string) (Cache, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemoryCache(), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := normalizeCacheScheme(parsed.Scheme)
	if factory, ok := lookupCacheFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "", "file":
		path, pathErr := dsnPath(parsed, dsn)
		if pathErr != nil {
			return nil, pathErr
		}
		return NewJSONFileCache(path), nil
	case "memory", "mem", "inmem":
		return NewMemoryCache(), nil
	case "postgres", "postgresql":
		return NewPostgresCache(dsn)
	case "sqlite", "sqlite3":
		path, pathErr := dsnPath(parsed, dsn)
		if pathErr != nil {
			return nil, pathErr
		}
		return NewSQLiteCache(path)
	case "mysql", "redis":
		return nil, fmt.Errorf("%w: cache backend %s", ErrNotImplemented, scheme)
	default:
		return nil, fmt.Errorf("unsupported cache backend scheme: %s", scheme)
	}
}

func dsnPath(parsed *url.URL, raw string) (string, error) {
	if parsed == nil {
		return "", ErrInvalidInput
	}
	if strings.TrimSpace(parsed.Scheme) == "" {
		if strings.TrimSpace(raw) == "" {
			return "", ErrInvalidInput
		}
		return strings.TrimSpace(raw), nil
	}
	path := strings.TrimSpace(parsed.Path)
	if path == "" {
		path = strings.TrimSpace(parsed.Opaque)
	}
	if path == "" {
		path = strings.TrimSpace(parsed.Host)
	}
	if path == "" {
		return "", ErrInvalidInput
	}
	return path, nil
}

func normalizeCacheScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}
