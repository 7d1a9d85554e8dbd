package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultCacheCapacity      = 100
	DefaultCacheTTL           = 300 * time.Second
	DefaultCacheSweepInterval = time.Minute
	DefaultRateLimit          = 10.0
	DefaultRateBurst          = 20
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where libris stores its own data
	DSN string
	// Driver is the database driver (only sqlite)
	Driver string
	// Version is the current version of server
	Version string

	// Cache configuration
	CacheCapacity      int           // LIBRIS_CACHE_CAPACITY (default: 100)
	CacheDefaultTTL    time.Duration // LIBRIS_CACHE_TTL (default: 300s)
	CacheSweepInterval time.Duration // LIBRIS_CACHE_SWEEP_INTERVAL (default: 1m)

	// Rate limiting, per client IP
	RateLimit float64 // LIBRIS_RATE_LIMIT requests per second (default: 10)
	RateBurst int     // LIBRIS_RATE_BURST (default: 20)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// FromEnv fills unset cache and rate limit settings from LIBRIS_* environment variables,
// falling back to defaults. Values that fail to parse are logged and ignored.
func (p *Profile) FromEnv() {
	if p.CacheCapacity == 0 {
		p.CacheCapacity = getIntEnv("LIBRIS_CACHE_CAPACITY", DefaultCacheCapacity)
	}
	if p.CacheDefaultTTL == 0 {
		p.CacheDefaultTTL = getDurationEnv("LIBRIS_CACHE_TTL", DefaultCacheTTL)
	}
	if p.CacheSweepInterval == 0 {
		p.CacheSweepInterval = getDurationEnv("LIBRIS_CACHE_SWEEP_INTERVAL", DefaultCacheSweepInterval)
	}
	if p.RateLimit == 0 {
		p.RateLimit = DefaultRateLimit
		if v := os.Getenv("LIBRIS_RATE_LIMIT"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				p.RateLimit = f
			} else {
				slog.Warn("ignoring invalid env value", slog.String("key", "LIBRIS_RATE_LIMIT"), slog.String("value", v))
			}
		}
	}
	if p.RateBurst == 0 {
		p.RateBurst = getIntEnv("LIBRIS_RATE_BURST", DefaultRateBurst)
	}
}

func getIntEnv(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid env value", slog.String("key", key), slog.String("value", v))
		return defaultValue
	}
	return n
}

// getDurationEnv accepts Go durations ("90s", "5m") or a bare number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := ParseSeconds(v)
	if err != nil {
		slog.Warn("ignoring invalid env value", slog.String("key", key), slog.String("value", v))
		return defaultValue
	}
	return d
}

// ParseSeconds parses a Go duration string, or a bare integer as seconds.
func ParseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", v)
	}
	return d, nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.CacheCapacity <= 0 {
		return errors.Errorf("cache capacity must be positive, got %d", p.CacheCapacity)
	}
	if p.CacheDefaultTTL <= 0 {
		return errors.Errorf("cache ttl must be positive, got %s", p.CacheDefaultTTL)
	}
	if p.CacheSweepInterval < 0 {
		return errors.Errorf("cache sweep interval must not be negative, got %s", p.CacheSweepInterval)
	}
	if p.RateLimit <= 0 || p.RateBurst <= 0 {
		return errors.Errorf("rate limit must be positive, got %v/%d", p.RateLimit, p.RateBurst)
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/libris"
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		dbFile := fmt.Sprintf("libris_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
