package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LIBRIS_CACHE_CAPACITY",
		"LIBRIS_CACHE_TTL",
		"LIBRIS_CACHE_SWEEP_INTERVAL",
		"LIBRIS_RATE_LIMIT",
		"LIBRIS_RATE_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestProfileDefaults(t *testing.T) {
	clearEnvVars(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, DefaultCacheCapacity, p.CacheCapacity)
	assert.Equal(t, DefaultCacheTTL, p.CacheDefaultTTL)
	assert.Equal(t, DefaultCacheSweepInterval, p.CacheSweepInterval)
	assert.Equal(t, DefaultRateLimit, p.RateLimit)
	assert.Equal(t, DefaultRateBurst, p.RateBurst)
}

func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		check    func(t *testing.T, p *Profile)
	}{
		{
			name:     "CacheCapacity",
			envVar:   "LIBRIS_CACHE_CAPACITY",
			envValue: "250",
			check:    func(t *testing.T, p *Profile) { assert.Equal(t, 250, p.CacheCapacity) },
		},
		{
			name:     "CacheTTLSeconds",
			envVar:   "LIBRIS_CACHE_TTL",
			envValue: "90",
			check:    func(t *testing.T, p *Profile) { assert.Equal(t, 90*time.Second, p.CacheDefaultTTL) },
		},
		{
			name:     "CacheTTLDuration",
			envVar:   "LIBRIS_CACHE_TTL",
			envValue: "2m",
			check:    func(t *testing.T, p *Profile) { assert.Equal(t, 2*time.Minute, p.CacheDefaultTTL) },
		},
		{
			name:     "InvalidCapacityFallsBack",
			envVar:   "LIBRIS_CACHE_CAPACITY",
			envValue: "lots",
			check:    func(t *testing.T, p *Profile) { assert.Equal(t, DefaultCacheCapacity, p.CacheCapacity) },
		},
		{
			name:     "RateLimit",
			envVar:   "LIBRIS_RATE_LIMIT",
			envValue: "2.5",
			check:    func(t *testing.T, p *Profile) { assert.Equal(t, 2.5, p.RateLimit) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			t.Setenv(tt.envVar, tt.envValue)

			p := &Profile{}
			p.FromEnv()
			tt.check(t, p)
		})
	}
}

func TestProfileFromEnv_ExplicitValuesWin(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("LIBRIS_CACHE_CAPACITY", "999")

	p := &Profile{CacheCapacity: 7}
	p.FromEnv()
	assert.Equal(t, 7, p.CacheCapacity)
}

func validProfile(t *testing.T) *Profile {
	return &Profile{
		Mode:               "dev",
		Data:               t.TempDir(),
		CacheCapacity:      10,
		CacheDefaultTTL:    time.Minute,
		CacheSweepInterval: time.Minute,
		RateLimit:          1,
		RateBurst:          1,
	}
}

func TestProfileValidate(t *testing.T) {
	t.Run("FillsDSN", func(t *testing.T) {
		p := validProfile(t)
		require.NoError(t, p.Validate())
		assert.Equal(t, "sqlite", p.Driver)
		assert.Contains(t, p.DSN, "libris_dev.db")
	})

	t.Run("UnknownModeBecomesDemo", func(t *testing.T) {
		p := validProfile(t)
		p.Mode = "staging"
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	invalid := []struct {
		name   string
		mutate func(p *Profile)
	}{
		{"ZeroCapacity", func(p *Profile) { p.CacheCapacity = 0 }},
		{"NegativeTTL", func(p *Profile) { p.CacheDefaultTTL = -time.Second }},
		{"NegativeSweep", func(p *Profile) { p.CacheSweepInterval = -time.Second }},
		{"ZeroBurst", func(p *Profile) { p.RateBurst = 0 }},
		{"UnsupportedDriver", func(p *Profile) { p.Driver = "postgres" }},
		{"MissingDataDir", func(p *Profile) { p.Data = "/nonexistent/libris-data" }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile(t)
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestParseSeconds(t *testing.T) {
	d, err := ParseSeconds("30")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = ParseSeconds("1h")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	_, err = ParseSeconds("soon")
	assert.Error(t, err)
}
