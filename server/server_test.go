package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/libris/internal/profile"
	"github.com/hrygo/libris/store"
	"github.com/hrygo/libris/store/db"
)

func newTestServer(t *testing.T, mutate func(*profile.Profile)) *Server {
	t.Helper()
	dir := t.TempDir()
	p := &profile.Profile{
		Mode:    "demo",
		Addr:    "127.0.0.1",
		Port:    0,
		Data:    dir,
		DSN:     filepath.Join(dir, "libris.db"),
		Version: "test",
	}
	p.FromEnv()
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, p.Validate())

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))

	s, err := NewServer(context.Background(), p, st, nil)
	require.NoError(t, err)
	return s
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := newTestServer(t, func(p *profile.Profile) { p.CacheSweepInterval = 10 * time.Millisecond })
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.echoServer.Listener.Addr().String() + "/api/v1/books")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"title"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	s.Shutdown(context.Background())
	assert.NoError(t, s.Wait())
}

func TestServer_RateLimit(t *testing.T) {
	s := newTestServer(t, func(p *profile.Profile) {
		p.RateLimit = 0.001
		p.RateBurst = 2
	})
	t.Cleanup(func() { _ = s.Store.Close() })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServer_CacheConfigFromProfile(t *testing.T) {
	s := newTestServer(t, func(p *profile.Profile) { p.CacheCapacity = 7 })
	t.Cleanup(func() { _ = s.Store.Close() })

	assert.Equal(t, 7, s.Cache.Stats().Capacity)
}
