package imagefetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T) Fetcher {
	t.Helper()
	f, err := NewFetcher(Config{
		CacheDir:             t.TempDir(),
		MaxRequestsPerSecond: 100,
	}, nil)
	require.NoError(t, err)
	return f
}

func TestResolvePassesLocalFilesThrough(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "lamp.jpg")
	require.NoError(t, os.WriteFile(local, []byte("jpeg bytes"), 0o644))

	f := newTestFetcher(t)
	resolved, err := f.Resolve(context.Background(), []string{local})
	require.NoError(t, err)
	assert.Equal(t, []string{local}, resolved)
}

func TestResolveRejectsMissingLocalFile(t *testing.T) {
	f := newTestFetcher(t)
	_, err := f.Resolve(context.Background(), []string{"/does/not/exist.jpg"})
	assert.Error(t, err)
}

func TestResolveDownloadsRemoteImages(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("fake jpeg payload"))
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t)
	url := srv.URL + "/photos/lamp.jpg"

	resolved, err := f.Resolve(context.Background(), []string{url})
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	data, err := os.ReadFile(resolved[0])
	require.NoError(t, err)
	assert.Equal(t, "fake jpeg payload", string(data))
	assert.Equal(t, ".jpg", filepath.Ext(resolved[0]))

	// Second resolution of the same URL hits the cache, not the server.
	again, err := f.Resolve(context.Background(), []string{url})
	require.NoError(t, err)
	assert.Equal(t, resolved, again)
	assert.Equal(t, 1, hits)
}

func TestResolveFailsOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t)
	_, err := f.Resolve(context.Background(), []string{srv.URL + "/gone.jpg"})
	assert.Error(t, err)
}

func TestResolveMixedSetFailsAtomically(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "ok.jpg")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))

	f := newTestFetcher(t)
	resolved, err := f.Resolve(context.Background(), []string{local, "/missing/b.jpg"})
	assert.Error(t, err)
	assert.Nil(t, resolved)
}

func TestCacheNameKeepsExtension(t *testing.T) {
	a := cacheName("https://cdn.example.com/a/photo.png?sig=abc")
	assert.Equal(t, ".png", filepath.Ext(a))

	b := cacheName("https://cdn.example.com/opaque")
	assert.Equal(t, ".jpg", filepath.Ext(b))

	// Distinct URLs never collide on the same cache file.
	assert.NotEqual(t, a, cacheName("https://cdn.example.com/b/photo.png?sig=abc"))
}

func TestEmptyProxySupplierGoesDirect(t *testing.T) {
	s, err := NewProxySupplier(context.Background(), nil, "http://unused")
	require.NoError(t, err)
	assert.Empty(t, s.Get())
}
