package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roselite-project/roselite/internal/model"
	"github.com/roselite-project/roselite/internal/pkgfile"
)

// fakeStore is an in-memory downloader keyed by app id.
type fakeStore struct {
	mu        sync.Mutex
	pkgs      map[model.AppId]*pkgfile.Package
	downloads int32
	fail      map[model.AppId]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{pkgs: make(map[model.AppId]*pkgfile.Package), fail: make(map[model.AppId]bool)}
}

func (f *fakeStore) Download(ctx context.Context, id model.AppId) (*pkgfile.Package, error) {
	atomic.AddInt32(&f.downloads, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return nil, assertError("simulated download failure")
	}
	pkg, ok := f.pkgs[id]
	if !ok {
		return nil, assertError("app not found")
	}
	return pkg, nil
}

type assertError string

func (e assertError) Error() string { return string(e) }

// fakeResolver maps domains directly to app ids without touching DNS.
type fakeResolver struct {
	mu      sync.Mutex
	records map[string]string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{records: make(map[string]string)}
}

func (f *fakeResolver) ResolveAppID(ctx context.Context, domain string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[domain], nil
}

func buildGatewayTestPackage(t *testing.T) *pkgfile.Package {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hello</h1>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "style.css"), []byte("body{}"), 0o644))

	pkg, err := pkgfile.NewBuilder("Test Site", dir).
		Version("1.0.0").
		Description("a test site").
		Developer("tester").
		Entry("index.html").
		Build()
	require.NoError(t, err)
	return pkg
}

func TestServeHTTPWelcomePageOnGatewayHost(t *testing.T) {
	gw := New(newFakeStore(), newFakeResolver(), "gateway.example", t.TempDir(), false, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "gateway.example"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "roselite gateway")
}

func TestServeHTTPDomainNotConfiguredReturns404(t *testing.T) {
	gw := New(newFakeStore(), newFakeResolver(), "gateway.example", t.TempDir(), false, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "missing.example"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing.example")
	assert.Contains(t, rec.Body.String(), "TXT record")
}

func TestServeHTTPDownloadsAndServesOnFirstRequest(t *testing.T) {
	store := newFakeStore()
	pkg := buildGatewayTestPackage(t)
	store.pkgs["app-1"] = pkg

	resolver := newFakeResolver()
	resolver.records["site.example"] = "app-1"

	gw := New(store, resolver, "gateway.example", t.TempDir(), false, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "site.example"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello")
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.downloads))
}

func TestServeHTTPServesFromCacheOnSecondRequest(t *testing.T) {
	store := newFakeStore()
	pkg := buildGatewayTestPackage(t)
	store.pkgs["app-1"] = pkg

	resolver := newFakeResolver()
	resolver.records["site.example"] = "app-1"

	gw := New(store, resolver, "gateway.example", t.TempDir(), false, nil)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = "site.example"
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.downloads))
}

func TestServeHTTPServesNestedAsset(t *testing.T) {
	store := newFakeStore()
	pkg := buildGatewayTestPackage(t)
	store.pkgs["app-1"] = pkg

	resolver := newFakeResolver()
	resolver.records["site.example"] = "app-1"

	gw := New(store, resolver, "gateway.example", t.TempDir(), false, nil)

	req := httptest.NewRequest(http.MethodGet, "/assets/style.css", nil)
	req.Host = "site.example"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestServeHTTPPathTraversalReturns403(t *testing.T) {
	store := newFakeStore()
	pkg := buildGatewayTestPackage(t)
	store.pkgs["app-1"] = pkg

	resolver := newFakeResolver()
	resolver.records["site.example"] = "app-1"

	gw := New(store, resolver, "gateway.example", t.TempDir(), false, nil)

	req := httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil)
	req.Host = "site.example"
	req.URL.Path = "/../../etc/passwd"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeHTTPMissingFileReturns404(t *testing.T) {
	store := newFakeStore()
	pkg := buildGatewayTestPackage(t)
	store.pkgs["app-1"] = pkg

	resolver := newFakeResolver()
	resolver.records["site.example"] = "app-1"

	gw := New(store, resolver, "gateway.example", t.TempDir(), false, nil)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist.txt", nil)
	req.Host = "site.example"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTPDownloadFailureReturns503(t *testing.T) {
	store := newFakeStore()
	store.fail["app-1"] = true

	resolver := newFakeResolver()
	resolver.records["site.example"] = "app-1"

	gw := New(store, resolver, "gateway.example", t.TempDir(), false, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "site.example"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "site.example")
}

func TestServeHTTPAdoptsExistingOnDiskCache(t *testing.T) {
	store := newFakeStore()
	resolver := newFakeResolver()
	cacheRoot := t.TempDir()

	siteDir := filepath.Join(cacheRoot, "site.example")
	require.NoError(t, os.MkdirAll(siteDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "index.html"), []byte("from disk"), 0o644))

	gw := New(store, resolver, "gateway.example", cacheRoot, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "site.example"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "from disk")
	assert.Equal(t, int32(0), atomic.LoadInt32(&store.downloads))
}

func TestServeHTTPConcurrentMissesCoalesceIntoOneDownload(t *testing.T) {
	store := newFakeStore()
	pkg := buildGatewayTestPackage(t)
	store.pkgs["app-1"] = pkg

	resolver := newFakeResolver()
	resolver.records["site.example"] = "app-1"

	gw := New(store, resolver, "gateway.example", t.TempDir(), false, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = "site.example"
			rec := httptest.NewRecorder()
			gw.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&store.downloads))
}

func TestServeHTTPVerifyManifestOnServeAcceptsValidSignature(t *testing.T) {
	store := newFakeStore()
	pkg := buildGatewayTestPackage(t)
	store.pkgs["app-1"] = pkg

	resolver := newFakeResolver()
	resolver.records["site.example"] = "app-1"

	gw := New(store, resolver, "gateway.example", t.TempDir(), true, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "site.example"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeHTTPVerifyManifestOnServeRejectsTamperedSignature(t *testing.T) {
	store := newFakeStore()
	pkg := buildGatewayTestPackage(t)
	pkg.Manifest.Signature = "00" + pkg.Manifest.Signature[2:]
	store.pkgs["app-1"] = pkg

	resolver := newFakeResolver()
	resolver.records["site.example"] = "app-1"

	gw := New(store, resolver, "gateway.example", t.TempDir(), true, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "site.example"
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
