package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeUpstream is an httptest server that records every request so
// tests can assert on what the gateway forwarded.
type fakeUpstream struct {
	srv *httptest.Server

	mu     sync.Mutex
	hits   map[string]int
	bodies map[string][]byte
	querys map[string]string
	meths  map[string]string
}

func newFakeUpstream(t *testing.T, routes map[string]http.HandlerFunc) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		hits:   map[string]int{},
		bodies: map[string][]byte{},
		querys: map[string]string{},
		meths:  map[string]string{},
	}
	mux := http.NewServeMux()
	for p, h := range routes {
		handler := h
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.hits[r.URL.Path]++
			f.bodies[r.URL.Path] = data
			f.querys[r.URL.Path] = r.URL.RawQuery
			f.meths[r.URL.Path] = r.Method
			f.mu.Unlock()
			handler(w, r)
		})
	}
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeUpstream) lastBody(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeUpstream) lastQuery(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.querys[path]
}

func (f *fakeUpstream) lastMethod(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meths[path]
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

// newTestGateway points every upstream at a closed port unless the test
// overrides it, so outage paths fail fast.
func newTestGateway(t *testing.T, mut func(*Config)) *Gateway {
	t.Helper()
	cfg := Config{
		AdvisoryURL:     "http://127.0.0.1:1",
		PersistenceURL:  "http://127.0.0.1:1",
		EventsURL:       "http://127.0.0.1:1",
		MarketURL:       "http://127.0.0.1:1",
		HTTPTimeout:     2 * time.Second,
		BreakerFails:    3,
		BreakerOpenFor:  30 * time.Second,
		BreakerInterval: time.Minute,
		DashboardCrop:   "Paddy",
	}
	if mut != nil {
		mut(&cfg)
	}
	return New(cfg, zap.NewNop().Sugar())
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	gw := newTestGateway(t, nil)
	rec := do(t, gw.Routes(), http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCORSPreflightAndHeaders(t *testing.T) {
	gw := newTestGateway(t, nil)
	h := WithCORS(gw.Routes())

	rec := do(t, h, http.MethodOptions, "/api/dashboard", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = do(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticPage(t *testing.T) {
	dir := t.TempDir()
	page := []byte("<html><body>AgroNITY</body></html>")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), page, 0o644))

	gw := newTestGateway(t, func(c *Config) { c.StaticDir = dir })
	rec := do(t, gw.Routes(), http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AgroNITY")
}

func TestNoStaticDirMeansNoRoot(t *testing.T) {
	gw := newTestGateway(t, nil)
	rec := do(t, gw.Routes(), http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrimaryLang(t *testing.T) {
	mk := func(v string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/analyze", nil)
		if v != "" {
			r.Header.Set("Accept-Language", v)
		}
		return r
	}
	assert.Equal(t, "ta", primaryLang(mk("ta-IN,ta;q=0.9,en;q=0.8")))
	assert.Equal(t, "hi", primaryLang(mk("hi")))
	assert.Equal(t, "en", primaryLang(mk("en-US")))
	assert.Equal(t, "", primaryLang(mk("*")))
	assert.Equal(t, "", primaryLang(mk("")))
}
