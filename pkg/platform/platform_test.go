package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/slidetrack/pkg/session"
	"github.com/txn2/slidetrack/pkg/tally"
)

func testConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func startPlatform(t *testing.T, cfg *Config, opts ...Option) *Platform {
	t.Helper()
	p, err := New(context.Background(), append([]Option{WithConfig(cfg)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// visitor is an HTTP client with its own cookie jar, i.e. its own session.
func visitor(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postTally(t *testing.T, c *http.Client, url string) tally.Tally {
	t.Helper()
	resp, err := c.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out tally.Tally
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background())
	assert.Error(t, err)
}

func TestNew_RequiresBothStores(t *testing.T) {
	_, err := New(context.Background(), WithConfig(testConfig()), func(o *Options) {
		o.SessionStore = session.NewMemoryStore(time.Hour)
	})
	assert.Error(t, err)
}

func TestNew_RejectsEmptySecret(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Secret = ""
	_, err := New(context.Background(), WithConfig(cfg))
	assert.Error(t, err)
}

func TestPlatform_TrackEndToEnd(t *testing.T) {
	p := startPlatform(t, testConfig())
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	alice := visitor(t)
	url := srv.URL + "/api/track/bankofvvest/yes"
	assert.Equal(t, tally.Tally{"yes": 1}, postTally(t, alice, url))
	assert.Equal(t, tally.Tally{"yes": 1}, postTally(t, alice, url), "retry from the same session is not counted")

	bob := visitor(t)
	assert.Equal(t, tally.Tally{"yes": 1, "no": 1}, postTally(t, bob, srv.URL+"/api/track/bankofvvest/no"))
}

func TestPlatform_InjectedStores(t *testing.T) {
	sessions := session.NewMemoryStore(time.Hour)
	tallies := tally.NewMemoryStore()
	p := startPlatform(t, testConfig(), WithStores(sessions, tallies))

	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	postTally(t, visitor(t), srv.URL+"/api/track/crowd/left")
	assert.Equal(t, 1, tallies.Len())
}

func TestPlatform_HealthEndpoints(t *testing.T) {
	p, err := New(context.Background(), WithConfig(testConfig()))
	require.NoError(t, err)
	h := p.Handler()

	get := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/healthz"))
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz"))

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, http.StatusOK, get("/readyz"))
	assert.True(t, p.Health().IsReady())

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz"))
	assert.Equal(t, "draining", p.Health().State())
}

func TestPlatform_Metrics(t *testing.T) {
	p := startPlatform(t, testConfig())
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	postTally(t, visitor(t), srv.URL+"/api/track/race/fast")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `slidetrack_tracking_submissions_total{outcome="recorded"} 1`)
}

func TestPlatform_Swagger(t *testing.T) {
	p := startPlatform(t, testConfig())
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/track/{resource}/{behavior}")
}

func TestPlatform_MCPToggle(t *testing.T) {
	off := startPlatform(t, testConfig())
	assert.Nil(t, off.Insights())

	cfg := testConfig()
	cfg.MCP.Enabled = true
	on := startPlatform(t, cfg, WithVersion("1.0.0"))
	assert.NotNil(t, on.Insights())
}

func TestPlatform_Production(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Environment = EnvProduction
	p := startPlatform(t, cfg)
	h := p.Handler()

	t.Run("redirects plain http", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://slides.example.com/api/username", nil)
		req.Header.Set("X-Forwarded-Proto", "http")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMovedPermanently, rec.Code)
		assert.Equal(t, "https://slides.example.com/api/username", rec.Header().Get("Location"))
	})

	t.Run("secure cookie and no session dump", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/test-session", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "slidetrack.sid", cookies[0].Name)
		assert.True(t, cookies[0].Secure)
	})
}

func TestPlatform_StaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>slides</h1>"), cfgTestFilePerms))

	cfg := testConfig()
	cfg.Server.StaticDir = dir
	p := startPlatform(t, cfg)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "slides")
}

func TestPlatform_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerMinute = 1
	p := startPlatform(t, cfg)
	h := p.Handler()

	get := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/username", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, get())
	assert.Equal(t, http.StatusTooManyRequests, get())
}

func TestPlatform_RateLimitBehindProxy(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Environment = EnvProduction
	cfg.RateLimit.RequestsPerMinute = 1
	h := startPlatform(t, cfg).Handler()

	get := func(clientIP string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/username", nil)
		req.RemoteAddr = "10.0.0.1:443"
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-For", clientIP)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, get("198.51.100.1"))
	assert.Equal(t, http.StatusOK, get("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, get("198.51.100.1"))
}

// stalledSessions never answers Create until the caller gives up.
type stalledSessions struct {
	*session.MemoryStore
}

func (stalledSessions) Create(ctx context.Context, _ *session.Session) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPlatform_StoreTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Database.StoreTimeout = 50 * time.Millisecond
	sessions := stalledSessions{MemoryStore: session.NewMemoryStore(time.Hour)}
	p := startPlatform(t, cfg, WithStores(sessions, tally.NewMemoryStore()))

	start := time.Now()
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/username", nil))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "store unavailable"}`, rec.Body.String())
}

func TestPlatform_Accessors(t *testing.T) {
	cfg := testConfig()
	p := startPlatform(t, cfg)
	assert.Same(t, cfg, p.Config())
	assert.NotNil(t, p.Tracker())
	assert.NotNil(t, p.Registry())
}
