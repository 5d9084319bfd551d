package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"codes-api/internal/gateway"
	"codes-api/internal/gateway/config"
	"codes-api/internal/gateway/domain/model"
	"codes-api/internal/gateway/domain/repository"
	"codes-api/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeCounter struct {
	n   int64
	err error
}

func (c fakeCounter) Count(ctx context.Context) (int64, error) {
	return c.n, c.err
}

type fakeStore struct {
	users   fakeCounter
	codes   fakeCounter
	pingErr error
}

func (s *fakeStore) Name() string                      { return "mongodb" }
func (s *fakeStore) Ping(ctx context.Context) error    { return s.pingErr }
func (s *fakeStore) Users() repository.DocumentCounter { return s.users }
func (s *fakeStore) Codes() repository.DocumentCounter { return s.codes }

// sharedCounter is a RateLimitCounter that also reports health.
type sharedCounter struct {
	mu    sync.Mutex
	calls int
}

func (s *sharedCounter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*model.RateLimitDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &model.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit - s.calls, ResetAfter: window}, nil
}

func (s *sharedCounter) Name() string                   { return "redis" }
func (s *sharedCounter) Ping(ctx context.Context) error { return nil }

func (s *sharedCounter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// syncBuffer lets the server goroutine and the test share a log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// serve runs app on a loopback port until the test ends.
func serve(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "development",
		Port:              "3000",
		MongoDBURI:        "mongodb://localhost:27017",
		ProductionOrigin:  "https://seu-dominio.com",
		DevelopmentOrigin: "http://localhost:8080",
		APIPrefix:         "/api",
		RateLimitMax:      100,
		RateLimitWindow:   15 * time.Minute,
		RequestTimeout:    time.Second,
		JSONBodyLimit:     10 << 20,
		FormBodyLimit:     100 << 10,
		FormParamLimit:    1000,
		FormNestDepth:     5,
		FormArrayLimit:    20,
	}
}

type GatewayTestSuite struct {
	suite.Suite
	cfg   *config.Config
	store *fakeStore
	app   *fiber.App
}

func (suite *GatewayTestSuite) SetupTest() {
	suite.cfg = testConfig()
	suite.store = &fakeStore{users: fakeCounter{n: 3}, codes: fakeCounter{n: 5}}
	suite.app = suite.build(nil)
}

func (suite *GatewayTestSuite) build(counter repository.RateLimitCounter) *fiber.App {
	module, err := gateway.NewGatewayModule(suite.cfg, suite.store, counter, logger.NewLoggerWithConfig("fatal", "text"))
	require.NoError(suite.T(), err)
	return module.Build()
}

func (suite *GatewayTestSuite) do(req *http.Request) (*http.Response, map[string]interface{}) {
	resp, err := suite.app.Test(req, -1)
	require.NoError(suite.T(), err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(suite.T(), err)

	var body map[string]interface{}
	if len(raw) > 0 {
		require.NoError(suite.T(), json.Unmarshal(raw, &body), "body: %s", raw)
	}
	return resp, body
}

func (suite *GatewayTestSuite) get(path string) (*http.Response, map[string]interface{}) {
	return suite.do(httptest.NewRequest("GET", path, nil))
}

func (suite *GatewayTestSuite) TestAPITest() {
	resp, body := suite.get("/api/test")

	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(suite.T(), "Backend funcionando!", body["message"])
	ts, err := time.Parse(time.RFC3339Nano, body["timestamp"].(string))
	require.NoError(suite.T(), err)
	assert.WithinDuration(suite.T(), time.Now(), ts, 5*time.Second)
	assert.Contains(suite.T(), resp.Header.Get(fiber.HeaderContentType), "application/json")
}

func (suite *GatewayTestSuite) TestTestModels() {
	resp, body := suite.get("/api/test-models")

	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(suite.T(), "Modelos funcionando!", body["message"])
	assert.Equal(suite.T(), map[string]interface{}{"users": float64(3), "codes": float64(5)}, body["collections"])
	assert.NotEmpty(suite.T(), body["timestamp"])
}

func (suite *GatewayTestSuite) TestTestModels_EmptyCollections() {
	suite.store.users = fakeCounter{}
	suite.store.codes = fakeCounter{}

	resp, body := suite.get("/api/test-models")

	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(suite.T(), map[string]interface{}{"users": float64(0), "codes": float64(0)}, body["collections"])
}

func (suite *GatewayTestSuite) TestTestModels_StoreUnreachable() {
	suite.store.codes = fakeCounter{err: errors.New("connection refused")}

	resp, body := suite.get("/api/test-models")

	assert.Equal(suite.T(), http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(suite.T(), map[string]interface{}{
		"error":   "Erro ao testar modelos",
		"details": "connection refused",
	}, body)
}

func (suite *GatewayTestSuite) TestNotFound() {
	for _, path := range []string{"/", "/api", "/api/unknown", "/users"} {
		resp, body := suite.get(path)
		assert.Equal(suite.T(), http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(suite.T(), map[string]interface{}{"error": "Rota não encontrada"}, body, path)
	}

	resp, body := suite.do(httptest.NewRequest("PUT", "/api/test", nil))
	assert.Equal(suite.T(), http.StatusNotFound, resp.StatusCode)
	assert.Equal(suite.T(), "Rota não encontrada", body["error"])
}

func (suite *GatewayTestSuite) TestSecurityHeadersOnEveryResponse() {
	suite.cfg.RateLimitMax = 1
	suite.cfg.FormBodyLimit = 64

	jsonPost := func(body string) *http.Request {
		req := httptest.NewRequest("POST", "/api/test", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}
	formPost := httptest.NewRequest("POST", "/health", strings.NewReader("d="+strings.Repeat("x", 100)))
	formPost.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	tests := []struct {
		name   string
		setup  func()
		req    *http.Request
		status int
	}{
		{"ok", nil, httptest.NewRequest("GET", "/api/test", nil), http.StatusOK},
		{"not found", nil, httptest.NewRequest("GET", "/does-not-exist", nil), http.StatusNotFound},
		{"health", nil, httptest.NewRequest("GET", "/health", nil), http.StatusOK},
		{"malformed json", nil, jsonPost(`{"broken":`), http.StatusBadRequest},
		{"form over limit", nil, formPost, http.StatusRequestEntityTooLarge},
		{"rate limited", func() { suite.get("/api/test") }, httptest.NewRequest("GET", "/api/test", nil), http.StatusTooManyRequests},
		{"panic", nil, httptest.NewRequest("GET", "/api/panic", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.app = suite.buildWithPanicRoute()
			if tt.setup != nil {
				tt.setup()
			}

			resp, _ := suite.do(tt.req)
			assert.Equal(suite.T(), tt.status, resp.StatusCode)
			assert.Equal(suite.T(), "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.Equal(suite.T(), "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
			assert.Contains(suite.T(), resp.Header.Get("Content-Security-Policy"), "default-src 'self'")
			assert.Equal(suite.T(), "max-age=15552000; includeSubDomains", resp.Header.Get("Strict-Transport-Security"))
			assert.NotEmpty(suite.T(), resp.Header.Get(fiber.HeaderXRequestID))
		})
	}
}

// buildWithPanicRoute is Build plus a route under the API prefix that panics.
func (suite *GatewayTestSuite) buildWithPanicRoute() *fiber.App {
	return suite.buildWithPanicRouteLogger(logger.NewLoggerWithConfig("fatal", "text"))
}

func (suite *GatewayTestSuite) buildWithPanicRouteLogger(log logger.Logger) *fiber.App {
	module, err := gateway.NewGatewayModule(suite.cfg, suite.store, nil, log)
	require.NoError(suite.T(), err)

	app := module.NewApp()
	module.RegisterMiddleware(app)
	module.RegisterRoutes(app)
	app.Get("/api/panic", func(c *fiber.Ctx) error {
		panic("secret internal state")
	})
	module.RegisterFallback(app)
	return app
}

func (suite *GatewayTestSuite) TestCORS_Development() {
	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	resp, _ := suite.do(req)

	assert.Equal(suite.T(), "http://localhost:8080", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(suite.T(), "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Origin", "https://seu-dominio.com")
	resp, _ = suite.do(req)
	assert.Empty(suite.T(), resp.Header.Get("Access-Control-Allow-Origin"))
}

func (suite *GatewayTestSuite) TestCORS_Production() {
	suite.cfg.Environment = "production"
	suite.app = suite.build(nil)

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Origin", "https://seu-dominio.com")
	resp, _ := suite.do(req)
	assert.Equal(suite.T(), "https://seu-dominio.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(suite.T(), "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	resp, _ = suite.do(req)
	assert.Empty(suite.T(), resp.Header.Get("Access-Control-Allow-Origin"))
}

func (suite *GatewayTestSuite) TestRateLimit_101stRequestRejected() {
	for i := 1; i <= 100; i++ {
		path := "/api/test"
		if i%2 == 0 {
			path = "/api/unknown"
		}
		resp, _ := suite.get(path)
		require.NotEqual(suite.T(), http.StatusTooManyRequests, resp.StatusCode, "request %d", i)
	}

	resp, body := suite.get("/api/test")
	assert.Equal(suite.T(), http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(suite.T(), map[string]interface{}{
		"error": "Muitas tentativas. Tente novamente em 15 minutos.",
	}, body)
	assert.Equal(suite.T(), "nosniff", resp.Header.Get("X-Content-Type-Options"))

	// Requests outside the API prefix are unaffected.
	resp, _ = suite.get("/health")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	resp, _ = suite.get("/elsewhere")
	assert.Equal(suite.T(), http.StatusNotFound, resp.StatusCode)
}

func (suite *GatewayTestSuite) TestRateLimit_OutsidePrefixNotCounted() {
	suite.cfg.RateLimitMax = 2
	suite.app = suite.build(nil)

	for i := 0; i < 5; i++ {
		resp, _ := suite.get("/health")
		require.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	}

	resp, _ := suite.get("/api/test")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(suite.T(), "1", resp.Header.Get("X-RateLimit-Remaining"))
}

func (suite *GatewayTestSuite) TestRateLimit_UsesInjectedCounter() {
	counter := &sharedCounter{}
	suite.app = suite.build(counter)

	resp, _ := suite.get("/api/test")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(suite.T(), 1, counter.Calls())
	assert.Equal(suite.T(), "99", resp.Header.Get("X-RateLimit-Remaining"))

	resp, body := suite.get("/health")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(suite.T(), map[string]interface{}{"mongodb": "ok", "redis": "ok"}, body["checks"])
}

func (suite *GatewayTestSuite) TestBody_MalformedJSON() {
	req := httptest.NewRequest("POST", "/api/test", strings.NewReader(`{"broken":`))
	req.Header.Set("Content-Type", "application/json")
	resp, body := suite.do(req)

	assert.Equal(suite.T(), http.StatusBadRequest, resp.StatusCode)
	assert.Equal(suite.T(), map[string]interface{}{"error": "JSON inválido"}, body)
}

func (suite *GatewayTestSuite) TestBody_Oversized() {
	suite.cfg.JSONBodyLimit = 1024
	suite.cfg.FormBodyLimit = 512
	suite.app = suite.build(nil)

	// Beyond the transport limit the server rejects the request before any
	// middleware runs, so this goes through a real connection.
	baseURL := serve(suite.T(), suite.app)
	req, err := http.NewRequest("POST", baseURL+"/api/test", strings.NewReader(`{"d":"`+strings.Repeat("x", 2048)+`"}`))
	require.NoError(suite.T(), err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:8080")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(suite.T(), err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.JSONEq(suite.T(), `{"error":"Corpo da requisição muito grande"}`, string(raw))
	assert.Equal(suite.T(), "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(suite.T(), "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(suite.T(), resp.Header.Get("Strict-Transport-Security"))
	assert.Equal(suite.T(), "http://localhost:8080", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(suite.T(), "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	// Within the transport limit but over the form limit.
	suite.app = suite.build(nil)
	req = httptest.NewRequest("POST", "/api/test", strings.NewReader("d="+strings.Repeat("x", 800)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, body := suite.do(req)
	assert.Equal(suite.T(), http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(suite.T(), "Corpo da requisição muito grande", body["error"])
}

func (suite *GatewayTestSuite) TestBody_ValidJSONReachesRouting() {
	req := httptest.NewRequest("POST", "/api/test", strings.NewReader(`{"ok":true}`))
	req.Header.Set("Content-Type", "application/json")
	resp, body := suite.do(req)

	assert.Equal(suite.T(), http.StatusNotFound, resp.StatusCode)
	assert.Equal(suite.T(), "Rota não encontrada", body["error"])
}

func (suite *GatewayTestSuite) TestPanicIsOpaque() {
	var logs syncBuffer
	suite.app = suite.buildWithPanicRouteLogger(logger.New(logger.Config{Level: "info", Format: "json", Output: &logs}))

	resp, body := suite.get("/api/panic")
	assert.Equal(suite.T(), http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(suite.T(), map[string]interface{}{"error": "Erro interno do servidor"}, body)

	// The access log wraps recovery, so the panicking request still gets its line.
	var access map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(suite.T(), json.Unmarshal([]byte(line), &entry), "log: %s", line)
		if entry["message"] == "request completed" {
			access = entry
		}
	}
	require.NotNil(suite.T(), access, "log: %s", logs.String())
	assert.Equal(suite.T(), "/api/panic", access["path"])
	assert.Equal(suite.T(), float64(http.StatusInternalServerError), access["status"])
	assert.NotEmpty(suite.T(), access["request_id"])
}

func (suite *GatewayTestSuite) TestHealth() {
	resp, body := suite.get("/health")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(suite.T(), "HEALTHY", body["status"])
	assert.Equal(suite.T(), map[string]interface{}{"mongodb": "ok"}, body["checks"])

	suite.store.pingErr = errors.New("server selection timeout")
	resp, body = suite.get("/health")
	assert.Equal(suite.T(), http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(suite.T(), "UNHEALTHY", body["status"])
	assert.Equal(suite.T(), "mongodb: server selection timeout", body["error"])
}

func TestGatewayTestSuite(t *testing.T) {
	suite.Run(t, new(GatewayTestSuite))
}

func TestNewGatewayModule_RequiresDependencies(t *testing.T) {
	log := logger.NewLoggerWithConfig("fatal", "text")

	_, err := gateway.NewGatewayModule(nil, &fakeStore{}, nil, log)
	assert.Error(t, err)

	_, err = gateway.NewGatewayModule(testConfig(), nil, nil, log)
	assert.Error(t, err)
}

func TestNewApp_LogsPortOnceListening(t *testing.T) {
	var logs syncBuffer
	log := logger.New(logger.Config{Level: "info", Format: "json", Output: &logs})

	module, err := gateway.NewGatewayModule(testConfig(), &fakeStore{}, nil, log)
	require.NoError(t, err)

	app := module.Build()
	assert.NotContains(t, logs.String(), "Servidor rodando")

	baseURL := serve(t, app)
	_, port, err := net.SplitHostPort(strings.TrimPrefix(baseURL, "http://"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Servidor rodando na porta "+port)
	}, 2*time.Second, 10*time.Millisecond)
}
