package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/codelab/config"
	"github.com/isdmx/codelab/explain"
	"github.com/isdmx/codelab/sandbox"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExecutor struct {
	calls  atomic.Int32
	result sandbox.ExecuteResult
	err    error
	panics bool
	ctxErr error
}

func (f *fakeExecutor) Execute(ctx context.Context, req sandbox.ExecuteRequest) (sandbox.ExecuteResult, error) {
	f.calls.Add(1)
	f.ctxErr = ctx.Err()
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return sandbox.ExecuteResult{}, f.err
	}
	if !sandbox.IsSupported(req.Language) {
		return sandbox.ExecuteResult{Error: "Language '" + req.Language + "' not supported", ExecutionTimeMs: 1}, nil
	}
	return f.result, nil
}

type fakeExplainer struct {
	got explain.Request
}

func (f *fakeExplainer) Explain(_ context.Context, req explain.Request) string {
	f.got = req
	return "explained " + req.Language
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Transport: "http", HTTPPort: 5000, ShutdownTimeoutSec: 1},
		Sandbox: config.SandboxConfig{TimeoutSec: 10},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, exec sandbox.Executor, explainer explain.Explainer, opts ...Option) *Server {
	t.Helper()
	if explainer == nil {
		explainer = &fakeExplainer{}
	}
	return New(cfg, zaptest.NewLogger(t), exec, explainer, opts...)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeSingle decodes the body and asserts nothing follows the first JSON value.
func decodeSingle(t *testing.T, body []byte) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(body))
	var out map[string]any
	require.NoError(t, dec.Decode(&out))
	var extra any
	assert.ErrorIs(t, dec.Decode(&extra), io.EOF, "response must contain exactly one JSON document")
	return out
}

func TestExecuteEndpoint(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		exec := &fakeExecutor{result: sandbox.ExecuteResult{Output: "hello", ExecutionTimeMs: 12}}
		s := newTestServer(t, testConfig(), exec, nil)

		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute", `{"code":"print('hello')","language":"python"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeSingle(t, rec.Body.Bytes())
		assert.Equal(t, "hello", body["output"])
		assert.EqualValues(t, 12, body["executionTime"])
		assert.NotContains(t, body, "error")
	})

	t.Run("ExecutionFailureIsOK", func(t *testing.T) {
		exec := &fakeExecutor{result: sandbox.ExecuteResult{Error: "ZeroDivisionError: division by zero", ExecutionTimeMs: 30}}
		s := newTestServer(t, testConfig(), exec, nil)

		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute", `{"code":"print(1/0)","language":"python"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeSingle(t, rec.Body.Bytes())
		assert.Equal(t, "", body["output"])
		assert.Contains(t, body["error"], "ZeroDivisionError")
	})

	t.Run("UnsupportedLanguageIsOK", func(t *testing.T) {
		exec := &fakeExecutor{}
		s := newTestServer(t, testConfig(), exec, nil)

		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute", `{"code":"puts 1","language":"ruby"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeSingle(t, rec.Body.Bytes())
		assert.Equal(t, "", body["output"])
		assert.Equal(t, "Language 'ruby' not supported", body["error"])
		assert.Contains(t, body, "executionTime")
	})

	validation := []struct {
		name    string
		body    string
		message string
	}{
		{"EmptyCode", `{"code":"","language":"python"}`, "code must be a non-empty string"},
		{"MissingLanguage", `{"code":"print(1)"}`, "language must be a non-empty string"},
		{"WrongType", `{"code":42,"language":"python"}`, "code must be a string"},
		{"NotJSON", `code=1`, "request body must be valid JSON"},
		{"EmptyBody", ``, "request body is required"},
	}
	for _, tc := range validation {
		t.Run(tc.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			s := newTestServer(t, testConfig(), exec, nil)

			rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeSingle(t, rec.Body.Bytes())
			assert.Equal(t, tc.message, body["error"])
			assert.Zero(t, exec.calls.Load())
		})
	}

	t.Run("Busy", func(t *testing.T) {
		exec := &fakeExecutor{err: sandbox.ErrBusy}
		s := newTestServer(t, testConfig(), exec, nil)

		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute", `{"code":"print(1)","language":"python"}`)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, sandbox.ErrBusy.Error(), decodeSingle(t, rec.Body.Bytes())["error"])
	})

	t.Run("UnexpectedError", func(t *testing.T) {
		exec := &fakeExecutor{err: errors.New("disk on fire")}
		s := newTestServer(t, testConfig(), exec, nil)

		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute", `{"code":"print(1)","language":"python"}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, MsgInternalError, decodeSingle(t, rec.Body.Bytes())["error"])
	})

	t.Run("PanicRecovered", func(t *testing.T) {
		exec := &fakeExecutor{panics: true}
		s := newTestServer(t, testConfig(), exec, nil)

		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute", `{"code":"print(1)","language":"python"}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, MsgInternalError, decodeSingle(t, rec.Body.Bytes())["error"])
	})

	t.Run("DetachedFromClientCancel", func(t *testing.T) {
		exec := &fakeExecutor{result: sandbox.ExecuteResult{Output: "ok"}}
		s := newTestServer(t, testConfig(), exec, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(`{"code":"print(1)","language":"python"}`)).WithContext(ctx)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, exec.ctxErr)
	})
}

func TestExplainEndpoint(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		explainer := &fakeExplainer{}
		s := newTestServer(t, testConfig(), &fakeExecutor{}, explainer)

		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/explain",
			`{"code":"print(x)","language":"python","error":"NameError: name 'x' is not defined"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeSingle(t, rec.Body.Bytes())
		assert.Equal(t, "explained python", body["explanation"])
		assert.Equal(t, "print(x)", explainer.got.Code)
		assert.Equal(t, "NameError: name 'x' is not defined", explainer.got.Error)
	})

	invalid := []struct {
		name string
		body string
	}{
		{"MissingError", `{"code":"print(x)","language":"python"}`},
		{"EmptyCode", `{"code":"","language":"python","error":"boom"}`},
		{"UnknownLanguage", `{"code":"x","language":"ruby","error":"boom"}`},
		{"NotJSON", `[`},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), &fakeExecutor{}, nil)

			rec := doJSON(t, s.Handler(), http.MethodPost, "/api/explain", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, MsgInvalidExplain, decodeSingle(t, rec.Body.Bytes())["explanation"])
		})
	}

	t.Run("FallbackWhenModelUnavailable", func(t *testing.T) {
		svc := explain.NewService(zap.NewNop(), explain.Settings{Enabled: false}, nil, nil)
		s := newTestServer(t, testConfig(), &fakeExecutor{}, svc)

		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/explain",
			`{"code":"print(x)","language":"python","error":"NameError: name 'x' is not defined"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, decodeSingle(t, rec.Body.Bytes())["explanation"], "NameError: Variable Not Defined")
	})
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeExecutor{}, nil)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeSingle(t, rec.Body.Bytes())["status"])
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeExecutor{}, nil)

	t.Run("Generated", func(t *testing.T) {
		rec := doJSON(t, s.Handler(), http.MethodGet, "/healthz", "")
		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})

	t.Run("Propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeExecutor{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/execute", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	s := newTestServer(t, cfg, &fakeExecutor{result: sandbox.ExecuteResult{Output: "1"}}, nil)

	body := `{"code":"print(1)","language":"python"}`
	for i := 0; i < 2; i++ {
		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// health checks are not limited
	rec = doJSON(t, s.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	s := newTestServer(t, cfg, &fakeExecutor{result: sandbox.ExecuteResult{Output: "1"}}, nil)

	accepted := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(`{"code":"print(1)","language":"python"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		switch rec.Code {
		case http.StatusOK:
			accepted++
		case http.StatusTooManyRequests:
		default:
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}

	assert.Equal(t, 1, accepted, "rotating X-Forwarded-For must not yield fresh buckets")
}

func TestRateLimitHonoursTrustedProxy(t *testing.T) {
	cfg := testConfig()
	// httptest requests come from 192.0.2.1
	cfg.Server.TrustedProxies = []string{"192.0.2.0/24"}
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	s := newTestServer(t, cfg, &fakeExecutor{result: sandbox.ExecuteResult{Output: "1"}}, nil)

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader(`{"code":"print(1)","language":"python"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
}

func TestIPRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.Equal(t, 2, limiter.Len())

	current = current.Add(limiter.idleTTL / 2)
	assert.True(t, limiter.Allow("10.0.0.3"))
	assert.Equal(t, 3, limiter.Len(), "nothing is idle long enough yet")

	current = current.Add(limiter.idleTTL)
	assert.True(t, limiter.Allow("10.0.0.4"))
	assert.Equal(t, 1, limiter.Len())
}

func TestIPRateLimiterKeepsBucketsUntilRefilled(t *testing.T) {
	assert.Equal(t, minIdleTTL, NewIPRateLimiter(5, 10).idleTTL)
	assert.Equal(t, 2000*time.Second, NewIPRateLimiter(0.001, 2).idleTTL)
	assert.Equal(t, maxIdleTTL, NewIPRateLimiter(0.000001, 1).idleTTL)

	limiter := NewIPRateLimiter(0.001, 1)
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }

	assert.True(t, limiter.Allow("10.0.0.1"))
	current = current.Add(limiter.idleTTL - time.Second)
	assert.False(t, limiter.Allow("10.0.0.1"), "drained bucket must survive until it refills")
}

func TestIPRateLimiterPerClient(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 1)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestMCPMount(t *testing.T) {
	mounted := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	s := newTestServer(t, testConfig(), &fakeExecutor{}, nil, WithMCPHandler(mounted))
	rec := doJSON(t, s.Handler(), http.MethodPost, "/mcp", `{}`)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	bare := newTestServer(t, testConfig(), &fakeExecutor{}, nil)
	rec = doJSON(t, bare.Handler(), http.MethodPost, "/mcp", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.Server.HTTPPort = 0
	s := newTestServer(t, cfg, &fakeExecutor{}, nil)
	s.httpServer.Addr = "127.0.0.1:0"

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
