package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chatdesk/internal/chat"
	"github.com/wolfman30/chatdesk/internal/dashboard"
	httpmiddleware "github.com/wolfman30/chatdesk/internal/http/middleware"
	"github.com/wolfman30/chatdesk/internal/observability/metrics"
	"github.com/wolfman30/chatdesk/internal/operator"
	"github.com/wolfman30/chatdesk/internal/session"
	"github.com/wolfman30/chatdesk/internal/transcript"
	"github.com/wolfman30/chatdesk/internal/webchat"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T, secret string, checks map[string]HealthCheck) http.Handler {
	t.Helper()

	logger := logging.New("error")
	ops := operator.NewMemoryStore()
	require.NoError(t, ops.Put(context.Background(), "op1", &operator.Config{BusinessName: "Lakeside Kayaks"}))

	reg := prometheus.NewRegistry()
	svc, err := chat.New(chat.Deps{
		Operators:   ops,
		Transcripts: transcript.NewMemoryStore(),
		Cache:       session.NewMemoryCache(20, time.Hour),
		Metrics:     metrics.NewChatMetrics(reg),
		Logger:      logger,
	})
	require.NoError(t, err)

	return New(&Config{
		Logger:          logger,
		Webchat:         webchat.NewHandler(svc, nil, logger),
		Dashboard:       dashboard.NewHandler(svc, logger),
		Operators:       operator.NewHandler(ops, logger),
		ChatLimiter:     httpmiddleware.NewRateLimiter(100, 100),
		AdminAuthSecret: secret,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadyChecks:     checks,
	})
}

func bearer(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, testSecret, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterReadyReportsFailingChecks(t *testing.T) {
	router := newTestRouter(t, testSecret, map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
	assert.Contains(t, rr.Body.String(), `"redis":"ok"`)
}

func TestRouterChatMessageAndMetrics(t *testing.T) {
	router := newTestRouter(t, testSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"operator_id":"op1","session_id":"s1","text":"what are your prices"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"session_id":"s1"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "chatdesk_chat_messages_total")
}

func TestRouterDashboardRequiresToken(t *testing.T) {
	router := newTestRouter(t, testSecret, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/operators/op1/conversations", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/operators/op1/conversations", nil)
	req.Header.Set("Authorization", bearer(t))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/operators/op1/config", nil)
	req.Header.Set("Authorization", bearer(t))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Lakeside Kayaks")
}

func TestRouterWithoutSecretHidesOperatorRoutes(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/operators/op1/conversations", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterChatRateLimited(t *testing.T) {
	logger := logging.New("error")
	ops := operator.NewMemoryStore()
	svc, err := chat.New(chat.Deps{
		Operators:   ops,
		Transcripts: transcript.NewMemoryStore(),
		Cache:       session.NewMemoryCache(20, time.Hour),
		Logger:      logger,
	})
	require.NoError(t, err)
	router := New(&Config{
		Logger:      logger,
		Webchat:     webchat.NewHandler(svc, nil, logger),
		ChatLimiter: httpmiddleware.NewRateLimiter(0.001, 1),
	})

	codes := []int{}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/chat/history?operator=op1&session=s1", nil)
		req.RemoteAddr = "198.51.100.4:1234"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
