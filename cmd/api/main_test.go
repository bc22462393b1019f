package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/chatdesk/internal/config"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

func memoryConfig() *appconfig.Config {
	return &appconfig.Config{
		Port:                 "0",
		OperatorStore:        "memory",
		TranscriptStore:      "memory",
		SessionCache:         "memory",
		SessionHistoryLimit:  20,
		SessionIdleTTL:       time.Hour,
		SessionSweepInterval: time.Minute,
		EmailProvider:        "stub",
		NotifyMode:           "memory",
		NotifyWorkerCount:    1,
		AdminJWTSecret:       "secret",
		ChatRateLimitRPS:     10,
		ChatRateLimitBurst:   10,
	}
}

func TestNeedsAWS(t *testing.T) {
	cfg := memoryConfig()
	assert.False(t, needsAWS(cfg))

	cfg.EmailProvider = "ses"
	assert.True(t, needsAWS(cfg))

	cfg = memoryConfig()
	cfg.ArchiveBucket = "chat-archive"
	assert.True(t, needsAWS(cfg))
}

func TestBuildAppServesHealthAndMetrics(t *testing.T) {
	a, err := buildApp(context.Background(), memoryConfig(), logging.New("error"), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	assert.NotNil(t, a.cache)
	assert.NotNil(t, a.worker)

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestBuildAppUnknownOperatorIsNotFound(t *testing.T) {
	a, err := buildApp(context.Background(), memoryConfig(), logging.New("error"), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"operator_id":"ghost","text":"hello"}`))
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "service not found")
}

func TestBuildAppRejectsUnknownNotifyMode(t *testing.T) {
	cfg := memoryConfig()
	cfg.NotifyMode = "pigeon"
	_, err := buildApp(context.Background(), cfg, logging.New("error"), prometheus.NewRegistry())
	assert.ErrorContains(t, err, "NOTIFY_MODE")
}
