package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paiban/rollingstock/internal/broker"
	"github.com/paiban/rollingstock/internal/config"
	"github.com/paiban/rollingstock/internal/security"
	"github.com/paiban/rollingstock/pkg/demo"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint/builtin"
	"github.com/paiban/rollingstock/pkg/scheduler/optimizer"
	"github.com/paiban/rollingstock/pkg/scheduler/session"
	"github.com/paiban/rollingstock/pkg/scheduler/solver"
)

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	sessions := session.NewManager(func() *solver.Solver {
		c := optimizer.DefaultConfig()
		c.Termination = optimizer.Termination{IterationLimit: 0}
		return solver.NewSolver(builtin.NewDefaultManager(cfg.Solver.Weights), c)
	}, time.Second)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sessions.Shutdown(ctx)
	})

	keys := security.NewAPIKeyManager()
	keys.LoadSpecs(cfg.API.Auth.Keys)

	return newRouter(routerDeps{
		cfg:      cfg,
		sessions: sessions,
		broker:   broker.NewMemoryBroker(),
		keys:     keys,
		demo:     demo.NewGenerator(demo.DefaultSeed),
		dataset:  demo.DatasetSmall,
	})
}

func TestRouter_SystemEndpoints(t *testing.T) {
	router := newTestRouter(t, config.Default())

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/health", http.StatusOK, `"status":"ok"`},
		{"/version", http.StatusOK, `"version"`},
		{"/metrics", http.StatusOK, "go_goroutines"},
		{"/rolling-stock-schedule", http.StatusOK, `"solver_status":"NOT_SOLVING"`},
		{"/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, expected %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("响应不包含 %q", tt.contains)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("缺少 X-Request-ID")
			}
		})
	}
}

func TestRouter_Auth(t *testing.T) {
	cfg := config.Default()
	cfg.API.Auth.Enabled = true
	cfg.API.Auth.Keys = []string{"reader:read", "operator:read|solve"}
	router := newTestRouter(t, cfg)

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		status int
	}{
		{"健康检查无需认证", http.MethodGet, "/health", "", http.StatusOK},
		{"缺少密钥", http.MethodGet, "/rolling-stock-schedule", "", http.StatusUnauthorized},
		{"只读密钥可读", http.MethodGet, "/rolling-stock-schedule", "reader", http.StatusOK},
		{"只读密钥不能求解", http.MethodPost, "/rolling-stock-schedule/solve", "reader", http.StatusForbidden},
		{"求解权限", http.MethodPost, "/rolling-stock-schedule/solve", "operator", http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("Authorization", "Bearer "+tt.key)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, expected %d", rec.Code, tt.status)
			}
		})
	}
}

func TestRouter_Version(t *testing.T) {
	router := newTestRouter(t, config.Default())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if body["version"] != Version || body["git_commit"] != GitCommit {
		t.Errorf("body = %v", body)
	}
}
