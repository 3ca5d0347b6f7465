package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/paiban/rollingstock/internal/broker"
	"github.com/paiban/rollingstock/internal/config"
	"github.com/paiban/rollingstock/internal/database"
	"github.com/paiban/rollingstock/internal/handler"
	"github.com/paiban/rollingstock/internal/metrics"
	"github.com/paiban/rollingstock/internal/middleware"
	"github.com/paiban/rollingstock/internal/repository"
	"github.com/paiban/rollingstock/internal/security"
	"github.com/paiban/rollingstock/pkg/demo"
	"github.com/paiban/rollingstock/pkg/scheduler/session"
)

// routerDeps 路由依赖
type routerDeps struct {
	cfg      *config.Config
	sessions *session.Manager
	broker   broker.Broker
	runs     *repository.RunRepository
	db       *database.DB
	keys     *security.APIKeyManager
	limiter  *security.RateLimiter
	demo     *demo.Generator
	dataset  demo.Dataset
}

// 不需要认证的路径
var publicPaths = []string{"/health", "/version", "/metrics"}

// newRouter 创建路由
// 中间件执行顺序：requestID -> recovery -> securityHeaders -> cors -> rateLimit -> logging -> auth -> handler
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.SecurityHeaders)
	if d.cfg.API.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.cfg.API.CORS.Origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if d.limiter != nil {
		r.Use(middleware.RateLimit(d.limiter))
	}
	r.Use(middleware.Logging)
	r.Use(middleware.Timeout(d.cfg.API.Timeout, "/rolling-stock-schedule/events"))
	if d.cfg.API.Auth.Enabled {
		r.Use(middleware.Auth(d.keys, publicPaths...))
	}

	// ========================================
	// 系统端点
	// ========================================

	r.Get("/health", healthHandler(d))
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})
	if d.cfg.Metrics.Enabled {
		r.Handle(d.cfg.Metrics.Path, metrics.Handler())
	}

	// ========================================
	// 车辆调度 API
	// ========================================

	handler.NewScheduleHandler(handler.Options{
		Sessions:  d.sessions,
		Broker:    d.broker,
		Runs:      d.runs,
		Generator: d.demo,
		Dataset:   d.dataset,
		Weights:   d.cfg.Solver.Weights,
		Acceptor:  d.cfg.Solver.Optimizer.Acceptor,
	}).Routes(r)

	return r
}

// healthHandler 健康检查，配置了数据库时检查连接
func healthHandler(d routerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status":      "ok",
			"service":     d.cfg.App.Name,
			"solver":      d.sessions.Status(handler.ProblemKey).String(),
			"active_runs": d.sessions.Active(),
			"timestamp":   time.Now().UTC(),
		}

		if d.db != nil {
			metrics.RecordDBStats(d.db.Stats())

			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.db.Health(ctx); err != nil {
				resp["status"] = "error"
				resp["database"] = "disconnected"
				resp["error"] = err.Error()
				writeJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
			resp["database"] = "connected"
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
