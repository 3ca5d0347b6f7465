// Package metrics 提供Prometheus监控指标
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rollingstock"

var (
	// Registry 独立的指标注册表
	Registry = prometheus.NewRegistry()

	// HTTPRequests 请求计数
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP请求总数"},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration 请求延迟
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"method", "path"},
	)

	// SolveRuns 求解运行次数，按终止原因和可行性
	SolveRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "solve_runs_total", Help: "求解运行次数"},
		[]string{"reason", "feasible"},
	)
	// SolveDuration 求解耗时
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "求解耗时",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
		},
	)
	// OptimizerSteps 局部搜索步数
	OptimizerSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "optimizer_steps_total", Help: "局部搜索步数"},
		[]string{"acceptor"},
	)
	// ActiveRuns 正在求解的运行数
	ActiveRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "active_runs", Help: "当前正在求解的运行数"},
	)
	// BestScore 当前最优解得分
	BestScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "best_score", Help: "当前最优解得分"},
		[]string{"problem", "level"},
	)
	// ImprovedSolutions 发布的更优解数量
	ImprovedSolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "improved_solutions_total", Help: "发现的更优解数量"},
		[]string{"problem"},
	)
	// ConstraintViolations 最终方案中的约束违反数
	ConstraintViolations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "constraint_violations", Help: "最终方案中的约束违反数"},
		[]string{"constraint_type"},
	)
	// DBConnections 数据库连接池
	DBConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "db_connections", Help: "数据库连接数"},
		[]string{"state"},
	)
)

var regOnce sync.Once

// RegisterDefault 注册全部指标以及 Go/进程指标
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests, HTTPDuration,
			SolveRuns, SolveDuration, OptimizerSteps, ActiveRuns,
			BestScore, ImprovedSolutions, ConstraintViolations, DBConnections,
		)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSolveRun 记录一次运行结束
func RecordSolveRun(reason string, feasible bool, acceptor string, steps int64, duration time.Duration) {
	SolveRuns.WithLabelValues(reason, strconv.FormatBool(feasible)).Inc()
	SolveDuration.Observe(duration.Seconds())
	OptimizerSteps.WithLabelValues(acceptor).Add(float64(steps))
}

// RecordBestScore 记录发现的更优解
func RecordBestScore(problem string, hard, soft int64) {
	BestScore.WithLabelValues(problem, "hard").Set(float64(hard))
	BestScore.WithLabelValues(problem, "soft").Set(float64(soft))
	ImprovedSolutions.WithLabelValues(problem).Inc()
}

// SetConstraintViolations 记录各约束的违反数
func SetConstraintViolations(counts map[string]int) {
	ConstraintViolations.Reset()
	for typ, n := range counts {
		ConstraintViolations.WithLabelValues(typ).Set(float64(n))
	}
}

// SetActiveRuns 记录正在求解的运行数
func SetActiveRuns(n int) {
	ActiveRuns.Set(float64(n))
}

// RecordDBStats 记录连接池状态
func RecordDBStats(stats sql.DBStats) {
	DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
}
