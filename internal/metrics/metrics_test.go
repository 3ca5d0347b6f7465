package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequestMetrics(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/health", "200"))
	RecordRequestMetrics("GET", "/health", 200, 5*time.Millisecond)
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/health", "200"))
	if after-before != 1 {
		t.Errorf("请求计数增加 %v", after-before)
	}
}

func TestRecordBestScore(t *testing.T) {
	RecordBestScore("demo", -2, 150)

	if got := testutil.ToFloat64(BestScore.WithLabelValues("demo", "hard")); got != -2 {
		t.Errorf("hard = %v", got)
	}
	if got := testutil.ToFloat64(BestScore.WithLabelValues("demo", "soft")); got != 150 {
		t.Errorf("soft = %v", got)
	}
}

func TestSetConstraintViolations(t *testing.T) {
	SetConstraintViolations(map[string]int{"no_double_booking": 3})
	SetConstraintViolations(map[string]int{"train_capacity": 1})

	if got := testutil.ToFloat64(ConstraintViolations.WithLabelValues("train_capacity")); got != 1 {
		t.Errorf("train_capacity = %v", got)
	}
	if n := testutil.CollectAndCount(ConstraintViolations); n != 1 {
		t.Errorf("旧的约束应被清除, count = %d", n)
	}
}

func TestHandler(t *testing.T) {
	RecordSolveRun("iteration_limit", true, "hill_climbing", 100, time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"rollingstock_solve_runs_total", "rollingstock_optimizer_steps_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("输出缺少 %s", name)
		}
	}
}
