package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/scheduler/optimizer"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.Port != 7012 {
		t.Errorf("port = %d", cfg.App.Port)
	}
	if cfg.Database.Enabled() {
		t.Error("默认不启用数据库")
	}
	if cfg.Solver.Optimizer.Acceptor != optimizer.AcceptorSimulatedAnnealing {
		t.Errorf("acceptor = %s", cfg.Solver.Optimizer.Acceptor)
	}
	if cfg.Solver.Weights.DoubleBookingWindow != 30*time.Minute {
		t.Errorf("window = %v", cfg.Solver.Weights.DoubleBookingWindow)
	}
	if !cfg.IsDevelopment() {
		t.Error("默认为开发环境")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  port: 8080
  env: production
database:
  driver: sqlite
  path: runs.db
solver:
  acceptor: hill_climbing
  termination:
    time_limit: 5s
    iteration_limit: 1000
  workers: 2
  weights:
    double_booking_window: 45m
    empty_train: 3
api:
  cors:
    origins: ["https://example.com"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("SOLVER_ITERATION_LIMIT", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		ok   bool
	}{
		{"环境变量覆盖文件", cfg.App.Port == 9090},
		{"文件覆盖默认值", cfg.IsProduction()},
		{"sqlite 驱动", cfg.Database.Driver == DriverSQLite && cfg.Database.DSN() == "runs.db"},
		{"接受准则", cfg.Solver.Optimizer.Acceptor == optimizer.AcceptorHillClimbing},
		{"时间限制", cfg.Solver.Optimizer.Termination.TimeLimit == 5*time.Second},
		{"迭代上限来自环境变量", cfg.Solver.Optimizer.Termination.IterationLimit == 50},
		{"未设置的字段保留默认", cfg.Solver.Optimizer.Termination.StagnationLimit == 20000},
		{"工作协程", cfg.Solver.Optimizer.Workers == 2},
		{"规则参数", cfg.Solver.Weights.DoubleBookingWindow == 45*time.Minute && cfg.Solver.Weights.EmptyTrain == 3},
		{"跨域来源", len(cfg.API.CORS.Origins) == 1 && cfg.API.CORS.Origins[0] == "https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.ok {
				t.Errorf("cfg = %+v", cfg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"端口越界", func(c *Config) { c.App.Port = 70000 }, "app.port"},
		{"未知驱动", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"sqlite 缺少路径", func(c *Config) { c.Database.Driver = DriverSQLite }, "database.path"},
		{"未知接受准则", func(c *Config) { c.Solver.Optimizer.Acceptor = "tabu" }, "solver.acceptor"},
		{"冷却速率", func(c *Config) { c.Solver.Optimizer.CoolingRate = 1.5 }, "solver.cooling_rate"},
		{"工作协程", func(c *Config) { c.Solver.Optimizer.Workers = 0 }, "solver.workers"},
		{"认证缺少密钥", func(c *Config) { c.API.Auth.Enabled = true }, "api.auth.keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if !errors.Is(err, errors.CodeValidationFail) {
				t.Fatalf("err = %v", err)
			}
			appErr := errors.From(err)
			if _, ok := appErr.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, 缺少 %s", appErr.Fields, tt.field)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("默认配置应合法: %v", err)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, b ,,c ")
	got := getEnvList("TEST_LIST", nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("getEnvList() = %v", got)
	}
	if got := getEnvList("TEST_LIST_MISSING", []string{"x"}); len(got) != 1 {
		t.Errorf("default = %v", got)
	}
}
