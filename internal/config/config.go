// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint/builtin"
	"github.com/paiban/rollingstock/pkg/scheduler/optimizer"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	API      APIConfig      `yaml:"api"`
	Solver   SolverConfig   `yaml:"solver"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name      string `yaml:"name"`
	Env       string `yaml:"env"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json/console
	Version   string `yaml:"version"`
}

// DatabaseConfig 运行归档数据库配置
// Driver 为空时不启用归档
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres/sqlite
	Path            string        `yaml:"path"`   // sqlite 文件路径
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Enabled 是否配置了数据库
func (c *DatabaseConfig) Enabled() bool {
	return c.Driver != ""
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// 支持的数据库驱动
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// RedisConfig Redis配置，启用后最优解事件通过 Redis 发布订阅分发
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
	// PublishBuffer 异步发布队列长度，队列满时丢弃事件
	PublishBuffer int `yaml:"publish_buffer"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit float64       `yaml:"rate_limit"` // 每秒请求数，0 表示不限
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
	Auth      AuthConfig    `yaml:"auth"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// AuthConfig API密钥认证配置
type AuthConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
}

// SolverConfig 求解引擎配置
type SolverConfig struct {
	Optimizer   optimizer.Config `yaml:",inline"`
	Weights     builtin.Weights  `yaml:"weights"`
	StopTimeout time.Duration    `yaml:"stop_timeout"` // 重新启动时等待上一次运行停止的时间
	DemoSeed    uint64           `yaml:"demo_seed"`
	Dataset     string           `yaml:"dataset"`
}

// OptimizerConfig 返回局部搜索配置的副本
func (c *SolverConfig) OptimizerConfig() *optimizer.Config {
	cfg := c.Optimizer
	return &cfg
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:      "rollingstock",
			Env:       "development",
			Port:      7012,
			LogLevel:  "info",
			LogFormat: "json",
			Version:   "1.0.0",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "rollingstock",
			User:            "rollingstock",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
			Channel:  "rolling-stock-schedule",

			PublishBuffer: 256,
		},
		API: APIConfig{
			RateLimit: 100,
			Burst:     20,
			Timeout:   30 * time.Second,
			CORS: CORSConfig{
				Enabled: true,
				Origins: []string{"*"},
			},
		},
		Solver: SolverConfig{
			Optimizer:   *optimizer.DefaultConfig(),
			Weights:     builtin.DefaultWeights(),
			StopTimeout: 5 * time.Second,
			DemoSeed:    37,
			Dataset:     "default",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load 加载配置：默认值 <- CONFIG_FILE 指定的 YAML 文件 <- 环境变量
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile 用 YAML 文件覆盖当前配置
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "读取配置文件失败").WithField("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析配置文件失败").WithField("path", path)
	}
	return nil
}

// applyEnv 环境变量优先于文件
func (c *Config) applyEnv() {
	c.App.Name = getEnv("APP_NAME", c.App.Name)
	c.App.Env = getEnv("APP_ENV", c.App.Env)
	c.App.Port = getEnvInt("APP_PORT", c.App.Port)
	c.App.LogLevel = getEnv("APP_LOG_LEVEL", c.App.LogLevel)
	c.App.LogFormat = getEnv("APP_LOG_FORMAT", c.App.LogFormat)
	c.App.Version = getEnv("APP_VERSION", c.App.Version)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Redis.Enabled = getEnvBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvInt("REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.Channel = getEnv("REDIS_CHANNEL", c.Redis.Channel)
	c.Redis.PublishBuffer = getEnvInt("REDIS_PUBLISH_BUFFER", c.Redis.PublishBuffer)

	c.API.RateLimit = getEnvFloat("API_RATE_LIMIT", c.API.RateLimit)
	c.API.Burst = getEnvInt("API_RATE_BURST", c.API.Burst)
	c.API.Timeout = getEnvDuration("API_TIMEOUT", c.API.Timeout)
	c.API.CORS.Enabled = getEnvBool("API_CORS_ENABLED", c.API.CORS.Enabled)
	c.API.CORS.Origins = getEnvList("API_CORS_ORIGINS", c.API.CORS.Origins)
	c.API.Auth.Enabled = getEnvBool("API_AUTH_ENABLED", c.API.Auth.Enabled)
	c.API.Auth.Keys = getEnvList("API_KEYS", c.API.Auth.Keys)

	o := &c.Solver.Optimizer
	o.Termination.TimeLimit = getEnvDuration("SOLVER_TIME_LIMIT", o.Termination.TimeLimit)
	o.Termination.IterationLimit = getEnvInt64("SOLVER_ITERATION_LIMIT", o.Termination.IterationLimit)
	o.Termination.StagnationLimit = getEnvInt64("SOLVER_STAGNATION_LIMIT", o.Termination.StagnationLimit)
	o.Acceptor = getEnv("SOLVER_ACCEPTOR", o.Acceptor)
	o.InitialTemp = getEnvFloat("SOLVER_INITIAL_TEMP", o.InitialTemp)
	o.CoolingRate = getEnvFloat("SOLVER_COOLING_RATE", o.CoolingRate)
	o.TabuSize = getEnvInt("SOLVER_TABU_SIZE", o.TabuSize)
	o.NeighborhoodSize = getEnvInt("SOLVER_NEIGHBORHOOD_SIZE", o.NeighborhoodSize)
	o.Seed = uint64(getEnvInt64("SOLVER_SEED", int64(o.Seed)))
	o.Workers = getEnvInt("SOLVER_WORKERS", o.Workers)
	c.Solver.StopTimeout = getEnvDuration("SOLVER_STOP_TIMEOUT", c.Solver.StopTimeout)
	c.Solver.DemoSeed = uint64(getEnvInt64("DEMO_SEED", int64(c.Solver.DemoSeed)))
	c.Solver.Dataset = getEnv("DEMO_DATASET", c.Solver.Dataset)

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)
}

// Validate 校验配置
func (c *Config) Validate() error {
	ve := &errors.ValidationErrors{}

	if c.App.Port <= 0 || c.App.Port > 65535 {
		ve.Addf("app.port", "端口 %d 超出范围", c.App.Port)
	}
	switch c.Database.Driver {
	case "", DriverPostgres:
	case DriverSQLite:
		if c.Database.Path == "" {
			ve.Add("database.path", "sqlite 需要文件路径")
		}
	default:
		ve.Addf("database.driver", "不支持的驱动 %q", c.Database.Driver)
	}
	switch c.Solver.Optimizer.Acceptor {
	case optimizer.AcceptorHillClimbing, optimizer.AcceptorSimulatedAnnealing:
	default:
		ve.Addf("solver.acceptor", "未知的接受准则 %q", c.Solver.Optimizer.Acceptor)
	}
	if c.Solver.Optimizer.CoolingRate <= 0 || c.Solver.Optimizer.CoolingRate > 1 {
		ve.Add("solver.cooling_rate", "冷却速率须在 (0,1] 之间")
	}
	if c.Solver.Optimizer.Workers < 1 {
		ve.Add("solver.workers", "至少一个工作协程")
	}
	if c.API.RateLimit < 0 {
		ve.Add("api.rate_limit", "不能为负数")
	}
	if c.API.Auth.Enabled && len(c.API.Auth.Keys) == 0 {
		ve.Add("api.auth.keys", "启用认证时至少配置一个密钥")
	}

	if ve.HasErrors() {
		err := ve.ToAppError()
		err.Code = errors.CodeValidationFail
		err.Message = "配置校验失败"
		return err
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList 逗号分隔的列表
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
