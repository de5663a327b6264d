package config

import (
	"os"
	"time"

	"taskboard/pkg/config"
)

// OutboxConfig 控制 outbox dispatcher
type OutboxConfig struct {
	IntervalMS int `yaml:"interval_ms"`
	BatchSize  int `yaml:"batch_size"`
	MaxRetries int `yaml:"max_retries"`
}

func (c OutboxConfig) Interval() time.Duration {
	if c.IntervalMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// ReconcileConfig 控制级联删除补偿任务
type ReconcileConfig struct {
	Enabled      bool `yaml:"enabled"`
	IntervalSec  int  `yaml:"interval_sec"`
	GraceSec     int  `yaml:"grace_sec"`
	LockTTLSec   int  `yaml:"lock_ttl_sec"`
	DedupTTLHour int  `yaml:"dedup_ttl_hours"`
}

func (c ReconcileConfig) Interval() time.Duration {
	return secondsOr(c.IntervalSec, 5*time.Minute)
}

func (c ReconcileConfig) Grace() time.Duration {
	return secondsOr(c.GraceSec, time.Minute)
}

func (c ReconcileConfig) LockTTL() time.Duration {
	return secondsOr(c.LockTTLSec, 2*time.Minute)
}

func (c ReconcileConfig) DedupTTL() time.Duration {
	if c.DedupTTLHour <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.DedupTTLHour) * time.Hour
}

// CacheConfig 用户展示信息缓存
type CacheConfig struct {
	UserTTLSec int `yaml:"user_ttl_sec"`
}

func (c CacheConfig) UserTTL() time.Duration {
	return secondsOr(c.UserTTLSec, 10*time.Minute)
}

type Config struct {
	Server    config.ServerConfig `yaml:"server"`
	DB        config.DBConfig     `yaml:"db"`
	MQ        config.MQConfig     `yaml:"mq"`
	Redis     config.RedisConfig  `yaml:"redis"`
	JWT       config.JWTConfig    `yaml:"jwt"`
	OTel      config.OTelConfig   `yaml:"otel"`
	Outbox    OutboxConfig        `yaml:"outbox"`
	Reconcile ReconcileConfig     `yaml:"reconcile"`
	Cache     CacheConfig         `yaml:"cache"`
	LogLevel  string              `yaml:"log_level"`
}

// Load 读取 <dir>/base.yaml 与 <dir>/<env>.yaml，再应用环境变量覆盖
func Load(dir, env string) (*Config, error) {
	var cfg Config
	if err := config.LoadInto(dir, env, &cfg); err != nil {
		return nil, err
	}

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOTelFromEnv(&cfg.OTel)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	return &cfg, nil
}

func secondsOr(sec int, def time.Duration) time.Duration {
	if sec <= 0 {
		return def
	}
	return time.Duration(sec) * time.Second
}
