// config/config.go
package config

import (
	"fmt"
	"time"
)

// Config 主配置结构
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Runtime   RuntimeConfig
	Scheduler SchedulerConfig
	Log       LogConfig
	Genesis   GenesisConfig
}

// ServerConfig HTTP/3 服务器配置
type ServerConfig struct {
	Port string // "6000"

	// TLS 配置
	CertFile         string // 为空时在 DataDir 下生成自签名证书
	KeyFile          string
	CertValidityDays int // 365

	// QUIC 配置
	QUICKeepAlivePeriod time.Duration // 10 * time.Second
	QUICMaxIdleTimeout  time.Duration // 5 * time.Minute
	QUICAllow0RTT       bool          // true

	// HTTP 配置
	MaxRequestBodySize int64 // 1 << 20

	// 限流：每个 IP 每个窗口的最大请求数
	RateLimitRequests int           // 200
	RateLimitWindow   time.Duration // time.Second
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path             string // "./data"
	InMemory         bool
	ValueLogFileSize int64 // 64 << 20 (64MB)
	SyncWrites       bool
}

// RuntimeConfig 执行运行时参数
type RuntimeConfig struct {
	// 租金：每字节 lamports（含 128 字节账户头）
	RentLamportsPerByte uint64 // 6960
	// 跨程序调用最大深度
	MaxCallDepth int // 4
	// 最近交易 ID 去重缓存
	RecentTxCacheSize int // 10000
	// 延迟统计样本容量
	LatencySamples int // 2048
}

// SchedulerConfig 调度器（crank）配置
type SchedulerConfig struct {
	// 节点负责的任务队列名，启动时不存在则创建并授权给金库；为空则不启动 crank
	TaskQueue     string
	QueueCapacity uint16        // 64
	CrankInterval time.Duration // 2 * time.Second
	// 任务连续失败多少次后 crank 将其出队
	MaxAttempts int // 3
	// 节点运营者私钥（hex），用于 crank 签名和队列管理；为空则启动时随机生成
	CrankSecret string
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string // "info"
	NodeTag string
}

// GenesisConfig 启动时注入的初始余额（base58 地址 → lamports），仅当账户不存在时生效
type GenesisConfig struct {
	Airdrops map[string]uint64
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                "6000",
			CertValidityDays:    365,
			QUICKeepAlivePeriod: 10 * time.Second,
			QUICMaxIdleTimeout:  5 * time.Minute,
			QUICAllow0RTT:       true,
			MaxRequestBodySize:  1 << 20,
			RateLimitRequests:   200,
			RateLimitWindow:     time.Second,
		},
		Database: DatabaseConfig{
			Path:             "./data",
			ValueLogFileSize: 64 << 20,
		},
		Runtime: RuntimeConfig{
			RentLamportsPerByte: 6960,
			MaxCallDepth:        4,
			RecentTxCacheSize:   10000,
			LatencySamples:      2048,
		},
		Scheduler: SchedulerConfig{
			QueueCapacity: 64,
			CrankInterval: 2 * time.Second,
			MaxAttempts:   3,
		},
		Log: LogConfig{
			Level: "info",
		},
		Genesis: GenesisConfig{
			Airdrops: map[string]uint64{},
		},
	}
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Runtime.MaxCallDepth < 1 {
		return fmt.Errorf("runtime.MaxCallDepth must be >= 1, got %d", c.Runtime.MaxCallDepth)
	}
	if c.Runtime.RecentTxCacheSize < 1 {
		return fmt.Errorf("runtime.RecentTxCacheSize must be >= 1, got %d", c.Runtime.RecentTxCacheSize)
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("database.Path is required unless InMemory is set")
	}
	if c.Scheduler.TaskQueue != "" && c.Scheduler.CrankInterval <= 0 {
		return fmt.Errorf("scheduler.CrankInterval must be positive when a task queue is configured")
	}
	if c.Scheduler.TaskQueue != "" && c.Scheduler.MaxAttempts < 1 {
		return fmt.Errorf("scheduler.MaxAttempts must be >= 1, got %d", c.Scheduler.MaxAttempts)
	}
	if c.Scheduler.TaskQueue != "" && c.Scheduler.QueueCapacity == 0 {
		return fmt.Errorf("scheduler.QueueCapacity must be positive when a task queue is configured")
	}
	if c.Server.RateLimitRequests < 1 || c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server rate limit must be positive")
	}
	return nil
}
