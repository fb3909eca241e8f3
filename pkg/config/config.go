package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	RPCURL          string        // 以太坊节点 RPC 地址
	ChainID         int64         // 链 ID（订单哈希域）
	ContractAddress string        // 结算合约地址
	RelayerURL      string        // 撮合服务 REST 地址（可选，为空则不灌入初始订单）
	RelayerWSURL    string        // 撮合服务订单流 WebSocket 地址（可选）
	ListenAddr      string        // 状态服务监听地址
	PollInterval    time.Duration // 链上日志轮询间隔
	ExpirationCheck time.Duration // 过期扫描间隔
	ExpirationMargin time.Duration // 过期提前触发量
	CleanupInterval time.Duration // 全量清理间隔
	LogLevel        string        // 日志级别
	LogFile         string        // 日志文件路径（可选）
}

// configFile 配置文件结构（YAML）
type configFile struct {
	RPCURL          string `yaml:"rpc_url"`
	ChainID         int64  `yaml:"chain_id"`
	ContractAddress string `yaml:"contract_address"`
	RelayerURL      string `yaml:"relayer_url"`
	RelayerWSURL    string `yaml:"relayer_ws_url"`
	ListenAddr      string `yaml:"listen_addr"`
	PollIntervalMs  int    `yaml:"poll_interval_ms"`
	ExpirationCheckMs int  `yaml:"expiration_check_ms"`
	ExpirationMarginMs int `yaml:"expiration_margin_ms"`
	CleanupIntervalS  int  `yaml:"cleanup_interval_s"`
	LogLevel        string `yaml:"log_level"`
	LogFile         string `yaml:"log_file"`
}

// Load 加载配置
// 优先级：环境变量 > 配置文件 > 默认值。filePath 为空时只用
// 环境变量和默认值。
func Load(filePath string) (*Config, error) {
	var cf *configFile
	if filePath != "" {
		var err error
		cf, err = loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	config := &Config{
		RPCURL:          stringValue("RPC_URL", cf, func(c *configFile) string { return c.RPCURL }, ""),
		ChainID:         int64Value("CHAIN_ID", cf, func(c *configFile) int64 { return c.ChainID }, 1),
		ContractAddress: stringValue("CONTRACT_ADDRESS", cf, func(c *configFile) string { return c.ContractAddress }, ""),
		RelayerURL:      stringValue("RELAYER_URL", cf, func(c *configFile) string { return c.RelayerURL }, ""),
		RelayerWSURL:    stringValue("RELAYER_WS_URL", cf, func(c *configFile) string { return c.RelayerWSURL }, ""),
		ListenAddr:      stringValue("LISTEN_ADDR", cf, func(c *configFile) string { return c.ListenAddr }, ":8080"),
		PollInterval:    durationValue("POLL_INTERVAL_MS", cf, func(c *configFile) int { return c.PollIntervalMs }, time.Millisecond, 200*time.Millisecond),
		ExpirationCheck: durationValue("EXPIRATION_CHECK_MS", cf, func(c *configFile) int { return c.ExpirationCheckMs }, time.Millisecond, 500*time.Millisecond),
		ExpirationMargin: durationValue("EXPIRATION_MARGIN_MS", cf, func(c *configFile) int { return c.ExpirationMarginMs }, time.Millisecond, 0),
		CleanupInterval: durationValue("CLEANUP_INTERVAL_S", cf, func(c *configFile) int { return c.CleanupIntervalS }, time.Second, time.Hour),
		LogLevel:        stringValue("LOG_LEVEL", cf, func(c *configFile) string { return c.LogLevel }, "info"),
		LogFile:         stringValue("LOG_FILE", cf, func(c *configFile) string { return c.LogFile }, ""),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return config, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL 未配置")
	}
	if c.ContractAddress == "" {
		return fmt.Errorf("CONTRACT_ADDRESS 未配置")
	}
	if !strings.HasPrefix(c.ContractAddress, "0x") || len(c.ContractAddress) != 42 {
		return fmt.Errorf("CONTRACT_ADDRESS 不是合法地址: %s", c.ContractAddress)
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID 必须大于 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS 必须大于 0")
	}
	return nil
}

func loadConfigFile(filePath string) (*configFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml)", ext)
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
	}
	return &cf, nil
}

// stringValue 环境变量 > 配置文件 > 默认值
func stringValue(envKey string, cf *configFile, getter func(*configFile) string, def string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if cf != nil {
		if v := getter(cf); v != "" {
			return v
		}
	}
	return def
}

func int64Value(envKey string, cf *configFile, getter func(*configFile) int64, def int64) int64 {
	if v := os.Getenv(envKey); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	if cf != nil {
		if v := getter(cf); v != 0 {
			return v
		}
	}
	return def
}

func durationValue(envKey string, cf *configFile, getter func(*configFile) int, unit time.Duration, def time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	if cf != nil {
		if v := getter(cf); v > 0 {
			return time.Duration(v) * unit
		}
	}
	return def
}
