// Package config 加载 bankmonitor 的运行配置
//
// 优先级从低到高：默认值 → YAML 文件 → BANK_* 环境变量 → 命令行参数（由 cmd 层覆盖）。
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "BANK_"

// ErrInvalidConfig 配置值不合法
var ErrInvalidConfig = errors.New("invalid config")

// Config 运行配置
type Config struct {
	// InitialBalance 初始余额
	InitialBalance int64 `koanf:"initial_balance" env:"INITIAL_BALANCE"`
	// MinAmount / MaxAmount 随机金额范围（闭区间）
	MinAmount int64 `koanf:"min_amount" env:"MIN_AMOUNT"`
	MaxAmount int64 `koanf:"max_amount" env:"MAX_AMOUNT"`
	// DepositInterval 两次存款之间的间隔
	DepositInterval time.Duration `koanf:"deposit_interval" env:"DEPOSIT_INTERVAL"`
	// Duration 运行时长上限，0 表示不限
	Duration time.Duration `koanf:"duration" env:"DURATION"`
	// Steps 每个 Actor 的迭代次数上限，0 表示不限
	Steps int `koanf:"steps" env:"STEPS"`
	// Seed 随机种子，0 表示按时间生成
	Seed uint64 `koanf:"seed" env:"SEED"`
	// ShutdownTimeout 等待 Actor 退出的宽限期
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// MailboxSize Actor 邮箱大小
	MailboxSize int `koanf:"mailbox_size" env:"MAILBOX_SIZE"`

	LogLevel  string `koanf:"log_level" env:"LOG_LEVEL"`
	LogFormat string `koanf:"log_format" env:"LOG_FORMAT"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		InitialBalance:  0,
		MinAmount:       1,
		MaxAmount:       10,
		DepositInterval: time.Second,
		Duration:        10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MailboxSize:     100,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load 依次叠加默认值、配置文件（path 为空时跳过）和环境变量
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load config file %s", path)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}

	return cfg, nil
}

// Validate 检查配置一致性
func (c *Config) Validate() error {
	switch {
	case c.InitialBalance < 0:
		return errors.Wrapf(ErrInvalidConfig, "initial balance %d < 0", c.InitialBalance)
	case c.MinAmount <= 0:
		return errors.Wrapf(ErrInvalidConfig, "min amount %d must be > 0", c.MinAmount)
	case c.MaxAmount < c.MinAmount:
		return errors.Wrapf(ErrInvalidConfig, "max amount %d < min amount %d", c.MaxAmount, c.MinAmount)
	case c.DepositInterval < 0:
		return errors.Wrapf(ErrInvalidConfig, "deposit interval %s < 0", c.DepositInterval)
	case c.Duration < 0:
		return errors.Wrapf(ErrInvalidConfig, "duration %s < 0", c.Duration)
	case c.Steps < 0:
		return errors.Wrapf(ErrInvalidConfig, "steps %d < 0", c.Steps)
	case c.Duration == 0 && c.Steps == 0:
		// 两个上限都没有，演示永远不会结束
		return errors.Wrap(ErrInvalidConfig, "either duration or steps must be set")
	case c.ShutdownTimeout <= 0:
		return errors.Wrapf(ErrInvalidConfig, "shutdown timeout %s must be > 0", c.ShutdownTimeout)
	case c.MailboxSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "mailbox size %d must be > 0", c.MailboxSize)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log format %q", c.LogFormat)
	}
	return nil
}

// SlogLevel 把 LogLevel 解析为 slog.Level
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "log level %q", c.LogLevel)
	}
	return level, nil
}
