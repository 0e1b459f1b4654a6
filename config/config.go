package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/resolver"
)

const (
	EnvPrefix = "GAMEGATE"

	ResolverStatic = "static"
	ResolverRedis  = "redis"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	TCP       TCPConfig       `mapstructure:"tcp"`
	WS        WSConfig        `mapstructure:"ws"`
	UDP       UDPConfig       `mapstructure:"udp"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
}

type LogConfig struct {
	Name  string `mapstructure:"name"`
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
	// console|file
	Out        string `mapstructure:"out"`
	Rotate     bool   `mapstructure:"rotate"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// TCPConfig Addr为空时不启动
type TCPConfig struct {
	Addr            string `mapstructure:"addr"`
	MaxConnNum      int    `mapstructure:"max_conn_num"`
	PendingWriteNum int    `mapstructure:"pending_write_num"`
	// 长度头字节数，1/2/4
	LenMsgLen    int    `mapstructure:"len_msg_len"`
	LittleEndian bool   `mapstructure:"little_endian"`
	MaxMsgLen    uint32 `mapstructure:"max_msg_len"`
}

type WSConfig struct {
	Addr            string        `mapstructure:"addr"`
	Path            string        `mapstructure:"path"`
	MaxMsgLen       uint32        `mapstructure:"max_msg_len"`
	PendingWriteNum int           `mapstructure:"pending_write_num"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	CertFile        string        `mapstructure:"cert_file"`
	KeyFile         string        `mapstructure:"key_file"`
}

type UDPConfig struct {
	Addr    string `mapstructure:"addr"`
	FailTry int    `mapstructure:"fail_try"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

type AdmissionConfig struct {
	// 0表示不限制
	Timeout time.Duration `mapstructure:"timeout"`
}

type ResolverConfig struct {
	Kind    string             `mapstructure:"kind"`
	Players []resolver.Account `mapstructure:"players"`
	Rooms   []string           `mapstructure:"rooms"`
	Redis   RedisConfig        `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.name", "gamegate")
	v.SetDefault("log.path", "./log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.out", "console")
	v.SetDefault("log.rotate", true)
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.max_backups", 10)

	v.SetDefault("tcp.addr", ":7300")
	v.SetDefault("tcp.max_conn_num", 10000)
	v.SetDefault("tcp.pending_write_num", 128)
	v.SetDefault("tcp.len_msg_len", 2)
	v.SetDefault("tcp.little_endian", false)
	v.SetDefault("tcp.max_msg_len", 4096)

	v.SetDefault("ws.addr", ":7301")
	v.SetDefault("ws.path", "/ws")
	v.SetDefault("ws.max_msg_len", 4096)
	v.SetDefault("ws.pending_write_num", 128)
	v.SetDefault("ws.http_timeout", 10*time.Second)
	v.SetDefault("ws.cert_file", "")
	v.SetDefault("ws.key_file", "")

	v.SetDefault("udp.addr", "")
	v.SetDefault("udp.fail_try", 0)

	v.SetDefault("metrics.addr", ":9300")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("admission.timeout", 10*time.Second)

	v.SetDefault("resolver.kind", ResolverStatic)
	v.SetDefault("resolver.redis.addr", "127.0.0.1:6379")
	v.SetDefault("resolver.redis.password", "")
	v.SetDefault("resolver.redis.db", 0)
	v.SetDefault("resolver.redis.prefix", "gamegate:")
}

// Load path为空时只用默认值和环境变量，环境变量如GAMEGATE_TCP_ADDR
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.TCP.Addr == "" && c.WS.Addr == "" {
		return errors.New("at least one of tcp.addr and ws.addr must be set")
	}
	switch c.TCP.LenMsgLen {
	case 1, 2, 4:
	default:
		return fmt.Errorf("tcp.len_msg_len must be 1, 2 or 4, got %d", c.TCP.LenMsgLen)
	}
	if c.Admission.Timeout < 0 {
		return errors.New("admission.timeout must not be negative")
	}
	switch c.Resolver.Kind {
	case ResolverStatic:
	case ResolverRedis:
		if c.Resolver.Redis.Addr == "" {
			return errors.New("resolver.redis.addr must be set")
		}
	default:
		return fmt.Errorf("unknown resolver kind %q", c.Resolver.Kind)
	}
	return nil
}

// BuildLogger 只会生效一次
func (c LogConfig) BuildLogger() {
	log.Builder.
		Name(c.Name).
		Path(c.Path).
		Level(log.Level(strings.ToLower(c.Level))).
		OutType(log.OutTypeAlias(c.Out)).
		EnableRotate(c.Rotate).
		MaxSize(c.MaxSize).
		MaxAge(c.MaxAge).
		MaxBackUps(c.MaxBackups).
		Build()
}
