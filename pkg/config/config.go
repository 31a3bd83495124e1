package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	File      *FileConfig     `mapstructure:"file"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // gin 模式: debug / release / test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"` // mysql / postgres / sqlite
	DSN          string        `mapstructure:"dsn"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type WebSocketConfig struct {
	BroadcastBufferSize int `mapstructure:"broadcast_buffer_size"`

	WriteWaitSeconds int `mapstructure:"write_wait_seconds"`
	PongWaitSeconds  int `mapstructure:"pong_wait_seconds"`
	MaxMessageSize   int `mapstructure:"max_message_size"`
	// 重试相关配置
	MessageRetryCount      int `mapstructure:"message_retry_count"`
	MessageRetryIntervalMs int `mapstructure:"message_retry_interval_ms"`
}

type MessagingConfig struct {
	Provider string      `mapstructure:"provider"` // channel / kafka
	Kafka    KafkaConfig `mapstructure:"kafka"`
}

// ConsumerGroup 是消费者组名前缀, 每个实例在其后追加 InstanceID 组成独立的组,
// 这样每个实例都能收到全部 direct 记录
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	InstanceID    string   `mapstructure:"instance_id"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
}

// Addr 为空时不启用在线状态
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

type LogConfig struct {
	Level          string `mapstructure:"level"`
	ProductionMode bool   `mapstructure:"production_mode"`
}

type FileConfig struct {
	StoragePath  string `mapstructure:"storage_path"`
	MaxFileSize  int64  `mapstructure:"max_file_size"`
	PublicPrefix string `mapstructure:"public_prefix"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type RetryConfig struct {
	MaxAttempts     uint          `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

var GlobalConfig Config

func Init() error {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return load("config")
}

// 测试用的配置文件
func InitTest() error {
	return load("config.test")
}

func load(name string) error {
	// 获取项目根目录
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(filepath.Dir(filepath.Dir(b)))

	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(basepath, "config"))
	v.AddConfigPath("./config")

	// 环境变量覆盖, 例如 DEVCONNECT_DATABASE_DSN
	v.SetEnvPrefix("DEVCONNECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	GlobalConfig = cfg

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.query_timeout", 5*time.Second)
	v.SetDefault("jwt.expiration", 7*24*time.Hour)
	v.SetDefault("messaging.provider", "channel")
	v.SetDefault("messaging.kafka.consumer_group", "devconnect-relay")
	v.SetDefault("messaging.kafka.instance_id", "")
	v.SetDefault("redis.presence_ttl", 2*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_interval", 50*time.Millisecond)
	v.SetDefault("tracing.service_name", "devconnect")
}
