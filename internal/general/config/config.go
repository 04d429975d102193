package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store and bus drivers.
const (
	DriverRedis    = "redis"
	DriverRabbitMQ = "rabbitmq"
	DriverMemory   = "memory"
)

type Config struct {
	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"database"`
	} `mapstructure:"database"`
	Redis struct {
		URL      string `mapstructure:"url"` // takes precedence over addr/password/db
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	RabbitMQ struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Exchange string `mapstructure:"exchange"`
	} `mapstructure:"rabbitmq"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"` // empty disables the location archive
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Store struct {
		Driver      string        `mapstructure:"driver"`
		LocationTTL time.Duration `mapstructure:"location_ttl"`
		PresenceTTL time.Duration `mapstructure:"presence_ttl"`
	} `mapstructure:"store"`
	Bus struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"bus"`
	Gateway struct {
		Port           int           `mapstructure:"port"`
		AllowedOrigins []string      `mapstructure:"allowed_origins"`
		PingInterval   time.Duration `mapstructure:"ping_interval"`
		ReadTimeout    time.Duration `mapstructure:"read_timeout"`
		OpTimeout      time.Duration `mapstructure:"op_timeout"`
	} `mapstructure:"gateway"`
	JWT struct {
		SecretKey string `mapstructure:"secret_key"`
		DevTokens bool   `mapstructure:"dev_tokens"`
	} `mapstructure:"jwt"`
}

// LoadFromFile loads config from a YAML file to a Config struct, applies defaults, and validates required fields.
// Every key can be overridden by an environment variable with the FLEET_ prefix, e.g. FLEET_GATEWAY_PORT.
// A .env file in the working directory is loaded first when present.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// registerDefaults makes every key known to viper so env overrides apply even when the file omits it.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "")
	v.SetDefault("rabbitmq.password", "")
	v.SetDefault("rabbitmq.exchange", "tracking_events")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "driver-locations-archive")

	v.SetDefault("store.driver", DriverRedis)
	v.SetDefault("store.location_ttl", "60s")
	v.SetDefault("store.presence_ttl", "90s")

	v.SetDefault("bus.driver", DriverRedis)

	v.SetDefault("gateway.port", 3001)
	v.SetDefault("gateway.allowed_origins", []string{})
	v.SetDefault("gateway.ping_interval", "25s")
	v.SetDefault("gateway.read_timeout", "60s")
	v.SetDefault("gateway.op_timeout", "3s")

	v.SetDefault("jwt.secret_key", "")
	v.SetDefault("jwt.dev_tokens", false)
}

// applyDefaults sets safe defaults for fields that a file may have zeroed explicitly.
func applyDefaults(cfg *Config) {
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Bus.Driver = strings.ToLower(strings.TrimSpace(cfg.Bus.Driver))

	if cfg.Store.LocationTTL == 0 {
		cfg.Store.LocationTTL = 60 * time.Second
	}
	if cfg.Store.PresenceTTL == 0 {
		cfg.Store.PresenceTTL = 90 * time.Second
	}
	if cfg.Gateway.PingInterval == 0 {
		cfg.Gateway.PingInterval = 25 * time.Second
	}
	if cfg.Gateway.ReadTimeout == 0 {
		cfg.Gateway.ReadTimeout = 60 * time.Second
	}
	if cfg.Gateway.OpTimeout == 0 {
		cfg.Gateway.OpTimeout = 3 * time.Second
	}

	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB (identity and profile lookups always go through Postgres)
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}

	// Store / bus
	if !slices.Contains([]string{DriverRedis, DriverMemory}, c.Store.Driver) {
		problems = append(problems, "store.driver must be one of redis, memory")
	}
	if !slices.Contains([]string{DriverRedis, DriverRabbitMQ, DriverMemory}, c.Bus.Driver) {
		problems = append(problems, "bus.driver must be one of redis, rabbitmq, memory")
	}
	if c.PresenceTTL() <= c.LocationTTL() {
		problems = append(problems, "store.presence_ttl must be longer than store.location_ttl")
	}
	if (c.Store.Driver == DriverRedis || c.Bus.Driver == DriverRedis) && c.Redis.URL == "" && c.Redis.Addr == "" {
		problems = append(problems, "redis.addr or redis.url is required")
	}

	// RabbitMQ
	if c.Bus.Driver == DriverRabbitMQ {
		if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
			problems = append(problems, "rabbitmq.port must be in 1..65535")
		}
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required")
		}
		if c.RabbitMQ.Exchange == "" {
			problems = append(problems, "rabbitmq.exchange is required")
		}
	}

	// Kafka archive is optional
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		problems = append(problems, "kafka.topic is required when kafka.brokers is set")
	}

	// Gateway
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		problems = append(problems, "gateway.port must be in 1..65535")
	}
	if c.Gateway.PingInterval >= c.Gateway.ReadTimeout {
		problems = append(problems, "gateway.ping_interval must be shorter than gateway.read_timeout")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// LocationTTL is the expiry of a cached driver location.
func (c *Config) LocationTTL() time.Duration { return c.Store.LocationTTL }

// PresenceTTL is the expiry of a driver's online flag.
func (c *Config) PresenceTTL() time.Duration { return c.Store.PresenceTTL }

// ArchiveEnabled reports whether location records are streamed to Kafka.
func (c *Config) ArchiveEnabled() bool { return len(c.Kafka.Brokers) > 0 }
