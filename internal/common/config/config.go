package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "KITCHEN_SYNC"

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Server   ServerConfig   `mapstructure:"server"`
	Board    BoardConfig    `mapstructure:"board"`
	Database DatabaseConfig `mapstructure:"database"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// APIConfig points at the orders backend, e.g. http://localhost:3000/api.
type APIConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Email    string        `mapstructure:"email"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type BoardConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Actor           string        `mapstructure:"actor"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

type RabbitMQConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	InflightTTL time.Duration `mapstructure:"inflight_ttl"`
}

// Optional sections are switched on by their host/address.
func (d DatabaseConfig) Enabled() bool { return d.Host != "" }
func (r RabbitMQConfig) Enabled() bool { return r.Host != "" }
func (k KafkaConfig) Enabled() bool    { return len(k.Brokers) > 0 }
func (r RedisConfig) Enabled() bool    { return r.Addr != "" }

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode, d.MaxConns)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:3000/api")
	v.SetDefault("api.email", "")
	v.SetDefault("api.password", "")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("server.port", 3003)
	v.SetDefault("board.refresh_interval", 30*time.Second)
	v.SetDefault("board.actor", "kitchen-sync")

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("rabbitmq.host", "")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "")
	v.SetDefault("rabbitmq.password", "")
	v.SetDefault("rabbitmq.vhost", "/")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "kitchen.order-status")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.inflight_ttl", time.Minute)
}

// Load reads path (or the first file FindConfig finds when path is empty),
// applies KITCHEN_SYNC_* environment overrides and validates the result.
// Without any file the defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path == "" {
		if found, err := FindConfig(); err == nil {
			path = found
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid config: api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d", c.Server.Port)
	}
	if c.Database.Enabled() && (c.Database.User == "" || c.Database.Database == "") {
		return errors.New("invalid config: database config incomplete")
	}
	if c.RabbitMQ.Enabled() && c.RabbitMQ.User == "" {
		return errors.New("invalid config: rabbitmq config incomplete")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("invalid config: kafka.topic is empty")
	}
	// the in-flight gate must outlive the request it guards
	if c.Redis.Enabled() {
		if c.API.Timeout <= 0 {
			return errors.New("invalid config: api.timeout must be set when redis is enabled")
		}
		if c.Redis.InflightTTL <= c.API.Timeout {
			return fmt.Errorf("invalid config: redis.inflight_ttl %s must exceed api.timeout %s",
				c.Redis.InflightTTL, c.API.Timeout)
		}
	}
	return nil
}

// FindConfig looks for a config file in the usual places.
func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "config.yml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
