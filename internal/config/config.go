package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the ordering system
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Ordering OrderingConfig `yaml:"ordering"`
}

// ServerConfig holds the HTTP listeners
type ServerConfig struct {
	Port             int      `yaml:"port"`
	NotificationPort int      `yaml:"notification_port"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	MaxConns int32  `yaml:"max_conns"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Enabled  bool   `yaml:"enabled"`
}

// StorageConfig selects the order store implementation
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// OrderingConfig tunes the order engine
type OrderingConfig struct {
	// ResolveConcurrency caps parallel menu item lookups per order
	ResolveConcurrency int           `yaml:"resolve_concurrency"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

// Default returns the configuration used when a key is absent from both file and environment
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             3000,
			NotificationPort: 3002,
			AllowedOrigins:   []string{"*"},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "restaurant_user",
			Database: "restaurant_db",
			MaxConns: 10,
		},
		RabbitMQ: RabbitMQConfig{
			Host:    "localhost",
			Port:    5672,
			User:    "guest",
			Enabled: true,
		},
		Storage: StorageConfig{
			Driver:     DriverPostgres,
			SQLitePath: "restaurant.db",
		},
		Logging: LoggingConfig{Level: "info"},
		Ordering: OrderingConfig{
			ResolveConcurrency: 8,
			RequestTimeout:     10 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file, then applies .env and environment overrides.
// A missing file is not an error; defaults and environment still apply.
func Load(filename string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString("DB_HOST", &c.Database.Host)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.Database)
	setString("RABBITMQ_HOST", &c.RabbitMQ.Host)
	setString("RABBITMQ_USER", &c.RabbitMQ.User)
	setString("RABBITMQ_PASSWORD", &c.RabbitMQ.Password)
	setString("STORAGE_DRIVER", &c.Storage.Driver)
	setString("SQLITE_PATH", &c.Storage.SQLitePath)
	setString("LOG_LEVEL", &c.Logging.Level)

	for key, dst := range map[string]*int{
		"PORT":              &c.Server.Port,
		"NOTIFICATION_PORT": &c.Server.NotificationPort,
		"DB_PORT":           &c.Database.Port,
		"RABBITMQ_PORT":     &c.RabbitMQ.Port,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv("RABBITMQ_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RABBITMQ_ENABLED value: %w", err)
		}
		c.RabbitMQ.Enabled = enabled
	}
	return nil
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate rejects configurations the services cannot start with
func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"server.port":              c.Server.Port,
		"server.notification_port": c.Server.NotificationPort,
		"database.port":            c.Database.Port,
		"rabbitmq.port":            c.RabbitMQ.Port,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
		}
	}

	switch c.Storage.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.Ordering.ResolveConcurrency < 1 {
		return fmt.Errorf("ordering.resolve_concurrency must be positive")
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
