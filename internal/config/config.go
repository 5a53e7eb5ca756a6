package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Database     DatabaseConfig     `mapstructure:"database"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Redis        RedisConfig        `mapstructure:"redis"`
	LLM          LLMConfig          `mapstructure:"llm"`
	ResumeSource ResumeSourceConfig `mapstructure:"resume_source"`
	Billing      BillingConfig      `mapstructure:"billing"`
	Log          LogConfig          `mapstructure:"log"`
}

// APIConfig holds API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	QueueGroup  string        `mapstructure:"queue_group"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	MaxDeliver  int           `mapstructure:"max_deliver"`
	AckWait     time.Duration `mapstructure:"ack_wait"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig holds the Redis connection used for progress notifications.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
}

// LLMConfig holds the external analysis model configuration.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	AssistantID string        `mapstructure:"assistant_id"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// ResumeSourceConfig holds the external résumé API configuration.
type ResumeSourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	FetchParallel  int           `mapstructure:"fetch_parallel"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
	CacheSize      int           `mapstructure:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// BillingConfig holds admission control and pricing configuration.
type BillingConfig struct {
	MinimumBalance float64 `mapstructure:"minimum_balance"`
	ConversionRate float64 `mapstructure:"conversion_rate"`
	TrialTokens    float64 `mapstructure:"trial_tokens"`
	TrialResidual  float64 `mapstructure:"trial_residual"`
	PricingFile    string  `mapstructure:"pricing_file"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	return &config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return errors.New("database.port must be between 1 and 65535")
	}

	if c.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be at least 1")
	}
	if c.Worker.MaxDeliver < 1 {
		return errors.New("worker.max_deliver must be at least 1")
	}

	if c.Billing.MinimumBalance < 0 {
		return errors.New("billing.minimum_balance cannot be negative")
	}
	if c.Billing.ConversionRate <= 0 {
		return errors.New("billing.conversion_rate must be positive")
	}

	if c.ResumeSource.MaxAttempts < 1 {
		return errors.New("resume_source.max_attempts must be at least 1")
	}
	if c.ResumeSource.FetchParallel < 1 {
		return errors.New("resume_source.fetch_parallel must be at least 1")
	}

	return nil
}
