package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Email     EmailConfig     `mapstructure:"email"`
	Collector CollectorConfig `mapstructure:"collector"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port" envconfig:"SERVER_PORT" default:"8080" validate:"min=1,max=65535"`
	TimeoutSeconds int `mapstructure:"timeout_seconds" envconfig:"SERVER_TIMEOUT_SECONDS" default:"30"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST" default:"localhost"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT" default:"5432"`
	User     string `mapstructure:"user" envconfig:"DB_USER" default:"fluxnews"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME" default:"fluxnews"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE" default:"disable"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	URL          string `mapstructure:"url" envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	PoolSize     int    `mapstructure:"pool_size" envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int    `mapstructure:"min_idle_conns" envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" envconfig:"EMAIL_ENABLED" default:"false"`
	Host     string `mapstructure:"host" envconfig:"EMAIL_HOST"`
	Port     int    `mapstructure:"port" envconfig:"EMAIL_PORT" default:"587"`
	Username string `mapstructure:"username" envconfig:"EMAIL_USERNAME"`
	Password string `mapstructure:"password" envconfig:"EMAIL_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"EMAIL_FROM" validate:"omitempty,email"`
}

type CollectorConfig struct {
	Feeds           []string      `mapstructure:"feeds" envconfig:"COLLECTOR_FEEDS"`
	Interval        time.Duration `mapstructure:"interval" envconfig:"COLLECTOR_INTERVAL" default:"5m"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout" envconfig:"COLLECTOR_FETCH_TIMEOUT" default:"30s"`
	EnrichContent   bool          `mapstructure:"enrich_content" envconfig:"COLLECTOR_ENRICH_CONTENT" default:"false"`
	GlobalRPS       float64       `mapstructure:"global_rps" envconfig:"COLLECTOR_GLOBAL_RPS" default:"20"`
	MaxRetries      int           `mapstructure:"max_retries" envconfig:"COLLECTOR_MAX_RETRIES" default:"3" validate:"min=1"`
	BackoffFactor   float64       `mapstructure:"backoff_factor" envconfig:"COLLECTOR_BACKOFF_FACTOR" default:"2.0"`
}

type PipelineConfig struct {
	QueueCapacity       int           `mapstructure:"queue_capacity" envconfig:"PIPELINE_QUEUE_CAPACITY" default:"10000" validate:"min=1"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" envconfig:"PIPELINE_SIMILARITY_THRESHOLD" default:"0.85" validate:"gt=0,lte=1"`
	SettingsCacheTTL    time.Duration `mapstructure:"settings_cache_ttl" envconfig:"PIPELINE_SETTINGS_CACHE_TTL" default:"5m"`
	// NotificationRetention bounds how long delivered notifications are
	// kept before the periodic sweep deletes them. Zero disables the sweep.
	NotificationRetention time.Duration `mapstructure:"notification_retention" envconfig:"PIPELINE_NOTIFICATION_RETENTION" default:"720h"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" envconfig:"LOG_LEVEL" default:"info"`
	Console bool   `mapstructure:"console" envconfig:"LOG_CONSOLE" default:"true"`
}

// LoadConfig reads config.yaml via viper, falling back to environment
// variables when no config file is present.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return loadFromEnv()
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// loadFromEnv fills the config purely from the environment, with the
// defaults declared on the struct tags.
func loadFromEnv() (*Config, error) {
	var config Config
	if err := envconfig.Process("fluxnews", &config); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
