package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Webhooks   WebhooksConfig   `mapstructure:"webhooks"`
	Automation AutomationConfig `mapstructure:"automation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Email      EmailConfig      `mapstructure:"email"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Retention  RetentionConfig  `mapstructure:"retention"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	BusyTimeoutMS  int    `mapstructure:"busy_timeout_ms"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type RateLimitConfig struct {
	EventsPerMinute int `mapstructure:"events_per_minute"`
}

type WebhooksConfig struct {
	Workers           int           `mapstructure:"workers"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxResponseBody   int           `mapstructure:"max_response_body"`
	Backoff           string        `mapstructure:"backoff"` // linear, exponential
	BackoffUnit       time.Duration `mapstructure:"backoff_unit"`
	DefaultMaxRetries int           `mapstructure:"default_max_retries"`
	DefaultRetryDelay int           `mapstructure:"default_retry_delay"`
}

type AutomationConfig struct {
	Workers                int `mapstructure:"workers"`
	DefaultCooldownMinutes int `mapstructure:"default_cooldown_minutes"`
	// Event types contain dots, which viper treats as key separators, so this is a list.
	EventTriggers []EventTrigger `mapstructure:"event_triggers"`
}

// EventTrigger routes an application event type to the rule trigger type it feeds.
type EventTrigger struct {
	Event   string `mapstructure:"event"`
	Trigger string `mapstructure:"trigger"`
}

func (c AutomationConfig) TriggerMap() map[string]string {
	m := make(map[string]string, len(c.EventTriggers))
	for _, et := range c.EventTriggers {
		m[et.Event] = et.Trigger
	}
	return m
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type EmailConfig struct {
	Provider string     `mapstructure:"provider"` // smtp, log
	SMTP     SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

type SecretsConfig struct {
	SealingKey string `mapstructure:"sealing_key"`
}

type RetentionConfig struct {
	DeliveryAttemptsDays int    `mapstructure:"delivery_attempts_days"`
	Schedule             string `mapstructure:"schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.path", "data/propflow.db")
	v.SetDefault("database.max_connections", 8)
	v.SetDefault("database.busy_timeout_ms", 5000)

	v.SetDefault("jwt.access_token_ttl", time.Hour)

	v.SetDefault("rate_limit.events_per_minute", 600)

	v.SetDefault("webhooks.workers", 8)
	v.SetDefault("webhooks.request_timeout", 30*time.Second)
	v.SetDefault("webhooks.max_response_body", 2048)
	v.SetDefault("webhooks.backoff", "linear")
	v.SetDefault("webhooks.backoff_unit", time.Second)
	v.SetDefault("webhooks.default_max_retries", 3)
	v.SetDefault("webhooks.default_retry_delay", 60)

	v.SetDefault("automation.workers", 8)
	v.SetDefault("automation.default_cooldown_minutes", 60)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("email.provider", "log")

	v.SetDefault("retention.delivery_attempts_days", 30)
	v.SetDefault("retention.schedule", "0 1 * * *")
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
