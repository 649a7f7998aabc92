package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/iptvsync/internal/bus"
	"github.com/rpattn/iptvsync/internal/db"
	"github.com/rpattn/iptvsync/internal/notify"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. IPTV_DATABASE_HOST.
const EnvPrefix = "IPTV"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"`
	Migrate   bool   `mapstructure:"migrate"`
	db.Config `mapstructure:",squash"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// NotificationsConfig covers both ends of the notification topic.
type NotificationsConfig struct {
	Publisher bus.PublisherConfig `mapstructure:"publisher"`
	Consumer  bus.TopicConfig     `mapstructure:"consumer"`
}

type PipelineConfig struct {
	UploadsRoot  string `mapstructure:"uploads_root"`
	NotifyErrors bool   `mapstructure:"notify_errors"`
	RecordLog    bool   `mapstructure:"record_log"`
}

type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Config is the full process configuration shared by every binary.
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
	Bus           bus.Config          `mapstructure:"bus"`
	Uploads       bus.TopicConfig     `mapstructure:"uploads"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Email         notify.Config       `mapstructure:"email"`
	Ops           OpsConfig           `mapstructure:"ops"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	busDefaults := bus.DefaultConfig()
	emailDefaults := notify.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.migrate", true)
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)
	v.SetDefault("database.min_conns", dbDefaults.MinConns)
	v.SetDefault("database.max_conn_lifetime", dbDefaults.MaxConnLifetime)
	v.SetDefault("database.max_conn_idle_time", dbDefaults.MaxConnIdleTime)

	v.SetDefault("sqlite.path", "iptvsync.db")

	v.SetDefault("bus.url", busDefaults.URL)
	v.SetDefault("bus.connection_name", busDefaults.ConnectionName)
	v.SetDefault("bus.heartbeat", busDefaults.Heartbeat)
	v.SetDefault("bus.initial_backoff", busDefaults.InitialBackoff)
	v.SetDefault("bus.max_backoff", busDefaults.MaxBackoff)
	v.SetDefault("bus.max_initial_attempts", busDefaults.MaxInitialAttempts)

	v.SetDefault("uploads.exchange", "file-uploads")
	v.SetDefault("uploads.exchange_kind", "topic")
	v.SetDefault("uploads.queue", "file-management-service-group")
	v.SetDefault("uploads.binding_key", "#")
	v.SetDefault("uploads.consumer_tag", "file-management-service")
	v.SetDefault("uploads.prefetch", 1)
	v.SetDefault("uploads.declare", true)

	v.SetDefault("notifications.publisher.exchange", "file-processing-notifications")
	v.SetDefault("notifications.publisher.exchange_kind", "topic")
	v.SetDefault("notifications.publisher.declare", true)
	v.SetDefault("notifications.publisher.max_attempts", 3)
	v.SetDefault("notifications.publisher.retry_delay", 200*time.Millisecond)
	v.SetDefault("notifications.consumer.exchange", "file-processing-notifications")
	v.SetDefault("notifications.consumer.exchange_kind", "topic")
	v.SetDefault("notifications.consumer.queue", "email-service-group")
	v.SetDefault("notifications.consumer.binding_key", "#")
	v.SetDefault("notifications.consumer.consumer_tag", "email-service")
	v.SetDefault("notifications.consumer.prefetch", 1)
	v.SetDefault("notifications.consumer.declare", true)

	v.SetDefault("pipeline.uploads_root", "uploads")
	v.SetDefault("pipeline.notify_errors", true)
	v.SetDefault("pipeline.record_log", true)

	v.SetDefault("email.enabled", emailDefaults.Enabled)
	v.SetDefault("email.from", emailDefaults.From)
	v.SetDefault("email.admin", emailDefaults.Admin)
	v.SetDefault("email.sender", emailDefaults.Sender)
	v.SetDefault("email.smtp.host", emailDefaults.SMTP.Host)
	v.SetDefault("email.smtp.port", emailDefaults.SMTP.Port)
	v.SetDefault("email.smtp.user", emailDefaults.SMTP.User)
	v.SetDefault("email.smtp.pass", emailDefaults.SMTP.Pass)
	v.SetDefault("email.smtp.tls", emailDefaults.SMTP.TLS)

	v.SetDefault("ops.addr", ":8080")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "iptvsync")
}

// Load reads config.yaml from configPath when present, then applies .env and
// IPTV_* environment overrides on top of the defaults.
func Load(configPath string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no binary can run with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Bus.URL == "" {
		return errors.New("bus.url is required")
	}
	if c.Uploads.Queue == "" || c.Uploads.Exchange == "" {
		return errors.New("uploads.exchange and uploads.queue are required")
	}
	if c.Notifications.Publisher.Exchange == "" {
		return errors.New("notifications.publisher.exchange is required")
	}
	if c.Email.Enabled && c.Email.Admin == "" {
		return errors.New("email.admin is required when email is enabled")
	}
	return nil
}

// UploadPublisher derives the publisher settings for the upload topic.
func (c Config) UploadPublisher() bus.PublisherConfig {
	return bus.PublisherConfig{
		Exchange:     c.Uploads.Exchange,
		ExchangeKind: c.Uploads.ExchangeKind,
		Declare:      c.Uploads.Declare,
		MaxAttempts:  c.Notifications.Publisher.MaxAttempts,
		RetryDelay:   c.Notifications.Publisher.RetryDelay,
	}
}
