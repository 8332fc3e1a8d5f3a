package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/joho/godotenv/autoload"
)

type AppConfig struct {
	HTTPAddr       string   `yaml:"http-addr" env:"HTTP_ADDR" env-default:":3000"`
	AllowedOrigins []string `yaml:"allowed-origins" env:"ALLOWED_ORIGINS" env-separator:","`

	InitialTime  time.Duration `yaml:"initial-time" env:"INITIAL_TIME" env-default:"5m"`
	PreStartTime time.Duration `yaml:"prestart-time" env:"PRESTART_TIME" env-default:"10s"`
	TickInterval time.Duration `yaml:"tick-interval" env:"TICK_INTERVAL" env-default:"1s"`
	TimeControl  string        `yaml:"time-control" env:"TIME_CONTROL" env-default:"5+0"`

	SendQueueSize   int   `yaml:"send-queue-size" env:"SEND_QUEUE_SIZE" env-default:"64"`
	MaxMessageBytes int64 `yaml:"max-message-bytes" env:"MAX_MESSAGE_BYTES" env-default:"16384"`

	RedisURL     string        `yaml:"redis-url" env:"REDIS_URL"`
	RoomIndexTTL time.Duration `yaml:"room-index-ttl" env:"ROOM_INDEX_TTL" env-default:"2h"`

	DatabaseURL      string `yaml:"database-url" env:"DATABASE_URL"`
	ArchiveQueueSize int    `yaml:"archive-queue-size" env:"ARCHIVE_QUEUE_SIZE" env-default:"128"`
	ResultWebhookURL string `yaml:"result-webhook-url" env:"RESULT_WEBHOOK_URL"`

	MessagesDir string `yaml:"messages-dir" env:"MESSAGES_DIR"`
}

// Load reads the environment, or the YAML file named by CONFIG_FILE with
// environment overrides, and validates the result.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.ResultWebhookURL = strings.TrimSpace(c.ResultWebhookURL)
	c.MessagesDir = strings.TrimSpace(c.MessagesDir)
	c.TimeControl = strings.TrimSpace(c.TimeControl)

	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	c.AllowedOrigins = origins
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.InitialTime <= 0 {
		errs = append(errs, fmt.Errorf("INITIAL_TIME must be positive, got %s", c.InitialTime))
	}
	if c.PreStartTime <= 0 {
		errs = append(errs, fmt.Errorf("PRESTART_TIME must be positive, got %s", c.PreStartTime))
	}
	if c.TickInterval <= 0 || c.TickInterval > c.PreStartTime {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be in (0, PRESTART_TIME], got %s", c.TickInterval))
	}
	if c.SendQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", c.SendQueueSize))
	}
	if c.MaxMessageBytes < 256 {
		errs = append(errs, fmt.Errorf("MAX_MESSAGE_BYTES must be at least 256, got %d", c.MaxMessageBytes))
	}
	if c.ArchiveQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("ARCHIVE_QUEUE_SIZE must be positive, got %d", c.ArchiveQueueSize))
	}
	if c.RoomIndexTTL <= 0 {
		errs = append(errs, fmt.Errorf("ROOM_INDEX_TTL must be positive, got %s", c.RoomIndexTTL))
	}
	return errors.Join(errs...)
}
