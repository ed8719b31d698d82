package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cottage/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	CookieName string        `yaml:"cookie_name"`
}

type RateLimitConfig struct {
	RPS                 float64       `yaml:"rps"`
	Burst               int           `yaml:"burst"`
	BookingSubmitLimit  int           `yaml:"booking_submit_limit"`
	BookingSubmitWindow time.Duration `yaml:"booking_submit_window"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout_ms"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// GoogleConfig holds calendar credentials. Either CredentialsFile or the
// ServiceAccountEmail/ServiceAccountKey pair enables sync; with neither the
// calendar is disabled.
type GoogleConfig struct {
	CredentialsFile     string        `yaml:"credentials_file"`
	ServiceAccountEmail string        `yaml:"service_account_email"`
	ServiceAccountKey   string        `yaml:"service_account_key"`
	CalendarID          string        `yaml:"calendar_id"`
	TimeZone            string        `yaml:"time_zone"`
	EventLocation       string        `yaml:"event_location"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	MaxRetries          int           `yaml:"max_retries"`
}

func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" || (g.ServiceAccountEmail != "" && g.ServiceAccountKey != "")
}

type TelegramConfig struct {
	BotToken       string        `yaml:"bot_token"`
	AdminChatIDs   []int64       `yaml:"admin_chat_ids"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "CHANGE_ME" {
		return errors.New("auth jwt secret is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth jwt secret must be at least 16 characters")
	}

	if _, err := time.LoadLocation(c.Google.TimeZone); err != nil {
		return fmt.Errorf("invalid google time zone %q: %w", c.Google.TimeZone, err)
	}

	if c.Google.ServiceAccountEmail != "" && c.Google.ServiceAccountKey == "" {
		return errors.New("google service account key is required when email is set")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "cottage"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadHeaderTimeout == 0 {
		c.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = models.DefaultSessionTTL * time.Second
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "cottage_session"
	}
	if c.RateLimit.BookingSubmitLimit == 0 {
		c.RateLimit.BookingSubmitLimit = models.BookingSubmitLimit
	}
	if c.RateLimit.BookingSubmitWindow == 0 {
		c.RateLimit.BookingSubmitWindow = models.BookingSubmitWindow * time.Second
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = 5000
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}
	if c.Google.TimeZone == "" {
		c.Google.TimeZone = models.DefaultCalendarTimeZone
	}
	if c.Google.RequestTimeout == 0 {
		c.Google.RequestTimeout = 10 * time.Second
	}
	if c.Telegram.RequestTimeout == 0 {
		c.Telegram.RequestTimeout = 10 * time.Second
	}
	if c.Google.MaxRetries == 0 {
		c.Google.MaxRetries = 2
	}
	// keys pasted from JSON keep literal \n sequences
	c.Google.ServiceAccountKey = strings.ReplaceAll(c.Google.ServiceAccountKey, `\n`, "\n")
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./data/backups"
	}
}
