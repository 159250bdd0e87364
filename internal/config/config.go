package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server       ServerConfig       `mapstructure:",squash"`
	Database     DatabaseConfig     `mapstructure:",squash"`
	Redis        RedisConfig        `mapstructure:",squash"`
	Scheduler    SchedulerConfig    `mapstructure:",squash"`
	Logging      LoggingConfig      `mapstructure:",squash"`
	Business     BusinessConfig     `mapstructure:",squash"`
	Notification NotificationConfig `mapstructure:",squash"`
	Health       HealthConfig       `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	OverdueSweepCron       string        `mapstructure:"OVERDUE_SWEEP_CRON"`
	SubscriptionNoticeCron string        `mapstructure:"SUBSCRIPTION_NOTICE_CRON"`
	Timezone               string        `mapstructure:"SCHEDULER_TIMEZONE"`
	LockTTL                time.Duration `mapstructure:"SCHEDULER_LOCK_TTL"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	LoanDurationDays       int    `mapstructure:"LOAN_DURATION_DAYS"`
	MaxConcurrentLoans     int    `mapstructure:"MAX_CONCURRENT_LOANS"`
	LateFeePerDay          string `mapstructure:"LATE_FEE_PER_DAY"`
	LostFee                string `mapstructure:"LOST_FEE"`
	SubscriptionNoticeDays int    `mapstructure:"SUBSCRIPTION_NOTICE_DAYS"`
	RetryAttempts          int    `mapstructure:"TRANSIENT_RETRY_ATTEMPTS"`
}

type NotificationConfig struct {
	SMTPHost     string        `mapstructure:"SMTP_HOST"`
	SMTPPort     int           `mapstructure:"SMTP_PORT"`
	SMTPUser     string        `mapstructure:"SMTP_USER"`
	SMTPPassword string        `mapstructure:"SMTP_PASSWORD"`
	From         string        `mapstructure:"MAIL_FROM"`
	LibraryName  string        `mapstructure:"LIBRARY_NAME"`
	Timeout      time.Duration `mapstructure:"NOTIFICATION_TIMEOUT"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":                "8080",
	"SERVER_HOST":                "0.0.0.0",
	"ENV":                        "development",
	"SERVER_READ_TIMEOUT":        "15s",
	"SERVER_WRITE_TIMEOUT":       "15s",
	"DATABASE_URL":               "",
	"DATABASE_MAX_OPEN_CONNS":    25,
	"DATABASE_MAX_IDLE_CONNS":    5,
	"DATABASE_CONN_MAX_LIFETIME": "30m",
	"REDIS_HOST":                 "localhost",
	"REDIS_PORT":                 "6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"OVERDUE_SWEEP_CRON":         "0 0 0 * * *",
	"SUBSCRIPTION_NOTICE_CRON":   "0 0 9 * * SUN",
	"SCHEDULER_TIMEZONE":         "Europe/Paris",
	"SCHEDULER_LOCK_TTL":         "10m",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"LOAN_DURATION_DAYS":         21,
	"MAX_CONCURRENT_LOANS":       5,
	"LATE_FEE_PER_DAY":           "0.20",
	"LOST_FEE":                   "25.00",
	"SUBSCRIPTION_NOTICE_DAYS":   7,
	"TRANSIENT_RETRY_ATTEMPTS":   4,
	"SMTP_HOST":                  "",
	"SMTP_PORT":                  587,
	"SMTP_USER":                  "",
	"SMTP_PASSWORD":              "",
	"MAIL_FROM":                  "bibliotheque@example.org",
	"LIBRARY_NAME":               "La Maison du Livre",
	"NOTIFICATION_TIMEOUT":       "5s",
	"HEALTH_CHECK_TIMEOUT":       "5s",
}

// Load reads configuration from environment variables and optional .env files
func Load() (*Config, error) {
	// Missing .env files are fine; real environment variables win over them.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("deployments/.env")

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Business.LoanDurationDays <= 0 {
		return fmt.Errorf("LOAN_DURATION_DAYS must be greater than 0")
	}

	if c.Business.MaxConcurrentLoans <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_LOANS must be greater than 0")
	}

	if c.Business.RetryAttempts <= 0 {
		return fmt.Errorf("TRANSIENT_RETRY_ATTEMPTS must be greater than 0")
	}

	if fee, err := decimal.NewFromString(c.Business.LateFeePerDay); err != nil || fee.IsNegative() {
		return fmt.Errorf("LATE_FEE_PER_DAY must be a non-negative decimal")
	}

	if fee, err := decimal.NewFromString(c.Business.LostFee); err != nil || fee.IsNegative() {
		return fmt.Errorf("LOST_FEE must be a non-negative decimal")
	}

	if c.Notification.Timeout <= 0 {
		return fmt.Errorf("NOTIFICATION_TIMEOUT must be a positive duration")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE is invalid: %w", err)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Scheduler.OverdueSweepCron); err != nil {
		return fmt.Errorf("OVERDUE_SWEEP_CRON is invalid: %w", err)
	}
	if _, err := parser.Parse(c.Scheduler.SubscriptionNoticeCron); err != nil {
		return fmt.Errorf("SUBSCRIPTION_NOTICE_CRON is invalid: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// DSN returns the Postgres connection string
func (d DatabaseConfig) DSN() string {
	return d.URL
}

// Addr returns the host:port of the Redis server
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// GetLateFeePerDay returns the late fee per day as decimal
func (c *Config) GetLateFeePerDay() decimal.Decimal {
	fee, _ := decimal.NewFromString(c.Business.LateFeePerDay)
	return fee
}

// GetLostFee returns the flat fee charged for a lost document without a price
func (c *Config) GetLostFee() decimal.Decimal {
	fee, _ := decimal.NewFromString(c.Business.LostFee)
	return fee
}

// GetSchedulerLocation returns the scheduler time zone
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
