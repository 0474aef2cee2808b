package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"repcirAPI/internal/logger"
)

// Config is the full application configuration. Every field can be set from
// the YAML file and overridden by the environment variable in its env tag.
type Config struct {
	Server struct {
		Port           string   `yaml:"port" env:"PORT"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
		PublicBaseURL  string   `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
	} `yaml:"server"`

	Database struct {
		URL      string `yaml:"url" env:"DATABASE_URL"`
		MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS"`
		MinConns int32  `yaml:"min_conns" env:"DB_MIN_CONNS"`
		Migrate  bool   `yaml:"migrate" env:"DB_MIGRATE"`
	} `yaml:"database"`

	Clerk struct {
		SecretKey     string `yaml:"secret_key" env:"CLERK_SECRET_KEY"`
		WebhookSecret string `yaml:"webhook_secret" env:"CLERK_WEBHOOK_SECRET"`
	} `yaml:"clerk"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
	} `yaml:"logging"`

	Metrics struct {
		User     string `yaml:"user" env:"METRICS_USER"`
		Password string `yaml:"password" env:"METRICS_PASS"`
	} `yaml:"metrics"`

	Cron struct {
		Secret   string `yaml:"secret" env:"CRON_SECRET"`
		Interval string `yaml:"interval" env:"CRON_MIN_INTERVAL"`
	} `yaml:"cron"`

	Retention struct {
		InvitationDays    int `yaml:"invitation_days" env:"RETENTION_INVITATION_DAYS"`
		GenerationJobDays int `yaml:"generation_job_days" env:"RETENTION_GENERATION_JOB_DAYS"`
		NotificationDays  int `yaml:"notification_days" env:"RETENTION_NOTIFICATION_DAYS"`
		ProofUploadDays   int `yaml:"proof_upload_days" env:"RETENTION_PROOF_UPLOAD_DAYS"`
		ProofUploadBatch  int `yaml:"proof_upload_batch" env:"RETENTION_PROOF_UPLOAD_BATCH"`
	} `yaml:"retention"`

	Stripe struct {
		SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
		WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
		SuccessURL    string `yaml:"success_url" env:"STRIPE_SUCCESS_URL"`
		CancelURL     string `yaml:"cancel_url" env:"STRIPE_CANCEL_URL"`
		PortalReturn  string `yaml:"portal_return_url" env:"STRIPE_PORTAL_RETURN_URL"`
	} `yaml:"stripe"`

	Storage struct {
		Endpoint      string `yaml:"endpoint" env:"S3_ENDPOINT"`
		Region        string `yaml:"region" env:"S3_REGION"`
		Bucket        string `yaml:"bucket" env:"S3_BUCKET"`
		AccessKey     string `yaml:"access_key" env:"S3_ACCESS_KEY"`
		SecretKey     string `yaml:"secret_key" env:"S3_SECRET_KEY"`
		PublicBaseURL string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
	} `yaml:"storage"`

	Queue struct {
		URL string `yaml:"url" env:"AMQP_URL"`
	} `yaml:"queue"`

	AI struct {
		APIKey               string `yaml:"api_key" env:"GEMINI_API_KEY"`
		Model                string `yaml:"model" env:"GEMINI_MODEL"`
		FreeDailyGenerations int    `yaml:"free_daily_generations" env:"AI_FREE_DAILY_GENERATIONS"`
	} `yaml:"ai"`

	SMTP struct {
		Host      string `yaml:"host" env:"SMTP_HOST"`
		Port      int    `yaml:"port" env:"SMTP_PORT"`
		Username  string `yaml:"username" env:"SMTP_USERNAME"`
		Password  string `yaml:"password" env:"SMTP_PASSWORD"`
		FromName  string `yaml:"from_name" env:"SMTP_FROM_NAME"`
		FromEmail string `yaml:"from_email" env:"SMTP_FROM_EMAIL"`
	} `yaml:"smtp"`

	FCM struct {
		CredentialsFile string `yaml:"credentials_file" env:"FCM_CREDENTIALS_FILE"`
		CredentialsJSON string `yaml:"-" env:"FCM_SERVICE_ACCOUNT_JSON"`
	} `yaml:"fcm"`
}

// Load reads .env (if present), then the YAML file at path (if present),
// then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("No .env file found")
	}

	cfg := &Config{}
	setDefaults(cfg)

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			logger.Debug().Str("path", path).Msg("Config file not found, using environment only")
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Server.Port = "3333"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.PublicBaseURL = "https://repcir.com"

	cfg.Database.MaxConns = 25
	cfg.Database.MinConns = 5
	cfg.Database.Migrate = true

	cfg.Logging.Level = "info"

	cfg.Cron.Interval = "1h"

	cfg.Retention.InvitationDays = 30
	cfg.Retention.GenerationJobDays = 30
	cfg.Retention.NotificationDays = 90
	cfg.Retention.ProofUploadDays = 90
	cfg.Retention.ProofUploadBatch = 500

	cfg.AI.Model = "gemini-2.5-flash"
	cfg.AI.FreeDailyGenerations = 3

	cfg.SMTP.Port = 587
	cfg.SMTP.FromName = "Repcir"
}

// Validate checks required settings and value formats.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Clerk.SecretKey == "" {
		return errors.New("CLERK_SECRET_KEY is required")
	}
	if _, err := c.CronInterval(); err != nil {
		return fmt.Errorf("invalid cron interval %q: %w", c.Cron.Interval, err)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("db min conns (%d) exceeds max conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.AI.FreeDailyGenerations < 0 {
		return errors.New("free daily generations cannot be negative")
	}
	return nil
}

func (c *Config) CronInterval() (time.Duration, error) {
	return time.ParseDuration(c.Cron.Interval)
}

func (c *Config) StripeEnabled() bool  { return c.Stripe.SecretKey != "" }
func (c *Config) StorageEnabled() bool { return c.Storage.Bucket != "" }
func (c *Config) QueueEnabled() bool   { return c.Queue.URL != "" }
func (c *Config) AIEnabled() bool      { return c.AI.APIKey != "" }
func (c *Config) FCMEnabled() bool {
	return c.FCM.CredentialsJSON != "" || c.FCM.CredentialsFile != ""
}
