package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/partition"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retention"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retry"
)

type Config struct {
	// Handler is the resource type used when a request carries none.
	Handler string

	AWS   AWSConfig
	Azure AzureConfig

	// Storage backend for artifacts and backups: "s3" or "azure".
	Provider string

	Backup BackupConfig

	CallbackTimeout time.Duration
	SignalReserve   time.Duration
	MetricsAddr     string

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64
	RetryEnableJitter bool
}

type AWSConfig struct {
	Region          string
	IAMEndpoint     string
	S3Endpoint      string
	S3PathStyle     bool
	AccessKeyID     string
	SecretAccessKey string
}

type AzureConfig struct {
	Account  string
	SASToken string

	ClientID     string
	ClientSecret string
	TenantID     string
}

// BackupConfig is the deploy-time surface of the backup pipeline.
type BackupConfig struct {
	Bucket         string
	Extension      string
	WeeklySchedule string
	Repository     string

	DailyRetentionDays  int
	WeeklyRetentionDays int
	StorageClass        retention.StorageClass
}

const (
	DefaultWeeklySchedule = "0 0 * * 0"
	DefaultExtension      = "tar.gz"
)

var repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Load reads config from environment variables, applies defaults and validates.
func Load() (Config, error) {
	get := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return def
	}

	var parseErrs []error
	parseInt := func(key string, def int) int {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				parseErrs = append(parseErrs, fmt.Errorf("%s: %w", key, err))
				return def
			}
			return n
		}
		return def
	}

	parseDur := func(key string, def time.Duration) time.Duration {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if d, err := time.ParseDuration(v); err == nil {
				return d
			}
		}
		return def
	}

	parseFloat := func(key string, def float64) float64 {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				return f
			}
		}
		return def
	}

	parseBool := func(key string, def bool) bool {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "y", "on":
				return true
			case "0", "false", "no", "n", "off":
				return false
			}
		}
		return def
	}

	class, err := retention.ParseStorageClass(get("STORAGE_CLASS", string(retention.DefaultStorageClass)))
	if err != nil {
		parseErrs = append(parseErrs, fmt.Errorf("STORAGE_CLASS: %w", err))
	}

	region := strings.TrimSpace(get("AWS_REGION", ""))
	if region == "" {
		region = strings.TrimSpace(get("AWS_DEFAULT_REGION", "us-east-1"))
	}

	cfg := Config{
		Handler:  strings.TrimSpace(get("PROVISIONER_HANDLER", "")),
		Provider: strings.ToLower(strings.TrimSpace(get("STORAGE_PROVIDER", "s3"))),

		AWS: AWSConfig{
			Region:          region,
			IAMEndpoint:     strings.TrimSpace(get("IAM_ENDPOINT", "")),
			S3Endpoint:      strings.TrimSpace(get("S3_ENDPOINT", "")),
			S3PathStyle:     parseBool("S3_FORCE_PATH_STYLE", false),
			AccessKeyID:     get("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: get("AWS_SECRET_ACCESS_KEY", ""),
		},

		Azure: AzureConfig{
			Account:      get("AZURE_STORAGE_ACCOUNT", ""),
			SASToken:     get("AZURE_STORAGE_SAS", ""),
			ClientID:     get("AZURE_CLIENT_ID", ""),
			ClientSecret: get("AZURE_CLIENT_SECRET", ""),
			TenantID:     get("AZURE_TENANT_ID", ""),
		},

		Backup: BackupConfig{
			Bucket:              strings.TrimSpace(get("BACKUP_BUCKET", "")),
			Extension:           strings.TrimPrefix(strings.TrimSpace(get("BACKUP_EXTENSION", DefaultExtension)), "."),
			WeeklySchedule:      strings.TrimSpace(get("WEEKLY_SCHEDULE", DefaultWeeklySchedule)),
			Repository:          strings.TrimSpace(get("REPOSITORY", "")),
			DailyRetentionDays:  parseInt("DAILY_RETENTION_DAYS", retention.DefaultDailyDays),
			WeeklyRetentionDays: parseInt("WEEKLY_RETENTION_DAYS", retention.DefaultWeeklyDays),
			StorageClass:        class,
		},

		CallbackTimeout: parseDur("CALLBACK_TIMEOUT", 30*time.Second),
		SignalReserve:   parseDur("SIGNAL_RESERVE", 10*time.Second),
		MetricsAddr:     get("METRICS_ADDR", ":9090"),

		RetryMaxAttempts:  parseInt("RETRY_MAX_ATTEMPTS", retry.Default.MaxAttempts),
		RetryInitialDelay: parseDur("RETRY_INITIAL_DELAY", retry.Default.InitialDelay),
		RetryMaxDelay:     parseDur("RETRY_MAX_DELAY", retry.Default.MaxDelay),
		RetryMultiplier:   parseFloat("RETRY_MULTIPLIER", retry.Default.Multiplier),
		RetryEnableJitter: parseBool("RETRY_JITTER", retry.Default.Jitter),
	}

	if len(parseErrs) > 0 {
		return Config{}, errors.Join(parseErrs...)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks provider-specific requirements and the backup surface.
func (c *Config) validate() error {
	switch c.Provider {
	case "s3":
		if c.AWS.Region == "" {
			return errors.New("s3: AWS_REGION is required")
		}
	case "azure":
		if c.Azure.Account == "" {
			return errors.New("azure: AZURE_STORAGE_ACCOUNT is required")
		}
	default:
		return errors.New("unsupported provider: " + c.Provider)
	}

	if c.Backup.Repository != "" && !repositoryPattern.MatchString(c.Backup.Repository) {
		return fmt.Errorf("REPOSITORY %q must look like owner/name", c.Backup.Repository)
	}
	if c.Backup.Extension == "" {
		return errors.New("BACKUP_EXTENSION must not be empty")
	}
	if _, err := c.Namer(); err != nil {
		return fmt.Errorf("WEEKLY_SCHEDULE: %w", err)
	}
	for _, p := range c.RetentionPolicies() {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if c.SignalReserve < 0 {
		return errors.New("SIGNAL_RESERVE must not be negative")
	}
	return nil
}

// RetryOptions converts retry-related config values to retry.Options.
func (c Config) RetryOptions() retry.Options {
	return retry.Options{
		MaxAttempts:  c.RetryMaxAttempts,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		Multiplier:   c.RetryMultiplier,
		Jitter:       c.RetryEnableJitter,
	}
}

// Namer builds the partition namer for the configured extension and weekly day.
func (c Config) Namer() (*partition.Namer, error) {
	return partition.New(c.Backup.Extension, c.Backup.WeeklySchedule)
}

// RetentionPolicies returns the daily and weekly policies, in that order.
func (c Config) RetentionPolicies() []retention.Policy {
	return []retention.Policy{
		{Cadence: partition.Daily, RetentionDays: c.Backup.DailyRetentionDays, StorageClass: c.Backup.StorageClass},
		{Cadence: partition.Weekly, RetentionDays: c.Backup.WeeklyRetentionDays, StorageClass: c.Backup.StorageClass},
	}
}
