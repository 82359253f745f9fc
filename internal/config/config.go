package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port     string
	Debug    bool
	TimeZone string

	// Site identity used in links and digests
	SiteName string
	SiteURL  string

	// Content database
	DBBackend string // "sqlite", "postgres", "mysql" or "memory"
	DBDSN     string

	// Key-value storage for settings, trends and the digest ledger
	StorageBackend   string // "file" or "azure"
	StorageDir       string
	StorageAccount   string
	StorageContainer string

	CacheTTL time.Duration

	// Notification configuration
	TeamsWebhookURL string
	AdminEmail      string
	MailFrom        string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string

	// Event stream
	RabbitMQURL        string
	RabbitMQExchange   string
	RabbitMQRoutingKey string
	RabbitMQQueue      string

	// API tokens mapped to capabilities
	EditorTokens []string
	AdminTokens  []string

	// Host CMS the sync command imports content from
	SourceURL      string
	SourceUsername string
	SourcePassword string

	TenantsFile      string
	SettingsSeedFile string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Debug:    getBoolEnv("DEBUG", false),
		TimeZone: getEnv("TIMEZONE", "UTC"),

		SiteName: getEnv("SITE_NAME", "My Site"),
		SiteURL:  getEnv("SITE_URL", "http://localhost:8080"),

		DBBackend: getEnv("DB_BACKEND", "sqlite"),
		DBDSN:     getEnv("DB_DSN", "freshness.db"),

		StorageBackend:   getEnv("STORAGE_BACKEND", "file"),
		StorageDir:       getEnv("STORAGE_DIR", "data"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "freshness"),

		CacheTTL: getDurationEnv("CACHE_TTL", 15*time.Minute),

		TeamsWebhookURL: getEnv("TEAMS_WEBHOOK_URL", ""),
		AdminEmail:      getEnv("ADMIN_EMAIL", ""),
		MailFrom:        getEnv("MAIL_FROM", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getIntEnv("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),

		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", "freshness"),
		RabbitMQRoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "freshness.events"),
		RabbitMQQueue:      getEnv("RABBITMQ_QUEUE", ""),

		EditorTokens: getSliceEnv("EDITOR_TOKENS", nil),
		AdminTokens:  getSliceEnv("ADMIN_TOKENS", nil),

		SourceURL:      getEnv("SOURCE_URL", ""),
		SourceUsername: getEnv("SOURCE_USERNAME", ""),
		SourcePassword: getEnv("SOURCE_PASSWORD", ""),

		TenantsFile:      getEnv("TENANTS_FILE", ""),
		SettingsSeedFile: getEnv("SETTINGS_SEED_FILE", ""),
	}

	if cfg.MailFrom == "" {
		cfg.MailFrom = cfg.SMTPUsername
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBBackend {
	case "sqlite", "postgres", "mysql", "memory":
	default:
		return fmt.Errorf("DB_BACKEND must be one of sqlite, postgres, mysql, memory")
	}

	switch c.StorageBackend {
	case "file":
		if c.StorageDir == "" {
			return fmt.Errorf("STORAGE_DIR is required for file storage")
		}
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required for azure storage")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be 'file' or 'azure'")
	}

	if c.SMTPHost != "" && c.MailFrom == "" {
		return fmt.Errorf("MAIL_FROM or SMTP_USERNAME is required when SMTP_HOST is set")
	}

	if c.TenantsFile != "" {
		if _, err := os.Stat(c.TenantsFile); err != nil {
			return fmt.Errorf("TENANTS_FILE is not readable: %w", err)
		}
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	return nil
}

// MailEnabled reports whether an SMTP server is configured
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// Location returns the configured time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
