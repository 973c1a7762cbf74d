package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Loan store backends
const (
	LoanStoreSQL   = "sql"
	LoanStoreMongo = "mongo"
)

// Email providers
const (
	EmailProviderSMTP   = "smtp"
	EmailProviderResend = "resend"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string

	// Database. An empty DatabaseURL falls back to SQLite at SQLitePath.
	DatabaseURL string
	SQLitePath  string

	// Loan store (clients, payments, notes, documents)
	LoanStore     string
	MongoURI      string
	MongoDatabase string

	// JWT
	JWTSecret          string
	JWTExpirationHours int
	RefreshExpiryDays  int

	// Storage
	StoragePath string
	MaxUploadMB int

	// Background Workers
	WorkerCount int

	// CORS
	AllowedOrigins []string

	// Email
	EnableEmailNotifications bool
	EmailProvider            string
	FromEmail                string
	ResendAPIKey             string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string

	// Payment-due digest
	NotifyRecipients []string
	NotifyTimezone   string
	NotifyCron       []string
	CurrencySymbol   string

	// Seed admin, created when the users table is empty
	AdminEmail    string
	AdminPassword string

	// Sentry
	SentryDSN string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Environment:              getEnv("ENVIRONMENT", "development"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		SQLitePath:               getEnv("SQLITE_PATH", "./cashflow.db"),
		LoanStore:                strings.ToLower(getEnv("LOAN_STORE", LoanStoreSQL)),
		MongoURI:                 getEnv("MONGO_URI", ""),
		MongoDatabase:            getEnv("MONGO_DATABASE", "cashflow"),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTExpirationHours:       getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		RefreshExpiryDays:        getEnvAsInt("REFRESH_EXPIRY_DAYS", 30),
		StoragePath:              getEnv("STORAGE_PATH", "./storage"),
		MaxUploadMB:              getEnvAsInt("MAX_UPLOAD_MB", 16),
		WorkerCount:              getEnvAsInt("WORKER_COUNT", 5),
		AllowedOrigins:           getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		EnableEmailNotifications: getEnvAsBool("ENABLE_EMAIL_NOTIFICATIONS", true),
		EmailProvider:            strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderSMTP)),
		FromEmail:                getEnv("FROM_EMAIL", "noreply@cashflowloans.co.za"),
		ResendAPIKey:             getEnv("RESEND_API_KEY", ""),
		SMTPHost:                 getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:                 getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		NotifyRecipients:         getEnvAsSlice("NOTIFY_RECIPIENTS", []string{"info@cashflowloans.co.za"}),
		NotifyTimezone:           getEnv("NOTIFY_TIMEZONE", "Africa/Johannesburg"),
		NotifyCron:               getEnvAsSlice("NOTIFY_CRON", []string{"0 9 * * *", "0 17 * * *"}),
		CurrencySymbol:           getEnv("CURRENCY_SYMBOL", "R"),
		AdminEmail:               getEnv("ADMIN_EMAIL", ""),
		AdminPassword:            getEnv("ADMIN_PASSWORD", ""),
		SentryDSN:                getEnv("SENTRY_DSN", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" && c.Environment == "production" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}

	if c.JWTSecret == "" && c.Environment == "production" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	switch c.LoanStore {
	case LoanStoreSQL:
	case LoanStoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when LOAN_STORE=mongo")
		}
	default:
		return fmt.Errorf("unknown LOAN_STORE %q", c.LoanStore)
	}

	switch c.EmailProvider {
	case EmailProviderSMTP, EmailProviderResend:
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}

	return nil
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool reads an environment variable as boolean
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
