package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"gopkg.in/yaml.v3"
)

// DefaultAdminEmails is the allow-list baked into the build.
// ASSIGNADMIN_ADMIN_EMAILS or ASSIGNADMIN_ALLOWLIST_FILE replace it.
var DefaultAdminEmails = []string{"admin1@example.com"}

// Config represents the application configuration
type Config struct {
	Auth        AuthConfig
	AdminEmails []string
	ClaimsMode  string // "replace" | "merge"
	LogLevel    string
	API         *APIConfig    // nil unless ASSIGNADMIN_API_ADDR is set
	Ledger      *LedgerConfig // nil unless ASSIGNADMIN_LEDGER_ENABLED is true
	Retry       RetryConfig
}

// AuthConfig represents the Firebase / Identity Platform settings
type AuthConfig struct {
	ProjectID   string
	Credentials string // Path to service account JSON file (optional)
	TenantID    string // Optional: for multi-tenant Identity Platform
}

// APIConfig represents the self-hosted event receiver
type APIConfig struct {
	Addr          string
	SigningSecret string // Optional: HMAC secret for X-Signature-256
}

// LedgerConfig represents the Firestore processed-event ledger
type LedgerConfig struct {
	ProjectID   string
	Database    string
	Credentials string
}

// RetryConfig represents claim-write retry settings
type RetryConfig struct {
	Enabled    bool
	MaxRetries int
	InitialMs  int
	MaxMs      int
}

// allowListFile is the YAML shape of ASSIGNADMIN_ALLOWLIST_FILE
type allowListFile struct {
	Admins []string `yaml:"admins"`
}

// LoadFromEnv reads configuration from ASSIGNADMIN_* environment variables.
//
// The allow-list comes from ASSIGNADMIN_ALLOWLIST_FILE and
// ASSIGNADMIN_ADMIN_EMAILS (comma separated); when both are set the union
// is used. When neither is set DefaultAdminEmails applies.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Auth: AuthConfig{
			ProjectID:   firstNonEmpty(os.Getenv("ASSIGNADMIN_PROJECT_ID"), os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("GCP_PROJECT")),
			Credentials: os.Getenv("ASSIGNADMIN_CREDENTIALS"),
			TenantID:    os.Getenv("ASSIGNADMIN_TENANT_ID"),
		},
		ClaimsMode: normalize(getEnvOrDefault("ASSIGNADMIN_CLAIMS_MODE", "replace")),
		LogLevel:   normalize(getEnvOrDefault("ASSIGNADMIN_LOG_LEVEL", "info")),
	}

	emails, err := loadAdminEmails()
	if err != nil {
		return nil, err
	}
	cfg.AdminEmails = emails

	if addr := os.Getenv("ASSIGNADMIN_API_ADDR"); addr != "" {
		cfg.API = &APIConfig{
			Addr:          addr,
			SigningSecret: os.Getenv("ASSIGNADMIN_SIGNING_SECRET"),
		}
	}

	ledgerEnabled, err := getEnvBool("ASSIGNADMIN_LEDGER_ENABLED", false)
	if err != nil {
		return nil, err
	}
	if ledgerEnabled {
		cfg.Ledger = &LedgerConfig{
			ProjectID:   cfg.Auth.ProjectID,
			Database:    getEnvOrDefault("ASSIGNADMIN_LEDGER_DATABASE", "(default)"),
			Credentials: cfg.Auth.Credentials,
		}
	}

	if cfg.Retry, err = loadRetry(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ClaimsMode, validation.Required, validation.In("replace", "merge")),
		validation.Field(&c.LogLevel, validation.Required, validation.In("trace", "debug", "info", "warn", "warning", "error")),
		validation.Field(&c.AdminEmails, validation.Required),
	); err != nil {
		return err
	}

	for i, email := range c.AdminEmails {
		if err := validation.Validate(email, validation.Required, is.Email); err != nil {
			return fmt.Errorf("adminEmails[%d] %q: %w", i, email, err)
		}
	}

	if c.API != nil && c.API.Addr == "" {
		return fmt.Errorf("api.addr is required")
	}

	// The ledger shares the Firebase project; both need it explicitly
	if c.Ledger != nil && c.Ledger.ProjectID == "" {
		return fmt.Errorf("ledger requires ASSIGNADMIN_PROJECT_ID")
	}

	if c.Retry.Enabled {
		if err := validation.ValidateStruct(&c.Retry,
			validation.Field(&c.Retry.MaxRetries, validation.Min(1), validation.Max(10)),
			validation.Field(&c.Retry.InitialMs, validation.Min(1)),
			validation.Field(&c.Retry.MaxMs, validation.Min(c.Retry.InitialMs)),
		); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}

	return nil
}

// LoadAllowListFile reads a YAML allow-list of the form:
//
//	admins:
//	  - admin1@example.com
func LoadAllowListFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read allow-list file: %w", err)
	}

	var f allowListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return f.Admins, nil
}

func loadAdminEmails() ([]string, error) {
	var emails []string

	if path := os.Getenv("ASSIGNADMIN_ALLOWLIST_FILE"); path != "" {
		fromFile, err := LoadAllowListFile(path)
		if err != nil {
			return nil, err
		}
		emails = append(emails, fromFile...)
	}

	emails = append(emails, splitList(os.Getenv("ASSIGNADMIN_ADMIN_EMAILS"))...)

	if len(emails) == 0 {
		emails = append(emails, DefaultAdminEmails...)
	}

	return emails, nil
}

func loadRetry() (RetryConfig, error) {
	var (
		r   RetryConfig
		err error
	)
	if r.Enabled, err = getEnvBool("ASSIGNADMIN_RETRY_ENABLED", false); err != nil {
		return r, err
	}
	if r.MaxRetries, err = getEnvInt("ASSIGNADMIN_RETRY_MAX", 3); err != nil {
		return r, err
	}
	if r.InitialMs, err = getEnvInt("ASSIGNADMIN_RETRY_INITIAL_MS", 500); err != nil {
		return r, err
	}
	if r.MaxMs, err = getEnvInt("ASSIGNADMIN_RETRY_MAX_MS", 10000); err != nil {
		return r, err
	}
	return r, nil
}

// splitList splits a comma separated value. Entries are trimmed of
// surrounding whitespace but their case is preserved.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalize lower-cases and trims an enum-like setting
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
