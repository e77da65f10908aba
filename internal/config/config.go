// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// SupabaseConfig holds the connection settings for the hosted auth provider.
type SupabaseConfig struct {
	URL string // e.g., "https://your-project.supabase.co"
	Key string // anon API key
}

// SessionConfig holds settings for the signed session cookie.
type SessionConfig struct {
	Secret       []byte
	Lifetime     time.Duration
	CookieSecure bool
}

// DatabaseConfig holds the SQLite file location.
type DatabaseConfig struct {
	Path string
}

// AccessControlConfig holds the raw email lists loaded from the environment.
// Entries are trimmed and lowercased; empty entries are dropped.
type AccessControlConfig struct {
	AdminEmails   []string
	AllowedEmails []string
}

type Config struct {
	Port          string
	Supabase      SupabaseConfig
	Session       SessionConfig
	Database      DatabaseConfig
	AccessControl AccessControlConfig
	Currency      string
}

// DefaultSessionLifetime is the absolute lifetime of a session cookie.
const DefaultSessionLifetime = 7 * 24 * time.Hour

// Load reads configuration from environment variables.
// It fails fast with clear errors for missing required values.
func Load() (*Config, error) {
	var missing []string

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	if supabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}

	supabaseKey := os.Getenv("SUPABASE_KEY")
	if supabaseKey == "" {
		missing = append(missing, "SUPABASE_KEY")
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if err := validateSupabaseURL(supabaseURL); err != nil {
		return nil, fmt.Errorf("invalid SUPABASE_URL: %w", err)
	}

	lifetime := DefaultSessionLifetime
	if raw := os.Getenv("SESSION_LIFETIME"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_LIFETIME: %w", err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("invalid SESSION_LIFETIME: must be positive, got %s", parsed)
		}
		lifetime = parsed
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "/app/data/homie.db"
	}

	currency := os.Getenv("CURRENCY")
	if currency == "" {
		currency = "£"
	}

	return &Config{
		Port: port,
		Supabase: SupabaseConfig{
			URL: strings.TrimRight(supabaseURL, "/"),
			Key: supabaseKey,
		},
		Session: SessionConfig{
			Secret:       []byte(sessionSecret),
			Lifetime:     lifetime,
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		Database: DatabaseConfig{Path: dbPath},
		AccessControl: AccessControlConfig{
			AdminEmails:   parseEmailList(os.Getenv("ADMIN_EMAILS")),
			AllowedEmails: parseEmailList(os.Getenv("ALLOWED_EMAILS")),
		},
		Currency: currency,
	}, nil
}

// parseEmailList splits a comma-separated email list, normalizing each entry
// to lowercase. Policy comparisons are case-insensitive throughout.
func parseEmailList(raw string) []string {
	if raw == "" {
		return nil
	}

	var emails []string
	for _, part := range strings.Split(raw, ",") {
		email := strings.ToLower(strings.TrimSpace(part))
		if email != "" {
			emails = append(emails, email)
		}
	}
	return emails
}

// validateSupabaseURL ensures the provider URL is usable as a request base.
func validateSupabaseURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

// getEnvBool reads an environment variable as a boolean with a default fallback.
func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return strings.EqualFold(val, "true")
}
