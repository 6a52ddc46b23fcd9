package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brojonat/dustwatch/service/lookup"
	"github.com/joho/godotenv"
)

// Lookup providers.
const (
	ProviderHelius = lookup.ProviderHelius
	ProviderRPC    = lookup.ProviderRPC
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string
	AppEnv     string

	// Lookup configuration
	LookupProvider string
	LookupTimeout  time.Duration

	// Helius configuration
	HeliusAPIKey string
	HeliusAPIURL string

	// Solana RPC configuration. May hold several comma-separated endpoints.
	SolanaRPCURLs []string
}

// Load reads configuration from environment variables and validates all required fields.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment win.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":3002")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AppEnv = getEnvOrDefault("APP_ENV", "development")

	// Lookup configuration
	cfg.LookupProvider = strings.ToLower(getEnvOrDefault("LOOKUP_PROVIDER", ProviderHelius))
	if cfg.LookupProvider != ProviderHelius && cfg.LookupProvider != ProviderRPC {
		errs = append(errs, fmt.Errorf("LOOKUP_PROVIDER must be %q or %q, got %q", ProviderHelius, ProviderRPC, cfg.LookupProvider))
	}

	timeout, err := parseDuration("LOOKUP_TIMEOUT", "15s")
	if err != nil {
		errs = append(errs, err)
	} else if timeout < 0 {
		errs = append(errs, fmt.Errorf("LOOKUP_TIMEOUT cannot be negative"))
	} else {
		cfg.LookupTimeout = timeout
	}

	// Helius configuration
	cfg.HeliusAPIKey = os.Getenv("HELIUS_API_KEY")
	if cfg.LookupProvider == ProviderHelius && cfg.HeliusAPIKey == "" {
		errs = append(errs, fmt.Errorf("HELIUS_API_KEY is required when LOOKUP_PROVIDER is %q", ProviderHelius))
	}
	cfg.HeliusAPIURL = getEnvOrDefault("HELIUS_API_URL", "https://api.helius.xyz")

	// Solana RPC configuration
	cfg.SolanaRPCURLs = splitList(getEnvOrDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"))
	if cfg.LookupProvider == ProviderRPC && len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required when LOOKUP_PROVIDER is %q", ProviderRPC))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	switch c.LookupProvider {
	case ProviderHelius:
		if c.HeliusAPIKey == "" {
			errs = append(errs, fmt.Errorf("HeliusAPIKey is required for the helius provider"))
		}
		if c.HeliusAPIURL == "" {
			errs = append(errs, fmt.Errorf("HeliusAPIURL is required for the helius provider"))
		}
	case ProviderRPC:
		if len(c.SolanaRPCURLs) == 0 {
			errs = append(errs, fmt.Errorf("SolanaRPCURLs is required for the rpc provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("LookupProvider must be %q or %q", ProviderHelius, ProviderRPC))
	}

	if c.LookupTimeout < 0 {
		errs = append(errs, fmt.Errorf("LookupTimeout cannot be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// LookupOptions returns the lookup provider settings.
func (c *Config) LookupOptions() lookup.Options {
	return lookup.Options{
		Provider:     c.LookupProvider,
		HeliusAPIKey: c.HeliusAPIKey,
		HeliusAPIURL: c.HeliusAPIURL,
		RPCURLs:      c.SolanaRPCURLs,
	}
}

// IsProduction reports whether APP_ENV is production. Error details are
// hidden from API responses in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
