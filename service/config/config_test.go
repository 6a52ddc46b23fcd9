package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_ADDR", "LOG_LEVEL", "APP_ENV",
		"LOOKUP_PROVIDER", "LOOKUP_TIMEOUT",
		"HELIUS_API_KEY", "HELIUS_API_URL",
		"SOLANA_RPC_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("HELIUS_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "test-key", cfg.HeliusAPIKey)
	assert.Equal(t, ":3002", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ProviderHelius, cfg.LookupProvider)
	assert.Equal(t, "https://api.helius.xyz", cfg.HeliusAPIURL)
	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.SolanaRPCURLs)
	assert.Equal(t, 15*time.Second, cfg.LookupTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingHeliusAPIKey(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "HELIUS_API_KEY is required")
}

func TestLoad_RPCProviderWithoutHeliusKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOOKUP_PROVIDER", "RPC")
	t.Setenv("SOLANA_RPC_URL", "https://a.example.com, ,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderRPC, cfg.LookupProvider)
	assert.Empty(t, cfg.HeliusAPIKey)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.SolanaRPCURLs)
}

func TestLoad_UnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOOKUP_PROVIDER", "bitquery")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "LOOKUP_PROVIDER must be")
}

func TestLoad_InvalidLookupTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("HELIUS_API_KEY", "test-key")
	t.Setenv("LOOKUP_TIMEOUT", "invalid")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_AccumulatesErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOOKUP_TIMEOUT", "-1s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOOKUP_TIMEOUT cannot be negative")
	assert.Contains(t, err.Error(), "HELIUS_API_KEY is required")
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("HELIUS_API_KEY", "secret-key")
	t.Setenv("HELIUS_API_URL", "http://localhost:8899")
	t.Setenv("LOOKUP_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "secret-key", cfg.HeliusAPIKey)
	assert.Equal(t, "http://localhost:8899", cfg.HeliusAPIURL)
	assert.Equal(t, 2*time.Second, cfg.LookupTimeout)
	assert.True(t, cfg.IsProduction())
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		ServerAddr:     ":3002",
		LookupProvider: ProviderHelius,
		HeliusAPIKey:   "k",
		HeliusAPIURL:   "https://api.helius.xyz",
		LookupTimeout:  15 * time.Second,
	}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "helius without key",
			cfg:     Config{ServerAddr: ":3002", LookupProvider: ProviderHelius, HeliusAPIURL: "https://api.helius.xyz"},
			wantErr: "HeliusAPIKey is required",
		},
		{
			name:    "rpc without endpoints",
			cfg:     Config{ServerAddr: ":3002", LookupProvider: ProviderRPC},
			wantErr: "SolanaRPCURLs is required",
		},
		{
			name:    "unknown provider",
			cfg:     Config{ServerAddr: ":3002", LookupProvider: "other"},
			wantErr: "LookupProvider must be",
		},
		{
			name:    "negative timeout",
			cfg:     Config{ServerAddr: ":3002", LookupProvider: ProviderRPC, SolanaRPCURLs: []string{"x"}, LookupTimeout: -time.Second},
			wantErr: "LookupTimeout cannot be negative",
		},
		{
			name:    "missing server addr",
			cfg:     Config{LookupProvider: ProviderRPC, SolanaRPCURLs: []string{"x"}},
			wantErr: "ServerAddr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	clearEnv(t)

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	clearEnv(t)
	t.Setenv("HELIUS_API_KEY", "test-key")

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}
