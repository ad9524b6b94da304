package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for M34.
// It merges file defaults and environment overrides to support both local and deployed runs.
// Everything here is read-only after LoadConfig returns; the pipeline never
// mutates configuration at runtime.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	// Identity of this app at the remote resource graph. Tokens must carry
	// AppID as audience and an issuer belonging to TenantID's authority.
	TenantID     string
	AppID        string
	ClientSecret string
	JWKSURL      string

	// Shared secret negotiated into every subscription's clientState.
	ClientStateSecret string

	// Private key for rich payload decryption, as PEM material or a file path.
	PrivateKeyPEM  string
	PrivateKeyPath string

	GraphBaseURL      string
	GraphHTTPTimeout  time.Duration
	FetchSelectFields []string

	SubscriptionCacheTTL time.Duration
	BatchMaxConcurrency  int
	TokenRefreshInterval time.Duration

	// DispatchTransport selects the event publisher: "redis" for the pub/sub
	// transport, "log" for the local stand-in that only writes to the logger.
	DispatchTransport string
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Graph struct {
		TenantID     string   `yaml:"tenant_id"`
		AppID        string   `yaml:"app_id"`
		ClientSecret string   `yaml:"client_secret"`
		BaseURL      string   `yaml:"base_url"`
		JWKSURL      string   `yaml:"jwks_url"`
		SelectFields []string `yaml:"select_fields"`
	} `yaml:"graph"`
	Webhook struct {
		ClientStateSecret string `yaml:"client_state_secret"`
		PrivateKeyPath    string `yaml:"private_key_path"`
		DispatchTransport string `yaml:"dispatch_transport"`
	} `yaml:"webhook"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "M34-Change-Notification-Service",
		HTTPPort:             8080,
		GRPCPort:             9090,
		MaxDBConns:           20,
		GraphBaseURL:         "https://graph.microsoft.com/v1.0",
		GraphHTTPTimeout:     8 * time.Second,
		FetchSelectFields:    []string{"subject", "bodyPreview", "organizer", "start", "end"},
		SubscriptionCacheTTL: 5 * time.Minute,
		BatchMaxConcurrency:  8,
		TokenRefreshInterval: 10 * time.Minute,
		DispatchTransport:    "redis",
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Graph.TenantID != "" {
			cfg.TenantID = f.Graph.TenantID
		}
		if f.Graph.AppID != "" {
			cfg.AppID = f.Graph.AppID
		}
		if f.Graph.ClientSecret != "" {
			cfg.ClientSecret = f.Graph.ClientSecret
		}
		if f.Graph.BaseURL != "" {
			cfg.GraphBaseURL = f.Graph.BaseURL
		}
		if f.Graph.JWKSURL != "" {
			cfg.JWKSURL = f.Graph.JWKSURL
		}
		if len(f.Graph.SelectFields) > 0 {
			cfg.FetchSelectFields = f.Graph.SelectFields
		}
		if f.Webhook.ClientStateSecret != "" {
			cfg.ClientStateSecret = f.Webhook.ClientStateSecret
		}
		if f.Webhook.PrivateKeyPath != "" {
			cfg.PrivateKeyPath = f.Webhook.PrivateKeyPath
		}
		if f.Webhook.DispatchTransport != "" {
			cfg.DispatchTransport = f.Webhook.DispatchTransport
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.TenantID = envOrDefault("GRAPH_TENANT_ID", cfg.TenantID)
	cfg.AppID = envOrDefault("GRAPH_APP_ID", cfg.AppID)
	cfg.ClientSecret = envOrDefault("GRAPH_CLIENT_SECRET", cfg.ClientSecret)
	cfg.JWKSURL = envOrDefault("GRAPH_JWKS_URL", cfg.JWKSURL)
	cfg.GraphBaseURL = envOrDefault("GRAPH_BASE_URL", cfg.GraphBaseURL)
	cfg.FetchSelectFields = envCSV("GRAPH_SELECT_FIELDS", cfg.FetchSelectFields)
	cfg.ClientStateSecret = envOrDefault("CLIENT_STATE_SECRET", cfg.ClientStateSecret)
	cfg.PrivateKeyPEM = envOrDefault("DECRYPTION_PRIVATE_KEY_PEM", cfg.PrivateKeyPEM)
	cfg.PrivateKeyPath = envOrDefault("DECRYPTION_PRIVATE_KEY_PATH", cfg.PrivateKeyPath)
	cfg.DispatchTransport = envOrDefault("DISPATCH_TRANSPORT", cfg.DispatchTransport)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.BatchMaxConcurrency = envInt("BATCH_MAX_CONCURRENCY", cfg.BatchMaxConcurrency)

	cfg.GraphHTTPTimeout = time.Duration(envInt("GRAPH_HTTP_TIMEOUT_SECONDS", int(cfg.GraphHTTPTimeout.Seconds()))) * time.Second
	cfg.SubscriptionCacheTTL = time.Duration(envInt("SUBSCRIPTION_CACHE_TTL_SECONDS", int(cfg.SubscriptionCacheTTL.Seconds()))) * time.Second
	cfg.TokenRefreshInterval = time.Duration(envInt("JWKS_REFRESH_INTERVAL_SECONDS", int(cfg.TokenRefreshInterval.Seconds()))) * time.Second

	if cfg.JWKSURL == "" && cfg.TenantID != "" {
		cfg.JWKSURL = fmt.Sprintf("https://login.microsoftonline.com/%s/discovery/v2.0/keys", cfg.TenantID)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.TenantID == "" || cfg.AppID == "" {
		return Config{}, fmt.Errorf("missing GRAPH_TENANT_ID or GRAPH_APP_ID")
	}
	if cfg.ClientSecret == "" {
		return Config{}, fmt.Errorf("missing GRAPH_CLIENT_SECRET")
	}
	if cfg.ClientStateSecret == "" {
		return Config{}, fmt.Errorf("missing CLIENT_STATE_SECRET")
	}
	if cfg.PrivateKeyPEM == "" && cfg.PrivateKeyPath == "" {
		return Config{}, fmt.Errorf("missing DECRYPTION_PRIVATE_KEY_PEM or DECRYPTION_PRIVATE_KEY_PATH")
	}
	if cfg.DispatchTransport != "redis" && cfg.DispatchTransport != "log" {
		return Config{}, fmt.Errorf("invalid DISPATCH_TRANSPORT %q, want redis or log", cfg.DispatchTransport)
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
