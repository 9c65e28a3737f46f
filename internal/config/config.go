package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Chain    ChainConfig    `json:"chain"`
	Renderer RendererConfig `json:"renderer"`
	Mongo    MongoConfig    `json:"mongo"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// ChainConfig holds everything needed to reach the ledger and sign from
// the session account.
type ChainConfig struct {
	RPCURL          string `json:"rpc_url"`
	ReviewsContract string `json:"reviews_contract"`
	EASContract     string `json:"eas_contract"`
	SignerKey       string `json:"signer_key"`
	// Production selects the mainnet block explorer for notification
	// links; anything else links to the test network explorer.
	Production bool `json:"production"`
}

// RendererConfig points at the remote PDF rendering service.
type RendererConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
	// GatewayURL is the IPFS gateway serving rendered documents back.
	GatewayURL string `json:"gateway_url"`
}

// MongoConfig represents the off-chain index store configuration
type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
	// PortalAPIKey is exchanged for a bearer token at login.
	PortalAPIKey string        `json:"portal_api_key"`
	TokenTTL     time.Duration `json:"token_ttl"`
	// How long a submitted-transaction notification stays visible, in
	// seconds, forwarded to websocket clients.
	NotificationDuration int `json:"notification_duration"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig reads configuration from the environment, loading a .env file
// first if one is present. Required keys fail loudly; everything else has
// a sensible default.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Chain: ChainConfig{
			RPCURL:          os.Getenv("CHAIN_RPC_URL"),
			ReviewsContract: os.Getenv("REVIEWS_CONTRACT_ADDRESS"),
			EASContract:     os.Getenv("EAS_CONTRACT_ADDRESS"),
			SignerKey:       os.Getenv("CHAIN_SIGNER_KEY"),
			Production:      getEnv("BUILD_MODE", "test") == "production",
		},
		Renderer: RendererConfig{
			BaseURL:    os.Getenv("RENDERER_BASE_URL"),
			Timeout:    time.Duration(getEnvInt("RENDERER_TIMEOUT_SECONDS", 60)) * time.Second,
			GatewayURL: getEnv("IPFS_GATEWAY_URL", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "review_portal"),
		},
		Security: SecurityConfig{
			JWTSecret:            os.Getenv("JWT_SECRET"),
			PortalAPIKey:         os.Getenv("PORTAL_API_KEY"),
			TokenTTL:             time.Duration(getEnvInt("TOKEN_TTL_MINUTES", 60)) * time.Minute,
			NotificationDuration: getEnvInt("NOTIFICATION_DURATION", 10),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every key the pipeline cannot run without is set.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL must be set")
	}
	if c.Chain.ReviewsContract == "" {
		return fmt.Errorf("REVIEWS_CONTRACT_ADDRESS must be set")
	}
	if c.Chain.EASContract == "" {
		return fmt.Errorf("EAS_CONTRACT_ADDRESS must be set")
	}
	if c.Chain.SignerKey == "" {
		return fmt.Errorf("CHAIN_SIGNER_KEY must be set")
	}
	if c.Renderer.BaseURL == "" {
		return fmt.Errorf("RENDERER_BASE_URL must be set")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Security.PortalAPIKey == "" {
		return fmt.Errorf("PORTAL_API_KEY must be set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
