package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Gateway GatewayConfig
	Secrets SecretsConfig
	Logger  LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        uint   `env:"SERVER_PORT" envDefault:"8080"`
	Host        string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
}

// GatewayConfig holds the Ogone DirectLink account configuration
type GatewayConfig struct {
	PSPID    string `env:"OGONE_PSPID"`
	UserID   string `env:"OGONE_USERID"`
	Password string `env:"OGONE_PSWD"`

	// SHAIn is the request-signing passphrase. Requests go unsigned when
	// empty and no secret manager path is configured.
	SHAIn string `env:"OGONE_SHA_IN"`

	// HashAlgorithm is one of sha1, sha256, sha512
	HashAlgorithm string `env:"OGONE_SIGNATURE_ENCRYPTOR" envDefault:"sha1"`

	// SignAllParameters selects the full-parameter signature convention used
	// by accounts created after 10 May 2010
	SignAllParameters bool `env:"OGONE_SIGN_ALL_PARAMETERS" envDefault:"true"`

	// DefaultCurrency applies when a request does not carry one
	DefaultCurrency string `env:"OGONE_DEFAULT_CURRENCY" envDefault:"EUR"`

	// Test routes traffic to the processor's test platform
	Test bool `env:"OGONE_TEST" envDefault:"true"`

	// BaseURL overrides the DirectLink host, for integration tests
	BaseURL string `env:"OGONE_BASE_URL"`

	// Timeout is the gateway request timeout in seconds
	Timeout int `env:"OGONE_TIMEOUT" envDefault:"30"`
}

// SecretsConfig selects where credential material comes from. With provider
// "env" the values in GatewayConfig are used as-is; "aws" and "vault" fetch
// the password and SHA-IN passphrase from the named paths at startup.
type SecretsConfig struct {
	Provider string `env:"SECRETS_PROVIDER" envDefault:"env"` // env, aws, vault, local

	PasswordPath string `env:"SECRETS_PASSWORD_PATH"`
	SHAInPath    string `env:"SECRETS_SHA_IN_PATH"`

	// AWS
	AWSRegion   string `env:"SECRETS_AWS_REGION" envDefault:"eu-west-1"`
	AWSProfile  string `env:"SECRETS_AWS_PROFILE"`
	AWSEndpoint string `env:"SECRETS_AWS_ENDPOINT"`

	// Vault
	VaultAddress string `env:"SECRETS_VAULT_ADDR"`
	VaultToken   string `env:"SECRETS_VAULT_TOKEN"`
	VaultMount   string `env:"SECRETS_VAULT_MOUNT" envDefault:"secret"`

	// Local (development only)
	LocalPath string `env:"SECRETS_LOCAL_PATH" envDefault:".secrets"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// Load fills the config from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{}

	for _, target := range []interface{}{&cfg.Server, &cfg.Gateway, &cfg.Secrets, &cfg.Logger} {
		if err := env.Parse(target); err != nil {
			return nil, fmt.Errorf("failed to parse environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gateway.PSPID == "" {
		return fmt.Errorf("OGONE_PSPID is required")
	}
	if c.Gateway.UserID == "" {
		return fmt.Errorf("OGONE_USERID is required")
	}
	if c.Gateway.Password == "" && c.Secrets.PasswordPath == "" {
		return fmt.Errorf("OGONE_PSWD or SECRETS_PASSWORD_PATH is required")
	}

	switch c.Gateway.HashAlgorithm {
	case "sha1", "sha256", "sha512":
	default:
		return fmt.Errorf("OGONE_SIGNATURE_ENCRYPTOR must be sha1, sha256 or sha512, got %q", c.Gateway.HashAlgorithm)
	}

	switch c.Secrets.Provider {
	case "env", "aws", "vault", "local":
	default:
		return fmt.Errorf("SECRETS_PROVIDER must be env, aws, vault or local, got %q", c.Secrets.Provider)
	}

	return nil
}
