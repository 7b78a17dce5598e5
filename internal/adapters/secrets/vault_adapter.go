package secrets

import (
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/merchantkit/ogone-service/internal/adapters/ports"
)

// VaultConfig contains configuration for HashiCorp Vault adapter
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.example.com:8200")
	Address string

	// Authentication method: "token" or "approle"
	AuthMethod string

	// Token for token authentication
	Token string

	// AppRole credentials (if using AppRole auth)
	RoleID   string
	SecretID string

	// Vault namespace (Vault Enterprise)
	Namespace string

	// KV secrets engine mount path (default: "secret")
	MountPath string

	// KV version: "v1" or "v2" (default: "v2")
	KVVersion string

	// Cache TTL
	CacheTTL time.Duration

	// Enable caching
	EnableCache bool

	// TLS configuration
	TLSSkipVerify bool
}

// DefaultVaultConfig returns default configuration for Vault adapter
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:     address,
		AuthMethod:  "token",
		MountPath:   "secret",
		KVVersion:   "v2",
		CacheTTL:    5 * time.Minute,
		EnableCache: true,
	}
}

// vaultAdapter implements the SecretManagerAdapter port for HashiCorp Vault
type vaultAdapter struct {
	client *vault.Client
	config *VaultConfig
	logger *zap.Logger
	cache  *secretCache
}

// NewVaultAdapter creates a new HashiCorp Vault adapter
func NewVaultAdapter(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSSkipVerify {
		tlsConfig := &vault.TLSConfig{
			Insecure: true,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	if err := authenticateVault(client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault adapter initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)

	return &vaultAdapter{
		client: client,
		config: cfg,
		logger: logger,
		cache:  newSecretCache(cfg.EnableCache, cfg.CacheTTL),
	}, nil
}

// authenticateVault handles authentication with Vault
func authenticateVault(client *vault.Client, cfg *VaultConfig) error {
	switch cfg.AuthMethod {
	case "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}

		data := map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		}
		resp, err := client.Logical().Write("auth/approle/login", data)
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// GetSecret retrieves a secret by its path
// Path format: "ogone-service/accounts/{pspid}/shain"
func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	// Check cache first
	if cached := a.cache.get(path); cached != nil {
		a.logger.Debug("Secret retrieved from cache", zap.String("path", path))
		return cached, nil
	}

	a.logger.Info("Retrieving secret from Vault", zap.String("path", path))

	fullPath := a.dataPath(path)

	startTime := time.Now()
	secret, err := a.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		a.logger.Error("Failed to retrieve secret from Vault",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil {
		return nil, fmt.Errorf("secret not found: %s", path)
	}

	a.logger.Info("Secret retrieved successfully",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	value, version, err := extractKVValue(secret, a.config.KVVersion)
	if err != nil {
		return nil, fmt.Errorf("unexpected secret shape at %s: %w", path, err)
	}

	result := &ports.Secret{
		Value:    value,
		Version:  version,
		Metadata: make(map[string]string),
	}

	a.cache.set(path, result)

	return result, nil
}

// PutSecret creates or updates a secret
func (a *vaultAdapter) PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (string, error) {
	a.logger.Info("Writing secret to Vault", zap.String("path", path))

	payload := map[string]interface{}{"value": value}
	for k, v := range metadata {
		payload[k] = v
	}

	var data map[string]interface{}
	if a.config.KVVersion == "v2" {
		data = map[string]interface{}{"data": payload}
	} else {
		data = payload
	}

	resp, err := a.client.Logical().WriteWithContext(ctx, a.dataPath(path), data)
	if err != nil {
		a.logger.Error("Failed to write secret to Vault",
			zap.String("path", path),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to write secret to Vault: %w", err)
	}

	a.cache.invalidate(path)

	version := "v1"
	if resp != nil && resp.Data != nil {
		if v, ok := resp.Data["version"]; ok {
			version = fmt.Sprintf("%v", v)
		}
	}
	return version, nil
}

// dataPath builds the full KV path based on the engine version
func (a *vaultAdapter) dataPath(path string) string {
	if a.config.KVVersion == "v2" {
		return fmt.Sprintf("%s/data/%s", a.config.MountPath, path)
	}
	return fmt.Sprintf("%s/%s", a.config.MountPath, path)
}

// extractKVValue digs the "value" key out of a KV response, unwrapping the
// extra "data" level that KV v2 adds
func extractKVValue(secret *vault.Secret, kvVersion string) (value, version string, err error) {
	data := secret.Data
	version = "v1"

	if kvVersion == "v2" {
		inner, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			return "", "", fmt.Errorf("missing data envelope")
		}
		data = inner

		if meta, ok := secret.Data["metadata"].(map[string]interface{}); ok {
			if v, ok := meta["version"]; ok {
				version = fmt.Sprintf("%v", v)
			}
		}
	}

	raw, ok := data["value"]
	if !ok {
		return "", "", fmt.Errorf("missing value key")
	}
	str, ok := raw.(string)
	if !ok {
		return "", "", fmt.Errorf("value is not a string")
	}
	return str, version, nil
}
