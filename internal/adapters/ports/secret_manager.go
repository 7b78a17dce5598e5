package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., SHA-IN passphrase)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for retrieving credential material
// (API password, SHA-IN passphrase) from a secret management service.
// Supports multiple backends: AWS Secrets Manager, HashiCorp Vault, local env.
// Implementation is responsible for:
//   - Authentication with the secret manager service
//   - Caching secrets appropriately (with TTL)
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name
	// Path format depends on implementation:
	//   - AWS: "ogone-service/accounts/{pspid}/shain"
	//   - Vault: "secret/data/ogone-service/accounts/{pspid}"
	// Returns error if:
	//   - Secret does not exist
	//   - Insufficient permissions
	//   - Network communication fails
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// PutSecret creates or updates a secret (admin/rotation operations)
	// Returns the new version identifier
	PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (version string, err error)
}
