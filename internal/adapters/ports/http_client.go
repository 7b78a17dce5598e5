package ports

import "net/http"

// HTTPClient is the HTTP transport collaborator for gateway adapters.
// Timeout, retry, and pooling policy live behind this seam, which also makes
// adapters easy to point at httptest servers.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
