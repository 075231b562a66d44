// Package archive persists raw upstream payloads so scrapes can be
// re-parsed without re-fetching.
package archive

import "context"

// Store writes one raw artifact and returns its URI.
type Store interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}
