package images

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"
)

// MockSigner produces deterministic, non-cryptographic signatures in the
// SAS query shape. It exists for development and tests only — the real
// signing contract belongs to the storage provider and must be supplied in
// production.
type MockSigner struct{}

// NewMockSigner creates the development signer
func NewMockSigner() *MockSigner {
	return &MockSigner{}
}

// Sign appends a SAS-shaped query to the base path with the given expiry
func (m *MockSigner) Sign(basePath string, expiry time.Time) (string, error) {
	u, err := url.Parse(basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path %q: %w", basePath, err)
	}

	se := expiry.UTC().Format(sasTimeLayout)
	sum := sha256.Sum256([]byte(u.Path + se))

	q := url.Values{}
	q.Set("sv", "2022-11-02")
	q.Set("sp", "r")
	q.Set("se", se)
	q.Set("sig", "mock-"+hex.EncodeToString(sum[:8]))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
