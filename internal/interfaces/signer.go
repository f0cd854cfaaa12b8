package interfaces

import "time"

// Signer regenerates a time-limited signed URL from a durable base path.
// The production implementation belongs to the storage provider; the mock
// signer is a test double and is only selectable in development.
type Signer interface {
	Sign(basePath string, expiry time.Time) (string, error)
}
