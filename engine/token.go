package engine

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/google/uuid"
)

// NewToken mints an opaque URL-safe token for unsubscribe and tracking
// links. Uniqueness comes from the underlying UUID.
func NewToken() string {
	hash := sha256.Sum256([]byte(uuid.New().String()))
	return base64.RawURLEncoding.EncodeToString(hash[:])[:32]
}
