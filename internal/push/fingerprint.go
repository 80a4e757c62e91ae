package push

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short stable identifier of an endpoint for logs.
// Endpoint URLs are bearer capabilities and are never logged in full.
func Fingerprint(endpoint string) string {
	sum := blake2b.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:6])
}
