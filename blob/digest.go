package blob

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns the 0x-prefixed blake2b-256 hash of the content, recorded
// alongside evidence so a served blob can be checked against what was
// originally submitted.
func Digest(content []byte) string {
	sum := blake2b.Sum256(content)
	return "0x" + hex.EncodeToString(sum[:])
}
