package sim

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Hasher turns a share payload into a hex digest.
type Hasher func(payload []byte) string

// SHA256d is Bitcoin's double SHA-256.
func SHA256d(payload []byte) string {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return hex.EncodeToString(second[:])
}

// Blake2b applies BLAKE2b-256 twice.
func Blake2b(payload []byte) string {
	first := blake2b.Sum256(payload)
	second := blake2b.Sum256(first[:])
	return hex.EncodeToString(second[:])
}

// SHA3 applies SHA3-256 twice.
func SHA3(payload []byte) string {
	first := sha3.Sum256(payload)
	second := sha3.Sum256(first[:])
	return hex.EncodeToString(second[:])
}

// HasherByName resolves a configured hash name.
func HasherByName(name string) (Hasher, error) {
	switch name {
	case "", "sha256d":
		return SHA256d, nil
	case "blake2b":
		return Blake2b, nil
	case "sha3":
		return SHA3, nil
	default:
		return nil, fmt.Errorf("unknown hash %q", name)
	}
}

// IsLucky reports whether a hex digest starts with two zero characters.
// Lucky hashes are always accepted.
func IsLucky(hash string) bool {
	return strings.HasPrefix(hash, "00")
}
