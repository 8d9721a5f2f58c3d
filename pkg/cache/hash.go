package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// keyVersion is mixed into every key. Bump it whenever the stored encoding
// of solutions or layouts changes, so old entries stop matching.
const keyVersion = 1

// Hash returns the hex SHA-256 of data. Maps and layouts are addressed by it.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashKey returns "<kind>:<hex>", where hex digests keyVersion followed by
// the JSON encoding of each part. Parts are strings and flat option structs,
// which always encode.
func hashKey(kind string, parts ...any) string {
	h := sha256.New()
	fmt.Fprintf(h, "oreflow/v%d\x00", keyVersion)
	enc := json.NewEncoder(h)
	for _, p := range parts {
		_ = enc.Encode(p)
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}
