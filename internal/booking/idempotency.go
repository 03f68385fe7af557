package booking

import (
	"crypto/sha256"
	"encoding/hex"
)

// IdempotencyKey derives the booking reference from the local document id and
// the file content hash. The same document always books under the same key,
// which is how a retried booking finds one that already landed.
func IdempotencyKey(documentID, contentHash string) string {
	sum := sha256.Sum256([]byte(documentID + ":" + contentHash))
	return "IB-" + hex.EncodeToString(sum[:])[:24]
}
