package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"openidle.dev/internal/sim/state"
)

// Digest hashes the canonical JSON form of st. Map keys marshal sorted, so
// equal states always hash equal.
func Digest(st *state.GameState) string {
	b, err := json.Marshal(st)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
