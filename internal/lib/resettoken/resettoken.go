package resettoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// 20 random bytes rendered as 40 hex characters.
const tokenBytes = 20

// New returns a plaintext reset token and its digest. The plaintext goes
// out of band exactly once; only the digest may be persisted.
func New() (plaintext, hash string, err error) {
	const op = "resettoken.New"

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	plaintext = hex.EncodeToString(buf)

	return plaintext, Hash(plaintext), nil
}

// Hash is the deterministic one-way digest used to look a token up.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
