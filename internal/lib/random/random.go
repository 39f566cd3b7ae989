package random

import (
	"crypto/rand"
	"encoding/hex"
)

// NewHexString returns n random bytes from a cryptographically secure
// source, hex-encoded (2n characters).
func NewHexString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process has no usable entropy
		// source; nothing sane can continue from here.
		panic("random: " + err.Error())
	}

	return hex.EncodeToString(buf)
}
