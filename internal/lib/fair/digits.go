package fair

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DefaultDigitCount is the draw width used across the platform.
const DefaultDigitCount = 6

// rejectionBound drops bytes 250..255 so the remaining 250 values map
// evenly onto 0..9 (256 is not divisible by 10).
const rejectionBound = 250

// ExtractDigits derives n uniformly distributed decimal digits from a server
// seed, a round id and an optional client seed. The MAC is HMAC-SHA256 keyed
// by the seed over round_id ‖ client_seed ‖ counter, with a 32-bit big-endian
// counter starting at 0. Identical inputs always yield identical digits, so
// any holder of a revealed seed can re-derive the draw independently.
func ExtractDigits(seed, roundID, clientSeed string, n int) []int {
	message := []byte(roundID)
	if clientSeed != "" {
		message = append(message, clientSeed...)
	}

	digits := make([]int, 0, n)

	for counter := uint32(0); len(digits) < n; counter++ {
		mac := hmac.New(sha256.New, []byte(seed))
		mac.Write(message)

		var ctr [4]byte
		binary.BigEndian.PutUint32(ctr[:], counter)
		mac.Write(ctr[:])

		digits = append(digits, SampleDigits(mac.Sum(nil), n-len(digits))...)
	}

	return digits
}

// SampleDigits rejection-samples up to limit digits out of a byte block.
func SampleDigits(block []byte, limit int) []int {
	digits := make([]int, 0, limit)

	for _, b := range block {
		if len(digits) >= limit {
			break
		}

		if b < rejectionBound {
			digits = append(digits, int(b%10))
		}
	}

	return digits
}

// Commitment returns the hex-encoded SHA256 commitment for a seed.
func Commitment(seed string) string {
	sum := sha256.Sum256([]byte(seed))

	return hex.EncodeToString(sum[:])
}

// VerifyDraw recomputes a round's commitment and digits from a revealed
// seed. It needs no storage access: it is the externally facing
// accountability primitive. When expected is nil the match result is true.
func VerifyDraw(seed, roundID, clientSeed string, expected []int, n int) (bool, []int, string) {
	commitment := Commitment(seed)
	digits := ExtractDigits(seed, roundID, clientSeed, n)

	match := true
	if expected != nil {
		match = len(expected) == len(digits)

		for i := range digits {
			if !match {
				break
			}

			if digits[i] != expected[i] {
				match = false
			}
		}
	}

	return match, digits, commitment
}
