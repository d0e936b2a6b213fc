package arena

import "github.com/cory-johannsen/arena/internal/game/rng"

// codeAlphabet is the character set for human-facing join codes.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode produces a join code of the given length from the uppercase
// alphanumeric alphabet. Codes are not checked for collisions: the code space
// is large relative to the number of concurrent rooms, and stale codes vanish
// with empty-room cleanup.
//
// Precondition: src must be non-nil; length > 0.
func GenerateCode(src rng.Source, length int) string {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = codeAlphabet[src.Intn(len(codeAlphabet))]
	}
	return string(buf)
}
