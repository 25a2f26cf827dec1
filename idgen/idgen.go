// Package idgen generates the identifiers used around replication: root
// IDs naming a primary and its replicas, envelope IDs for log correlation
// and short request trace IDs.
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator of base-36 IDs of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings. They sort by
// creation time, which keeps envelope IDs readable in logs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

var (
	// Root names a primary root when the configuration leaves it empty.
	Root Generator = UUIDv7()
	// Envelope tags every envelope a primary emits.
	Envelope Generator = UUIDv7()
	// Trace tags every request the replica receiver serves.
	Trace Generator = NanoID(8)
)

// maxRootLen bounds root IDs, which travel as URL path segments.
const maxRootLen = 128

// ValidRoot checks that s can name a root: 1 to 128 characters among
// letters, digits, '.', '_' and '-'.
func ValidRoot(s string) error {
	if s == "" || len(s) > maxRootLen {
		return fmt.Errorf("idgen: root id length %d out of range", len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return fmt.Errorf("idgen: root id %q: invalid character %q", s, c)
		}
	}
	return nil
}

// Parse validates a UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID: %w", err)
	}
	return u.String(), nil
}
