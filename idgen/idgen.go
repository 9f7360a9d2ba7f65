// Package idgen provides pluggable ID generation.
//
// The SQL compiler takes a Generator for bind-parameter names so tests can
// pin them; request handling uses UUIDv7 for request IDs.
package idgen

import (
	"crypto/rand"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NanoID returns a Generator that produces base-36 IDs of the given length.
// The output only contains [0-9a-z], so it is always a valid SQL bind name.
func NanoID(length int) Generator {
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

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator producing "1", "2", ... in base 36.
// Deterministic; meant for tests and for callers that only need
// uniqueness within one statement.
func Sequence() Generator {
	var n atomic.Uint64
	return func() string {
		return strconv.FormatUint(n.Add(1), 36)
	}
}

// Param is the default generator for bind-parameter names: an "x" followed
// by 13 base-36 characters.
var Param Generator = Prefixed("x", NanoID(13))

// Request is the generator for request IDs.
var Request Generator = UUIDv7()
