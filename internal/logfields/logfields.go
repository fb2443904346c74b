// Package logfields prepares backend log fields for the logger adapters.
package logfields

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/unkn0wn-root/cachette/backend"
)

// Hash is a ready-made redactor: the first 8 bytes of SHA-256, hex encoded.
func Hash(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

// Field is one prepared key/value pair.
type Field struct {
	Key   string
	Value any
}

// Prepare returns f sorted by name. When redact is set, cache keys and
// namespaces are passed through it.
func Prepare(f backend.Fields, redact func(string) string) []Field {
	if len(f) == 0 {
		return nil
	}
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]Field, len(names))
	for i, k := range names {
		v := f[k]
		if redact != nil && (k == "key" || k == "namespace") {
			if s, ok := v.(string); ok {
				v = redact(s)
			}
		}
		out[i] = Field{Key: k, Value: v}
	}
	return out
}
