package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const keySeparator = ":"

// Params are the named query parameters a cache key is derived from.
type Params map[string]any

// Key derives a stable cache key from a namespace and a set of parameters.
//
// Parameters are serialized in name order before hashing, so the same set of
// parameters always yields the same key regardless of how the map was built.
// The namespace stays readable in front of the digest so InvalidatePrefix can
// drop a whole namespace.
func Key(namespace string, params Params) string {
	h := sha256.Sum256([]byte(canonical(params)))
	return namespace + keySeparator + hex.EncodeToString(h[:])[:32]
}

// canonical renders params as name=value pairs sorted by name.
func canonical(params Params) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, encodeValue(name)+"="+encodeValue(params[name]))
	}
	return strings.Join(parts, "|")
}

func encodeValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
