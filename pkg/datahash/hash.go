// Package datahash computes canonical, order-independent content hashes of
// JSON-shaped values. Integration upsert and drift detection both hash with
// this package, so semantically identical payloads always compare equal.
package datahash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Hash returns the hex-encoded SHA-256 digest of the canonical JSON encoding
// of v. Object keys are serialized in sorted order at every nesting level, so
// two maps with the same key/value pairs hash identically regardless of
// insertion order.
func Hash(v any) (string, error) {
	// Round-trip through encoding/json so structs, maps, and raw decoded
	// payloads all normalize to the same tree of maps/slices/primitives
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize value for hashing: %w", err)
	}

	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return "", fmt.Errorf("failed to normalize value for hashing: %w", err)
	}

	var sb strings.Builder
	if err := writeCanonical(&sb, tree); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:]), nil
}

// HashRaw hashes a raw JSON document (e.g. a webhook body) canonically
func HashRaw(raw []byte) (string, error) {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return "", fmt.Errorf("failed to parse raw JSON for hashing: %w", err)
	}
	return Hash(tree)
}

// writeCanonical serializes a decoded JSON tree with sorted object keys
func writeCanonical(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			encoded, err := json.Marshal(k)
			if err != nil {
				return err
			}
			sb.Write(encoded)
			sb.WriteByte(':')
			if err := writeCanonical(sb, val[k]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')

	case []any:
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeCanonical(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')

	default:
		// Primitives (string, float64, bool, nil) have one encoding
		encoded, err := json.Marshal(val)
		if err != nil {
			return err
		}
		sb.Write(encoded)
	}

	return nil
}
