// Package shape fits graph query results into a bounded context budget.
// The sanitize pass strips payloads an LLM caller cannot use (embedding
// vectors, enormous lists, over-deep nesting); the truncate pass cuts the
// serialized result to an estimated token budget. Both passes are
// idempotent: shaping already-shaped output changes nothing.
package shape

import (
	"fmt"
	"strings"
)

const (
	// DefaultMaxListLength caps any array in a sanitized result.
	DefaultMaxListLength = 128

	// embeddingMinLength is the shortest numeric array treated as an
	// embedding vector.
	embeddingMinLength = 64

	// embeddingSampleSize and embeddingSampleRatio define the numeric
	// sample test: at least 80% of a 10-element sample must be numbers.
	embeddingSampleSize  = 10
	embeddingSampleRatio = 0.8

	// maxDepth bounds recursion; beyond it a placeholder is emitted
	// instead of descending further.
	maxDepth = 10
)

// Sanitizer holds the sanitize pass configuration.
type Sanitizer struct {
	// MaxListLength caps arrays; zero selects DefaultMaxListLength.
	MaxListLength int
	// StripNulls drops null-valued map entries from the output.
	StripNulls bool
}

// embeddingKeySubstrings flags map keys replaced regardless of their
// value's shape.
var embeddingKeySubstrings = []string{"embedding", "vector", "encoding"}

// Sanitize recursively walks a decoded JSON value and returns a copy with
// embeddings replaced, long arrays truncated, and recursion depth capped.
// Primitives pass through unchanged.
func (s *Sanitizer) Sanitize(value any) any {
	return s.walk(value, 0)
}

func (s *Sanitizer) maxList() int {
	if s.MaxListLength > 0 {
		return s.MaxListLength
	}
	return DefaultMaxListLength
}

func (s *Sanitizer) walk(value any, depth int) any {
	if depth > maxDepth {
		return "[nested data omitted: max depth exceeded]"
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if s.StripNulls && val == nil {
				continue
			}
			if isEmbeddingKey(key) {
				out[key] = embeddingPlaceholder(val)
				continue
			}
			out[key] = s.walk(val, depth+1)
		}
		return out

	case []any:
		if IsEmbeddingVector(v) {
			return fmt.Sprintf("[embedding vector: %d dimensions]", len(v))
		}
		max := s.maxList()
		if len(v) > max {
			out := make([]any, 0, max+1)
			for _, item := range v[:max] {
				out = append(out, s.walk(item, depth+1))
			}
			out = append(out, fmt.Sprintf("... [%d more items truncated]", len(v)-max))
			return out
		}
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, s.walk(item, depth+1))
		}
		return out

	default:
		return value
	}
}

// IsEmbeddingVector classifies a long, overwhelmingly numeric array as an
// embedding: length at least 64 where at least 80% of a 10-element sample
// are numbers. Shorter numeric arrays pass through unchanged.
func IsEmbeddingVector(items []any) bool {
	if len(items) < embeddingMinLength {
		return false
	}
	step := len(items) / embeddingSampleSize
	if step < 1 {
		step = 1
	}
	sampled, numeric := 0, 0
	for i := 0; i < len(items) && sampled < embeddingSampleSize; i += step {
		sampled++
		if isNumber(items[i]) {
			numeric++
		}
	}
	if sampled == 0 {
		return false
	}
	return float64(numeric)/float64(sampled) >= embeddingSampleRatio
}

func isEmbeddingKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sub := range embeddingKeySubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

func embeddingPlaceholder(val any) string {
	if arr, ok := val.([]any); ok {
		return fmt.Sprintf("[embedding vector: %d dimensions]", len(arr))
	}
	return "[embedding data omitted]"
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	default:
		return false
	}
}
