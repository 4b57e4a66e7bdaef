package shape

import "encoding/json"

// DefaultTokenBudget bounds tool responses when the caller does not supply
// a budget of its own.
const DefaultTokenBudget = 4000

// Shaper combines the sanitize and truncate passes into the single entry
// point the tool-execution layer uses on every result.
type Shaper struct {
	Sanitizer Sanitizer
	Truncator Truncator
}

// Shape sanitizes value, serializes it, and cuts it to budgetTokens. The
// returned string is the text content of the tool result. Array-shaped
// payloads are prefix-truncated before serialization so the cut lands on
// element boundaries; the text pass then enforces the hard ceiling.
func (s *Shaper) Shape(value any, budgetTokens int) string {
	if budgetTokens <= 0 {
		budgetTokens = DefaultTokenBudget
	}

	sanitized := s.Sanitizer.Sanitize(value)
	if arr, ok := sanitized.([]any); ok {
		sanitized = s.Truncator.TruncateArray(arr, budgetTokens)
	}

	data, err := json.MarshalIndent(sanitized, "", "  ")
	if err != nil {
		return "[result could not be serialized]"
	}
	return s.Truncator.TruncateText(string(data), budgetTokens)
}
