package shape

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultCharsPerToken is the character-to-token ratio used by the
	// budget estimate. The estimate is deliberately approximate; nothing
	// here is token-exact.
	DefaultCharsPerToken = 4

	// truncationSuffix is appended to text cut by TruncateText.
	truncationSuffix = "\n... [output truncated]"

	// cutLookback is how far back from the hard cut point we search for
	// a newline or space, preferring structure-preserving cuts.
	cutLookback = 120

	// arrayBudgetRatio reserves margin for the truncation marker when
	// binary-searching an array prefix.
	arrayBudgetRatio = 0.9
)

// Truncator cuts serialized output to an estimated token budget.
type Truncator struct {
	// CharsPerToken overrides the estimate ratio; zero selects the
	// default of 4.
	CharsPerToken int
}

func (t *Truncator) ratio() int {
	if t.CharsPerToken > 0 {
		return t.CharsPerToken
	}
	return DefaultCharsPerToken
}

// EstimateTokens estimates the token count of s as ceil(len(s) / ratio).
func (t *Truncator) EstimateTokens(s string) int {
	r := t.ratio()
	return (len(s) + r - 1) / r
}

// TruncateText cuts s to fit budgetTokens, appending a truncation suffix.
// The cut lands on the nearest preceding newline or space within a short
// lookback window when one exists. Re-applying with the same budget returns
// already-fitting input unchanged, so truncation is idempotent.
func (t *Truncator) TruncateText(s string, budgetTokens int) string {
	if budgetTokens <= 0 || t.EstimateTokens(s) <= budgetTokens {
		return s
	}

	charBudget := budgetTokens*t.ratio() - len(truncationSuffix)
	if charBudget <= 0 {
		// Budget too small to carry even the suffix; return the bare
		// prefix that fits.
		return s[:budgetTokens*t.ratio()]
	}

	cut := charBudget
	if idx := strings.LastIndexAny(s[:cut], "\n "); idx > 0 && cut-idx <= cutLookback {
		cut = idx
	}
	return s[:cut] + truncationSuffix
}

// TruncateArray returns the largest prefix of items whose serialized
// estimate fits 90% of budgetTokens, plus a marker describing what was
// dropped. When even a single element exceeds the budget, it falls back to
// a truncated single-item preview.
func (t *Truncator) TruncateArray(items []any, budgetTokens int) []any {
	if budgetTokens <= 0 {
		return items
	}
	if t.estimateSerialized(items) <= budgetTokens {
		return items
	}

	target := int(float64(budgetTokens) * arrayBudgetRatio)

	// Binary search the longest fitting prefix.
	lo, hi := 0, len(items)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.estimateSerialized(items[:mid]) <= target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	if lo == 0 {
		preview, _ := json.Marshal(items[0])
		return []any{
			t.TruncateText(string(preview), target),
			fmt.Sprintf("... [%d items omitted: result exceeds response budget]", len(items)-1),
		}
	}

	out := make([]any, 0, lo+1)
	out = append(out, items[:lo]...)
	out = append(out, fmt.Sprintf("... [showing %d of %d items: result exceeds response budget]", lo, len(items)))
	return out
}

func (t *Truncator) estimateSerialized(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return t.EstimateTokens(string(data))
}
