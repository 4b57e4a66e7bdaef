package cypher

import (
	"io"
	"log/slog"
	"regexp"
)

// paramKey matches the identifier grammar accepted for bound parameter
// names.
var paramKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SanitizeParameters filters a caller-supplied parameter map down to keys
// that are valid identifiers. Non-conforming keys are dropped and logged,
// not rejected: a query carrying extra noise parameters still runs with the
// valid subset applied.
func SanitizeParameters(params map[string]any, log *slog.Logger) map[string]any {
	if params == nil {
		return nil
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		if !paramKey.MatchString(key) {
			log.Warn("dropping parameter with invalid key", slog.String("key", key))
			continue
		}
		out[key] = value
	}
	return out
}
