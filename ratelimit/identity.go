package ratelimit

import "strings"

// ResolveIdentity picks the rate-limit key for a request. Precedence:
// authenticated caller id, then the first client IP from a proxy
// Forwarded-For list, then the literal "anonymous".
func ResolveIdentity(callerID, forwardedFor string) string {
	if callerID != "" {
		return callerID
	}
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return "anonymous"
}
