// Package cypher classifies Cypher query text for the tool-execution layer.
// It does not parse or plan queries; it only decides whether a query may be
// forwarded at all, and whether it reads, writes, or administers the remote
// database. Dangerous constructs are matched against a fixed deny-list after
// comments are stripped, so comment tricks cannot hide them.
package cypher

import (
	"regexp"
	"strings"
)

// MaxQueryLength is the ceiling on accepted query text.
const MaxQueryLength = 10000

// QueryKind is the classification of a validated query.
type QueryKind string

const (
	KindRead    QueryKind = "read"
	KindWrite   QueryKind = "write"
	KindAdmin   QueryKind = "admin"
	KindUnknown QueryKind = "unknown"
)

// Verdict is the outcome of validating one query text. It is a pure
// function of the text; nothing here is persisted.
type Verdict struct {
	Valid       bool
	ErrorReason string
	Warnings    []string
	Kind        QueryKind
}

// denied pairs a deny-list pattern with the reason reported to the caller.
type denied struct {
	re     *regexp.Regexp
	reason string
}

var denyList = []denied{
	// Database lifecycle administration.
	{regexp.MustCompile(`(?i)\b(CREATE|DROP|ALTER|START|STOP)\s+(COMPOSITE\s+)?DATABASE\b`), "database lifecycle commands are not allowed"},
	// User, role, and permission management.
	{regexp.MustCompile(`(?i)\b(CREATE|DROP|ALTER|RENAME)\s+(USER|ROLE)\b`), "user and role management is not allowed"},
	{regexp.MustCompile(`(?i)\b(GRANT|REVOKE|DENY)\b`), "permission management is not allowed"},
	// Remote file loading.
	{regexp.MustCompile(`(?i)\bLOAD\s+CSV\b`), "LOAD CSV is not allowed"},
	{regexp.MustCompile(`(?i)\bapoc\.load\.`), "remote loading procedures are not allowed"},
	// Arbitrary procedure execution and shell escapes.
	{regexp.MustCompile(`(?i)\bapoc\.cypher\.run`), "dynamic query execution is not allowed"},
}

// dbmsProc matches calls into the system-internal procedure namespace.
var dbmsProc = regexp.MustCompile(`(?i)\bdbms\.[a-zA-Z0-9_.]+`)

// allowedDbmsProcs is the small introspection subset that remains callable.
var allowedDbmsProcs = map[string]bool{
	"dbms.components": true,
	"dbms.info":       true,
}

var (
	lineComment  = regexp.MustCompile(`//[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// Classification patterns. Admin is checked before write: schema commands
// like CREATE INDEX would otherwise classify as writes.
var (
	adminPattern = regexp.MustCompile(`(?i)\b(CREATE|DROP)\s+(INDEX|CONSTRAINT)\b|\bSHOW\s+(INDEXES|CONSTRAINTS|PROCEDURES|FUNCTIONS|TRANSACTIONS)\b|\bTERMINATE\s+TRANSACTIONS\b`)
	writePattern = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH\s+DELETE|SET|REMOVE|DROP|FOREACH)\b`)
	readPattern  = regexp.MustCompile(`(?i)\b(MATCH|RETURN|UNWIND|WITH|CALL|SHOW)\b`)
)

// Warning heuristics; these never invalidate a query.
var (
	matchClause   = regexp.MustCompile(`(?i)\bMATCH\b`)
	limitClause   = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)
	maxSaneLimit  = 1000
	returnsValues = regexp.MustCompile(`(?i)\bRETURN\b`)
)

// StripComments removes line and block comments so deny-list matching sees
// the query the database will actually execute.
func StripComments(query string) string {
	query = blockComment.ReplaceAllString(query, " ")
	query = lineComment.ReplaceAllString(query, " ")
	return query
}

// Validate checks query text against the deny-list and classifies it. A
// rejected query has Valid=false and an ErrorReason; warnings are collected
// either way and never affect validity.
func Validate(query string) *Verdict {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &Verdict{Valid: false, ErrorReason: "query is empty", Kind: KindUnknown}
	}
	if len(query) > MaxQueryLength {
		return &Verdict{Valid: false, ErrorReason: "query is too long", Kind: KindUnknown}
	}

	stripped := StripComments(trimmed)

	for _, d := range denyList {
		if d.re.MatchString(stripped) {
			return &Verdict{Valid: false, ErrorReason: d.reason, Kind: KindAdmin}
		}
	}
	for _, proc := range dbmsProc.FindAllString(stripped, -1) {
		if !allowedDbmsProcs[strings.ToLower(strings.TrimSuffix(proc, "."))] {
			return &Verdict{Valid: false, ErrorReason: "system procedures are not allowed", Kind: KindAdmin}
		}
	}

	verdict := &Verdict{Valid: true, Kind: classify(stripped)}

	if matchClause.MatchString(stripped) && returnsValues.MatchString(stripped) && !limitClause.MatchString(stripped) {
		verdict.Warnings = append(verdict.Warnings, "query returns unbounded results; consider adding LIMIT")
	}
	if m := limitClause.FindStringSubmatch(stripped); m != nil {
		if n := parseLimit(m[1]); n > maxSaneLimit {
			verdict.Warnings = append(verdict.Warnings, "explicit LIMIT is very large; results may be truncated")
		}
	}
	return verdict
}

func classify(stripped string) QueryKind {
	switch {
	case adminPattern.MatchString(stripped):
		return KindAdmin
	case writePattern.MatchString(stripped):
		return KindWrite
	case readPattern.MatchString(stripped):
		return KindRead
	default:
		return KindUnknown
	}
}

// ContainsWriteOperations reports whether query text includes any
// write-indicating construct. The read tool uses this to refuse writes; the
// write tool accepts read-only text, since forwarding a read through a write
// call is a safe no-op.
func ContainsWriteOperations(query string) bool {
	return writePattern.MatchString(StripComments(query))
}

func parseLimit(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
		if n > 1<<30 {
			return n
		}
	}
	return n
}
