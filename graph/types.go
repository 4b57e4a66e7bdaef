// Package graph adapts a logical connection into HTTP calls against a
// remote graph database's query endpoint, and extracts a normalized schema
// description from it.
package graph

// Connection is the decrypted view of a stored connection record. It is
// materialized per-request from encrypted storage and lives for exactly one
// request; it is never persisted in plaintext.
type Connection struct {
	URI      string
	Username string
	Password string
	Database string
	ReadOnly bool
}

// queryRequest is the wire shape accepted by the remote query endpoint.
type queryRequest struct {
	Statement       string         `json:"statement"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	IncludeCounters bool           `json:"includeCounters,omitempty"`
}

// queryResponse is the wire shape returned by the remote query endpoint.
type queryResponse struct {
	Data struct {
		Fields []string `json:"fields"`
		Values [][]any  `json:"values"`
	} `json:"data"`
	Counters map[string]any `json:"counters,omitempty"`
	Errors   []apiError     `json:"errors,omitempty"`
}

// apiError is one vendor error entry from the remote endpoint.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is a completed query: rows keyed by field name, plus update
// counters when they were requested.
type Result struct {
	Fields   []string
	Rows     []map[string]any
	Counters map[string]any
}

// rows zips fields and values into row maps.
func (r *queryResponse) rows() []map[string]any {
	out := make([]map[string]any, 0, len(r.Data.Values))
	for _, values := range r.Data.Values {
		row := make(map[string]any, len(r.Data.Fields))
		for i, field := range r.Data.Fields {
			if i < len(values) {
				row[field] = values[i]
			}
		}
		out = append(out, row)
	}
	return out
}
