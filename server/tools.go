package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/graphgate/graphgate/cypher"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/internal/fault"
	"github.com/graphgate/graphgate/internal/jsonrpc"
	"github.com/graphgate/graphgate/internal/logctx"
)

// Tool names exposed through tools/list.
const (
	toolReadCypher  = "read_cypher"
	toolWriteCypher = "write_cypher"
	toolGetSchema   = "get_schema"
)

const notConnectedMessage = "Not connected to a graph database. A valid session token bound to a connection is required."

// cypherArgs is the argument shape shared by the read and write query
// tools.
type cypherArgs struct {
	Query  string         `json:"query" jsonschema:"description=The Cypher query to execute"`
	Params map[string]any `json:"params,omitempty" jsonschema:"description=Named parameters referenced by the query"`
}

// schemaArgs is intentionally empty; get_schema takes no arguments.
type schemaArgs struct{}

// toolDescriptors declares the exposed tool surface. The list is static:
// tools do not appear or disappear per session, only their outcomes differ.
func (s *Server) toolDescriptors() []Tool {
	return []Tool{
		{
			Name:        toolReadCypher,
			Description: "Execute a read-only Cypher query against the connected graph database. Write and administrative operations are rejected.",
			InputSchema: reflectInputSchema[cypherArgs](),
		},
		{
			Name:        toolWriteCypher,
			Description: "Execute a Cypher query that may modify the connected graph database. Requires a connection with write access enabled.",
			InputSchema: reflectInputSchema[cypherArgs](),
		},
		{
			Name:        toolGetSchema,
			Description: "Describe the connected graph database's schema: node labels, their properties, and relationship types.",
			InputSchema: reflectInputSchema[schemaArgs](),
		},
	}
}

// handleToolCall validates the tools/call envelope and routes to the named
// tool. Unknown tools and malformed arguments are parameter faults;
// everything past argument decoding follows the tool's own error surface.
func (s *Server) handleToolCall(ctx context.Context, auth *authState, req *jsonrpc.Request) *jsonrpc.Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, "invalid tools/call params", nil)
	}
	if params.Name == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, "missing tool name", nil)
	}

	switch params.Name {
	case toolReadCypher:
		return s.runCypherTool(ctx, auth, req, &params, false)
	case toolWriteCypher:
		return s.runCypherTool(ctx, auth, req, &params, true)
	case toolGetSchema:
		return s.runGetSchema(ctx, auth, req)
	default:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, "unknown tool: "+params.Name, nil)
	}
}

// runCypherTool executes read_cypher and write_cypher. The two differ only
// in which query kinds they admit and whether results carry update
// counters.
func (s *Server) runCypherTool(ctx context.Context, auth *authState, req *jsonrpc.Request, params *CallToolParams, write bool) *jsonrpc.Response {
	tool := toolReadCypher
	if write {
		tool = toolWriteCypher
	}

	var args cypherArgs
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, "invalid arguments for "+tool, nil)
		}
	}

	if auth == nil {
		s.countToolCall(tool, "not_connected")
		return s.resultResponse(req, errorResult(notConnectedMessage))
	}

	verdict := cypher.Validate(args.Query)
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: tool, QueryKind: string(verdict.Kind)})
	if !verdict.Valid {
		return s.rejectQuery(ctx, req, tool, verdict.ErrorReason)
	}
	if !write && (verdict.Kind == cypher.KindWrite || verdict.Kind == cypher.KindAdmin) {
		return s.rejectQuery(ctx, req, tool, "query contains write operations; use "+toolWriteCypher)
	}
	if write && verdict.Kind == cypher.KindAdmin {
		return s.rejectQuery(ctx, req, tool, "administrative operations are not permitted")
	}
	if write && auth.conn.ReadOnly {
		s.countToolCall(tool, "write_disabled")
		return s.resultResponse(req, errorResult("Write access is disabled for this connection."))
	}

	sanitized := cypher.SanitizeParameters(args.Params, s.log)

	start := time.Now()
	result, err := s.client.Query(ctx, auth.conn, args.Query, sanitized, write)
	if s.metrics != nil {
		s.metrics.ObserveQuery(tool, time.Since(start))
	}
	if err != nil {
		s.countToolCall(tool, "fault")
		s.log.ErrorContext(ctx, "query execution failed", slog.Any("error", err))
		return jsonrpc.NewFaultResponse(req.ID, err)
	}

	var payload any
	if write {
		payload = map[string]any{
			"rows":     rowsAsAny(result.Rows),
			"counters": result.Counters,
		}
	} else {
		payload = rowsAsAny(result.Rows)
	}
	shaped := s.shaper.Shape(payload, s.tokenBudget)

	out := textResult(shaped)
	for _, warning := range verdict.Warnings {
		out.Content = append(out.Content, Content{Type: "text", Text: "Warning: " + warning})
	}
	s.countToolCall(tool, "ok")
	return s.resultResponse(req, out)
}

// runGetSchema serves the schema description, preferring the KV cache and
// extracting from the remote database on a miss. Cache write failures are
// logged and otherwise ignored; the description was already produced.
func (s *Server) runGetSchema(ctx context.Context, auth *authState, req *jsonrpc.Request) *jsonrpc.Response {
	if auth == nil {
		s.countToolCall(toolGetSchema, "not_connected")
		return s.resultResponse(req, errorResult(notConnectedMessage))
	}
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: toolGetSchema})

	cacheKey := auth.record.CacheKey()
	item, err := s.kv.Get(ctx, cacheKey)
	if err != nil {
		s.log.WarnContext(ctx, "schema cache read failed", slog.Any("error", err))
	}
	if item != nil {
		if s.metrics != nil {
			s.metrics.SchemaCacheHits.Inc()
		}
		s.countToolCall(toolGetSchema, "ok")
		return s.resultResponse(req, textResult(string(item.Data)))
	}
	if s.metrics != nil {
		s.metrics.SchemaCacheMisses.Inc()
	}

	schema, err := s.extractor.Extract(ctx, auth.conn)
	if err != nil {
		s.countToolCall(toolGetSchema, "fault")
		s.log.ErrorContext(ctx, "schema extraction failed", slog.Any("error", err))
		return jsonrpc.NewFaultResponse(req.ID, err)
	}
	desc := graph.Format(schema)

	if err := s.kv.Put(ctx, cacheKey, []byte(desc.Text), s.schemaCacheTTL); err != nil {
		s.log.WarnContext(ctx, "schema cache write failed", slog.Any("error", err))
	}

	s.countToolCall(toolGetSchema, "ok")
	return s.resultResponse(req, textResult(desc.Text))
}

// rejectQuery reports a blocked or malformed query as a validation fault.
func (s *Server) rejectQuery(ctx context.Context, req *jsonrpc.Request, tool, reason string) *jsonrpc.Response {
	if s.metrics != nil {
		s.metrics.ValidationRejections.WithLabelValues(tool).Inc()
	}
	s.countToolCall(tool, "rejected")
	s.log.WarnContext(ctx, "query rejected", slog.String("reason", reason))
	return jsonrpc.NewFaultResponse(req.ID, fault.New(fault.KindValidation, reason))
}

func (s *Server) countToolCall(tool, outcome string) {
	if s.metrics != nil {
		s.metrics.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	}
}

// rowsAsAny widens row maps so the shaping pass sees a plain []any and can
// apply array truncation.
func rowsAsAny(rows []map[string]any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out
}
