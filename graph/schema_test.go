package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer answers query requests by statement substring, so one fake
// can serve the multi-query manual extraction path.
func scriptedServer(t *testing.T, responses map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Statement string `json:"statement"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		for needle, response := range responses {
			if strings.Contains(req.Statement, needle) {
				_ = json.NewEncoder(w).Encode(response)
				return
			}
		}
		t.Fatalf("no scripted response for statement %q", req.Statement)
	}))
}

func dataResponse(fields []string, values [][]any) map[string]any {
	return map[string]any{"data": map[string]any{"fields": fields, "values": values}}
}

func errorResponse(code string) map[string]any {
	return map[string]any{"errors": []map[string]any{{"code": code, "message": "boom"}}}
}

func TestExtractViaAPOC(t *testing.T) {
	meta := map[string]any{
		"Person": map[string]any{
			"type": "node",
			"properties": map[string]any{
				"name": map[string]any{"type": "STRING"},
				"age":  map[string]any{"type": "INTEGER"},
			},
			"relationships": map[string]any{
				"KNOWS": map[string]any{
					"direction": "out",
					"labels":    []any{"Person"},
				},
				"WROTE": map[string]any{
					"direction": "out",
					"labels":    []any{"Post"},
				},
			},
		},
		"Post": map[string]any{
			"type":       "node",
			"properties": map[string]any{"title": map[string]any{"type": "STRING"}},
		},
		"KNOWS": map[string]any{
			"type":       "relationship",
			"properties": map[string]any{"since": map[string]any{"type": "INTEGER"}},
		},
	}

	srv := scriptedServer(t, map[string]any{
		"apoc.meta.schema": dataResponse([]string{"value"}, [][]any{{meta}}),
	})
	defer srv.Close()

	e := NewExtractor(NewClient(), nil)
	schema, err := e.Extract(context.Background(), testConnection(srv.URL))
	require.NoError(t, err)

	require.Len(t, schema.Labels, 2)
	assert.Equal(t, "Person", schema.Labels[0].Label)
	assert.Equal(t, map[string]string{"name": "STRING", "age": "INTEGER"}, schema.Labels[0].Properties)
	assert.Equal(t, []RelSummary{{Type: "KNOWS", Target: "Person"}, {Type: "WROTE", Target: "Post"}}, schema.Labels[0].Outgoing)
	assert.Equal(t, "Post", schema.Labels[1].Label)

	require.Len(t, schema.RelTypes, 1)
	assert.Equal(t, "KNOWS", schema.RelTypes[0].Type)
	assert.Equal(t, map[string]string{"since": "INTEGER"}, schema.RelTypes[0].Properties)
}

func TestExtractFallsBackToManual(t *testing.T) {
	srv := scriptedServer(t, map[string]any{
		"apoc.meta.schema":        errorResponse("Neo.ClientError.Procedure.ProcedureNotFound"),
		"db.labels":               dataResponse([]string{"label"}, [][]any{{"Person"}, {"Post"}}),
		"db.relationshipTypes":    dataResponse([]string{"relationshipType"}, [][]any{{"WROTE"}}),
		"MATCH (n:`Person`) RETURN n": dataResponse([]string{"n"}, [][]any{
			{map[string]any{"name": "alice", "age": 34, "active": true}},
			{map[string]any{"name": "bob", "score": 1.5}},
		}),
		"MATCH (n:`Person`)-[r]->": dataResponse([]string{"relType", "targetLabels"}, [][]any{
			{"WROTE", []any{"Post"}},
		}),
		"MATCH (n:`Post`) RETURN n": dataResponse([]string{"n"}, [][]any{
			{map[string]any{"title": "hello"}},
		}),
		"MATCH (n:`Post`)-[r]->": dataResponse([]string{"relType", "targetLabels"}, [][]any{}),
	})
	defer srv.Close()

	e := NewExtractor(NewClient(), nil)
	schema, err := e.Extract(context.Background(), testConnection(srv.URL))
	require.NoError(t, err)

	require.Len(t, schema.Labels, 2)
	person := schema.Labels[0]
	assert.Equal(t, "Person", person.Label)
	assert.Equal(t, "STRING", person.Properties["name"])
	assert.Equal(t, "FLOAT", person.Properties["age"], "JSON numbers decode as floats")
	assert.Equal(t, "BOOLEAN", person.Properties["active"])
	assert.Equal(t, []RelSummary{{Type: "WROTE", Target: "Post"}}, person.Outgoing)

	post := schema.Labels[1]
	assert.Equal(t, []RelSummary{{Type: "WROTE", Target: "Person"}}, post.Incoming)

	require.Len(t, schema.RelTypes, 1)
	assert.Equal(t, []string{"Person"}, schema.RelTypes[0].StartLabels)
	assert.Equal(t, []string{"Post"}, schema.RelTypes[0].EndLabels)
}

func TestEscapeIdentifier(t *testing.T) {
	assert.Equal(t, "`Person`", escapeIdentifier("Person"))
	assert.Equal(t, "`weird``label`", escapeIdentifier("weird`label"))
}

func TestFormat(t *testing.T) {
	schema := &Schema{
		Labels: []LabelSchema{
			{
				Label:      "Person",
				Properties: map[string]string{"name": "STRING", "age": "INTEGER"},
				Outgoing:   []RelSummary{{Type: "KNOWS", Target: "Person"}},
			},
			{Label: "Post", Properties: map[string]string{"title": "STRING"}},
		},
		RelTypes: []RelTypeSchema{
			{Type: "KNOWS", StartLabels: []string{"Person"}, EndLabels: []string{"Person"}},
		},
	}

	desc := Format(schema)
	assert.Contains(t, desc.Text, "Graph schema: 2 node labels, 1 relationship types")
	assert.Contains(t, desc.Text, "(:Person) {age: INTEGER, name: STRING}")
	assert.Contains(t, desc.Text, "-[:KNOWS]-> (:Person)")
	assert.Contains(t, desc.Text, "[:KNOWS] (:Person) -> (:Person)")
	assert.Equal(t, strings.Count(desc.Text, "\n")+1, desc.Lines)
	assert.False(t, strings.HasSuffix(desc.Text, "\n"))
}

func TestFormatEmptySchema(t *testing.T) {
	desc := Format(&Schema{})
	assert.Equal(t, "Graph schema: 0 node labels, 0 relationship types", desc.Text)
	assert.Equal(t, 1, desc.Lines)
}
