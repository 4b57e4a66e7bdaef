package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/internal/fault"
)

func testConnection(uri string) *Connection {
	return &Connection{
		URI:      uri,
		Username: "neo4j",
		Password: "password",
		Database: "neo4j",
	}
}

func TestQuerySuccess(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"fields": []string{"name", "age"},
				"values": [][]any{{"alice", 34}, {"bob", 29}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient()
	result, err := c.Query(context.Background(), testConnection(srv.URL), "MATCH (n:Person) RETURN n.name AS name, n.age AS age", map[string]any{"min": 18}, false)
	require.NoError(t, err)

	assert.Equal(t, "/db/neo4j/query/v2", gotPath)
	assert.Equal(t, "neo4j", gotUser)
	assert.Equal(t, "password", gotPass)
	assert.Equal(t, "MATCH (n:Person) RETURN n.name AS name, n.age AS age", gotBody["statement"])

	assert.Equal(t, []string{"name", "age"}, result.Fields)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "alice", result.Rows[0]["name"])
}

func TestQueryDefaultDatabase(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"data":{"fields":[],"values":[]}}`))
	}))
	defer srv.Close()

	conn := testConnection(srv.URL + "/") // trailing slash must not double up
	conn.Database = ""

	c := NewClient()
	_, err := c.Query(context.Background(), conn, "RETURN 1", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "/db/neo4j/query/v2", gotPath)
}

func TestQueryCountersRequested(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, true, body["includeCounters"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":     map[string]any{"fields": []string{}, "values": [][]any{}},
			"counters": map[string]any{"nodesCreated": 1},
		})
	}))
	defer srv.Close()

	c := NewClient()
	result, err := c.Query(context.Background(), testConnection(srv.URL), "CREATE (n:Person)", nil, true)
	require.NoError(t, err)
	assert.Equal(t, float64(1), result.Counters["nodesCreated"])
}

func TestQueryVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{
				"code":    "Neo.ClientError.Statement.SyntaxError",
				"message": "Invalid input 'MATC': server at 10.1.2.3",
			}},
		})
	}))
	defer srv.Close()

	c := NewClient()
	_, err := c.Query(context.Background(), testConnection(srv.URL), "MATC (n) RETURN n", nil, false)
	require.Error(t, err)
	assert.Equal(t, fault.KindQuery, fault.KindOf(err))

	f := fault.As(err)
	assert.Equal(t, "query execution failed", f.Message)
	data, ok := f.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Neo.ClientError.Statement.SyntaxError", data["code"])
	assert.NotContains(t, f.Message, "10.1.2.3", "vendor message is logged, never returned")
}

func TestQueryAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient()
	_, err := c.Query(context.Background(), testConnection(srv.URL), "RETURN 1", nil, false)
	require.Error(t, err)
	assert.Equal(t, fault.KindConnection, fault.KindOf(err))
}

func TestQueryUnreachable(t *testing.T) {
	c := NewClient()
	_, err := c.Query(context.Background(), testConnection("http://127.0.0.1:1"), "RETURN 1", nil, false)
	require.Error(t, err)
	assert.Equal(t, fault.KindConnection, fault.KindOf(err))
}

func TestQueryTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"data":{"fields":[],"values":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(20 * time.Millisecond))
	_, err := c.Query(context.Background(), testConnection(srv.URL), "RETURN 1", nil, false)
	require.Error(t, err)
	assert.Equal(t, fault.KindQuery, fault.KindOf(err))
}
