package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// Sampling bounds for the manual extraction path.
const (
	propertySampleSize = 25
	relSampleSize      = 50
)

// Schema is the normalized database description both extraction paths
// converge on. This shape is what flows into the response shaper.
type Schema struct {
	Labels   []LabelSchema   `json:"labels"`
	RelTypes []RelTypeSchema `json:"relationshipTypes"`
}

// LabelSchema describes one node label.
type LabelSchema struct {
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties"`
	Outgoing   []RelSummary      `json:"outgoing,omitempty"`
	Incoming   []RelSummary      `json:"incoming,omitempty"`
}

// RelSummary is a typed relationship endpoint summary on a label.
type RelSummary struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

// RelTypeSchema describes one relationship type.
type RelTypeSchema struct {
	Type        string            `json:"type"`
	Properties  map[string]string `json:"properties"`
	StartLabels []string          `json:"startLabels,omitempty"`
	EndLabels   []string          `json:"endLabels,omitempty"`
}

// Extractor derives a Schema from a live connection.
type Extractor struct {
	client *Client
	log    *slog.Logger
}

// NewExtractor creates a schema extractor over the given query client.
func NewExtractor(client *Client, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{client: client, log: log}
}

// Extract attempts the rich APOC introspection first and falls back to
// manual multi-query extraction when the extension is missing or errors.
func (e *Extractor) Extract(ctx context.Context, conn *Connection) (*Schema, error) {
	schema, err := e.extractAPOC(ctx, conn)
	if err == nil {
		return schema, nil
	}
	e.log.InfoContext(ctx, "APOC schema introspection unavailable; falling back to manual extraction",
		slog.Any("error", err))
	return e.extractManual(ctx, conn)
}

// extractAPOC runs apoc.meta.schema and normalizes its nested map shape.
func (e *Extractor) extractAPOC(ctx context.Context, conn *Connection) (*Schema, error) {
	result, err := e.client.Query(ctx, conn, "CALL apoc.meta.schema() YIELD value RETURN value", nil, false)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("apoc.meta.schema returned no rows")
	}
	meta, ok := result.Rows[0]["value"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("apoc.meta.schema returned unexpected shape")
	}

	schema := &Schema{}
	for name, raw := range meta {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch entry["type"] {
		case "node":
			label := LabelSchema{Label: name, Properties: apocProperties(entry["properties"])}
			if rels, ok := entry["relationships"].(map[string]any); ok {
				for relType, rawRel := range rels {
					rel, ok := rawRel.(map[string]any)
					if !ok {
						continue
					}
					for _, target := range apocStringList(rel["labels"]) {
						summary := RelSummary{Type: relType, Target: target}
						if rel["direction"] == "in" {
							label.Incoming = append(label.Incoming, summary)
						} else {
							label.Outgoing = append(label.Outgoing, summary)
						}
					}
				}
			}
			sortRelSummaries(label.Outgoing)
			sortRelSummaries(label.Incoming)
			schema.Labels = append(schema.Labels, label)
		case "relationship":
			schema.RelTypes = append(schema.RelTypes, RelTypeSchema{
				Type:       name,
				Properties: apocProperties(entry["properties"]),
			})
		}
	}

	sort.Slice(schema.Labels, func(i, j int) bool { return schema.Labels[i].Label < schema.Labels[j].Label })
	sort.Slice(schema.RelTypes, func(i, j int) bool { return schema.RelTypes[i].Type < schema.RelTypes[j].Type })
	return schema, nil
}

// extractManual lists labels, samples properties per label, lists
// relationship types, and samples outgoing relationships per label.
func (e *Extractor) extractManual(ctx context.Context, conn *Connection) (*Schema, error) {
	labels, err := e.stringColumn(ctx, conn, "CALL db.labels() YIELD label RETURN label", "label")
	if err != nil {
		return nil, err
	}
	relTypes, err := e.stringColumn(ctx, conn, "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType", "relationshipType")
	if err != nil {
		return nil, err
	}

	schema := &Schema{}
	byLabel := make(map[string]*LabelSchema, len(labels))
	for _, label := range labels {
		byLabel[label] = &LabelSchema{Label: label, Properties: map[string]string{}}
	}
	relInfo := make(map[string]*RelTypeSchema, len(relTypes))
	for _, relType := range relTypes {
		relInfo[relType] = &RelTypeSchema{Type: relType, Properties: map[string]string{}}
	}

	for _, label := range labels {
		e.sampleProperties(ctx, conn, byLabel[label])
		e.sampleOutgoing(ctx, conn, label, byLabel, relInfo)
	}

	for _, label := range labels {
		schema.Labels = append(schema.Labels, *byLabel[label])
	}
	for _, relType := range relTypes {
		sort.Strings(relInfo[relType].StartLabels)
		sort.Strings(relInfo[relType].EndLabels)
		schema.RelTypes = append(schema.RelTypes, *relInfo[relType])
	}
	sort.Slice(schema.Labels, func(i, j int) bool { return schema.Labels[i].Label < schema.Labels[j].Label })
	sort.Slice(schema.RelTypes, func(i, j int) bool { return schema.RelTypes[i].Type < schema.RelTypes[j].Type })
	return schema, nil
}

// sampleProperties infers property names and types from a bounded node
// sample. Extraction is best-effort; a failed sample leaves the label's
// property map empty rather than failing the whole schema.
func (e *Extractor) sampleProperties(ctx context.Context, conn *Connection, label *LabelSchema) {
	statement := fmt.Sprintf("MATCH (n:%s) RETURN n LIMIT %d", escapeIdentifier(label.Label), propertySampleSize)
	result, err := e.client.Query(ctx, conn, statement, nil, false)
	if err != nil {
		e.log.WarnContext(ctx, "property sampling failed", slog.String("label", label.Label), slog.Any("error", err))
		return
	}
	for _, row := range result.Rows {
		props, ok := row["n"].(map[string]any)
		if !ok {
			continue
		}
		for key, value := range props {
			if _, seen := label.Properties[key]; !seen {
				label.Properties[key] = typeName(value)
			}
		}
	}
}

// sampleOutgoing records distinct outgoing relationship types and their
// target labels for one source label, and mirrors each edge onto the
// target's incoming list and the relationship type's endpoint sets.
func (e *Extractor) sampleOutgoing(ctx context.Context, conn *Connection, label string, byLabel map[string]*LabelSchema, relInfo map[string]*RelTypeSchema) {
	statement := fmt.Sprintf(
		"MATCH (n:%s)-[r]->(m) RETURN DISTINCT type(r) AS relType, labels(m) AS targetLabels LIMIT %d",
		escapeIdentifier(label), relSampleSize)
	result, err := e.client.Query(ctx, conn, statement, nil, false)
	if err != nil {
		e.log.WarnContext(ctx, "relationship sampling failed", slog.String("label", label), slog.Any("error", err))
		return
	}

	src := byLabel[label]
	for _, row := range result.Rows {
		relType, _ := row["relType"].(string)
		if relType == "" {
			continue
		}
		for _, target := range apocStringList(row["targetLabels"]) {
			summary := RelSummary{Type: relType, Target: target}
			if !containsRelSummary(src.Outgoing, summary) {
				src.Outgoing = append(src.Outgoing, summary)
			}
			if dst, ok := byLabel[target]; ok {
				incoming := RelSummary{Type: relType, Target: label}
				if !containsRelSummary(dst.Incoming, incoming) {
					dst.Incoming = append(dst.Incoming, incoming)
				}
			}
			if info, ok := relInfo[relType]; ok {
				info.StartLabels = appendUnique(info.StartLabels, label)
				info.EndLabels = appendUnique(info.EndLabels, target)
			}
		}
	}
	sortRelSummaries(src.Outgoing)
}

// stringColumn runs a statement and collects one string column.
func (e *Extractor) stringColumn(ctx context.Context, conn *Connection, statement, field string) ([]string, error) {
	result, err := e.client.Query(ctx, conn, statement, nil, false)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if s, ok := row[field].(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// escapeIdentifier backticks a label or relationship type so sampled names
// cannot break out of the statement.
func escapeIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func apocProperties(raw any) map[string]string {
	out := map[string]string{}
	props, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	for name, rawProp := range props {
		if prop, ok := rawProp.(map[string]any); ok {
			if t, ok := prop["type"].(string); ok {
				out[name] = t
				continue
			}
		}
		out[name] = "UNKNOWN"
	}
	return out
}

func apocStringList(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func typeName(value any) string {
	switch value.(type) {
	case string:
		return "STRING"
	case bool:
		return "BOOLEAN"
	case float64:
		return "FLOAT"
	case int, int64:
		return "INTEGER"
	case []any:
		return "LIST"
	case map[string]any:
		return "MAP"
	case nil:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

func sortRelSummaries(items []RelSummary) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type < items[j].Type
		}
		return items[i].Target < items[j].Target
	})
}

func containsRelSummary(items []RelSummary, want RelSummary) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func appendUnique(items []string, want string) []string {
	for _, item := range items {
		if item == want {
			return items
		}
	}
	return append(items, want)
}
