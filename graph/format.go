package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Description is a schema rendered for an LLM caller: the formatted text
// plus its line count, which callers use to budget context.
type Description struct {
	Text  string `json:"text"`
	Lines int    `json:"lines"`
}

// Format renders the normalized schema as a compact, human-readable
// description suitable for inclusion in a model prompt.
func Format(schema *Schema) *Description {
	var b strings.Builder

	fmt.Fprintf(&b, "Graph schema: %d node labels, %d relationship types\n",
		len(schema.Labels), len(schema.RelTypes))

	if len(schema.Labels) > 0 {
		b.WriteString("\nNode labels:\n")
		for _, label := range schema.Labels {
			fmt.Fprintf(&b, "  (:%s)%s\n", label.Label, formatProperties(label.Properties))
			for _, rel := range label.Outgoing {
				fmt.Fprintf(&b, "    -[:%s]-> (:%s)\n", rel.Type, rel.Target)
			}
			for _, rel := range label.Incoming {
				fmt.Fprintf(&b, "    <-[:%s]- (:%s)\n", rel.Type, rel.Target)
			}
		}
	}

	if len(schema.RelTypes) > 0 {
		b.WriteString("\nRelationship types:\n")
		for _, relType := range schema.RelTypes {
			fmt.Fprintf(&b, "  [:%s]%s%s\n", relType.Type,
				formatEndpoints(relType.StartLabels, relType.EndLabels),
				formatProperties(relType.Properties))
		}
	}

	text := strings.TrimRight(b.String(), "\n")
	return &Description{
		Text:  text,
		Lines: strings.Count(text, "\n") + 1,
	}
}

func formatProperties(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+": "+props[name])
	}
	return " {" + strings.Join(pairs, ", ") + "}"
}

func formatEndpoints(start, end []string) string {
	if len(start) == 0 && len(end) == 0 {
		return ""
	}
	return fmt.Sprintf(" (:%s) -> (:%s)", strings.Join(start, "|"), strings.Join(end, "|"))
}
