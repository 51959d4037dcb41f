package articulation

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse methods reported for list fields.
const (
	ListMethodEmpty = "empty"
	ListMethodJSON  = "json"
	ListMethodFlow  = "flow"
	ListMethodRaw   = "raw"
)

// listParser is a total parser: it reports failure instead of erroring.
type listParser func(raw string) ([]string, bool)

// listParsers are tried in order; the raw wrap below is the final tier.
var listParsers = []struct {
	method string
	parse  listParser
}{
	{ListMethodJSON, parseJSONList},
	{ListMethodFlow, parseFlowList},
}

// parseList converts a list field into string items. It never fails: text
// that is not a list becomes a single item.
func parseList(raw string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, ListMethodEmpty
	}
	for _, p := range listParsers {
		if items, ok := p.parse(raw); ok {
			return items, p.method
		}
	}
	return []string{raw}, ListMethodRaw
}

// parseJSONList accepts exactly one JSON array of scalars.
func parseJSONList(raw string) ([]string, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, false
	}
	items := make([]string, 0, len(elems))
	for _, elem := range elems {
		elem = bytes.TrimSpace(elem)
		switch {
		case len(elem) == 0:
			return nil, false
		case elem[0] == '"':
			var s string
			if err := json.Unmarshal(elem, &s); err != nil {
				return nil, false
			}
			items = append(items, s)
		case elem[0] == '{' || elem[0] == '[':
			return nil, false
		case string(elem) == "null":
			continue
		default:
			// numbers and booleans keep their literal spelling
			items = append(items, string(elem))
		}
	}
	return items, true
}

// parseFlowList reads the first bracketed span as a YAML flow sequence, which
// also covers single-quoted and bare items.
func parseFlowList(raw string) ([]string, bool) {
	candidate := findArrayCandidate(raw)
	if candidate == "" {
		return nil, false
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, false
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, false
	}
	seq := doc.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return nil, false
	}
	items := make([]string, 0, len(seq.Content))
	for _, n := range seq.Content {
		if n.Kind != yaml.ScalarNode {
			return nil, false
		}
		if n.Tag == "!!null" {
			continue
		}
		items = append(items, n.Value)
	}
	return items, true
}
