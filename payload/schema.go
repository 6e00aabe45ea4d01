// Package payload watches vendor responses for schema drift.
//
// The vendor changes its JSON envelopes without notice: a token moves from
// data.token to data.accessToken, a user id becomes a string. Any of these
// breaks token extraction silently. A Watcher records the shape of the first
// JSON object seen per endpoint and reports every later structural
// difference, so the relay log shows the change before users do.
//
// Nested keys are dot-separated paths ("data.user_main_id").
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MismatchKind classifies a schema difference.
type MismatchKind string

const (
	// MismatchKindMissing is a baseline field absent from the response.
	MismatchKindMissing MismatchKind = "MISSING_FIELD"
	// MismatchKindAdded is a response field absent from the baseline.
	MismatchKindAdded MismatchKind = "ADDED_FIELD"
	// MismatchKindTypeChange is a field whose JSON type changed.
	MismatchKindTypeChange MismatchKind = "TYPE_CHANGE"
)

// Mismatch is one structural difference between baseline and response.
type Mismatch struct {
	Kind         MismatchKind `json:"kind"`
	Field        string       `json:"field"`
	BaselineType string       `json:"baselineType,omitempty"`
	CurrentType  string       `json:"currentType,omitempty"`
}

func (m Mismatch) String() string {
	switch m.Kind {
	case MismatchKindMissing:
		return fmt.Sprintf("field %q missing (was %s)", m.Field, m.BaselineType)
	case MismatchKindAdded:
		return fmt.Sprintf("field %q added (%s)", m.Field, m.CurrentType)
	case MismatchKindTypeChange:
		return fmt.Sprintf("field %q changed %s -> %s", m.Field, m.BaselineType, m.CurrentType)
	default:
		return fmt.Sprintf("field %q %s", m.Field, m.Kind)
	}
}

// Schema maps dot-separated field paths to JSON type names: "string",
// "number", "bool", "array", "object" or "null".
type Schema map[string]string

// Extract returns the schema of a JSON object body. Anything that is not a
// JSON object is an error.
func Extract(body []byte) (Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("payload: decode: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload: expected JSON object, got %T", raw)
	}
	s := make(Schema)
	s.walk(obj, "")
	return s, nil
}

func (s Schema) walk(obj map[string]any, prefix string) {
	for k, v := range obj {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			s[path] = "object"
			s.walk(val, path)
		case []any:
			s[path] = "array"
		case string:
			s[path] = "string"
		case json.Number:
			s[path] = "number"
		case bool:
			s[path] = "bool"
		case nil:
			s[path] = "null"
		}
	}
}

// Fields returns the sorted field paths of s.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Diff lists the differences from baseline to current, sorted by field
// then kind.
//
// A field that is null on one side only is not reported as a type change:
// the vendor nulls optional fields freely.
func Diff(baseline, current Schema) []Mismatch {
	var out []Mismatch
	for field, bt := range baseline {
		ct, ok := current[field]
		switch {
		case !ok:
			out = append(out, Mismatch{Kind: MismatchKindMissing, Field: field, BaselineType: bt})
		case ct != bt && ct != "null" && bt != "null":
			out = append(out, Mismatch{Kind: MismatchKindTypeChange, Field: field, BaselineType: bt, CurrentType: ct})
		}
	}
	for field, ct := range current {
		if _, ok := baseline[field]; !ok {
			out = append(out, Mismatch{Kind: MismatchKindAdded, Field: field, CurrentType: ct})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Format joins mismatches one per line. Empty input gives "".
func Format(mismatches []Mismatch) string {
	lines := make([]string, len(mismatches))
	for i, m := range mismatches {
		lines[i] = m.String()
	}
	return strings.Join(lines, "\n")
}
