package articulation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MissingFieldError is returned when a required tag never appears.
type MissingFieldError struct {
	Tag string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field <%s>", e.Tag)
}

// InvalidFieldError is returned when a required field is present but its
// content cannot be read as the declared kind.
type InvalidFieldError struct {
	Tag   string
	Kind  Kind
	Value string
	Err   error
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("field <%s> is not a valid %s: %q", e.Tag, e.Kind, e.Value)
}

func (e *InvalidFieldError) Unwrap() error { return e.Err }

// Record is the typed result of one extraction. It is built in a single
// Extract call and not modified afterwards.
type Record struct {
	values map[string]any
	tags   []string

	// ListMethods records which parser tier produced each list field.
	ListMethods map[string]string
	// Warnings lists recoveries made while reading optional fields.
	Warnings []string
	// Raw is the full text the record was extracted from.
	Raw string
}

// Extract reads every field of schema from text. The first occurrence of a
// tag wins; an open marker with no close marker captures the rest of text.
// Only a missing or unreadable required field is an error.
func Extract(text string, schema Schema) (*Record, error) {
	rec := &Record{
		values:      make(map[string]any, len(schema)),
		tags:        schema.Tags(),
		ListMethods: map[string]string{},
		Raw:         text,
	}

	for _, f := range schema {
		if f.Kind == KindRepeated {
			items := findAll(text, f.Tag)
			if items == nil {
				if f.Required {
					return nil, &MissingFieldError{Tag: f.Tag}
				}
				rec.values[f.Tag] = defaultValue(f)
				continue
			}
			rec.values[f.Tag] = items
			continue
		}

		raw, ok := findFirst(text, f.Tag)
		if !ok {
			if f.Required {
				return nil, &MissingFieldError{Tag: f.Tag}
			}
			rec.values[f.Tag] = defaultValue(f)
			continue
		}

		switch f.Kind {
		case KindBool:
			rec.values[f.Tag] = strings.EqualFold(strings.TrimSpace(raw), "true")
		case KindInt:
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if errors.Is(err, strconv.ErrRange) {
				// Atoi has already saturated n to the nearest int bound.
				rec.Warnings = append(rec.Warnings, fmt.Sprintf("<%s>: integer %q out of range, saturated to %d", f.Tag, strings.TrimSpace(raw), n))
				err = nil
			}
			if err != nil {
				if f.Required {
					return nil, &InvalidFieldError{Tag: f.Tag, Kind: f.Kind, Value: raw, Err: err}
				}
				rec.Warnings = append(rec.Warnings, fmt.Sprintf("<%s>: unreadable integer %q, using default", f.Tag, raw))
				rec.values[f.Tag] = defaultValue(f)
				continue
			}
			rec.values[f.Tag] = n
		case KindList:
			items, method := parseList(raw)
			rec.values[f.Tag] = items
			rec.ListMethods[f.Tag] = method
			if method == ListMethodFlow || method == ListMethodRaw {
				rec.Warnings = append(rec.Warnings, fmt.Sprintf("<%s>: not a strict list, parsed as %s", f.Tag, method))
			}
		default:
			rec.values[f.Tag] = strings.TrimSpace(raw)
		}
	}

	return rec, nil
}

// findFirst returns the inner text of the first <tag>...</tag>.
func findFirst(text, tag string) (string, bool) {
	open, closing := "<"+tag+">", "</"+tag+">"
	i := strings.Index(text, open)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(open):]
	if j := strings.Index(rest, closing); j >= 0 {
		return rest[:j], true
	}
	return rest, true
}

// findAll returns every non-empty trimmed occurrence of <tag>...</tag>, or
// nil when the tag never opens.
func findAll(text, tag string) []string {
	open, closing := "<"+tag+">", "</"+tag+">"
	var items []string
	found := false
	for {
		i := strings.Index(text, open)
		if i < 0 {
			break
		}
		found = true
		text = text[i+len(open):]
		j := strings.Index(text, closing)
		inner := text
		if j >= 0 {
			inner = text[:j]
			text = text[j+len(closing):]
		} else {
			text = ""
		}
		if s := strings.TrimSpace(inner); s != "" {
			items = append(items, s)
		}
	}
	if found && items == nil {
		items = []string{}
	}
	return items
}

func defaultValue(f Field) any {
	switch f.Kind {
	case KindBool:
		if b, ok := f.Default.(bool); ok {
			return b
		}
		return false
	case KindInt:
		if n, ok := f.Default.(int); ok {
			return n
		}
		return 0
	case KindList, KindRepeated:
		if items, ok := f.Default.([]string); ok {
			return append([]string{}, items...)
		}
		return []string{}
	default:
		if s, ok := f.Default.(string); ok {
			return s
		}
		return ""
	}
}

// Tags returns the field tags in schema order.
func (r *Record) Tags() []string {
	return append([]string(nil), r.tags...)
}

// Bool returns a bool field, false if absent.
func (r *Record) Bool(tag string) bool {
	b, _ := r.values[tag].(bool)
	return b
}

// Int returns an int field, 0 if absent.
func (r *Record) Int(tag string) int {
	n, _ := r.values[tag].(int)
	return n
}

// Text returns a text field, "" if absent.
func (r *Record) Text(tag string) string {
	s, _ := r.values[tag].(string)
	return s
}

// List returns a copy of a list or repeated field; never nil.
func (r *Record) List(tag string) []string {
	items, _ := r.values[tag].([]string)
	return append([]string{}, items...)
}

// Value returns the raw typed value of a field.
func (r *Record) Value(tag string) (any, bool) {
	v, ok := r.values[tag]
	return v, ok
}
