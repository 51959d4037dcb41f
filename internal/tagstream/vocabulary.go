// Package tagstream classifies an LLM output stream one rune at a time
// against a fixed vocabulary of <name>...</name> markers.
//
// The classifier never looks ahead. A rune that might still belong to a
// marker is held back (class Unknown) until the marker either completes or
// is ruled out, at which point the held runes are released as ordinary
// content of the region they were seen in.
package tagstream

import (
	"errors"
	"fmt"
	"strings"
)

// Reserved classes. Tag names may not collide with them.
const (
	ClassTag     = "tag"     // outside any region, or a marker just completed
	ClassUnknown = "unknown" // runes withheld pending disambiguation
)

// ErrEmptyVocabulary is returned when a vocabulary has no names.
var ErrEmptyVocabulary = errors.New("tagstream: vocabulary has no tag names")

// Vocabulary is the ordered, immutable set of tag names recognised for one
// agent kind.
type Vocabulary struct {
	names     []string
	open      map[string]string // "<name>" -> name
	openPfx   map[string]bool   // every non-empty prefix of every "<name>"
	closeMark map[string]string // name -> "</name>"
}

// NewVocabulary validates names and precomputes marker prefixes.
func NewVocabulary(names ...string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, ErrEmptyVocabulary
	}
	v := &Vocabulary{
		names:     make([]string, 0, len(names)),
		open:      make(map[string]string, len(names)),
		openPfx:   make(map[string]bool),
		closeMark: make(map[string]string, len(names)),
	}
	for _, name := range names {
		if name == "" || strings.ContainsAny(name, "<>/ \t\r\n") {
			return nil, fmt.Errorf("tagstream: invalid tag name %q", name)
		}
		if name == ClassTag || name == ClassUnknown {
			return nil, fmt.Errorf("tagstream: tag name %q is reserved", name)
		}
		if _, dup := v.closeMark[name]; dup {
			return nil, fmt.Errorf("tagstream: duplicate tag name %q", name)
		}
		marker := "<" + name + ">"
		v.names = append(v.names, name)
		v.open[marker] = name
		v.closeMark[name] = "</" + name + ">"
		for i := 1; i <= len(marker); i++ {
			v.openPfx[marker[:i]] = true
		}
	}
	return v, nil
}

// MustVocabulary is NewVocabulary for static tables; it panics on error.
func MustVocabulary(names ...string) *Vocabulary {
	v, err := NewVocabulary(names...)
	if err != nil {
		panic(err)
	}
	return v
}

// Names returns the tag names in declaration order.
func (v *Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Contains reports whether name is part of the vocabulary.
func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.closeMark[name]
	return ok
}

// CloseMarker returns "</name>".
func (v *Vocabulary) CloseMarker(name string) string {
	return v.closeMark[name]
}

// isPrefix reports whether s is a non-empty prefix of a marker that is legal
// in the given region ("" meaning outside any region).
func (v *Vocabulary) isPrefix(s, region string) bool {
	if s == "" {
		return false
	}
	if region == "" {
		return v.openPfx[s]
	}
	return strings.HasPrefix(v.closeMark[region], s)
}
