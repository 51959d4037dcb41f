package tagstream

import "strings"

// State is the classifier state carried between runes. The zero value is
// the start of a stream.
type State struct {
	// Pending holds withheld runes. It is always empty or a strict prefix
	// of a marker that is legal in the current region.
	Pending string
	// Current is the region being read, "" outside any region.
	Current string
	// Class is the class assigned to the most recent rune.
	Class string
}

// Chunk is the classification of one rune. Content is what the rune
// released: empty while withholding, possibly several runes when a withheld
// prefix turns out to be ordinary text.
type Chunk struct {
	Class   string
	Rune    rune
	Content string
}

func regionClass(region string) string {
	if region == "" {
		return ClassTag
	}
	return region
}

// Classify consumes one rune and returns the next state and the rune's class.
//
// Outside a region every open marker of the vocabulary is legal; inside a
// region only that region's close marker is. Markers end in '>', so a complete
// marker is never a prefix of another and a shared prefix stays Unknown until
// the names diverge.
func Classify(s State, r rune, v *Vocabulary) (State, Chunk) {
	p := s.Pending + string(r)
	ch := Chunk{Rune: r}

	if s.Current == "" {
		if name, ok := v.open[p]; ok {
			s.Current, s.Pending, s.Class = name, "", name
			ch.Class = name
			return s, ch
		}
	} else if p == v.closeMark[s.Current] {
		s.Current, s.Pending, s.Class = "", "", ClassTag
		ch.Class = ClassTag
		return s, ch
	}

	if v.isPrefix(p, s.Current) {
		s.Pending, s.Class = p, ClassUnknown
		ch.Class = ClassUnknown
		return s, ch
	}

	// Release everything up to the longest suffix that can still start a
	// marker.
	cut := len(p)
	for i := range p {
		if i > 0 && v.isPrefix(p[i:], s.Current) {
			cut = i
			break
		}
	}
	ch.Class = regionClass(s.Current)
	ch.Content = p[:cut]
	s.Pending, s.Class = p[cut:], ch.Class
	if s.Pending != "" {
		s.Class = ClassUnknown
	}
	return s, ch
}

// Flush releases any withheld runes as literal content of the current region.
// It must be called once at end of stream.
func Flush(s State) (State, Chunk) {
	ch := Chunk{Class: regionClass(s.Current), Content: s.Pending}
	s.Pending, s.Class = "", ch.Class
	return s, ch
}

// Stream couples a State with the accumulated raw text for one session.
// It is not safe for concurrent use.
type Stream struct {
	vocab *Vocabulary
	state State
	text  strings.Builder
}

// NewStream starts an empty stream over vocab.
func NewStream(vocab *Vocabulary) *Stream {
	return &Stream{vocab: vocab}
}

// Feed classifies r and appends it to the accumulated text.
func (s *Stream) Feed(r rune) Chunk {
	s.text.WriteRune(r)
	var ch Chunk
	s.state, ch = Classify(s.state, r, s.vocab)
	return ch
}

// Flush releases withheld runes; see Flush.
func (s *Stream) Flush() Chunk {
	var ch Chunk
	s.state, ch = Flush(s.state)
	return ch
}

// Text returns everything fed so far, markers included.
func (s *Stream) Text() string { return s.text.String() }

// State returns the current classifier state.
func (s *Stream) State() State { return s.state }
