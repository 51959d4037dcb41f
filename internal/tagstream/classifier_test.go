package tagstream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var observationTags = []string{
	"needs_more_input", "finish_percent", "is_completed", "analysis",
	"suggestions", "user_query", "completed_task_ids", "pending_task_ids",
	"failed_task_ids",
}

const observationText = `<needs_more_input>false</needs_more_input><finish_percent>80</finish_percent><is_completed>false</is_completed><analysis>进度良好</analysis><suggestions>["继续"]</suggestions><user_query></user_query><completed_task_ids>["1"]</completed_task_ids><pending_task_ids>["2"]</pending_task_ids><failed_task_ids>[]</failed_task_ids>`

// classifyAll feeds text rune by rune and concatenates produced content per
// class, including the final flush.
func classifyAll(t *testing.T, v *Vocabulary, text string) (map[string]string, []Chunk) {
	t.Helper()
	s := NewStream(v)
	got := map[string]string{}
	var chunks []Chunk
	for _, r := range text {
		ch := s.Feed(r)
		chunks = append(chunks, ch)
		got[ch.Class] += ch.Content
	}
	ch := s.Flush()
	chunks = append(chunks, ch)
	got[ch.Class] += ch.Content
	require.Equal(t, text, s.Text())
	require.Empty(t, s.State().Pending)
	return got, chunks
}

// offlineScan finds the inner text of every <name>...</name> pair with plain
// string search, the way a non-streaming reader would.
func offlineScan(v *Vocabulary, text string) map[string]string {
	out := map[string]string{}
	rest := text
	for {
		best, bestName := -1, ""
		for _, name := range v.Names() {
			if i := strings.Index(rest, "<"+name+">"); i >= 0 && (best < 0 || i < best) {
				best, bestName = i, name
			}
		}
		if best < 0 {
			return out
		}
		rest = rest[best+len(bestName)+2:]
		end := strings.Index(rest, v.CloseMarker(bestName))
		if end < 0 {
			out[bestName] += rest
			return out
		}
		out[bestName] += rest[:end]
		rest = rest[end+len(v.CloseMarker(bestName)):]
	}
}

func TestClassifyMatchesOfflineScan(t *testing.T) {
	v := MustVocabulary(observationTags...)
	texts := map[string]string{
		"observation": observationText,
		"whitespace":  "\n<analysis>\n line one\n line two\n</analysis>\n\n<finish_percent> 40 </finish_percent>\n",
		"lookalikes":  "<analysis>a < b and </analys is not a close; <analysisx></analysis><<is_completed>true</is_completed>",
		"near_close":  "<user_query>what about </user_queryx> or </user_query</user_query>",
		"preamble":    "Sure! here you go:\n<analysis>ok</analysis> trailing <not_a_tag>",
		"unterminated": "<analysis>cut off mid </anal",
		"multibyte":   "<analysis>日本語 😀 العربية</analysis><suggestions>['é']</suggestions>",
	}
	for name, text := range texts {
		t.Run(name, func(t *testing.T) {
			got, _ := classifyAll(t, v, text)
			want := offlineScan(v, text)
			for _, tag := range v.Names() {
				assert.Equal(t, want[tag], got[tag], "tag %s", tag)
			}
			assert.Empty(t, got[ClassUnknown], "unknown class never carries content")
		})
	}
}

func TestClassifyNeverLosesRunes(t *testing.T) {
	v := MustVocabulary(observationTags...)
	text := "x<<analysis>y</analysis></analysis><finish_percent>1</finish_percent><"
	got, _ := classifyAll(t, v, text)

	var total int
	for _, content := range got {
		total += len(content)
	}
	var markers int
	for _, tag := range []string{"analysis", "finish_percent"} {
		markers += len("<"+tag+">") + len("</"+tag+">")
	}
	assert.Equal(t, len(text)-markers, total)
	assert.Equal(t, "x<</analysis><", got[ClassTag])
	assert.Equal(t, "y", got["analysis"])
	assert.Equal(t, "1", got["finish_percent"])
}

func TestClassifyHoldsSplitMarker(t *testing.T) {
	v := MustVocabulary("analysis")
	var s State
	var ch Chunk
	for _, r := range "<analys" {
		s, ch = Classify(s, r, v)
		assert.Equal(t, ClassUnknown, ch.Class)
		assert.Empty(t, ch.Content)
	}
	assert.Equal(t, "<analys", s.Pending)

	for _, r := range "is" {
		s, _ = Classify(s, r, v)
	}
	s, ch = Classify(s, '>', v)
	assert.Equal(t, "analysis", ch.Class)
	assert.Empty(t, ch.Content)
	assert.Equal(t, "analysis", s.Current)
	assert.Empty(t, s.Pending)

	s, ch = Classify(s, 'h', v)
	assert.Equal(t, Chunk{Class: "analysis", Rune: 'h', Content: "h"}, ch)

	for _, r := range "</analysis" {
		s, ch = Classify(s, r, v)
		assert.Equal(t, ClassUnknown, ch.Class)
	}
	s, ch = Classify(s, '>', v)
	assert.Equal(t, ClassTag, ch.Class)
	assert.Empty(t, s.Current)
}

func TestClassifyReleasesRejectedPrefix(t *testing.T) {
	v := MustVocabulary("analysis")
	s := State{Current: "analysis"}
	for _, r := range "</ana" {
		s, _ = Classify(s, r, v)
	}
	s, ch := Classify(s, 'X', v)
	assert.Equal(t, "analysis", ch.Class)
	assert.Equal(t, "</anaX", ch.Content)
	assert.Empty(t, s.Pending)

	// A rejected prefix ending in '<' keeps the '<' withheld.
	for _, r := range "</a" {
		s, _ = Classify(s, r, v)
	}
	s, ch = Classify(s, '<', v)
	assert.Equal(t, "</a", ch.Content)
	assert.Equal(t, "<", s.Pending)
	assert.Equal(t, ClassUnknown, s.Class)
}

func TestClassifyIsCaseSensitive(t *testing.T) {
	v := MustVocabulary("analysis")
	got, _ := classifyAll(t, v, "<Analysis>hi</Analysis>")
	assert.Empty(t, got["analysis"])
	assert.Equal(t, "<Analysis>hi</Analysis>", got[ClassTag])
}

func TestClassifySharedPrefixWithholds(t *testing.T) {
	v := MustVocabulary("task", "task_ids")
	var s State
	var ch Chunk
	for _, r := range "<task" {
		s, ch = Classify(s, r, v)
		require.Equal(t, ClassUnknown, ch.Class)
	}
	// Both names are still possible; nothing is guessed.
	s, ch = Classify(s, '_', v)
	assert.Equal(t, ClassUnknown, ch.Class)
	for _, r := range "ids" {
		s, _ = Classify(s, r, v)
	}
	_, ch = Classify(s, '>', v)
	assert.Equal(t, "task_ids", ch.Class)

	got, _ := classifyAll(t, v, "<task>a</task><task_ids>[1]</task_ids>")
	assert.Equal(t, "a", got["task"])
	assert.Equal(t, "[1]", got["task_ids"])
}

func TestClassifyNoNestingInsideRegion(t *testing.T) {
	v := MustVocabulary("analysis", "user_query")
	got, _ := classifyAll(t, v, "<analysis><user_query>q</user_query></analysis>")
	assert.Equal(t, "<user_query>q</user_query>", got["analysis"])
	assert.Empty(t, got["user_query"])
}

func TestFlushReleasesResidual(t *testing.T) {
	v := MustVocabulary("analysis")
	s := NewStream(v)
	for _, r := range "<analysis>done</anal" {
		s.Feed(r)
	}
	assert.Equal(t, "</anal", s.State().Pending)
	ch := s.Flush()
	assert.Equal(t, "analysis", ch.Class)
	assert.Equal(t, "</anal", ch.Content)
	assert.Empty(t, s.State().Pending)

	// Outside a region the residual belongs to the neutral class.
	_, ch = Flush(State{Pending: "<ana"})
	assert.Equal(t, Chunk{Class: ClassTag, Content: "<ana"}, ch)
}

func TestClassifyIsPure(t *testing.T) {
	v := MustVocabulary("analysis")
	before := State{Pending: "<ana"}
	after, _ := Classify(before, 'l', v)
	assert.Equal(t, "<ana", before.Pending)
	assert.Equal(t, "<anal", after.Pending)
}

func TestNewVocabularyValidation(t *testing.T) {
	_, err := NewVocabulary()
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	for _, names := range [][]string{
		{""}, {"a b"}, {"a>"}, {"</a"}, {"x", "x"}, {ClassTag}, {ClassUnknown},
	} {
		_, err := NewVocabulary(names...)
		assert.Error(t, err, "%q", names)
	}

	v, err := NewVocabulary("b", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, v.Names())
	assert.True(t, v.Contains("a"))
	assert.False(t, v.Contains("c"))
	assert.Equal(t, "</a>", v.CloseMarker("a"))
	assert.Panics(t, func() { MustVocabulary() })
}
