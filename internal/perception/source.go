// Package perception supplies the upstream text a session analyses: a lazy,
// finite sequence of fragments whose boundaries carry no meaning.
package perception

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// TokenSource yields content fragments one at a time. Next returns io.EOF
// after the last fragment; any other error is an upstream failure.
type TokenSource interface {
	Next(ctx context.Context) (string, error)
}

// UpstreamError wraps a failure reported by a token source mid-stream.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StaticSource replays fixed fragments. It is what tests and transcript
// replays use.
type StaticSource struct {
	fragments []string
	pos       int
}

// NewStaticSource returns a source yielding fragments in order. Empty
// fragments are skipped.
func NewStaticSource(fragments ...string) *StaticSource {
	kept := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f != "" {
			kept = append(kept, f)
		}
	}
	return &StaticSource{fragments: kept}
}

// Next implements TokenSource.
func (s *StaticSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

// ChunkText splits text into fragments of at most size runes. A size below
// one yields one fragment per rune.
func ChunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size < 1 {
		size = 1
	}
	out := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, n := 0, 0
	for i := range text {
		if n == size {
			out = append(out, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(out, text[start:])
}

// SplitAt cuts text into fragments at the given rune offsets. Offsets out of
// range or out of order are ignored.
func SplitAt(text string, offsets ...int) []string {
	runes := []rune(text)
	var out []string
	prev := 0
	for _, off := range offsets {
		if off <= prev || off >= len(runes) {
			continue
		}
		out = append(out, string(runes[prev:off]))
		prev = off
	}
	return append(out, string(runes[prev:]))
}

// ChannelSource adapts the channel-pair shape returned by streaming LLM
// clients: content deltas on one channel, at most one error on the other.
// The producer closes both channels when it is done.
type ChannelSource struct {
	name    string
	content <-chan string
	errs    <-chan error
	cancel  context.CancelFunc
}

// NewChannelSource wraps a streaming client's channels. cancel, if non-nil,
// is called on Close so an abandoned stream stops its producer.
func NewChannelSource(name string, content <-chan string, errs <-chan error, cancel context.CancelFunc) *ChannelSource {
	return &ChannelSource{name: name, content: content, errs: errs, cancel: cancel}
}

// Next implements TokenSource.
func (s *ChannelSource) Next(ctx context.Context) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case delta, ok := <-s.content:
			if !ok {
				return "", s.finalErr(ctx)
			}
			if delta == "" {
				continue
			}
			return delta, nil
		}
	}
}

func (s *ChannelSource) finalErr(ctx context.Context) error {
	if s.errs == nil {
		return io.EOF
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-s.errs:
		if !ok || err == nil {
			return io.EOF
		}
		return &UpstreamError{Source: s.name, Err: err}
	}
}

// Close cancels the producer, if one was registered.
func (s *ChannelSource) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Collect drains src into one string. A clean io.EOF is not an error.
func Collect(ctx context.Context, src TokenSource) (string, error) {
	var sb strings.Builder
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(f)
	}
}
