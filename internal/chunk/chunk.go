// Package chunk splits extracted text into overlapping pieces sized for
// embedding.
//
// Splitting is deterministic: the same text and configuration always
// produce the same chunks. Cut points prefer paragraph breaks, then
// sentence ends, then word boundaries, falling back to a hard cut when a
// window has no natural break.
package chunk

import "strings"

// DefaultSize is the default number of characters per chunk.
const DefaultSize = 1000

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 200

// Splitter splits text into overlapping chunks.
type Splitter struct {
	size    int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSize sets the chunk size in characters.
func WithSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.size = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a Splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for forward progress
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}

	return s
}

// Split chunks text. Whitespace-only input produces no chunks; every
// returned chunk is non-empty after trimming and at most the configured
// size in characters.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	chunks := make([]string, 0, n/(s.size-s.overlap)+1)
	start := 0
	for start < n {
		end := min(start+s.size, n)
		if end < n {
			end = s.cutPoint(runes, start, end)
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}

		if end == n {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// cutPoint picks where to end the chunk starting at start whose hard limit
// is end. It scans backward for the best natural break, refusing to shrink
// the chunk below half its window.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	limit := start + (end-start)/2

	// Paragraph break
	for i := end - 1; i > limit; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}

	// Sentence end followed by whitespace
	for i := end - 1; i > limit; i-- {
		if isSentenceEnd(runes[i-1]) && isSpace(runes[i]) {
			return i + 1
		}
	}

	// Word boundary
	for i := end - 1; i > limit; i-- {
		if isSpace(runes[i]) {
			return i + 1
		}
	}

	// Hard cut
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
