// Package chunk splits long responses into ordered segments that each fit
// within a platform message-size ceiling.
package chunk

import "strings"

// DiscordLimit is Discord's maximum message length in characters.
const DiscordLimit = 2000

// Splitter divides text on line boundaries first, falling back to word
// boundaries for lines that exceed the limit on their own.
type Splitter struct {
	// Limit is the maximum chunk size in characters.
	Limit int
}

// NewSplitter creates a splitter with the given limit, defaulting to
// Discord's 2000-character ceiling when limit is not positive.
func NewSplitter(limit int) *Splitter {
	if limit <= 0 {
		limit = DiscordLimit
	}
	return &Splitter{Limit: limit}
}

// Split returns the ordered chunks of text, each at most Limit characters.
// Text at or under the limit is returned as a single chunk unchanged.
// Longer text is accumulated line by line; a line that itself exceeds the
// limit is further split on spaces. Each flushed chunk is trimmed. If
// splitting somehow produces nothing, the original text is returned verbatim
// so content is never lost.
func (s *Splitter) Split(text string) []string {
	if len(text) <= s.Limit {
		return []string{text}
	}

	var chunks []string
	var buf strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(buf.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		buf.Reset()
	}

	appendPiece := func(piece, sep string) {
		// A single piece over the limit gets hard-cut so the chunk size
		// invariant holds even for unbroken runs.
		for len(piece) > s.Limit {
			flush()
			buf.WriteString(piece[:s.Limit])
			flush()
			piece = piece[s.Limit:]
		}
		if buf.Len() > 0 && buf.Len()+len(sep)+len(piece) > s.Limit {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(piece)
	}

	for _, line := range strings.Split(text, "\n") {
		if len(line) > s.Limit {
			for _, word := range strings.Split(line, " ") {
				appendPiece(word, " ")
			}
			continue
		}
		appendPiece(line, "\n")
	}
	flush()

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// Split is a convenience wrapper using the Discord limit.
func Split(text string) []string {
	return NewSplitter(DiscordLimit).Split(text)
}
