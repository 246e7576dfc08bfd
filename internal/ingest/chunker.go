package ingest

import "unicode"

// Chunker splits lesson body text into fixed-size overlapping windows,
// preferring to cut at sentence boundaries. Sizes are in runes.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk windows text into pieces of at most c.size runes. Consecutive
// windows share exactly c.overlap runes: the next window starts at the
// previous cut minus the overlap, wherever the cut landed.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		// Cut at the last sentence boundary inside the window, as long as
		// it still leaves room for the overlap to make progress.
		if b := lastBoundary(runes, start+c.overlap+1, end); b > 0 {
			end = b
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end - c.overlap
	}
}

// lastBoundary returns the largest index in (lo, hi] that sits just after
// a sentence terminator followed by whitespace, or 0 if none exists.
func lastBoundary(runes []rune, lo, hi int) int {
	for i := hi; i > lo; i-- {
		if isTerminator(runes[i-1]) && (i == len(runes) || unicode.IsSpace(runes[i])) {
			return i
		}
	}
	return 0
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
