package chunker

import "strings"

// separators is the boundary ladder, tried in order. The empty string is the
// terminal case: hard character windows.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

// split recursively cuts text at the strongest boundary that yields pieces
// within MaxChunkSize, then merges small trailing fragments.
func (c *Chunker) split(text string) []string {
	out := c.splitRecursive(text, separators)
	return c.mergeSmallTail(out)
}

func (c *Chunker) splitRecursive(text string, seps []string) []string {
	if len(text) <= c.cfg.MaxChunkSize {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, s := range seps {
		if s == "" {
			sep, rest = "", nil
			break
		}
		if strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}
	if sep == "" {
		return c.windowSplit(text)
	}

	pieces := splitKeepSeparator(text, sep)

	var out []string
	var fitting []string
	for _, piece := range pieces {
		if len(piece) <= c.cfg.MaxChunkSize {
			fitting = append(fitting, piece)
			continue
		}
		out = append(out, c.mergePieces(fitting)...)
		fitting = nil
		out = append(out, c.splitRecursive(piece, rest)...)
	}
	return append(out, c.mergePieces(fitting)...)
}

// splitKeepSeparator splits on sep, keeping the separator attached to the
// preceding piece so chunks remain exact substrings of the input.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	// SplitAfter can leave a trailing empty piece when text ends with sep.
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

// mergePieces greedily packs adjacent pieces into chunks of at most
// MaxChunkSize. When a chunk closes, trailing pieces totalling at most
// ChunkOverlap are carried into the next chunk.
func (c *Chunker) mergePieces(pieces []string) []string {
	if len(pieces) == 0 {
		return nil
	}

	var out []string
	var current []string
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		out = append(out, strings.Join(current, ""))

		// Keep an overlap tail for continuity into the next chunk.
		var tail []string
		tailLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			if tailLen+len(current[i]) > c.cfg.ChunkOverlap {
				break
			}
			tail = append([]string{current[i]}, tail...)
			tailLen += len(current[i])
		}
		current, currentLen = tail, tailLen
	}

	for _, piece := range pieces {
		if currentLen+len(piece) > c.cfg.MaxChunkSize {
			flush()
			// The overlap tail alone may still not leave room.
			for currentLen > 0 && currentLen+len(piece) > c.cfg.MaxChunkSize {
				currentLen -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		currentLen += len(piece)
	}
	if currentLen > 0 {
		out = append(out, strings.Join(current, ""))
	}
	return out
}

// windowSplit is the terminal fallback for text with no usable boundaries:
// fixed windows of MaxChunkSize advancing by MaxChunkSize-ChunkOverlap.
func (c *Chunker) windowSplit(text string) []string {
	step := c.cfg.MaxChunkSize - c.cfg.ChunkOverlap
	var out []string
	for start := 0; start < len(text); start += step {
		end := start + c.cfg.MaxChunkSize
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		out = append(out, text[start:end])
	}
	return out
}

// mergeSmallTail folds a final fragment shorter than MinChunkSize into the
// previous chunk, but only when the merge stays within MaxChunkSize.
func (c *Chunker) mergeSmallTail(chunks []string) []string {
	n := len(chunks)
	if n < 2 {
		return chunks
	}
	last := chunks[n-1]
	if len(strings.TrimSpace(last)) >= c.cfg.MinChunkSize {
		return chunks
	}
	// Drop the part of the fragment already present as the previous chunk's
	// overlap tail before appending.
	prev := chunks[n-2]
	add := last[overlapLen(prev, last):]
	if len(prev)+len(add) > c.cfg.MaxChunkSize {
		return chunks
	}
	chunks[n-2] = prev + add
	return chunks[:n-1]
}

// overlapLen returns the length of the longest prefix of next that is also a
// suffix of prev.
func overlapLen(prev, next string) int {
	max := len(next)
	if len(prev) < max {
		max = len(prev)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(prev, next[:k]) {
			return k
		}
	}
	return 0
}
