// Package augment assembles retrieved chunks into a bounded context string
// for generation. Assembly is pure and deterministic: the same results and
// budget always produce byte-identical output.
package augment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/ragd/internal/index"
)

const (
	// sourceHeader attributes each block to its document, page and score.
	sourceHeader = "[Source: %s, Page: %d, Score: %.3f]"
	// separator joins context blocks.
	separator = "\n\n"
)

// Context is the assembled generation input plus the attribution record of
// everything that made it in.
type Context struct {
	// Text is the final context string, at most the requested budget.
	Text string
	// Included lists the results represented in Text, in order.
	Included []index.ScoredResult
	// Truncated is true when the first block had to be cut to fit.
	Truncated bool
}

// Empty reports whether no chunk content made it into the context.
func (c Context) Empty() bool {
	return len(c.Included) == 0
}

// Assemble builds a context from ranked results under a byte budget.
// Results are consumed as a greedy prefix: assembly stops at the first block
// that does not fit. When even the first block is too large, its chunk text
// is truncated with the header kept intact.
func Assemble(results []index.ScoredResult, budget int) Context {
	if budget <= 0 || len(results) == 0 {
		return Context{}
	}

	var sb strings.Builder
	var included []index.ScoredResult
	truncated := false

	for i, r := range results {
		block := formatBlock(r)
		sep := ""
		if i > 0 {
			sep = separator
		}

		if sb.Len()+len(sep)+len(block) <= budget {
			sb.WriteString(sep)
			sb.WriteString(block)
			included = append(included, r)
			continue
		}

		if i == 0 {
			cut, ok := truncateBlock(r, budget)
			if !ok {
				return Context{}
			}
			sb.WriteString(cut)
			included = append(included, r)
			truncated = true
		}
		break
	}

	return Context{
		Text:      sb.String(),
		Included:  included,
		Truncated: truncated,
	}
}

// formatBlock renders one result: header line, optional metadata line,
// then the chunk text.
func formatBlock(r index.ScoredResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, sourceHeader, r.Chunk.Filename, r.Chunk.PageNumber, r.Score)
	if md := metadataLine(r.Chunk); md != "" {
		sb.WriteString("\n")
		sb.WriteString(md)
	}
	sb.WriteString("\n")
	sb.WriteString(r.Chunk.Content)
	return sb.String()
}

// metadataLine renders non-default chunk type and tags, or "" when there is
// nothing noteworthy.
func metadataLine(ch index.Chunk) string {
	var parts []string
	if ch.ChunkType != "" && ch.ChunkType != "text" {
		parts = append(parts, "Type: "+ch.ChunkType)
	}
	if len(ch.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(ch.Tags, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return "[Metadata: " + strings.Join(parts, " | ") + "]"
}

// truncateBlock fits a single block into the budget by cutting chunk text.
// Returns false when not even the header fits.
func truncateBlock(r index.ScoredResult, budget int) (string, bool) {
	var sb strings.Builder
	fmt.Fprintf(&sb, sourceHeader, r.Chunk.Filename, r.Chunk.PageNumber, r.Score)
	if md := metadataLine(r.Chunk); md != "" {
		sb.WriteString("\n")
		sb.WriteString(md)
	}
	sb.WriteString("\n")

	remaining := budget - sb.Len()
	if remaining <= 0 {
		return "", false
	}
	content := r.Chunk.Content
	if len(content) > remaining {
		// Back up to a rune boundary so the cut never emits invalid UTF-8.
		for remaining > 0 && !utf8.RuneStart(content[remaining]) {
			remaining--
		}
		if remaining == 0 {
			return "", false
		}
		content = content[:remaining]
	}
	sb.WriteString(content)
	return sb.String(), true
}
