// Package chunker splits extracted document text into indexable chunks.
//
// Input text is plain text produced by an upstream extraction step. Page
// boundaries are marked with "--- Page N ---" lines and image-analysis
// sections with "[Image Analysis - <id>]" headers; both conventions are
// preserved from the extraction format. Chunking is pure: the same input
// and config always produce the same chunks, including chunk IDs.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrEmptyInput is returned when the document has no text.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidConfig is returned for out-of-range chunking parameters.
	ErrInvalidConfig = errors.New("invalid chunker config")
)

// Chunk types.
const (
	TypeText         = "text"
	TypeImageDerived = "image-derived"
)

// Config holds chunking parameters.
type Config struct {
	// MaxChunkSize is the maximum chunk length in bytes.
	MaxChunkSize int
	// ChunkOverlap is the number of trailing bytes carried into the next chunk.
	ChunkOverlap int
	// MinChunkSize is the threshold below which a trailing fragment is merged
	// into the previous chunk when the result still fits MaxChunkSize.
	MinChunkSize int
}

// ApplyDefaults fills zero values with the standard parameters.
func (c *Config) ApplyDefaults() {
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = 200
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d", ErrInvalidConfig, c.MaxChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, max chunk size), got %d", ErrInvalidConfig, c.ChunkOverlap)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.MaxChunkSize {
		return fmt.Errorf("%w: min chunk size must be in [0, max chunk size], got %d", ErrInvalidConfig, c.MinChunkSize)
	}
	return nil
}

// Document is the chunker input: extracted text plus source metadata.
type Document struct {
	Filename string
	Text     string
	Tags     []string
}

// Chunk is one indexable unit of a document.
type Chunk struct {
	ID         string
	Content    string
	Filename   string
	PageNumber int
	ChunkIndex int
	ChunkType  string
	Tags       []string
}

// Chunker splits documents according to its config. Safe for concurrent use.
type Chunker struct {
	cfg Config
}

// New creates a Chunker, applying defaults to zero-valued fields.
func New(cfg Config) (*Chunker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

var (
	pageMarkerRe    = regexp.MustCompile(`(?m)^--- Page (\d+) ---\s*$`)
	imageAnalysisRe = regexp.MustCompile(`\[Image Analysis - ([^\]]+)\]`)
)

// Chunk splits a document into chunks. Non-empty input always yields at
// least one chunk; whitespace-only input is treated as empty.
func (c *Chunker) Chunk(doc Document) ([]Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%w: document %q has no text", ErrEmptyInput, doc.Filename)
	}

	var chunks []Chunk
	ordinal := 0
	for _, page := range splitPages(doc.Text) {
		for _, seg := range splitImageSections(page.text) {
			for _, content := range c.split(seg.text) {
				content = strings.TrimSpace(content)
				if content == "" {
					continue
				}
				chunks = append(chunks, Chunk{
					ID:         chunkID(doc.Filename, ordinal),
					Content:    content,
					Filename:   doc.Filename,
					PageNumber: page.number,
					ChunkIndex: ordinal,
					ChunkType:  seg.chunkType,
					Tags:       doc.Tags,
				})
				ordinal++
			}
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %q produced no chunks", ErrEmptyInput, doc.Filename)
	}
	return chunks, nil
}

// chunkID derives a stable UUID from the document name and chunk ordinal,
// so re-ingesting the same document overwrites rather than duplicates.
func chunkID(filename string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(filename+"#"+strconv.Itoa(ordinal))).String()
}

type pageSection struct {
	number int
	text   string
}

// splitPages cuts the text on "--- Page N ---" markers. Text before the
// first marker (or marker-free text) is page 0.
func splitPages(text string) []pageSection {
	matches := pageMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []pageSection{{number: 0, text: text}}
	}

	var pages []pageSection
	if head := text[:matches[0][0]]; strings.TrimSpace(head) != "" {
		pages = append(pages, pageSection{number: 0, text: head})
	}
	for i, m := range matches {
		num, _ := strconv.Atoi(text[m[2]:m[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := text[m[1]:end]
		if strings.TrimSpace(body) == "" {
			continue
		}
		pages = append(pages, pageSection{number: num, text: body})
	}
	if len(pages) == 0 {
		return []pageSection{{number: 0, text: text}}
	}
	return pages
}

type segment struct {
	chunkType string
	text      string
}

// splitImageSections separates "[Image Analysis - <id>]" blocks from running
// text. An image block extends to the next blank line, the next image
// header, or the end of the section.
func splitImageSections(text string) []segment {
	matches := imageAnalysisRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []segment{{chunkType: TypeText, text: text}}
	}

	var segs []segment
	pos := 0
	for i, m := range matches {
		if head := text[pos:m[0]]; strings.TrimSpace(head) != "" {
			segs = append(segs, segment{chunkType: TypeText, text: head})
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		block := text[m[0]:end]
		if cut := strings.Index(block, "\n\n"); cut >= 0 {
			end = m[0] + cut
			block = text[m[0]:end]
		}
		if strings.TrimSpace(block) != "" {
			segs = append(segs, segment{chunkType: TypeImageDerived, text: block})
		}
		pos = end
	}
	if tail := text[pos:]; strings.TrimSpace(tail) != "" {
		segs = append(segs, segment{chunkType: TypeText, text: tail})
	}
	if len(segs) == 0 {
		return []segment{{chunkType: TypeText, text: text}}
	}
	return segs
}
