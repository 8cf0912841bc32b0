package generate

import (
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/index"
)

// ConfidenceConfig tunes the answer confidence heuristic. The estimate is
// explainable and monotone in its evidence signals: a stronger top retrieval
// score or more answer-context overlap never lowers it.
type ConfidenceConfig struct {
	// RetrievalWeight scales the top fused retrieval score.
	RetrievalWeight float64
	// OverlapWeight scales the lexical overlap between answer and context.
	OverlapWeight float64
	// UncertaintyPenalty applies when the answer hedges.
	UncertaintyPenalty float64
	// ShortAnswerPenalty applies below ShortAnswerChars.
	ShortAnswerPenalty float64
	// LongAnswerPenalty applies above LongAnswerChars.
	LongAnswerPenalty float64
	// ReferenceBonus applies when the answer explicitly cites the context.
	ReferenceBonus float64

	ShortAnswerChars int
	LongAnswerChars  int
}

// ApplyDefaults fills zero values with the standard tuning.
func (c *ConfidenceConfig) ApplyDefaults() {
	if c.RetrievalWeight == 0 {
		c.RetrievalWeight = 0.5
	}
	if c.OverlapWeight == 0 {
		c.OverlapWeight = 0.5
	}
	if c.UncertaintyPenalty == 0 {
		c.UncertaintyPenalty = 0.3
	}
	if c.ShortAnswerPenalty == 0 {
		c.ShortAnswerPenalty = 0.2
	}
	if c.LongAnswerPenalty == 0 {
		c.LongAnswerPenalty = 0.1
	}
	if c.ReferenceBonus == 0 {
		c.ReferenceBonus = 0.1
	}
	if c.ShortAnswerChars == 0 {
		c.ShortAnswerChars = 50
	}
	if c.LongAnswerChars == 0 {
		c.LongAnswerChars = 4000
	}
}

var uncertaintyMarkers = []string{
	"i don't know",
	"i do not know",
	"not sure",
	"unclear",
	"cannot determine",
	"can't determine",
	"insufficient information",
	"not enough information",
	"does not contain",
	"doesn't contain",
	"no information",
}

var referenceMarkers = []string{
	"according to",
	"based on the",
	"the context",
	"the document",
	"the provided",
	"[source:",
}

// Estimate scores an answer in [0, 1] from the evidence at hand.
func (c ConfidenceConfig) Estimate(answer, contextText string, topScore float64) float64 {
	overlap := index.LexicalScore(answer, contextText)
	score := c.RetrievalWeight*clamp01(topScore) + c.OverlapWeight*overlap

	lower := strings.ToLower(answer)
	if containsAny(lower, uncertaintyMarkers) {
		score -= c.UncertaintyPenalty
	}
	if len(answer) < c.ShortAnswerChars {
		score -= c.ShortAnswerPenalty
	}
	if len(answer) > c.LongAnswerChars {
		score -= c.LongAnswerPenalty
	}
	if containsAny(lower, referenceMarkers) {
		score += c.ReferenceBonus
	}
	return clamp01(score)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
