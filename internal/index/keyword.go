package index

import "strings"

// Tokenize splits text into lowercase terms, dropping stopwords and tokens
// shorter than three characters.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

func isStopword(token string) bool {
	return stopwords[token]
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

// TermOverlap returns the fraction of unique query tokens present in the
// document tokens, in [0, 1].
func TermOverlap(queryTokens, docTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	docSet := make(map[string]bool, len(docTokens))
	for _, token := range docTokens {
		docSet[token] = true
	}

	unique := make(map[string]bool, len(queryTokens))
	for _, token := range queryTokens {
		unique[token] = true
	}

	matched := 0
	for token := range unique {
		if docSet[token] {
			matched++
		}
	}
	return float64(matched) / float64(len(unique))
}

// LexicalScore is the term-overlap score between raw query and document text.
func LexicalScore(query, doc string) float64 {
	return TermOverlap(Tokenize(query), Tokenize(doc))
}
