package index

// SearchMode selects how a Store matches chunks against a query.
type SearchMode string

const (
	// ModeSemantic ranks by vector similarity.
	ModeSemantic SearchMode = "semantic"
	// ModeKeyword ranks by lexical term overlap.
	ModeKeyword SearchMode = "keyword"
	// ModeHybrid labels results fused from both modes. Stores never accept
	// it directly; fusion happens in the retrieval layer.
	ModeHybrid SearchMode = "hybrid"
)

// Chunk is an embedded document fragment as stored in the index.
type Chunk struct {
	// ID is a stable UUID derived from the source document and ordinal.
	ID         string
	Content    string
	Filename   string
	PageNumber int
	ChunkIndex int
	ChunkType  string
	Tags       []string
	Vector     []float32
}

// Query describes one index lookup. Vector must be set for every mode: the
// chromem backend selects its keyword candidate pool by vector similarity.
type Query struct {
	Mode SearchMode
	// Vector is the embedded query text.
	Vector []float32
	// Text is the raw query, used for lexical scoring in keyword mode.
	Text string
	// TopK caps the number of results.
	TopK int
	// Filename restricts the search to one document when non-empty.
	Filename string
}

// ScoredResult is a chunk with its normalized relevance score.
type ScoredResult struct {
	Chunk Chunk
	// Score is in [0, 1]; higher is more relevant.
	Score float64
	// Mode records which matching produced the score.
	Mode SearchMode
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
