package domain

// SearchMode identifies which retrieval path produced a result.
type SearchMode string

const (
	SearchModeVector  SearchMode = "vector"
	SearchModeKeyword SearchMode = "keyword"
)

// SearchResult pairs a chunk with a retrieval score. Score semantics depend
// on the mode: for vector search it is the raw distance reported by the index
// (lower is better); for keyword search it is a case-insensitive occurrence
// count (higher is better). Scores are not comparable across modes.
type SearchResult struct {
	Chunk *DocumentChunk
	Score float32
	Mode  SearchMode
}
