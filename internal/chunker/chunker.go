// Package chunker splits extracted document text into bounded, overlapping
// segments for embedding and retrieval.
package chunker

import (
	"regexp"
	"strings"

	"github.com/perkwise/perkdocs/internal/extract"
)

// Options controls chunk size and inter-chunk overlap. The overlap is
// word-based: each chunk after the first is seeded with roughly
// OverlapSize/10 trailing words of its predecessor.
type Options struct {
	MaxChunkSize int
	OverlapSize  int
}

// DefaultOptions provides the chunking parameters used by the ingestion
// pipeline.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize: 1000,
		OverlapSize:  200,
	}
}

// PageChunk is a chunk tagged with page provenance. Images carry the data
// URIs of every image on the source page; chunks from the same page share
// the full list.
type PageChunk struct {
	Text       string
	PageNumber int
	Images     []string
}

var (
	blankLineRe  = regexp.MustCompile(`\n\s*\n`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ChunkText splits text into size-bounded chunks along sentence boundaries.
// Sentences are accumulated greedily until adding the next one would exceed
// MaxChunkSize; the closed chunk's trailing words seed the next chunk. A
// single sentence longer than MaxChunkSize is emitted whole rather than
// split mid-sentence. Empty or whitespace-only input yields no chunks.
func ChunkText(text string, opts Options) []string {
	clean := normalizeWhitespace(text)
	if clean == "" {
		return nil
	}
	if opts.MaxChunkSize <= 0 {
		opts = DefaultOptions()
	}

	sentences := splitSentences(clean)

	var chunks []string
	current := ""
	for _, sentence := range sentences {
		if current != "" && len(current)+1+len(sentence) > opts.MaxChunkSize {
			chunks = append(chunks, strings.TrimSpace(current))
			overlap := tailWords(current, opts.OverlapSize/10)
			if overlap != "" {
				current = overlap + " " + sentence
			} else {
				current = sentence
			}
		} else {
			if current != "" {
				current += " "
			}
			current += sentence
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}

// ChunkDocument applies ChunkText independently per page, so chunks never
// span page boundaries, and tags each chunk with its page number and the
// page's image list.
func ChunkDocument(parsed *extract.ParsedDocument, opts Options) []PageChunk {
	var chunks []PageChunk
	for _, page := range parsed.Pages {
		for _, text := range ChunkText(page.Text, opts) {
			chunks = append(chunks, PageChunk{
				Text:       text,
				PageNumber: page.PageNumber,
				Images:     page.Images,
			})
		}
	}
	return chunks
}

// normalizeWhitespace collapses runs of blank lines, then all remaining
// whitespace runs to a single space, and trims the ends.
func normalizeWhitespace(text string) string {
	clean := blankLineRe.ReplaceAllString(text, "\n\n")
	clean = whitespaceRe.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}

// splitSentences breaks text after '.', '!' or '?' followed by whitespace,
// keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 >= len(text) || !isSpace(text[i+1]) {
			continue
		}
		sentences = append(sentences, text[start:i+1])
		start = i + 2
		for start < len(text) && isSpace(text[start]) {
			start++
		}
		i = start - 1
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// tailWords returns the last n space-separated words of s.
func tailWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Split(s, " ")
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
