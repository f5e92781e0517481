// Package ingest owns the write side of the corpus: feed fetching,
// content extraction, chunking, and embedding. The retrieval core never
// writes; everything under articles.db and the vector index directory
// is produced here.
package ingest

import (
	"strings"

	"github.com/domwxyz/marxist-search/internal/store"
)

// Chunker splits long articles into overlapping segments. Articles at
// or under the threshold are embedded whole and never pass through it.
type Chunker struct {
	// ThresholdWords is the word count above which an article is chunked.
	ThresholdWords int
	// SizeWords is the target segment size.
	SizeWords int
	// OverlapWords is carried from the tail of one segment into the next.
	OverlapWords int
}

// NewChunker applies defaults for zero or inconsistent fields.
func NewChunker(threshold, size, overlap int) *Chunker {
	if threshold <= 0 {
		threshold = 5500
	}
	if size <= 0 {
		size = 2000
	}
	if overlap < 0 || overlap >= size {
		overlap = 300
	}
	return &Chunker{ThresholdWords: threshold, SizeWords: size, OverlapWords: overlap}
}

// NeedsChunking reports whether an article of the given word count gets
// split.
func (c *Chunker) NeedsChunking(wordCount int) bool {
	return wordCount > c.ThresholdWords
}

// word is one token with its character offset in the source text.
type word struct {
	text string
	pos  int
}

// Split breaks content into chunks with contiguous indices from 0.
// Cuts prefer a paragraph boundary near the target size; a long
// unbroken paragraph falls back to a plain word cut. Start positions
// are character offsets into the original content.
func (c *Chunker) Split(content string) []store.Chunk {
	words, paraStarts := tokenize(content)
	if len(words) == 0 {
		return nil
	}

	// Allow the cut to move back to a paragraph boundary by up to 10%
	// of the chunk size.
	slack := c.SizeWords / 10

	var chunks []store.Chunk
	start := 0
	for {
		end := start + c.SizeWords
		if end >= len(words) {
			end = len(words)
		} else if cut := nearestParaStart(paraStarts, end, slack); cut > start {
			end = cut
		}

		parts := make([]string, end-start)
		for i := start; i < end; i++ {
			parts[i-start] = words[i].text
		}
		chunks = append(chunks, store.Chunk{
			Index:     len(chunks),
			Content:   strings.Join(parts, " "),
			WordCount: end - start,
			StartPos:  words[start].pos,
		})

		if end == len(words) {
			return chunks
		}
		next := end - c.OverlapWords
		if next <= start {
			next = end
		}
		start = next
	}
}

// tokenize flattens content into positioned words and records the word
// index at which each paragraph begins.
func tokenize(content string) ([]word, []int) {
	var words []word
	var paraStarts []int

	offset := 0
	for _, block := range strings.Split(content, "\n\n") {
		fields := strings.Fields(block)
		if len(fields) > 0 {
			paraStarts = append(paraStarts, len(words))
		}
		search := offset
		for _, f := range fields {
			pos := search
			if idx := strings.Index(content[search:], f); idx >= 0 {
				pos = search + idx
				search = pos + len(f)
			}
			words = append(words, word{text: f, pos: pos})
		}
		offset += len(block) + 2
	}
	return words, paraStarts
}

// nearestParaStart returns the largest paragraph start in
// (target-slack, target], or 0 when none is close enough.
func nearestParaStart(paraStarts []int, target, slack int) int {
	best := 0
	for _, p := range paraStarts {
		if p > target {
			break
		}
		if p > target-slack && p > best {
			best = p
		}
	}
	return best
}
