// Package retrieval provides in-process corpus retrieval for prompt
// augmentation: a paragraph-aware chunker, a deterministic hash embedding,
// and an in-memory cosine-similarity store. It degrades gracefully: an
// absent or empty corpus yields no passages and no error.
package retrieval

import "strings"

const (
	// chunkSize is the target chunk length in characters.
	chunkSize = 1000
	// chunkOverlap is carried from the tail of one chunk into the next so
	// clauses split at a boundary stay retrievable.
	chunkOverlap = 200
)

// ChunkText splits text into overlapping chunks, preferring paragraph
// boundaries and falling back to hard splits for oversized paragraphs.
func ChunkText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	chunks := []string{}
	current := ""
	// fresh marks content not yet emitted; a carried overlap tail alone is
	// never flushed as its own chunk.
	fresh := false

	flush := func() {
		if fresh && strings.TrimSpace(current) != "" {
			chunks = append(chunks, strings.TrimSpace(current))
		}
		current = overlapTail(current)
		fresh = false
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > chunkSize {
			flush()
			chunks = append(chunks, hardSplit(para)...)
			current = overlapTail(chunks[len(chunks)-1])
			fresh = false
			continue
		}
		if len(current)+len(para)+2 > chunkSize {
			flush()
		}
		if current != "" {
			current += "\n\n"
		}
		current += para
		fresh = true
	}
	if fresh && strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// hardSplit cuts an oversized paragraph into raw chunkSize windows with
// overlap.
func hardSplit(para string) []string {
	chunks := []string{}
	for start := 0; start < len(para); start += chunkSize - chunkOverlap {
		end := start + chunkSize
		if end > len(para) {
			end = len(para)
		}
		chunks = append(chunks, para[start:end])
		if end == len(para) {
			break
		}
	}
	return chunks
}

func overlapTail(chunk string) string {
	if len(chunk) <= chunkOverlap {
		return chunk
	}
	return chunk[len(chunk)-chunkOverlap:]
}
