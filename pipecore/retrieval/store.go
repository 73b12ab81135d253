package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/agents"
)

// embeddingDim is the dimensionality of the pseudo-embedding space.
const embeddingDim = 768

// EmbeddingFunc maps text to a vector. The default is a deterministic
// hash-based pseudo-embedding; callers can plug in a real model.
type EmbeddingFunc func(text string) []float64

// document is one stored chunk with its vector.
type document struct {
	id     string
	text   string
	source string
	vector []float64
}

// Store is an in-memory vector store over corpus chunks.
type Store struct {
	mu    sync.RWMutex
	docs  []document
	embed EmbeddingFunc
}

// NewStore creates an empty store. embed may be nil to use the default
// hash embedding.
func NewStore(embed EmbeddingFunc) *Store {
	if embed == nil {
		embed = HashEmbedding
	}
	return &Store{embed: embed}
}

// Add chunks a text and stores each chunk under the given source name.
func (s *Store) Add(source, text string) {
	chunks := ChunkText(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, chunk := range chunks {
		s.docs = append(s.docs, document{
			id:     fmt.Sprintf("%s#%d", source, i),
			text:   chunk,
			source: source,
			vector: s.embed(chunk),
		})
	}
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Retrieve returns the topK most similar chunks to the query. An empty
// store returns nil and no error. Implements the agents CorpusRetriever
// contract.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]agents.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.docs) == 0 || topK <= 0 {
		return nil, nil
	}

	queryVec := s.embed(query)
	results := make([]agents.Passage, 0, len(s.docs))
	for _, doc := range s.docs {
		results = append(results, agents.Passage{
			Text:       doc.text,
			Source:     doc.source,
			Similarity: cosine(queryVec, doc.vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// LoadDir loads every .md and .txt file under dir into the store. A missing
// directory is not an error; the store just stays empty.
func (s *Store) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat corpus dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus path %s is not a directory", dir)
	}
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read corpus file %s: %w", path, err)
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}
		s.Add(rel, string(data))
		return nil
	})
}

// HashEmbedding is a deterministic pseudo-embedding: each token is hashed
// with md5 into a bucket of the vector (feature hashing), and the result is
// L2-normalized. Overlapping vocabulary yields overlapping buckets, so
// cosine similarity tracks lexical overlap. It needs no model and is stable
// across runs.
func HashEmbedding(text string) []float64 {
	vec := make([]float64, embeddingDim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?()[]{}\"'")
		if token == "" {
			continue
		}
		sum := md5.Sum([]byte(token))
		idx := binary.BigEndian.Uint32(sum[:4]) % embeddingDim
		sign := 1.0
		if sum[4]&1 == 1 {
			sign = -1.0
		}
		vec[idx] += sign
	}
	return l2normalize(vec)
}

func l2normalize(vec []float64) []float64 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
