package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"resume-rag/internal/models"
)

// Index is the read-only view of the vector index the retriever needs.
type Index interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Search(ctx context.Context, queryEmbedding []float32, n int) ([]models.ScoredChunk, error)
}

// Options tune the maximal marginal relevance selection.
type Options struct {
	// K is the number of chunks returned.
	K int
	// FetchK is the size of the nearest neighbour pool MMR selects from.
	FetchK int
	// Diversity weighs relevance against redundancy: 1 ranks purely by
	// relevance, 0 purely by dissimilarity to what was already picked.
	Diversity float64
}

func DefaultOptions() Options {
	return Options{K: 8, FetchK: 20, Diversity: 0.7}
}

func (o Options) validate() error {
	if o.K <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidInput, o.K)
	}
	if o.Diversity < 0 || o.Diversity > 1 || math.IsNaN(o.Diversity) {
		return fmt.Errorf("%w: diversity must be within [0,1], got %v", models.ErrInvalidInput, o.Diversity)
	}
	return nil
}

// Retriever finds the CV chunks to ground an answer on. It never mutates the
// index and is safe for concurrent use.
type Retriever struct {
	index Index
	opts  Options
}

func New(index Index, opts Options) (*Retriever, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.FetchK < opts.K {
		opts.FetchK = opts.K
	}
	return &Retriever{index: index, opts: opts}, nil
}

// Options returns the effective options.
func (r *Retriever) Options() Options {
	return r.opts
}

// Retrieve embeds query, fetches the FetchK nearest chunks and returns up to K
// of them in MMR selection order.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	queryEmbedding, err := r.index.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := CheckVector(queryEmbedding); err != nil {
		return nil, fmt.Errorf("%w: query %w", models.ErrEmbedding, err)
	}

	candidates, err := r.index.Search(ctx, queryEmbedding, r.opts.FetchK)
	if err != nil {
		return nil, err
	}

	selected := MMR(candidates, r.opts.K, r.opts.Diversity)
	log.Debug().
		Int("candidates", len(candidates)).
		Int("selected", len(selected)).
		Float64("diversity", r.opts.Diversity).
		Msg("Retrieved chunks")

	chunks := make([]models.Chunk, len(selected))
	for i, s := range selected {
		chunks[i] = s.Chunk
	}
	return chunks, nil
}

// MMR picks up to k candidates, each time taking the one that maximizes
// diversity*relevance - (1-diversity)*max similarity to the picks so far.
// Candidates are expected most relevant first; ties keep that order.
// Non-finite similarities count as 0.
func MMR(candidates []models.ScoredChunk, k int, diversity float64) []models.ScoredChunk {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return nil
	}

	pool := make([]int, len(candidates))
	for i := range pool {
		pool[i] = i
	}
	// redundancy[i] is candidate i's highest similarity to any selected chunk
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	selected := make([]models.ScoredChunk, 0, k)
	for len(selected) < k {
		best, bestScore := 0, math.Inf(-1)
		for pos, i := range pool {
			penalty := redundancy[i]
			if len(selected) == 0 {
				penalty = 0
			}
			score := diversity*finite(candidates[i].Similarity) - (1-diversity)*penalty
			if score > bestScore {
				best, bestScore = pos, score
			}
		}

		picked := pool[best]
		pool = append(pool[:best], pool[best+1:]...)
		selected = append(selected, candidates[picked])

		for _, i := range pool {
			sim := Cosine(candidates[i].Embedding, candidates[picked].Embedding)
			if sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}
	return selected
}

// Cosine is the cosine similarity of a and b, 0 when either is empty, zero
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return finite(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// CheckVector rejects an embedding a cosine search cannot rank against, such
// as an all-zero vector or one holding NaN.
func CheckVector(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("embedding is empty")
	}
	var norm float64
	for _, v := range vec {
		x := float64(v)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return errors.New("embedding has non-finite components")
		}
		norm += x * x
	}
	if norm == 0 {
		return errors.New("embedding has zero norm")
	}
	return nil
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
