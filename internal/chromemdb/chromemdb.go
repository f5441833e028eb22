// Package chromemdb loads the CV vector index published by the indexing job.
//
// The vector store file is a chromem-go export, which is a gob stream. Gob
// decoding is only safe for trusted input: the loader accepts it because the
// index is built and published by the operator's own pipeline into a bucket
// the operator controls. Never point it at a directory that third parties can
// write to. A manifest (index.yaml) has to sit next to the export and describe
// it, so a stray or mismatched file is rejected before it is decoded.
package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"resume-rag/internal/models"
)

const (
	ManifestFile = "index.yaml"
	fileExt      = ".chromem"
)

// Manifest is the metadata store published next to the vector store.
type Manifest struct {
	Collection     string    `yaml:"collection"`
	EmbeddingModel string    `yaml:"embedding_model"`
	Dimensions     int       `yaml:"dimensions"`
	Documents      int       `yaml:"documents"`
	Compressed     bool      `yaml:"compressed,omitempty"`
	Encrypted      bool      `yaml:"encrypted,omitempty"`
	BuiltAt        time.Time `yaml:"built_at,omitempty"`
}

// StoreFile is the vector store file name the manifest refers to.
func (m Manifest) StoreFile() string {
	name := m.Collection + fileExt
	if m.Compressed {
		name += ".gz"
	}
	return name
}

// LoadOptions are the expectations the loaded index has to meet.
type LoadOptions struct {
	EmbeddingModel string
	Dimensions     int
	EncryptionKey  string
}

// VectorDBManager holds one collection of CV chunks and the embedding
// function used for query text. It is read-only once loaded.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	embed         chromem.EmbeddingFunc
	manifest      Manifest
	encryptionKey string
}

// NewVectorDBManager creates an empty in-memory collection
func NewVectorDBManager(collectionName string, embed chromem.EmbeddingFunc, encryptionKey string) (*VectorDBManager, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &VectorDBManager{
		db:            db,
		collection:    c,
		embed:         embed,
		manifest:      Manifest{Collection: collectionName},
		encryptionKey: encryptionKey,
	}, nil
}

// Load deserializes the index in dir.
func Load(ctx context.Context, dir string, embed chromem.EmbeddingFunc, opts LoadOptions) (*VectorDBManager, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := manifest.check(opts); err != nil {
		return nil, err
	}

	storePath := filepath.Join(dir, manifest.StoreFile())
	if _, err := os.Stat(storePath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrIndexMissing, storePath, err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(storePath, opts.EncryptionKey, manifest.Collection); err != nil {
		return nil, fmt.Errorf("%w: failed to import %s: %v", models.ErrIndexCorrupt, storePath, err)
	}
	c := db.GetCollection(manifest.Collection, embed)
	if c == nil {
		return nil, fmt.Errorf("%w: collection %q not found in %s", models.ErrIndexCorrupt, manifest.Collection, storePath)
	}
	if c.Count() != manifest.Documents {
		return nil, fmt.Errorf("%w: %s holds %d documents, manifest says %d",
			models.ErrIndexCorrupt, storePath, c.Count(), manifest.Documents)
	}

	// a unit vector of the manifest size only scores against stored vectors of the same size
	probe := make([]float32, manifest.Dimensions)
	probe[0] = 1
	if _, err := c.QueryEmbedding(ctx, probe, 1, nil, nil); err != nil {
		return nil, fmt.Errorf("%w: stored vectors are not %d-dimensional: %v",
			models.ErrDimensionMismatch, manifest.Dimensions, err)
	}

	log.Info().
		Str("collection", manifest.Collection).
		Str("embedding_model", manifest.EmbeddingModel).
		Int("dimensions", manifest.Dimensions).
		Int("documents", manifest.Documents).
		Msg("Loaded vector index")

	return &VectorDBManager{
		db:            db,
		collection:    c,
		embed:         embed,
		manifest:      *manifest,
		encryptionKey: opts.EncryptionKey,
	}, nil
}

// ReadManifest reads index.yaml from dir.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrIndexMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrIndexCorrupt, path, err)
	}
	if m.Collection == "" || m.Dimensions <= 0 || m.Documents <= 0 {
		return nil, fmt.Errorf("%w: %s needs collection, dimensions and documents", models.ErrIndexCorrupt, path)
	}
	return &m, nil
}

func (m *Manifest) check(opts LoadOptions) error {
	if opts.EmbeddingModel != "" && m.EmbeddingModel != "" && m.EmbeddingModel != opts.EmbeddingModel {
		return fmt.Errorf("%w: index built with %s, queries embedded with %s",
			models.ErrModelMismatch, m.EmbeddingModel, opts.EmbeddingModel)
	}
	if opts.Dimensions > 0 && m.Dimensions != opts.Dimensions {
		return fmt.Errorf("%w: index has %d dimensions, embedder produces %d",
			models.ErrDimensionMismatch, m.Dimensions, opts.Dimensions)
	}
	if m.Encrypted && opts.EncryptionKey == "" {
		return fmt.Errorf("%w: index is encrypted and no encryption key is configured", models.ErrInvalidInput)
	}
	return nil
}

// Manifest describes the loaded index.
func (m *VectorDBManager) Manifest() Manifest {
	return m.manifest
}

// Count is the number of chunks in the index.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// Embed runs the index's embedding function over query text.
func (m *VectorDBManager) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text)
}

// Search returns the n chunks closest to the query embedding, most similar first.
func (m *VectorDBManager) Search(ctx context.Context, queryEmbedding []float32, n int) ([]models.ScoredChunk, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", models.ErrSearch)
	}
	if n > m.collection.Count() {
		n = m.collection.Count()
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, queryEmbedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSearch, models.Classify(err))
	}

	out := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		out = append(out, models.ScoredChunk{
			Chunk: models.Chunk{
				ID:      r.ID,
				Section: r.Metadata[models.MetadataSection],
				Text:    r.Content,
			},
			Embedding:  r.Embedding,
			Similarity: float64(r.Similarity),
		})
	}
	return out, nil
}

// CreateDocs adds chunks with precomputed embeddings
func (m *VectorDBManager) CreateDocs(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", models.ErrInvalidInput, len(chunks), len(vectors))
	}
	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = chromem.Document{
			ID:        ch.ID,
			Content:   ch.Text,
			Metadata:  map[string]string{models.MetadataSection: ch.Section},
			Embedding: vectors[i],
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	if len(vectors) > 0 {
		m.manifest.Dimensions = len(vectors[0])
	}
	m.manifest.Documents = m.collection.Count()
	return nil
}

// Export writes the collection and its manifest into dir, the layout Load reads.
func (m *VectorDBManager) Export(dir, embeddingModel string, compress bool) error {
	if dir == "" {
		return fmt.Errorf("%w: export dir is required", models.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	manifest := m.manifest
	manifest.EmbeddingModel = embeddingModel
	manifest.Compressed = compress
	manifest.Encrypted = m.encryptionKey != ""
	manifest.BuiltAt = time.Now().UTC()

	storePath := filepath.Join(dir, manifest.StoreFile())
	log.Debug().Str("collection", manifest.Collection).Str("file", storePath).Bool("compress", compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(storePath, compress, m.encryptionKey, manifest.Collection); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
