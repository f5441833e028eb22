package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"resume-rag/internal/chromemdb"
	"resume-rag/internal/config"
	"resume-rag/internal/fetcher"
	"resume-rag/internal/models"
)

const (
	bucket    = "cv-bucket"
	indexPath = "faiss_indexes/cv_index"
	embedName = "test-embed"
)

type bucketStore struct {
	objects map[string][]byte
	listErr error
}

func (b *bucketStore) List(_ context.Context, _, prefix string) ([]fetcher.Object, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []fetcher.Object
	for key, data := range b.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, fetcher.Object{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (b *bucketStore) Open(_ context.Context, _, key string) (io.ReadCloser, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// publishedStore exports a small CV index and serves it like the bucket would.
func publishedStore(t *testing.T) *bucketStore {
	t.Helper()
	m, err := chromemdb.NewVectorDBManager("cv", nil, "")
	require.NoError(t, err)
	require.NoError(t, m.CreateDocs(context.Background(),
		[]models.Chunk{
			{ID: "exp-1", Section: "Experience", Text: "Data scientist at Acme."},
			{ID: "skills-1", Section: "Skills", Text: "Python, Go"},
			{ID: "edu-1", Section: "Education", Text: "MSc AI"},
		},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	))
	dir := t.TempDir()
	require.NoError(t, m.Export(dir, embedName, true))

	store := &bucketStore{objects: map[string][]byte{indexPath + "/": nil}}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		store.objects[indexPath+"/"+e.Name()] = data
	}
	return store
}

type fixedEmbedder struct{ vec []float32 }

func (f fixedEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f fixedEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vec, nil
}

// promptEcho answers with the user message it received.
type promptEcho struct{}

func (promptEcho) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	last := messages[len(messages)-1]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: last.Parts[0].(llms.TextContent).Text}}}, nil
}

func (p promptEcho) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, p, prompt, options...)
}

func testConfig(t *testing.T, apiKey string) *config.Config {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "LLM_MODEL", "EMBEDDING_MODEL", "GCS_BUCKET_NAME",
		"GCS_INDEX_PATH", "INDEX_DIR", "GOOGLE_CREDENTIALS_JSON", "RAG_ENCRYPTION_KEY",
		"HOST", "PORT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("OPENAI_API_KEY", apiKey)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Storage.Bucket = bucket
	cfg.Storage.IndexPath = indexPath
	cfg.Storage.LocalDir = filepath.Join(t.TempDir(), "cv_index")
	cfg.EmbedLLM.Model = embedName
	cfg.EmbedLLM.Dimensions = 3
	return cfg
}

func storeFactory(store fetcher.ObjectStore, calls *int) StoreFactory {
	return func(context.Context, config.StorageConfig) (fetcher.ObjectStore, error) {
		*calls++
		return store, nil
	}
}

func TestBootstrap_AnswersFromPublishedIndex(t *testing.T) {
	cfg := testConfig(t, "sk-test")
	var calls int

	a, err := Bootstrap(context.Background(), cfg, Options{
		Store:    storeFactory(publishedStore(t), &calls),
		Embedder: fixedEmbedder{vec: []float32{0, 1, 0}},
		LLM:      promptEcho{},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, a.Index.Count())
	assert.FileExists(t, filepath.Join(cfg.Storage.LocalDir, chromemdb.ManifestFile))

	resp := a.RAG.Query(context.Background(), "Which languages?")
	assert.Equal(t, "gs://cv-bucket/faiss_indexes/cv_index/", resp.Source)
	require.Len(t, resp.Chunks, 3)
	assert.Equal(t, "skills-1", resp.Chunks[0].ID)
	assert.True(t, strings.HasPrefix(resp.Content, "Based on these CV sections:\n[Skills]\nPython, Go\n"), resp.Content)
	assert.True(t, strings.HasSuffix(resp.Content, "Question: Which languages?"))
}

func TestBootstrap_MissingAPIKeyFailsBeforeFetch(t *testing.T) {
	cfg := testConfig(t, "")
	var calls int

	_, err := Bootstrap(context.Background(), cfg, Options{Store: storeFactory(publishedStore(t), &calls)})

	assert.ErrorIs(t, err, models.ErrMissingAPIKey)
	assert.Equal(t, "OPENAI_API_KEY not found", err.Error())
	assert.Zero(t, calls)
}

func TestBootstrap_StorageUnavailable(t *testing.T) {
	cfg := testConfig(t, "sk-test")
	var calls int
	store := &bucketStore{listErr: errors.New("403 forbidden")}

	_, err := Bootstrap(context.Background(), cfg, Options{Store: storeFactory(store, &calls)})

	assert.ErrorIs(t, err, models.ErrStorageUnavailable)
	assert.Contains(t, err.Error(), bucket)
}

func TestBootstrap_EmptyBucketMeansMissingIndex(t *testing.T) {
	cfg := testConfig(t, "sk-test")
	var calls int
	store := &bucketStore{objects: map[string][]byte{}}

	_, err := Bootstrap(context.Background(), cfg, Options{
		Store:    storeFactory(store, &calls),
		Embedder: fixedEmbedder{vec: []float32{1, 0, 0}},
	})

	assert.ErrorIs(t, err, models.ErrIndexMissing)
}

func TestBootstrap_DimensionMismatch(t *testing.T) {
	cfg := testConfig(t, "sk-test")
	cfg.EmbedLLM.Dimensions = 3072
	var calls int

	_, err := Bootstrap(context.Background(), cfg, Options{
		Store:    storeFactory(publishedStore(t), &calls),
		Embedder: fixedEmbedder{vec: []float32{1, 0, 0}},
	})

	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestBootstrap_SkipFetchUsesLocalIndex(t *testing.T) {
	cfg := testConfig(t, "sk-test")
	var calls int
	_, err := FetchIndex(context.Background(), cfg, storeFactory(publishedStore(t), &calls))
	require.NoError(t, err)

	a, err := Bootstrap(context.Background(), cfg, Options{
		Store:     storeFactory(nil, &calls),
		Embedder:  fixedEmbedder{vec: []float32{1, 0, 0}},
		LLM:       promptEcho{},
		SkipFetch: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, a.Index.Count())
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "faiss_indexes/cv/", prefix("faiss_indexes/cv"))
	assert.Equal(t, "faiss_indexes/cv/", prefix("/faiss_indexes/cv/"))
	assert.Equal(t, "", prefix(""))
}
