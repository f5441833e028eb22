package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag/internal/config"
	"resume-rag/internal/models"
)

// stubEmbedder implements embeddings.Embedder for testing.
type stubEmbedder struct {
	vec   []float32
	err   error
	block bool
	calls []string
}

func (s *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := s.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	s.calls = append(s.calls, text)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.vec, s.err
}

func TestEmbeddingFunc_ReturnsVector(t *testing.T) {
	stub := &stubEmbedder{vec: []float32{0.6, 0.8}}
	embed := EmbeddingFunc(stub, time.Second)

	vec, err := embed(context.Background(), "python experience")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.6, 0.8}, vec)
	assert.Equal(t, []string{"python experience"}, stub.calls)
}

func TestEmbeddingFunc_WrapsFailure(t *testing.T) {
	stub := &stubEmbedder{err: errors.New("401 invalid api key")}
	embed := EmbeddingFunc(stub, time.Second)

	_, err := embed(context.Background(), "q")

	assert.ErrorIs(t, err, models.ErrEmbedding)
	assert.Contains(t, err.Error(), "401 invalid api key")
}

func TestEmbeddingFunc_EmptyVector(t *testing.T) {
	embed := EmbeddingFunc(&stubEmbedder{}, 0)

	_, err := embed(context.Background(), "q")

	assert.ErrorIs(t, err, models.ErrEmbedding)
}

func TestEmbeddingFunc_Timeout(t *testing.T) {
	embed := EmbeddingFunc(&stubEmbedder{block: true}, 10*time.Millisecond)

	_, err := embed(context.Background(), "q")

	assert.ErrorIs(t, err, models.ErrEmbedding)
	assert.ErrorIs(t, err, models.ErrTimeout)
}

func TestNewEmbedder_Providers(t *testing.T) {
	openaiEmbedder, err := NewEmbedder(&config.LLMConfig{
		Provider: config.ProviderOpenAI,
		Key:      "Bearer sk-test",
		BaseURL:  config.DefaultBaseURL,
		Model:    config.DefaultEmbeddingModel,
	})
	require.NoError(t, err)
	assert.NotNil(t, openaiEmbedder)

	ollamaEmbedder, err := NewEmbedder(&config.LLMConfig{
		Provider: config.ProviderOllama,
		BaseURL:  config.DefaultOllamaURL,
		Model:    "nomic-embed-text",
	})
	require.NoError(t, err)
	assert.NotNil(t, ollamaEmbedder)

	_, err = NewEmbedder(&config.LLMConfig{Provider: "bedrock"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
