package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"resume-rag/internal/models"
)

// Retriever returns the chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.Chunk, error)
}

// Generator turns context and a question into an answer. Failures are
// returned as error answers, never as errors.
type Generator interface {
	Generate(ctx context.Context, contextText, question string) string
}

// RAG answers questions about the CV. It is built once at startup and shared
// by every request.
type RAG struct {
	retriever Retriever
	generator Generator
	source    string
}

// NewRAG wires the pipeline; source names the index the answers come from.
func NewRAG(retriever Retriever, generator Generator, source string) *RAG {
	return &RAG{retriever: retriever, generator: generator, source: source}
}

// AssembleContext renders chunks as "[section]\ntext" blocks in order.
func AssembleContext(chunks []models.Chunk) string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = "[" + c.Section + "]" + models.ContextSeparator + c.Text
	}
	return strings.Join(blocks, models.ContextSeparator)
}

// Query runs retrieve, assemble and generate for one question. Errors never
// escape: a failed turn carries an answer starting with models.ErrorMarker.
func (r *RAG) Query(ctx context.Context, query string) models.PromptResponse {
	response := models.PromptResponse{Query: query, Source: r.source}

	if strings.TrimSpace(query) == "" {
		response.Content = models.AnswerFromError(models.ErrEmptyQuestion)
		return response
	}

	start := time.Now()
	chunks, err := r.retriever.Retrieve(ctx, query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Retrieval failed")
		response.Content = models.AnswerFromError(err)
		return response
	}
	response.Chunks = chunks

	response.Content = r.generator.Generate(ctx, AssembleContext(chunks), query)

	log.Info().
		Int("chunks", len(chunks)).
		Str("sections", sections(chunks)).
		Bool("error", models.IsErrorAnswer(response.Content)).
		Dur("took", time.Since(start)).
		Msg("Answered question")
	return response
}

// Ask is Query reduced to the answer text.
func (r *RAG) Ask(ctx context.Context, question string) string {
	return r.Query(ctx, question).Content
}

func sections(chunks []models.Chunk) string {
	seen := make(map[string]bool, len(chunks))
	var out []string
	for _, c := range chunks {
		if !seen[c.Section] {
			seen[c.Section] = true
			out = append(out, c.Section)
		}
	}
	return fmt.Sprint(out)
}
