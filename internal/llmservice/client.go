package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"resume-rag/internal/config"
	"resume-rag/internal/models"
)

// NewLLM creates the chat model for the configured provider
func NewLLM(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().
		Str("provider", llmConfig.Provider).
		Str("base_url", llmConfig.BaseURL).
		Str("model", llmConfig.Model).
		Msg("Creating chat model")

	switch llmConfig.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chat model: %w", err)
		}
		return llm, nil
	case config.ProviderOpenAI, "":
		llm, err := openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chat model: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", models.ErrInvalidInput, llmConfig.Provider)
	}
}

// Generator answers a question from assembled CV context.
type Generator struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func NewGenerator(llm llms.Model, llmConfig *config.LLMConfig) *Generator {
	return &Generator{
		llm:         llm,
		temperature: llmConfig.Temperature,
		maxTokens:   llmConfig.MaxTokens,
		timeout:     llmConfig.Timeout(),
	}
}

// Messages builds the system instruction and the grounded user message.
func Messages(contextText, question string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(models.UserPromptTemplate, contextText, question)),
	}
}

// Generate returns the model's answer verbatim. It never fails: errors come
// back as an answer starting with models.ErrorMarker. Without context there is
// nothing to ground on, so the model is not called.
func (g *Generator) Generate(ctx context.Context, contextText, question string) string {
	if strings.TrimSpace(contextText) == "" {
		log.Debug().Str("question", question).Msg("No context retrieved, skipping completion")
		return models.NotFoundPhrase
	}

	answer, err := g.GenerateContent(ctx, Messages(contextText, question))
	if err != nil {
		log.Error().Err(err).Str("question", question).Msg("Completion failed")
		return models.AnswerFromError(err)
	}
	return answer
}

// GenerateContent calls the chat model with the configured sampling options
// and a bounded deadline.
func (g *Generator) GenerateContent(ctx context.Context, messages []llms.MessageContent) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return "", classify(err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("%w: empty response from model", models.ErrGeneration)
	}

	log.Debug().Dur("took", time.Since(start)).Int("chars", len(resp.Choices[0].Content)).Msg("Completion done")
	return resp.Choices[0].Content, nil
}

// statusCode matches the "unexpected status code: 429" text the provider
// clients put in their errors.
var statusCode = regexp.MustCompile(`(?i)status code:? (\d{3})\b`)

// classify maps a provider error onto the error taxonomy from its HTTP status.
func classify(err error) error {
	err = models.Classify(err)
	if errors.Is(err, models.ErrTimeout) {
		return err
	}
	var code string
	if m := statusCode.FindStringSubmatch(err.Error()); m != nil {
		code = m[1]
	}
	switch code {
	case "429":
		return fmt.Errorf("%w: %w", models.ErrRateLimited, err)
	case "401", "403":
		return fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %w", models.ErrGeneration, err)
	}
}
