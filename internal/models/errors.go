package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Startup errors abort the process before it serves traffic.
var (
	ErrMissingAPIKey      = errors.New("OPENAI_API_KEY not found")
	ErrStorageUnavailable = errors.New("remote storage unavailable")
	ErrIndexMissing       = errors.New("index artifact missing")
	ErrIndexCorrupt       = errors.New("index artifact corrupt")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrModelMismatch      = errors.New("embedding model mismatch")
)

// Per-turn errors are rendered into the turn's answer.
var (
	ErrEmbedding    = errors.New("embedding failed")
	ErrSearch       = errors.New("similarity search failed")
	ErrGeneration   = errors.New("completion failed")
	ErrTimeout      = errors.New("request timed out")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorised")
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyQuestion = errors.New("question is empty")
)

// Classify wraps err with ErrTimeout when it came from an expired deadline.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// AnswerFromError renders err as a user visible answer.
func AnswerFromError(err error) string {
	return ErrorMarker + strings.TrimSpace(Classify(err).Error())
}

// IsErrorAnswer reports whether answer was produced by AnswerFromError.
func IsErrorAnswer(answer string) bool {
	return strings.HasPrefix(answer, ErrorMarker)
}
