package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Deadline(t *testing.T) {
	err := Classify(fmt.Errorf("embed query: %w", context.DeadlineExceeded))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "request timed out: embed query: context deadline exceeded", err.Error())
}

func TestClassify_PassThrough(t *testing.T) {
	assert.NoError(t, Classify(nil))

	base := errors.New("boom")
	assert.Same(t, base, Classify(base))

	already := fmt.Errorf("%w: %w", ErrTimeout, context.DeadlineExceeded)
	assert.Same(t, already, Classify(already))
}

func TestAnswerFromError(t *testing.T) {
	answer := AnswerFromError(fmt.Errorf("%w: 429 too many requests", ErrRateLimited))

	assert.Equal(t, "Error: rate limited: 429 too many requests", answer)
	assert.True(t, IsErrorAnswer(answer))
	assert.False(t, IsErrorAnswer("Senior data scientist at Acme."))
}
