package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(calls *[]string) AskFunc {
	return func(_ context.Context, q string) string {
		*calls = append(*calls, q)
		return "A:" + q
	}
}

func TestHandle_AppendsInSubmissionOrder(t *testing.T) {
	var calls []string
	s := State{}
	require.True(t, s.Empty())

	for _, q := range []string{"Q1", "Q2", "Q3"} {
		var ran bool
		s, ran = Handle(context.Background(), s, SubmitQuestion{Question: q}, echo(&calls))
		assert.True(t, ran)
	}

	assert.False(t, s.Empty())
	assert.True(t, s.Pending)
	assert.Equal(t, History{
		{Question: "Q1", Answer: "A:Q1"},
		{Question: "Q2", Answer: "A:Q2"},
		{Question: "Q3", Answer: "A:Q3"},
	}, s.History)
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, calls)
}

func TestHandle_BlankQuestionIsNoOp(t *testing.T) {
	var calls []string
	s := State{History: History{{Question: "Q1", Answer: "A1"}}}

	for _, q := range []string{"", "   ", "\n\t"} {
		next, ran := Handle(context.Background(), s, SubmitQuestion{Question: q}, echo(&calls))
		assert.False(t, ran)
		assert.Equal(t, s, next)
	}
	assert.Empty(t, calls)
}

func TestHandle_ErrorAnswerIsRecorded(t *testing.T) {
	fail := func(context.Context, string) string { return "Error: rate limited" }

	s, ran := Handle(context.Background(), State{}, SubmitQuestion{Question: "Q1"}, fail)

	assert.True(t, ran)
	assert.Equal(t, History{{Question: "Q1", Answer: "Error: rate limited"}}, s.History)
}

func TestHandle_TimerTickKeepsHistory(t *testing.T) {
	var calls []string
	s := State{History: History{{Question: "Q1", Answer: "A1"}}, Pending: true}

	next, ran := Handle(context.Background(), s, TimerTick{}, echo(&calls))

	assert.False(t, ran)
	assert.False(t, next.Pending)
	assert.Equal(t, s.History, next.History)
	assert.Empty(t, calls)
}

func TestTransition_DoesNotAliasPriorState(t *testing.T) {
	prior := State{History: make(History, 1, 4)}
	prior.History[0] = Turn{Question: "Q1", Answer: "A1"}

	a := Transition(prior, Answered{Question: "Q2", Answer: "A2"})
	b := Transition(prior, Answered{Question: "Q3", Answer: "A3"})

	assert.Len(t, prior.History, 1)
	assert.Equal(t, "Q2", a.History[1].Question)
	assert.Equal(t, "Q3", b.History[1].Question)
}

func TestHistory_Render(t *testing.T) {
	h := History{{Question: "Q1", Answer: "A1"}, {Question: "Q2", Answer: "A2"}}

	got := h.Render(func(m Message) string { return fmt.Sprintf("%s=%s;", m.Role, m.Content) })

	assert.Equal(t, "user=Q1;assistant=A1;user=Q2;assistant=A2;", got)
	assert.Equal(t, "", History(nil).Render(func(Message) string { return "x" }))
}
