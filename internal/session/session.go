// Package session holds the conversation state of one chat. The state lives
// with the client and travels with every request, so the server keeps nothing
// between turns.
package session

import (
	"context"
	"strings"
)

// Turn is one question and the answer it got.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// History is the ordered, append-only log of turns.
type History []Turn

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one side of a turn, in transcript order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the session as the client sees it.
type State struct {
	History History
	// Pending keeps the typing indicator up after an answer until the next
	// timer tick.
	Pending bool
}

// Empty reports whether no turn has been recorded yet.
func (s State) Empty() bool {
	return len(s.History) == 0
}

// Request is what the client can send.
type Request interface {
	isRequest()
}

// SubmitQuestion asks a new question.
type SubmitQuestion struct {
	Question string
}

// TimerTick is the client's periodic refresh; it carries no input.
type TimerTick struct{}

func (SubmitQuestion) isRequest() {}
func (TimerTick) isRequest()      {}

// Event is a resolved input to Transition.
type Event interface {
	isEvent()
}

// Answered records a question with its answer, error answers included.
type Answered struct {
	Question string
	Answer   string
}

func (Answered) isEvent()  {}
func (TimerTick) isEvent() {}

// Transition returns the state after e. It never modifies s.
func Transition(s State, e Event) State {
	switch e := e.(type) {
	case Answered:
		history := make(History, len(s.History), len(s.History)+1)
		copy(history, s.History)
		return State{History: append(history, Turn{Question: e.Question, Answer: e.Answer}), Pending: true}
	case TimerTick:
		return State{History: s.History}
	default:
		return s
	}
}

// AskFunc produces the answer to a question. It does not fail; errors are
// carried in the answer text.
type AskFunc func(ctx context.Context, question string) string

// Handle resolves req into an event, running ask for a non-blank question,
// and applies it. Blank questions leave the state untouched. The second return
// reports whether ask ran.
func Handle(ctx context.Context, s State, req Request, ask AskFunc) (State, bool) {
	switch req := req.(type) {
	case SubmitQuestion:
		if strings.TrimSpace(req.Question) == "" {
			return s, false
		}
		answer := ask(ctx, req.Question)
		return Transition(s, Answered{Question: req.Question, Answer: answer}), true
	case TimerTick:
		return Transition(s, req), false
	default:
		return s, false
	}
}

// Messages flattens the history into alternating user and assistant messages.
func (h History) Messages() []Message {
	out := make([]Message, 0, 2*len(h))
	for _, t := range h {
		out = append(out,
			Message{Role: RoleUser, Content: t.Question},
			Message{Role: RoleAssistant, Content: t.Answer},
		)
	}
	return out
}

// Render builds the transcript by formatting every message in order.
func (h History) Render(format func(Message) string) string {
	var b strings.Builder
	for _, m := range h.Messages() {
		b.WriteString(format(m))
	}
	return b.String()
}
