package server

import (
	"bytes"
	"html"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	mdhtml "github.com/yuin/goldmark/renderer/html"

	"resume-rag/internal/models"
	"resume-rag/internal/session"
)

const typingIndicator = `<div class="message-container"><div class="typing-indicator">` +
	`<div class="dot"></div><div class="dot"></div><div class="dot"></div></div></div>`

// Renderer turns a session into transcript HTML. Questions are escaped and
// answers are rendered as markdown; raw HTML inside an answer is dropped.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			mdhtml.WithHardWraps(),
		),
	)}
}

// Markdown renders text, falling back to escaped text if conversion fails.
func (r *Renderer) Markdown(text string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		log.Warn().Err(err).Msg("Failed to render markdown")
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}

func (r *Renderer) message(m session.Message) string {
	if m.Role == session.RoleUser {
		return `<div class="message-container user-message-container">` +
			`<div class="message-bubble user-bubble">` + html.EscapeString(m.Content) + `</div></div>`
	}
	class := "message-bubble bot-bubble"
	if models.IsErrorAnswer(m.Content) {
		class += " error-bubble"
	}
	return `<div class="message-container"><div class="` + class + `">` + r.Markdown(m.Content) + `</div></div>`
}

// Transcript renders every turn in order, plus the typing indicator while
// the state is pending.
func (r *Renderer) Transcript(s session.State) string {
	out := s.History.Render(r.message)
	if s.Pending {
		out += typingIndicator
	}
	return out
}
