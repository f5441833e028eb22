// Package server serves the chat page and its interaction endpoint.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"resume-rag/internal/config"
	"resume-rag/internal/helper"
)

//go:embed templates/chat.html
var templates embed.FS

const requestIDHeader = "X-Request-Id"

// Asker answers one question; failures come back as error answers.
type Asker interface {
	Ask(ctx context.Context, question string) string
}

// PageData is the static content of the chat page.
type PageData struct {
	Title       string
	Subtitle    string
	Hint        string
	Placeholder string
	Examples    []string
}

var DefaultPage = PageData{
	Title:       "Professional Profile Assistant",
	Subtitle:    "AI-powered CV analysis for hiring managers",
	Hint:        "Ask about experience, technical skills, projects, or book recommendations",
	Placeholder: "Ask about experience, skills, or projects...",
	Examples: []string{
		"Current role and company?",
		"Technical skills?",
		"Recent projects?",
		"Book recommendations?",
	},
}

type Server struct {
	asker    Asker
	limiter  *rate.Limiter
	renderer *Renderer
	page     *template.Template
	pageData PageData
}

func New(asker Asker, cfg config.ServerConfig, page PageData) (*Server, error) {
	tmpl, err := template.ParseFS(templates, "templates/chat.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse chat page: %w", err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Server{
		asker:    asker,
		limiter:  rate.NewLimiter(limit, burst),
		renderer: NewRenderer(),
		page:     tmpl,
		pageData: page,
	}, nil
}

// Handler is the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/chat", s.handleChat)

	var h http.Handler = mux
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	})(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = requestID(h)
	h = hlog.NewHandler(log.Logger)(h)
	return h
}

// requestID tags the request logger and the response with a UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := helper.RequestID(r.Header.Get(requestIDHeader))
		w.Header().Set(requestIDHeader, id)
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("req_id", id)
		})
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, s.pageData); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to render chat page")
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("Serving chat")
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
