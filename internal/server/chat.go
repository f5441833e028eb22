package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"resume-rag/internal/models"
	"resume-rag/internal/session"
)

const (
	TypeSubmitQuestion = "submit_question"
	TypeTimerTick      = "timer_tick"

	maxBodyBytes = 1 << 20
)

type ChatRequest struct {
	Type         string          `json:"type"`
	UserInput    string          `json:"user_input"`
	PriorHistory session.History `json:"prior_history"`
}

type ChatResponse struct {
	UpdatedHistory       session.History `json:"updated_history"`
	RenderedTranscript   string          `json:"rendered_transcript"`
	ClearedInputField    string          `json:"cleared_input_field"`
	TypingIndicatorState bool            `json:"typing_indicator_state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toRequest picks the session request for the wire type; an empty type is a submission.
func (c ChatRequest) toRequest() (session.Request, error) {
	switch c.Type {
	case "", TypeSubmitQuestion:
		return session.SubmitQuestion{Question: c.UserInput}, nil
	case TypeTimerTick:
		return session.TimerTick{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown request type %q", models.ErrInvalidInput, c.Type)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Errorf("%w: %v", models.ErrInvalidInput, err).Error()})
		return
	}
	sreq, err := req.toRequest()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if submit, ok := sreq.(session.SubmitQuestion); ok && strings.TrimSpace(submit.Question) != "" && !s.limiter.Allow() {
		logger.Warn().Msg("Rate limit exceeded")
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: models.ErrRateLimited.Error()})
		return
	}

	state := session.State{History: req.PriorHistory}
	next, ran := session.Handle(r.Context(), state, sreq, s.asker.Ask)

	resp := ChatResponse{
		UpdatedHistory:       next.History,
		RenderedTranscript:   s.renderer.Transcript(next),
		ClearedInputField:    req.UserInput,
		TypingIndicatorState: next.Pending,
	}
	if resp.UpdatedHistory == nil {
		resp.UpdatedHistory = session.History{}
	}
	if ran {
		resp.ClearedInputField = ""
		last := next.History[len(next.History)-1]
		logger.Info().
			Int("turns", len(next.History)).
			Bool("error", models.IsErrorAnswer(last.Answer)).
			Msg("Answered chat turn")
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
