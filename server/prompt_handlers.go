package server

import (
	"errors"
	"net/http"

	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
	"github.com/jrsteele09/go-session-watcher/prompt"
)

type answerRequest struct {
	Choice string `json:"choice"`
}

// PendingPromptHandler returns the prompt waiting for an answer, or 204.
func (s *Server) PendingPromptHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.queue.Pending()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) AnswerPromptHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
			return
		}
		choice, err := prompt.ParseChoice(req.Choice)
		if err != nil {
			writeJSONError(w, "invalid_choice", err.Error(), http.StatusBadRequest)
			return
		}

		if err := s.queue.Answer(r.PathValue("id"), choice); err != nil {
			if errors.Is(err, errs.ErrPromptNotFound) {
				writeJSONError(w, "prompt_not_found", err.Error(), http.StatusNotFound)
				return
			}
			writeJSONError(w, "invalid_choice", err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) NoticesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notices := s.queue.Notices()
		if notices == nil {
			notices = []prompt.Notice{}
		}
		writeJSON(w, http.StatusOK, notices)
	}
}
