package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-session-watcher/authclient"
	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
	"github.com/jrsteele09/go-session-watcher/sessions"
	"github.com/rs/zerolog/log"
)

var _ sessions.Registrar = (*authclient.HTTPBackend)(nil)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type registerResponse struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

// RegisterHandler creates a student account and points the UI at the login page.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.registrar == nil {
			writeJSONError(w, "unsupported", "this backend does not accept registrations", http.StatusNotImplemented)
			return
		}

		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
			return
		}

		msg, err := s.manager.Register(r.Context(), s.registrar, sessions.RegistrationForm{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
			Confirm:  req.Confirm,
		})
		if err != nil {
			status, code := registerErrorStatus(err)
			log.Err(err).Int("status", status).Msg("RegisterHandler: registration failed")
			writeJSONError(w, code, registerErrorMessage(err), status)
			return
		}

		if msg == "" {
			msg = "Usuario registrado correctamente"
		}
		writeJSON(w, http.StatusCreated, registerResponse{Message: msg, Redirect: s.config.GetLoginURL()})
	}
}

func registerErrorStatus(err error) (int, string) {
	var respErr *authclient.ResponseError
	switch {
	case errors.Is(err, errs.ErrMissingCredentials), errors.Is(err, errs.ErrPasswordMismatch):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &respErr) && respErr.StatusCode < http.StatusInternalServerError:
		return respErr.StatusCode, "registration_rejected"
	default:
		return http.StatusBadGateway, "backend_unavailable"
	}
}

func registerErrorMessage(err error) string {
	var respErr *authclient.ResponseError
	if errors.As(err, &respErr) && respErr.Message != "" {
		return respErr.Message
	}
	switch {
	case errors.Is(err, errs.ErrMissingCredentials):
		return "Completa todos los campos"
	case errors.Is(err, errs.ErrPasswordMismatch):
		return "Las contraseñas no coinciden"
	default:
		return "Error al registrar"
	}
}
