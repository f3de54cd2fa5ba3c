package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/go-session-watcher/authclient"
	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
	"github.com/jrsteele09/go-session-watcher/internal/utils"
	"github.com/jrsteele09/go-session-watcher/sessions"
	"github.com/jrsteele09/go-session-watcher/watcher"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// maxBodyBytes bounds request bodies; the largest is a login form.
const maxBodyBytes = 16 << 10

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Route     string `json:"route"`
	Role      string `json:"role"`
	UserID    string `json:"userId,omitempty"`
	TeacherID string `json:"teacherId,omitempty"`
	StudentID string `json:"studentId,omitempty"`
}

// sessionResponse never carries the tokens themselves.
type sessionResponse struct {
	State            watcher.State `json:"state"`
	Active           bool          `json:"active"`
	RemainingSeconds int64         `json:"remainingSeconds"`
	WarningLatched   bool          `json:"warningLatched"`
	RenewalInFlight  bool          `json:"renewalInFlight"`
	TokenTime        *time.Time    `json:"tokenTime,omitempty"`
	Role             string        `json:"role,omitempty"`
	Route            string        `json:"route,omitempty"`
	UserID           string        `json:"userId,omitempty"`
	TeacherID        string        `json:"teacherId,omitempty"`
	StudentID        string        `json:"studentId,omitempty"`
}

type logoutResponse struct {
	Redirect string `json:"redirect"`
}

// SessionStatusHandler reports the watcher state and who is logged in.
func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := s.sessionStatus()
		if err != nil {
			log.Err(err).Msg("SessionStatusHandler: failed to read session")
			writeJSONError(w, "store_unavailable", "failed to read session", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) sessionStatus() (sessionResponse, error) {
	st, err := s.watcher.Status()
	if err != nil {
		return sessionResponse{}, err
	}
	snap, err := s.manager.Snapshot()
	if err != nil {
		return sessionResponse{}, err
	}

	resp := sessionResponse{
		State:            st.State,
		Active:           st.Active,
		RemainingSeconds: int64(st.Remaining / time.Second),
		WarningLatched:   st.WarningLatched,
		RenewalInFlight:  st.RenewalInFlight,
	}
	if snap.Active() {
		resp.TokenTime = utils.Ptr(snap.TokenTime.UTC())
		resp.Role = snap.Role
		resp.UserID = snap.UserID
		resp.TeacherID = snap.TeacherID
		resp.StudentID = snap.StudentID
		if route, err := sessions.RouteForRole(snap.Role); err == nil {
			resp.Route = route
		}
	}
	return resp, nil
}

// LoginHandler authenticates against the backend and starts a session.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
			return
		}

		outcome, err := s.manager.Login(r.Context(), s.auth, req.Username, req.Password)
		if err != nil {
			status, code := loginErrorStatus(err)
			log.Err(err).Int("status", status).Msg("LoginHandler: login failed")
			writeJSONError(w, code, loginErrorMessage(err), status)
			return
		}

		// Refresh the watcher state now instead of waiting for the next tick.
		s.watcher.CheckSession(context.WithoutCancel(r.Context()))

		writeJSON(w, http.StatusOK, loginResponse{
			Route:     outcome.Route,
			Role:      outcome.Snapshot.Role,
			UserID:    outcome.Snapshot.UserID,
			TeacherID: outcome.Snapshot.TeacherID,
			StudentID: outcome.Snapshot.StudentID,
		})
	}
}

func loginErrorStatus(err error) (int, string) {
	var respErr *authclient.ResponseError
	switch {
	case errors.Is(err, errs.ErrMissingCredentials):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, errs.ErrUnknownRole):
		return http.StatusForbidden, "unknown_role"
	case errors.As(err, &respErr) && respErr.StatusCode < http.StatusInternalServerError:
		return http.StatusUnauthorized, "invalid_credentials"
	default:
		return http.StatusBadGateway, "backend_unavailable"
	}
}

// loginErrorMessage prefers the message the backend sent.
func loginErrorMessage(err error) string {
	var respErr *authclient.ResponseError
	if errors.As(err, &respErr) && respErr.Message != "" {
		return respErr.Message
	}
	switch {
	case errors.Is(err, errs.ErrMissingCredentials):
		return "Usuario y contraseña requeridos"
	case errors.Is(err, errs.ErrUnknownRole):
		return "Rol no reconocido"
	case errors.As(err, &respErr):
		return "Credenciales inválidas"
	default:
		return "Error de conexión con el servidor"
	}
}

// LogoutHandler ends the session. It succeeds with or without a session.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.watcher.ForceLogout(r.Context())
		writeJSON(w, http.StatusOK, logoutResponse{Redirect: s.config.GetLoginURL()})
	}
}

// RenewHandler renews the session without waiting for the expiry prompt.
func (s *Server) RenewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A client hanging up must not turn into a failed renewal and a logout.
		err := s.watcher.Renew(context.WithoutCancel(r.Context()))
		switch {
		case err == nil:
		case errors.Is(err, errs.ErrRenewalInProgress):
			writeJSONError(w, "renewal_in_progress", err.Error(), http.StatusConflict)
			return
		case errors.Is(err, errs.ErrSessionChanged):
			writeJSONError(w, "session_changed", "session changed while renewing", http.StatusConflict)
			return
		case errors.Is(err, errs.ErrSessionNotFound), errors.Is(err, errs.ErrMissingRefreshToken):
			writeJSONError(w, "no_session", err.Error(), http.StatusUnauthorized)
			return
		default:
			writeJSONError(w, "refresh_failed", "session could not be renewed", http.StatusBadGateway)
			return
		}

		resp, err := s.sessionStatus()
		if err != nil {
			log.Err(err).Msg("RenewHandler: failed to read session")
			writeJSONError(w, "store_unavailable", "failed to read session", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("writeJSON: failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
