package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// SESSION
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionRenew, ChainMiddleware(s.RenewHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionSignup, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))

	// PROMPTS
	s.RegisterRouteHandler("GET "+RouteSessionPrompt, ChainMiddleware(s.PendingPromptHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionAnswer, ChainMiddleware(s.AnswerPromptHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSessionNotices, ChainMiddleware(s.NoticesHandler(), s.APIMiddleware()...))

	// Preflight for every route above; CorsMiddleware answers it.
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(notFound, s.APIMiddleware()...))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}
