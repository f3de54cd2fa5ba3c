package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-session-watcher/internal/config"
	"github.com/jrsteele09/go-session-watcher/prompt"
	"github.com/jrsteele09/go-session-watcher/sessions"
	"github.com/jrsteele09/go-session-watcher/watcher"
	"github.com/rs/zerolog/log"
)

// Server is the local control API of the session agent. It lets a UI log in,
// answer the expiry prompt and read the session status.
type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	manager *sessions.Manager
	watcher *watcher.Watcher
	auth    sessions.Authenticator
	queue   *prompt.Queue

	// registrar is nil when the backend cannot create accounts.
	registrar sessions.Registrar
}

func New(config config.Config, manager *sessions.Manager, w *watcher.Watcher, auth sessions.Authenticator, queue *prompt.Queue) *Server {
	s := &Server{
		env:     config.GetEnv(),
		mux:     http.NewServeMux(),
		config:  config,
		manager: manager,
		watcher: w,
		auth:    auth,
		queue:   queue,
	}
	s.registrar, _ = auth.(sessions.Registrar)

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Info().Msg(formatRoute(method, path))
	}
}

func formatRoute(method, path string) string {
	return fmt.Sprintf("[%-19s] %s", colourMethod(method), path)
}
