package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-session-watcher/internal/config"
	"github.com/jrsteele09/go-session-watcher/prompt"
	"github.com/jrsteele09/go-session-watcher/server"
	"github.com/jrsteele09/go-session-watcher/sessions"
	"github.com/jrsteele09/go-session-watcher/watcher"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file loaded, using the environment")
	}
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running session agent")
	}
	log.Info().Msg("Session agent stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c.GetEnv())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	backend, err := newBackend(ctx, c)
	if err != nil {
		return err
	}

	queue := prompt.NewQueue()
	var prompter prompt.Prompter = queue
	if c.GetPrompter() == config.PrompterTerminal {
		prompter = prompt.NewTerminal(os.Stdin, os.Stdout)
	}

	manager := sessions.NewManager(store)
	w := watcher.New(manager, backend, prompter, loginNavigator(c.GetLoginURL()), watcher.WithSessionConfig(c))

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           server.New(c, manager, w, backend, queue),
		ReadHeaderTimeout: 10 * time.Second,
	}

	watchDone := make(chan error, 1)
	go func() { watchDone <- w.Run(ctx) }()

	serveDone := make(chan error, 1)
	go func() { serveDone <- listenAndServe(srv) }()

	select {
	case <-ctx.Done():
	case returnError = <-serveDone:
		stop()
	}

	if err := shutdown(srv); err != nil && returnError == nil {
		returnError = err
	}
	if err := <-watchDone; err != nil && !errors.Is(err, context.Canceled) && returnError == nil {
		returnError = err
	}
	return returnError
}

// loginNavigator stands in for the browser redirect: the UI polling the
// control API sees the session gone and goes to the login page itself.
func loginNavigator(loginURL string) watcher.Navigator {
	return watcher.NavigatorFunc(func(context.Context) error {
		log.Warn().Str("url", loginURL).Msg("Session ended, login required")
		return nil
	})
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Control API listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
