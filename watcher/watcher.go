package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-watcher/authclient"
	"github.com/jrsteele09/go-session-watcher/internal/config"
	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
	"github.com/jrsteele09/go-session-watcher/prompt"
	"github.com/jrsteele09/go-session-watcher/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionManager is the part of sessions.Manager the watcher needs.
type SessionManager interface {
	Snapshot() (sessions.Snapshot, error)
	Renew(result *authclient.RefreshResult, prev sessions.Snapshot, at time.Time) error
	Same(prev sessions.Snapshot) (bool, error)
	Invalidate() error
}

// Refresher mints a new access token from a refresh token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*authclient.RefreshResult, error)
}

// Navigator sends the user back to the login entry point.
type Navigator interface {
	ToLogin(ctx context.Context) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context) error

func (f NavigatorFunc) ToLogin(ctx context.Context) error {
	return f(ctx)
}

// errSuperseded is returned when the window a renewal belonged to was closed,
// or the session it was made for was replaced, while the refresh call was out.
var errSuperseded = fmt.Errorf("renewal superseded: %w", errs.ErrSessionChanged)

// Watcher polls the token age and drives the renew-or-logout decision.
//
// A tick never waits for the user: the prompt, and any renewal it leads to,
// runs as its own task with its own context. Each task carries the generation
// it was started in; anything that closes the window (expiry, logout, an
// external change of the session) bumps the generation, cancels the task and
// makes any late result a no-op.
type Watcher struct {
	manager   SessionManager
	backend   Refresher
	prompter  prompt.Prompter
	navigator Navigator

	tokenLifetime time.Duration
	warningLead   time.Duration
	pollInterval  time.Duration
	nowFunc       func() time.Time
	logger        zerolog.Logger

	lock       sync.Mutex
	state      State
	latchedAt  time.Time // token time of the window whose prompt was raised
	task       *promptTask
	generation uint64
	renewing   bool
	tasks      sync.WaitGroup
}

type promptTask struct {
	generation uint64
	cancel     context.CancelFunc
}

type Option func(*Watcher)

// WithSessionConfig overrides the lifetime, warning lead and poll interval.
func WithSessionConfig(cfg config.SessionConfig) Option {
	return func(w *Watcher) {
		w.tokenLifetime = cfg.GetTokenLifetime()
		w.warningLead = cfg.GetWarningLead()
		w.pollInterval = cfg.GetPollInterval()
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(w *Watcher) {
		w.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

func New(manager SessionManager, backend Refresher, prompter prompt.Prompter, navigator Navigator, options ...Option) *Watcher {
	w := &Watcher{
		manager:   manager,
		backend:   backend,
		prompter:  prompter,
		navigator: navigator,
		logger:    log.Logger,
		state:     StateIdle,
	}
	WithSessionConfig(config.Session{})(w)

	for _, opt := range options {
		opt(w)
	}

	if w.nowFunc == nil {
		w.nowFunc = time.Now
	}
	return w
}

// Run checks the session every poll interval until ctx is done. Logging out
// does not stop the loop; it only makes the checks no-ops until the next login.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.pollInterval).Msg("Session watcher started")
	for {
		select {
		case <-ctx.Done():
			w.lock.Lock()
			w.cancelTaskLocked()
			w.lock.Unlock()
			w.tasks.Wait()
			w.logger.Info().Msg("Session watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.CheckSession(ctx)
		}
	}
}

// CheckSession is one tick. The state is derived from the store every time.
func (w *Watcher) CheckSession(ctx context.Context) {
	snap, err := w.manager.Snapshot()
	if err != nil {
		w.logger.Err(err).Msg("CheckSession: failed to read session, skipping tick")
		return
	}
	now := w.nowFunc()

	w.lock.Lock()
	if !snap.Active() {
		if w.state != StateIdle {
			w.logger.Info().Str("from", w.state.String()).Msg("CheckSession: session gone")
		}
		w.cancelTaskLocked()
		w.latchedAt = time.Time{}
		w.state = StateIdle
		w.lock.Unlock()
		return
	}

	// Someone else renewed or logged in again: that is a new window.
	if !w.latchedAt.IsZero() && !w.latchedAt.Equal(snap.TokenTime) {
		w.cancelTaskLocked()
		w.latchedAt = time.Time{}
	}

	remaining := snap.Remaining(now, w.tokenLifetime)
	switch {
	case remaining <= 0:
		w.logger.Info().Dur("overdue", -remaining).Msg("CheckSession: session expired")
		w.lock.Unlock()
		w.prompter.Notify(ctx, prompt.ExpiredNotice())
		w.ForceLogout(ctx)
		return

	case remaining <= w.warningLead:
		// A renewal already in flight answers the question the prompt would ask.
		if w.latchedAt.IsZero() && !w.renewing {
			w.latchedAt = snap.TokenTime
			w.state = StateWarningPending
			w.logger.Info().Dur("remaining", remaining).Msg("CheckSession: session about to expire")
			w.startPromptTaskLocked(ctx)
			w.state = StateWarningShown
		}

	default:
		if w.latchedAt.IsZero() {
			w.state = StateActive
		}
	}
	w.lock.Unlock()
}

// Renew runs one renewal outside the prompt, for example when the user asks
// for it directly. A pending prompt is withdrawn. A failed renewal ends the
// session, unless the session was replaced or ended while it ran.
func (w *Watcher) Renew(ctx context.Context) error {
	w.lock.Lock()
	if w.renewing {
		w.lock.Unlock()
		return errs.ErrRenewalInProgress
	}
	w.cancelTaskLocked()
	gen := w.generation
	w.renewing = true
	w.lock.Unlock()

	if err := w.renew(ctx, gen); err != nil {
		if errors.Is(err, errSuperseded) || !w.isCurrent(gen) {
			// The session this renewal was for is already gone; leave its successor alone.
			w.logger.Info().Err(err).Msg("Renew: session changed while renewing, result discarded")
			if !errors.Is(err, errSuperseded) {
				err = fmt.Errorf("%w: %w", errSuperseded, err)
			}
			return err
		}
		w.logger.Err(err).Msg("Renew: renewal failed, logging out")
		w.ForceLogout(ctx)
		return err
	}
	return nil
}

// ForceLogout wipes the store and sends the user to the login page. It is
// safe to call at any time, any number of times.
func (w *Watcher) ForceLogout(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	w.lock.Lock()
	w.cancelTaskLocked()
	w.latchedAt = time.Time{}
	w.state = StateExpired
	w.lock.Unlock()

	if err := w.manager.Invalidate(); err != nil {
		w.logger.Err(err).Msg("ForceLogout: failed to clear session")
	}
	if err := w.navigator.ToLogin(ctx); err != nil {
		w.logger.Err(err).Msg("ForceLogout: failed to navigate to login")
	}

	w.lock.Lock()
	w.state = StateIdle
	w.lock.Unlock()
	w.logger.Info().Msg("ForceLogout: session ended")
}

// State returns the current state.
func (w *Watcher) State() State {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.state
}

// Status combines the watcher state with a fresh read of the session.
func (w *Watcher) Status() (Status, error) {
	snap, err := w.manager.Snapshot()
	if err != nil {
		return Status{}, err
	}

	w.lock.Lock()
	defer w.lock.Unlock()
	st := Status{
		State:           w.state,
		Active:          snap.Active(),
		WarningLatched:  !w.latchedAt.IsZero(),
		RenewalInFlight: w.renewing,
	}
	if snap.Active() {
		st.Remaining = max(snap.Remaining(w.nowFunc(), w.tokenLifetime), 0)
	}
	return st, nil
}

// Wait blocks until no prompt task is running.
func (w *Watcher) Wait() {
	w.tasks.Wait()
}

func (w *Watcher) startPromptTaskLocked(ctx context.Context) {
	w.cancelTaskLocked()
	taskCtx, cancel := context.WithCancel(ctx)
	w.task = &promptTask{generation: w.generation, cancel: cancel}

	w.tasks.Add(1)
	go func(gen uint64) {
		defer w.tasks.Done()
		defer cancel()
		w.runPromptTask(taskCtx, gen)
	}(w.generation)
}

// cancelTaskLocked closes the current window: any outstanding task is
// cancelled and its results will be ignored.
func (w *Watcher) cancelTaskLocked() {
	w.generation++
	if w.task != nil {
		w.task.cancel()
		w.task = nil
	}
}

func (w *Watcher) isCurrent(gen uint64) bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.generation == gen
}

func (w *Watcher) runPromptTask(ctx context.Context, gen uint64) {
	choice, err := w.prompter.Confirm(ctx, prompt.ExpiryWarning())
	// A cancelled task never acts, shutdown included.
	if ctx.Err() != nil || !w.isCurrent(gen) {
		return
	}
	if err != nil {
		w.logger.Err(err).Msg("Prompt failed, treating as logout")
		choice = prompt.ChoiceDismissed
	}
	w.logger.Info().Str("choice", choice.String()).Msg("Prompt answered")

	if choice == prompt.ChoiceRenew {
		w.lock.Lock()
		if w.generation != gen || w.renewing {
			// Closed meanwhile, or a direct Renew call owns the renewal.
			w.lock.Unlock()
			return
		}
		w.renewing = true
		w.lock.Unlock()

		err := w.renew(ctx, gen)
		if err == nil || errors.Is(err, errSuperseded) || ctx.Err() != nil {
			return
		}
		w.logger.Err(err).Msg("Renewal failed, logging out")
	}

	if !w.isCurrent(gen) {
		return
	}
	w.ForceLogout(ctx)
}

// renew makes exactly one refresh call. The caller must have set w.renewing.
func (w *Watcher) renew(ctx context.Context, gen uint64) error {
	defer func() {
		w.lock.Lock()
		w.renewing = false
		w.lock.Unlock()
	}()

	snap, err := w.manager.Snapshot()
	if err != nil {
		return errs.Wrapf(err, "renew Snapshot")
	}
	if !snap.Active() {
		return errs.ErrSessionNotFound
	}
	if snap.RefreshToken == "" {
		return errs.ErrMissingRefreshToken
	}

	result, err := w.backend.Refresh(ctx, snap.RefreshToken)
	if err != nil {
		if same, serr := w.manager.Same(snap); serr == nil && !same {
			return fmt.Errorf("%w: %w", errSuperseded, err)
		}
		return fmt.Errorf("%w: %w", errs.ErrRefreshFailed, err)
	}

	w.lock.Lock()
	if w.generation != gen {
		w.lock.Unlock()
		return errSuperseded
	}
	at := w.nowFunc()
	if err := w.manager.Renew(result, snap, at); err != nil {
		w.lock.Unlock()
		if errors.Is(err, errs.ErrSessionChanged) || errors.Is(err, errs.ErrSessionNotFound) {
			return fmt.Errorf("%w: %w", errSuperseded, err)
		}
		return errs.Wrapf(err, "renew store")
	}
	w.latchedAt = time.Time{}
	w.state = StateActive
	if w.task != nil && w.task.generation == gen {
		w.task = nil
	}
	w.lock.Unlock()

	w.logger.Info().Time("tokenTime", at).Msg("Session renewed")
	w.prompter.Notify(ctx, prompt.RenewedNotice())
	return nil
}
