package sessions

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-watcher/authclient"
	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
	"github.com/jrsteele09/go-session-watcher/tokenstore"
	"github.com/rs/zerolog/log"
)

// Authenticator is the login half of authclient.Backend.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*authclient.LoginResult, error)
}

// LoginOutcome is returned by a successful Login.
type LoginOutcome struct {
	Route    string
	Snapshot Snapshot
}

// Manager is the only writer of the session keys in the token store. Other
// code reads the session through Snapshot and ends it through Invalidate.
type Manager struct {
	store   tokenstore.Store
	nowFunc func() time.Time
	lock    sync.Mutex
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func NewManager(store tokenstore.Store, options ...ManagerOption) *Manager {
	m := &Manager{
		store: store,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Snapshot reads the session record from the store. It never caches: the
// store is shared and may be changed by anyone.
func (m *Manager) Snapshot() (Snapshot, error) {
	var snap Snapshot
	read := func(key string, dst *string) error {
		v, _, err := m.store.Get(key)
		if err != nil {
			return errs.Wrapf(err, "Manager.Snapshot %s", key)
		}
		*dst = v
		return nil
	}

	var tokenTime string
	for key, dst := range map[string]*string{
		tokenstore.KeyTokenTime:    &tokenTime,
		tokenstore.KeyAccessToken:  &snap.AccessToken,
		tokenstore.KeyRefreshToken: &snap.RefreshToken,
		tokenstore.KeyRole:         &snap.Role,
		tokenstore.KeyUserID:       &snap.UserID,
		tokenstore.KeyTeacherID:    &snap.TeacherID,
		tokenstore.KeyStudentID:    &snap.StudentID,
	} {
		if err := read(key, dst); err != nil {
			return Snapshot{}, err
		}
	}
	snap.TokenTime = parseTokenTime(tokenTime)
	return snap, nil
}

// Begin stores a freshly logged in session. The access token and the token
// time are always written in the same call.
func (m *Manager) Begin(result *authclient.LoginResult, role string) (Snapshot, error) {
	if result == nil || result.AccessToken == "" {
		return Snapshot{}, errs.ErrMissingAccessToken
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	// A new login replaces whatever was stored before, ids of another role included.
	if err := m.store.Clear(); err != nil {
		return Snapshot{}, errs.Wrapf(err, "Manager.Begin Clear")
	}

	values := map[string]string{
		tokenstore.KeyAccessToken: result.AccessToken,
		tokenstore.KeyTokenTime:   formatTokenTime(m.nowFunc()),
	}
	optional := map[string]string{
		tokenstore.KeyRefreshToken: result.RefreshToken,
		tokenstore.KeyRole:         role,
		tokenstore.KeyUserID:       result.UserID,
		tokenstore.KeyTeacherID:    result.TeacherID,
		tokenstore.KeyStudentID:    result.StudentID,
	}
	for k, v := range optional {
		if v != "" {
			values[k] = v
		}
	}
	if err := m.store.SetMany(values); err != nil {
		return Snapshot{}, errs.Wrapf(err, "Manager.Begin SetMany")
	}
	return m.Snapshot()
}

// Renew replaces the access token and stamps the token time with at. Both
// keys are written together or not at all. prev is the snapshot the refresh
// was made from: if the stored session is no longer that one (logged out, or
// replaced by another login or renewal) nothing is written.
func (m *Manager) Renew(result *authclient.RefreshResult, prev Snapshot, at time.Time) error {
	if result == nil || result.AccessToken == "" {
		return errs.ErrMissingAccessToken
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	v, ok, err := m.store.Get(tokenstore.KeyTokenTime)
	if err != nil {
		return errs.Wrapf(err, "Manager.Renew Get")
	}
	tokenTime := parseTokenTime(v)
	if !ok || tokenTime.IsZero() {
		return errs.ErrSessionNotFound
	}
	refreshToken, _, err := m.store.Get(tokenstore.KeyRefreshToken)
	if err != nil {
		return errs.Wrapf(err, "Manager.Renew Get")
	}
	if !tokenTime.Equal(prev.TokenTime) || refreshToken != prev.RefreshToken {
		return errs.ErrSessionChanged
	}

	values := map[string]string{
		tokenstore.KeyAccessToken: result.AccessToken,
		tokenstore.KeyTokenTime:   formatTokenTime(at),
	}
	if result.RefreshToken != "" {
		values[tokenstore.KeyRefreshToken] = result.RefreshToken
	}
	if err := m.store.SetMany(values); err != nil {
		return errs.Wrapf(err, "Manager.Renew SetMany")
	}
	return nil
}

// Same reports whether prev still describes the stored session.
func (m *Manager) Same(prev Snapshot) (bool, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return false, err
	}
	return snap.Active() && snap.TokenTime.Equal(prev.TokenTime) && snap.RefreshToken == prev.RefreshToken, nil
}

// Invalidate wipes the whole store. Calling it with no session is harmless.
func (m *Manager) Invalidate() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if err := m.store.Clear(); err != nil {
		return errs.Wrapf(err, "Manager.Invalidate Clear")
	}
	return nil
}

// Login authenticates against the backend and stores the session. The landing
// route comes from the first role; a user whose role has no view is not logged in.
func (m *Manager) Login(ctx context.Context, auth Authenticator, username, password string) (*LoginOutcome, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errs.ErrMissingCredentials
	}

	result, err := auth.Login(ctx, username, password)
	if err != nil {
		return nil, errs.Wrapf(err, "Manager.Login")
	}
	if result.AccessToken == "" {
		return nil, errs.ErrMissingAccessToken
	}

	roles := result.Roles
	if len(roles) == 0 {
		// Some deployments only put the roles in the token.
		if claims, err := ParseClaims(result.AccessToken); err == nil {
			roles = claims.Roles
		}
	}
	var role string
	if len(roles) > 0 {
		role = strings.ToLower(strings.TrimSpace(roles[0]))
	}
	route, err := RouteForRole(role)
	if err != nil {
		log.Warn().Str("role", role).Msg("Login: role has no landing route")
		return nil, err
	}

	snap, err := m.Begin(result, role)
	if err != nil {
		return nil, err
	}
	log.Info().Str("role", role).Str("route", route).Msg("Login: session started")
	return &LoginOutcome{Route: route, Snapshot: snap}, nil
}

func parseTokenTime(v string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func formatTokenTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
