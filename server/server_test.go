package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-watcher/authclient"
	"github.com/jrsteele09/go-session-watcher/internal/config"
	"github.com/jrsteele09/go-session-watcher/prompt"
	"github.com/jrsteele09/go-session-watcher/server"
	"github.com/jrsteele09/go-session-watcher/sessions"
	"github.com/jrsteele09/go-session-watcher/tokenstore/memstore"
	"github.com/jrsteele09/go-session-watcher/watcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fakeBackend struct {
	login       *authclient.LoginResult
	loginErr    error
	refresh     *authclient.RefreshResult
	onRefresh   func()
	registered  []authclient.Registration
	registerErr error
}

func (b *fakeBackend) Login(context.Context, string, string) (*authclient.LoginResult, error) {
	return b.login, b.loginErr
}

func (b *fakeBackend) Refresh(context.Context, string) (*authclient.RefreshResult, error) {
	if b.onRefresh != nil {
		b.onRefresh()
	}
	if b.refresh == nil {
		return nil, &authclient.ResponseError{StatusCode: http.StatusUnauthorized}
	}
	return b.refresh, nil
}

func (b *fakeBackend) Register(_ context.Context, reg authclient.Registration) (string, error) {
	if b.registerErr != nil {
		return "", b.registerErr
	}
	b.registered = append(b.registered, reg)
	return "Usuario registrado correctamente", nil
}

// loginOnly hides every method but Login, like the OAuth2 backend.
type loginOnly struct {
	sessions.Authenticator
}

type countingNavigator struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNavigator) ToLogin(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func (n *countingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type testFixture struct {
	now       time.Time
	store     *memstore.MemStore
	manager   *sessions.Manager
	backend   *fakeBackend
	queue     *prompt.Queue
	navigator *countingNavigator
	watcher   *watcher.Watcher
	server    *server.Server
}

func setupFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("ALLOWED_ORIGINS", "http://app.test")
	t.Setenv("LOGIN_URL", "/login.html")

	f := &testFixture{
		now:   testNow,
		store: memstore.New(),
		backend: &fakeBackend{
			login: &authclient.LoginResult{
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				UserID:       "3",
				TeacherID:    "12",
				Roles:        []string{"Docente"},
			},
			refresh: &authclient.RefreshResult{AccessToken: "access-2"},
		},
		queue:     prompt.NewQueue(),
		navigator: &countingNavigator{},
	}
	clock := func() time.Time { return f.now }
	f.manager = sessions.NewManager(f.store, sessions.WithNowFunc(clock))
	f.watcher = watcher.New(f.manager, f.backend, f.queue, f.navigator,
		watcher.WithNowFunc(clock),
		watcher.WithLogger(zerolog.Nop()),
	)
	f.server = server.New(config.New(), f.manager, f.watcher, f.backend, f.queue)
	t.Cleanup(func() {
		f.watcher.ForceLogout(context.Background())
		f.watcher.Wait()
	})
	return f
}

func (f *testFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type sessionBody struct {
	State            string `json:"state"`
	Active           bool   `json:"active"`
	RemainingSeconds int64  `json:"remainingSeconds"`
	WarningLatched   bool   `json:"warningLatched"`
	Role             string `json:"role"`
	Route            string `json:"route"`
	TeacherID        string `json:"teacherId"`
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func TestLoginStartsSession(t *testing.T) {
	f := setupFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteSessionLogin, `{"username":" ana ","password":"secreto"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[map[string]string](t, rec)
	require.Equal(t, "/docentes", login["route"])
	require.Equal(t, "docente", login["role"])
	require.Equal(t, "12", login["teacherId"])

	rec = f.do(t, http.MethodGet, server.RouteSession, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotContains(t, rec.Body.String(), "access-1")
	require.NotContains(t, rec.Body.String(), "refresh-1")

	st := decode[sessionBody](t, rec)
	require.Equal(t, "active", st.State)
	require.True(t, st.Active)
	require.Equal(t, int64(600), st.RemainingSeconds)
	require.Equal(t, "/docentes", st.Route)
	require.Equal(t, "12", st.TeacherID)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		login      *authclient.LoginResult
		loginErr   error
		wantStatus int
		wantError  string
		wantDesc   string
	}{
		{
			name:       "missing password",
			body:       `{"username":"ana","password":"  "}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "malformed body",
			body:       `{"username":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "rejected by backend",
			body:       `{"username":"ana","password":"mala"}`,
			loginErr:   &authclient.ResponseError{StatusCode: http.StatusUnauthorized, Message: "Contraseña incorrecta"},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_credentials",
			wantDesc:   "Contraseña incorrecta",
		},
		{
			name:       "role without a view",
			body:       `{"username":"ana","password":"secreto"}`,
			login:      &authclient.LoginResult{AccessToken: "a", Roles: []string{"conserje"}},
			wantStatus: http.StatusForbidden,
			wantError:  "unknown_role",
		},
		{
			name:       "backend down",
			body:       `{"username":"ana","password":"secreto"}`,
			loginErr:   &authclient.ResponseError{StatusCode: http.StatusServiceUnavailable},
			wantStatus: http.StatusBadGateway,
			wantError:  "backend_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t)
			if tt.login != nil {
				f.backend.login = tt.login
			}
			f.backend.loginErr = tt.loginErr

			rec := f.do(t, http.MethodPost, server.RouteSessionLogin, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
			body := decode[errorBody](t, rec)
			require.Equal(t, tt.wantError, body.Error)
			if tt.wantDesc != "" {
				require.Equal(t, tt.wantDesc, body.Description)
			}
			require.Equal(t, 0, f.store.Len())
		})
	}
}

func TestPromptAnsweredThroughAPI(t *testing.T) {
	f := setupFixture(t)
	_, err := f.manager.Begin(f.backend.login, "docente")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, server.RouteSessionPrompt, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	f.now = testNow.Add(500 * time.Second)
	f.watcher.CheckSession(context.Background())

	var pending prompt.Prompt
	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, server.RouteSessionPrompt, "")
		if rec.Code != http.StatusOK {
			return false
		}
		pending = decode[prompt.Prompt](t, rec)
		return true
	}, 2*time.Second, 5*time.Millisecond)
	require.NotEmpty(t, pending.ID)
	require.Equal(t, prompt.ExpiryWarning().Title, pending.Title)

	st := decode[sessionBody](t, f.do(t, http.MethodGet, server.RouteSession, ""))
	require.Equal(t, "warning_shown", st.State)
	require.True(t, st.WarningLatched)

	rec = f.do(t, http.MethodPost, "/session/prompt/"+pending.ID, `{"choice":"renew"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	f.watcher.Wait()

	st = decode[sessionBody](t, f.do(t, http.MethodGet, server.RouteSession, ""))
	require.Equal(t, "active", st.State)
	require.Equal(t, int64(600), st.RemainingSeconds)
	require.Zero(t, f.navigator.count())

	notices := decode[[]prompt.Notice](t, f.do(t, http.MethodGet, server.RouteSessionNotices, ""))
	require.Len(t, notices, 1)
	require.Equal(t, prompt.LevelSuccess, notices[0].Level)
}

func TestAnswerPromptErrors(t *testing.T) {
	f := setupFixture(t)

	rec := f.do(t, http.MethodPost, "/session/prompt/unknown", `{"choice":"logout"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/session/prompt/unknown", `{"choice":"maybe"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_choice", decode[errorBody](t, rec).Error)
}

func TestNoticesStartEmpty(t *testing.T) {
	f := setupFixture(t)
	rec := f.do(t, http.MethodGet, server.RouteSessionNotices, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestLogout(t *testing.T) {
	f := setupFixture(t)
	_, err := f.manager.Begin(f.backend.login, "docente")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, server.RouteSessionLogout, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/login.html", decode[map[string]string](t, rec)["redirect"])
	require.Equal(t, 0, f.store.Len())
	require.Equal(t, 1, f.navigator.count())

	// Logging out twice is fine.
	rec = f.do(t, http.MethodPost, server.RouteSessionLogout, "")
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[sessionBody](t, f.do(t, http.MethodGet, server.RouteSession, ""))
	require.Equal(t, "idle", st.State)
	require.False(t, st.Active)
}

func TestRenewEndpoint(t *testing.T) {
	f := setupFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteSessionRenew, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	_, err := f.manager.Begin(f.backend.login, "docente")
	require.NoError(t, err)
	f.now = testNow.Add(7 * time.Minute)

	rec = f.do(t, http.MethodPost, server.RouteSessionRenew, "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[sessionBody](t, rec)
	require.True(t, st.Active)
	require.Equal(t, int64(600), st.RemainingSeconds)

	f.backend.refresh = nil
	rec = f.do(t, http.MethodPost, server.RouteSessionRenew, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, 0, f.store.Len())
}

func TestRenewOfReplacedSessionConflicts(t *testing.T) {
	f := setupFixture(t)
	_, err := f.manager.Begin(f.backend.login, "docente")
	require.NoError(t, err)
	f.now = testNow.Add(7 * time.Minute)

	// Another login lands while the refresh call is out.
	f.backend.onRefresh = func() {
		_, err := f.manager.Begin(&authclient.LoginResult{AccessToken: "access-B", RefreshToken: "refresh-B"}, "estudiante")
		require.NoError(t, err)
	}

	rec := f.do(t, http.MethodPost, server.RouteSessionRenew, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "session_changed", decode[errorBody](t, rec).Error)

	snap, err := f.manager.Snapshot()
	require.NoError(t, err)
	require.Equal(t, "access-B", snap.AccessToken)
	require.Zero(t, f.navigator.count())
}

func TestRegister(t *testing.T) {
	f := setupFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteSessionSignup,
		`{"username":"luis","email":"luis@colegio.test","password":"secreto","confirm":"secreto"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[map[string]string](t, rec)
	require.Equal(t, "Usuario registrado correctamente", body["message"])
	require.Equal(t, "/login.html", body["redirect"])
	require.Equal(t, []authclient.Registration{{
		Username: "luis",
		Email:    "luis@colegio.test",
		Password: "secreto",
		Role:     "Estudiante",
	}}, f.backend.registered)
	require.Equal(t, 0, f.store.Len())
}

func TestRegisterFailures(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		registerErr error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{
			name:        "missing field",
			body:        `{"username":"luis","password":"a","confirm":"a"}`,
			wantStatus:  http.StatusBadRequest,
			wantError:   "invalid_request",
			wantMessage: "Completa todos los campos",
		},
		{
			name:        "password mismatch",
			body:        `{"username":"luis","email":"l@x.test","password":"a","confirm":"b"}`,
			wantStatus:  http.StatusBadRequest,
			wantError:   "invalid_request",
			wantMessage: "Las contraseñas no coinciden",
		},
		{
			name:        "backend rejects",
			body:        `{"username":"luis","email":"l@x.test","password":"a","confirm":"a"}`,
			registerErr: &authclient.ResponseError{StatusCode: http.StatusConflict, Message: "El correo ya está registrado"},
			wantStatus:  http.StatusConflict,
			wantError:   "registration_rejected",
			wantMessage: "El correo ya está registrado",
		},
		{
			name:        "backend down",
			body:        `{"username":"luis","email":"l@x.test","password":"a","confirm":"a"}`,
			registerErr: &authclient.ResponseError{StatusCode: http.StatusInternalServerError},
			wantStatus:  http.StatusBadGateway,
			wantError:   "backend_unavailable",
			wantMessage: "Error al registrar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t)
			f.backend.registerErr = tt.registerErr

			rec := f.do(t, http.MethodPost, server.RouteSessionSignup, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
			body := decode[errorBody](t, rec)
			require.Equal(t, tt.wantError, body.Error)
			require.Equal(t, tt.wantMessage, body.Description)
			require.Empty(t, f.backend.registered)
		})
	}
}

func TestRegisterUnsupportedBackend(t *testing.T) {
	f := setupFixture(t)
	srv := server.New(config.New(), f.manager, f.watcher, loginOnly{f.backend}, f.queue)

	req := httptest.NewRequest(http.MethodPost, server.RouteSessionSignup,
		strings.NewReader(`{"username":"luis","email":"l@x.test","password":"a","confirm":"a"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
	require.Empty(t, f.backend.registered)
}

func TestCorsPreflight(t *testing.T) {
	f := setupFixture(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteSessionLogin, nil)
	req.Header.Set("Origin", "http://app.test")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodOptions, server.RouteSessionLogin, nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorsOnRequest(t *testing.T) {
	f := setupFixture(t)

	req := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
	req.Header.Set("Origin", "http://app.test")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupFixture(t)
	handler := server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}, f.server.APIMiddleware()...)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal_error", decode[errorBody](t, rec).Error)
}

func TestRoutesRegistered(t *testing.T) {
	f := setupFixture(t)
	require.Contains(t, f.server.Routes(), "POST "+server.RouteSessionAnswer)
	require.Contains(t, f.server.Routes(), "GET "+server.RouteSessionNotices)
	require.Contains(t, f.server.Routes(), "POST "+server.RouteSessionSignup)
}
