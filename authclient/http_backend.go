package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
	"github.com/jrsteele09/go-session-watcher/internal/utils"
)

const (
	RouteLogin    = "/api/auth/login"
	RouteRefresh  = "/api/auth/refresh"
	RouteRegister = "/api/auth/register"

	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

var _ Backend = (*HTTPBackend)(nil)

// HTTPBackend talks to the school API's JSON auth endpoints.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
}

type HTTPBackendOption func(*HTTPBackend)

func WithHTTPClient(client *http.Client) HTTPBackendOption {
	return func(b *HTTPBackend) {
		b.httpClient = client
	}
}

func NewHTTPBackend(baseURL string, timeout time.Duration, options ...HTTPBackendOption) *HTTPBackend {
	b := &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

type loginRequest struct {
	Username string `json:"nombre_usuario"`
	Password string `json:"contrasena"`
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Message      string `json:"message"`
	User         *struct {
		ID    flexibleID `json:"id_usuario"`
		Roles []string   `json:"roles"`
	} `json:"usuario"`
	Teacher *struct {
		ID flexibleID `json:"id_docente"`
	} `json:"docente"`
	Student *struct {
		ID flexibleID `json:"id_estudiante"`
	} `json:"estudiante"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type registerRequest struct {
	Username string `json:"nombre_usuario"`
	Email    string `json:"correo"`
	Password string `json:"contrasena"`
	Role     string `json:"rol"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Login posts the credentials and decodes the session tokens and role ids.
func (b *HTTPBackend) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var resp loginResponse
	if err := b.post(ctx, RouteLogin, loginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errs.Wrapf(errs.ErrMalformedResponse, "login response has no access token")
	}

	result := &LoginResult{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	// Only the objects matching the user's roles are present.
	user := utils.Value(resp.User)
	result.UserID = string(user.ID)
	result.Roles = user.Roles
	result.TeacherID = string(utils.Value(resp.Teacher).ID)
	result.StudentID = string(utils.Value(resp.Student).ID)
	return result, nil
}

// Refresh exchanges a refresh token for a new access token. Exactly one
// request is made; there is no retry.
func (b *HTTPBackend) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	var resp refreshResponse
	if err := b.post(ctx, RouteRefresh, refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errs.Wrapf(errs.ErrMalformedResponse, "refresh response has no access token")
	}
	return &RefreshResult{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// Register creates an account and returns the backend's confirmation message.
// It does not log the new user in.
func (b *HTTPBackend) Register(ctx context.Context, reg Registration) (string, error) {
	var resp messageResponse
	err := b.post(ctx, RouteRegister, registerRequest{
		Username: reg.Username,
		Email:    reg.Email,
		Password: reg.Password,
		Role:     reg.Role,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (b *HTTPBackend) post(ctx context.Context, route string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+route, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", route, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		return &ResponseError{StatusCode: resp.StatusCode, Message: e.Message}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errs.Wrapf(errs.ErrMalformedResponse, "POST %s: %s", route, err.Error())
	}
	return nil
}

// flexibleID accepts ids sent either as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*f = flexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexibleID(n.String())
	return nil
}
