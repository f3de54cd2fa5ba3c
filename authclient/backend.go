package authclient

import (
	"context"
	"fmt"
)

// LoginResult is what a successful login yields.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	TeacherID    string
	StudentID    string
	Roles        []string
}

// RefreshResult is what a successful refresh yields. RefreshToken is only set
// when the backend rotates refresh tokens.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// Backend is the remote authentication service.
type Backend interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
}

// Registration is a new account request. The school API only creates
// student accounts from the public form.
type Registration struct {
	Username string
	Email    string
	Password string
	Role     string
}

// ResponseError is returned when the backend answers with a non-2xx status.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("auth backend returned status %d: %s", e.StatusCode, e.Message)
}
