package sessions

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-session-watcher/authclient"
	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
	"github.com/rs/zerolog/log"
)

// RegisteredRole is the role every self-registered account gets.
const RegisteredRole = "Estudiante"

// Registrar is implemented by backends that accept new accounts.
type Registrar interface {
	Register(ctx context.Context, reg authclient.Registration) (string, error)
}

// RegistrationForm is what the sign-up page submits.
type RegistrationForm struct {
	Username string
	Email    string
	Password string
	Confirm  string
}

// Validate trims the fields and checks them the way the sign-up page does
// before anything is sent.
func (f RegistrationForm) Validate() (authclient.Registration, error) {
	username := strings.TrimSpace(f.Username)
	email := strings.TrimSpace(f.Email)
	password := strings.TrimSpace(f.Password)
	confirm := strings.TrimSpace(f.Confirm)

	if username == "" || email == "" || password == "" || confirm == "" {
		return authclient.Registration{}, errs.ErrMissingCredentials
	}
	if password != confirm {
		return authclient.Registration{}, errs.ErrPasswordMismatch
	}
	return authclient.Registration{
		Username: username,
		Email:    email,
		Password: password,
		Role:     RegisteredRole,
	}, nil
}

// Register creates a student account. The stored session is left alone; the
// new user logs in afterwards.
func (m *Manager) Register(ctx context.Context, reg Registrar, form RegistrationForm) (string, error) {
	registration, err := form.Validate()
	if err != nil {
		return "", err
	}

	msg, err := reg.Register(ctx, registration)
	if err != nil {
		return "", errs.Wrapf(err, "Manager.Register")
	}
	log.Info().Str("username", registration.Username).Msg("Register: account created")
	return msg, nil
}
