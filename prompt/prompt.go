package prompt

import (
	"context"
	"strings"
	"time"

	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
)

// Choice is the user's answer to a renew-or-logout prompt.
type Choice int

const (
	ChoiceDismissed Choice = iota
	ChoiceRenew
	ChoiceLogout
)

func (c Choice) String() string {
	switch c {
	case ChoiceRenew:
		return "renew"
	case ChoiceLogout:
		return "logout"
	default:
		return "dismissed"
	}
}

// ParseChoice accepts the names returned by Choice.String.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "renew":
		return ChoiceRenew, nil
	case "logout":
		return ChoiceLogout, nil
	case "dismissed", "dismiss":
		return ChoiceDismissed, nil
	}
	return ChoiceDismissed, errs.Wrapf(errs.ErrInvalidChoice, "%q", s)
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Prompt is a blocking two-way question.
type Prompt struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Text         string    `json:"text"`
	ConfirmLabel string    `json:"confirmLabel"`
	CancelLabel  string    `json:"cancelLabel"`
	IssuedAt     time.Time `json:"issuedAt"`
}

// Notice is a dismissable message that needs no answer.
type Notice struct {
	Title string    `json:"title"`
	Text  string    `json:"text"`
	Level Level     `json:"level"`
	At    time.Time `json:"at"`
}

// Prompter shows prompts and notices to the user.
type Prompter interface {
	// Confirm blocks until the user answers or ctx is done.
	Confirm(ctx context.Context, p Prompt) (Choice, error)
	Notify(ctx context.Context, n Notice)
}

func ExpiryWarning() Prompt {
	return Prompt{
		Title:        "Sesión por expirar",
		Text:         "Tu sesión está por terminar ¿Deseas renovarla?",
		ConfirmLabel: "Renovar",
		CancelLabel:  "Cerrar sesión",
	}
}

func ExpiredNotice() Notice {
	return Notice{
		Title: "Sesión expirada",
		Text:  "Debes iniciar sesión nuevamente",
		Level: LevelInfo,
	}
}

func RenewedNotice() Notice {
	return Notice{
		Title: "Renovada",
		Text:  "Sesión extendida correctamente",
		Level: LevelSuccess,
	}
}
