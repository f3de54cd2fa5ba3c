package config

import "time"

// SessionConfig holds the session watcher timings. They are fixed values,
// not read from the environment.
type SessionConfig interface {
	GetTokenLifetime() time.Duration
	GetWarningLead() time.Duration
	GetPollInterval() time.Duration
}

const (
	TokenLifetime = 10 * time.Minute
	WarningLead   = 2 * time.Minute
	PollInterval  = 30 * time.Second
)

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetTokenLifetime() time.Duration {
	return TokenLifetime
}

func (Session) GetWarningLead() time.Duration {
	return WarningLead
}

func (Session) GetPollInterval() time.Duration {
	return PollInterval
}
