package config

import "time"

// BackendType selects how the agent talks to the Auth Backend.
type BackendType string

const (
	BackendREST   BackendType = "rest"
	BackendOAuth2 BackendType = "oauth2"
)

type BackendConfig interface {
	GetBackendType() BackendType
	GetAuthBaseURL() string
	GetRequestTimeout() time.Duration
	GetOAuthIssuer() string
	GetOAuthClientID() string
	GetOAuthClientSecret() string
}

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetBackendType() BackendType {
	return BackendType(GetEnv("BACKEND", string(BackendREST)))
}

func (Backend) GetAuthBaseURL() string {
	return GetEnv("AUTH_BASE_URL", "http://localhost:3000")
}

// GetRequestTimeout bounds every call to the Auth Backend. REQUEST_TIMEOUT
// takes a Go duration such as "5s".
func (Backend) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv("REQUEST_TIMEOUT", "10s"))
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func (Backend) GetOAuthIssuer() string {
	return GetEnv("OAUTH_ISSUER", "")
}

func (Backend) GetOAuthClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (Backend) GetOAuthClientSecret() string {
	return GetEnv("OAUTH_CLIENT_SECRET", "")
}
