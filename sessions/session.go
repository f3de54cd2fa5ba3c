package sessions

import (
	"time"
)

// Snapshot is a read-only copy of the session record as stored at the time it
// was taken. Everything else in the store (theme, drafts...) is ignored.
type Snapshot struct {
	AccessToken  string    // Bearer credential for API calls
	RefreshToken string    // Used to mint a new access token
	TokenTime    time.Time // When AccessToken was issued or last renewed; zero when absent
	Role         string    // Lower-cased primary role chosen at login
	UserID       string
	TeacherID    string
	StudentID    string
}

// Active reports whether there is a session to monitor. Only the token time
// decides this.
func (s Snapshot) Active() bool {
	return !s.TokenTime.IsZero()
}

// Remaining returns how long the access token has left at now.
func (s Snapshot) Remaining(now time.Time, lifetime time.Duration) time.Duration {
	return lifetime - now.Sub(s.TokenTime)
}

// Claims decodes the access token, if it is a JWT.
func (s Snapshot) Claims() (*Claims, error) {
	return ParseClaims(s.AccessToken)
}
