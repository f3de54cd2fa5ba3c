package sessions

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
	"github.com/jrsteele09/go-session-watcher/internal/utils"
)

// Claims is the subset of access token claims the agent displays and uses to
// pick a landing route. The signature is not verified: the agent is a client,
// the backend verifies its own tokens.
type Claims struct {
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func ParseClaims(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errs.ErrMissingAccessToken
	}

	token, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, errs.Wrapf(err, "access token is not a JWT")
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errs.ErrMalformedResponse
	}

	claims := &Claims{}
	claims.Subject, _ = mapClaims.GetSubject()
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	switch roles := mapClaims["roles"].(type) {
	case []any:
		claims.Roles = utils.ToStringSlice(roles)
	case string:
		claims.Roles = []string{roles}
	}
	if len(claims.Roles) == 0 {
		if rol, ok := mapClaims["rol"].(string); ok && rol != "" {
			claims.Roles = []string{rol}
		}
	}
	return claims, nil
}
