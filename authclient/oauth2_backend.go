package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
	"golang.org/x/oauth2"
)

var _ Backend = (*OAuth2Backend)(nil)

// OAuth2Backend uses standard OAuth2 grants instead of the school API's JSON
// endpoints: password grant for login, refresh_token grant for renewal.
type OAuth2Backend struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func NewOAuth2Backend(config *oauth2.Config, httpClient *http.Client) *OAuth2Backend {
	return &OAuth2Backend{
		config:     config,
		httpClient: httpClient,
	}
}

// NewOIDCBackend discovers the token endpoint from the issuer's
// /.well-known/openid-configuration document.
func NewOIDCBackend(ctx context.Context, issuer, clientID, clientSecret string, httpClient *http.Client) (*OAuth2Backend, error) {
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return NewOAuth2Backend(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess},
	}, httpClient), nil
}

func (b *OAuth2Backend) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	token, err := b.config.PasswordCredentialsToken(b.context(ctx), username, password)
	if err != nil {
		return nil, convertRetrieveError(err)
	}
	if token.AccessToken == "" {
		return nil, errs.Wrapf(errs.ErrMalformedResponse, "token response has no access token")
	}

	result := &LoginResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if sub, ok := token.Extra("user_id").(string); ok {
		result.UserID = sub
	}
	return result, nil
}

// Refresh runs a single refresh_token grant.
func (b *OAuth2Backend) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	// An empty access token makes the source go straight to the token endpoint.
	src := b.config.TokenSource(b.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, convertRetrieveError(err)
	}
	if token.AccessToken == "" {
		return nil, errs.Wrapf(errs.ErrMalformedResponse, "token response has no access token")
	}

	result := &RefreshResult{AccessToken: token.AccessToken}
	if token.RefreshToken != refreshToken {
		result.RefreshToken = token.RefreshToken
	}
	return result, nil
}

func (b *OAuth2Backend) context(ctx context.Context) context.Context {
	if b.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

func convertRetrieveError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		return &ResponseError{StatusCode: re.Response.StatusCode, Message: msg}
	}
	return err
}
