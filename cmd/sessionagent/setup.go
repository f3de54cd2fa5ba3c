package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jrsteele09/go-session-watcher/authclient"
	"github.com/jrsteele09/go-session-watcher/internal/config"
	"github.com/jrsteele09/go-session-watcher/tokenstore"
	"github.com/jrsteele09/go-session-watcher/tokenstore/filestore"
	"github.com/jrsteele09/go-session-watcher/tokenstore/memstore"
	"github.com/jrsteele09/go-session-watcher/tokenstore/redisstore"
	"github.com/jrsteele09/go-session-watcher/tokenstore/sqlitestore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	sessionFileName = "session.json"
	sessionDBName   = "session.db"
)

// openStore builds the token store selected by STORE. The returned func
// releases it.
func openStore(ctx context.Context, c config.Config) (tokenstore.Store, func(), error) {
	noop := func() {}

	switch c.GetStoreType() {
	case config.StoreMemory:
		log.Warn().Msg("Using the in-memory store, sessions do not survive a restart")
		return memstore.New(), noop, nil

	case config.StoreFile:
		path := filepath.Join(c.GetDataFolder(), sessionFileName)
		var opts []filestore.Option
		if passphrase := c.GetStorePassphrase(); passphrase != "" {
			opts = append(opts, filestore.WithPassphrase(passphrase))
		}
		store, err := filestore.Open(path, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("filestore.Open %s: %w", path, err)
		}
		log.Info().Str("path", path).Bool("encrypted", len(opts) > 0).Msg("Using file store")
		return store, noop, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", c.GetRedisAddr(), err)
		}
		store := redisstore.New(client, c.GetStoreOrigin())
		log.Info().Str("addr", c.GetRedisAddr()).Str("key", store.Key()).Msg("Using redis store")
		return store, func() { client.Close() }, nil

	case config.StoreSQLite:
		path := filepath.Join(c.GetDataFolder(), sessionDBName)
		store, err := sqlitestore.Open(path, c.GetStoreOrigin())
		if err != nil {
			return nil, nil, fmt.Errorf("sqlitestore.Open %s: %w", path, err)
		}
		log.Info().Str("path", path).Msg("Using sqlite store")
		return store, func() {
			if err := store.Close(); err != nil {
				log.Err(err).Msg("Failed to close sqlite store")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE %q", c.GetStoreType())
}

// newBackend builds the auth client selected by BACKEND.
func newBackend(ctx context.Context, c config.Config) (authclient.Backend, error) {
	switch c.GetBackendType() {
	case config.BackendREST:
		log.Info().Str("baseURL", c.GetAuthBaseURL()).Msg("Using REST auth backend")
		return authclient.NewHTTPBackend(c.GetAuthBaseURL(), c.GetRequestTimeout()), nil

	case config.BackendOAuth2:
		discoverCtx, cancel := context.WithTimeout(ctx, c.GetRequestTimeout())
		defer cancel()
		// The client also bounds the token calls made after discovery.
		httpClient := &http.Client{Timeout: c.GetRequestTimeout()}
		backend, err := authclient.NewOIDCBackend(discoverCtx, c.GetOAuthIssuer(), c.GetOAuthClientID(), c.GetOAuthClientSecret(), httpClient)
		if err != nil {
			return nil, fmt.Errorf("OIDC discovery %s: %w", c.GetOAuthIssuer(), err)
		}
		log.Info().Str("issuer", c.GetOAuthIssuer()).Msg("Using OAuth2 auth backend")
		return backend, nil
	}
	return nil, fmt.Errorf("unknown BACKEND %q", c.GetBackendType())
}
