package main

import (
	"context"
	"fmt"
	"net/url"

	"MarksAPI/internal/config"
	"MarksAPI/internal/db"
	"MarksAPI/internal/repository"
	"MarksAPI/internal/repository/memstore"
	"MarksAPI/internal/repository/mongostore"
	"MarksAPI/internal/services"

	"go.uber.org/zap"
)

// backend bundles the stores of one database together with its lifecycle.
type backend struct {
	kind   string
	users  services.UserStore
	marks  services.MarksStore
	emails services.AuthorizedEmailStore
	ping   pinger
	close  func()
}

// openBackend picks the store implementation from the DATABASE_URI scheme.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	u, err := url.Parse(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URI: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		pool, err := db.Connect(ctx, cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{
			kind:   "postgres",
			users:  repository.NewUserRepository(pool),
			marks:  repository.NewMarksRepository(pool),
			emails: repository.NewAuthorizedEmailRepository(pool),
			ping:   pool.Ping,
			close:  pool.Close,
		}, nil

	case "mongodb", "mongodb+srv":
		store, err := mongostore.Open(ctx, cfg.DatabaseURI, cfg.DatabaseName)
		if err != nil {
			return nil, err
		}
		return &backend{
			kind:   "mongodb",
			users:  store.Users(),
			marks:  store.Marks(),
			emails: store.AuthorizedEmails(),
			ping:   store.Ping,
			close:  store.Close,
		}, nil

	case "memory":
		if cfg.Env == config.EnvProd {
			return nil, fmt.Errorf("memory:// storage is not allowed in prod")
		}
		store := memstore.New()
		return &backend{
			kind:   "memory",
			users:  store.Users(),
			marks:  store.Marks(),
			emails: store.AuthorizedEmails(),
			ping:   store.Ping,
			close:  store.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_URI scheme %q", u.Scheme)
}
