package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clearship/hscodex/internal/blob"
	"github.com/clearship/hscodex/internal/fetcher"
	"github.com/clearship/hscodex/internal/process"
	"github.com/clearship/hscodex/internal/store"
)

// env bundles the wired collaborators shared by the commands.
type env struct {
	store store.Store
	blobs blob.Store
	proc  *process.Processor
}

func initEnv(ctx context.Context) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.NewFS(cfg.Blob.Dir)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	return &env{
		store: st,
		blobs: blobs,
		proc:  process.New(st, blobs, cfg.Process.LookupConcurrency),
	}, nil
}

func (e *env) Close() {
	e.store.Close() //nolint:errcheck
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func fetchOptions() fetcher.Options {
	return fetcher.Options{
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:  cfg.Fetch.MaxRetries,
		UserAgent:   cfg.Fetch.UserAgent,
		FTPUser:     cfg.Fetch.FTPUser,
		FTPPassword: cfg.Fetch.FTPPassword,
	}
}
