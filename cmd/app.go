package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/qoeplatform/qoe/client"
	"github.com/qoeplatform/qoe/config"
	"github.com/qoeplatform/qoe/db"
	"github.com/qoeplatform/qoe/tokenstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// app is everything a command needs: the API client, the session store and the project cache.
type app struct {
	cfg      *config.Config
	client   *client.Client
	store    *tokenstore.Store
	projects db.ProjectRepository
	closers  []func() error
}

// Close releases the storage handles in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openApp wires the session backend selected by the config to a client.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var gdb *gorm.DB
	switch cfg.Store.Backend {
	case config.BackendMemory:
		mem, err := db.Open(db.Memory)
		if err != nil {
			return nil, fmt.Errorf("failed to open in-memory cache: %w", err)
		}
		a.closers = append(a.closers, func() error { return db.Close(mem) })
		gdb = mem
	default:
		if cfg.Store.DBPath != "" {
			db.Path = cfg.Store.DBPath
		}
		if err := db.InitDB(); err != nil {
			return nil, err
		}
		gdb = db.GetDB()
		a.closers = append(a.closers, db.CloseDB)
	}
	a.projects = db.NewProjectRepository(gdb)

	var backend tokenstore.Backend
	switch cfg.Store.Backend {
	case config.BackendMemory:
		backend = tokenstore.NewMemoryBackend()
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		a.closers = append(a.closers, rdb.Close)
		backend = tokenstore.NewRedisBackend(rdb, "", cfg.Store.SessionTTL)
	default:
		backend = tokenstore.NewDBBackend(db.NewSettingRepository(gdb))
	}

	store, err := tokenstore.Open(ctx, backend)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = store
	a.client = newClient(cfg, store)
	return a, nil
}

func newClient(cfg *config.Config, store client.SessionStore) *client.Client {
	return client.New(cfg.API.BaseURL, store,
		client.WithTimeout(cfg.API.Timeout),
		client.WithRateLimit(cfg.Transfer.RateLimit),
		client.WithUserAgent(userAgent()),
		client.WithSessionEndedHook(func(cause error) {
			log.Warn().Err(cause).Msg("Session ended, local credentials cleared")
		}),
	)
}
