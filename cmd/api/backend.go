package main

import (
	"context"

	"github.com/pkg/errors"

	"classattend/internal/attendance"
	"classattend/internal/catalog"
	"classattend/internal/config"
	"classattend/internal/handler"
	"classattend/internal/store"
)

// courseCatalog is a catalog that can also be edited.
type courseCatalog interface {
	attendance.Catalog
	handler.Enroller
}

// backend is the store and catalog a process runs against.
type backend struct {
	Store   attendance.Store
	Catalog courseCatalog
	Healthy func(ctx context.Context) bool
	Close   func()
}

func openBackend(ctx context.Context, cfg config.App) (*backend, error) {
	var (
		db  *store.DB
		err error
	)
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return &backend{
			Store:   attendance.NewMemoryStore(),
			Catalog: catalog.NewMemory(),
			Healthy: func(context.Context) bool { return true },
			Close:   func() {},
		}, nil
	case config.StoreSQLite:
		db, err = store.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", cfg.StoreBackend)
	}

	repo := attendance.NewRepository(db.Client)
	cat := catalog.NewSQL(db.Client)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := cat.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &backend{
		Store:   repo,
		Catalog: cat,
		Healthy: db.Healthy,
		Close:   func() { _ = db.Close() },
	}, nil
}
