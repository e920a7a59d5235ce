package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-sms/internal/config"
	"github.com/Veraticus/spice-sms/internal/engine"
	"github.com/Veraticus/spice-sms/internal/service"
	"github.com/Veraticus/spice-sms/internal/source"
	"github.com/Veraticus/spice-sms/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString(config.KeyDatabasePath))
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initSource opens the configured message archive.
func initSource() (service.MessageSource, error) {
	cfg, err := config.LoadSource(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return source.New(cfg.Path, cfg.Format)
}

// newEngine builds an engine from the loaded configuration. src may be nil
// for commands that never scan.
func newEngine(src service.MessageSource, store service.Storage) (*engine.Engine, error) {
	cfg, err := config.LoadEngine(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return engine.NewWithConfig(src, store, cfg), nil
}

// openEngine opens storage and an engine without a message source.
func openEngine(ctx context.Context) (*engine.Engine, *storage.SQLiteStorage, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}
	eng, err := newEngine(nil, store)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return eng, store, nil
}
