package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/bluescreen10/sessionstore/mongostore"
)

const connectTimeout = 10 * time.Second

// openStore resolves the configuration, initializes logging and waits
// for the store to be ready. The caller must Close the returned store.
func openStore(ctx context.Context, cmd *cli.Command) (*Config, *mongostore.MongoStore, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return nil, nil, fmt.Errorf("init logger error: %w", err)
	}

	opts := []mongostore.Option{
		mongostore.WithCollectionName(cfg.Collection),
		mongostore.WithTTL(cfg.TTL),
		mongostore.WithCleanupInterval(cfg.CleanupInterval),
		mongostore.WithLogger(logrus.WithField("component", "mongostore")),
	}
	if cfg.Database != "" {
		opts = append(opts, mongostore.WithDatabase(cfg.Database))
	}
	store := mongostore.Connect(cfg.URI, opts...)

	readyCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := store.Ready(readyCtx); err != nil {
		_ = store.Close(context.Background())
		return nil, nil, fmt.Errorf("connect %s: %w", cfg.URI, err)
	}
	return cfg, store, nil
}
