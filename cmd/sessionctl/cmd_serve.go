package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/bluescreen10/sessionstore"
	"github.com/bluescreen10/sessionstore/logger"
	"github.com/bluescreen10/sessionstore/session"
)

var serveHwd = &ServeRunner{}

type ServeRunner struct{}

const shutdownTimeout = 5 * time.Second

func (r *ServeRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a demo visit counter backed by the session collection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Session time-to-live",
			},
			&cli.DurationFlag{
				Name:  "cleanup-interval",
				Usage: "Period of the expired session sweep",
			},
		},
		Action: r.run,
	}
}

func (r *ServeRunner) run(ctx context.Context, cmd *cli.Command) error {
	cfg, store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r.handler(store, cfg.TTL),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", cfg.Addr).Info("serving visit counter")
		errCh <- srv.ListenAndServe()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case sig := <-signalCh:
		logrus.WithField("signal", sig.String()).Info("received shutdown signal, stopping server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// handler returns the visit counter wrapped in the session and access
// log middlewares.
func (r *ServeRunner) handler(store sessionstore.Store, lifetime time.Duration) http.Handler {
	mgr := session.NewManager(store,
		session.WithLifetime(lifetime),
		session.WithLogger(logrus.WithField("component", "session")),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, req *http.Request) {
		sess := mgr.Get(req)
		count := sess.GetInt("count") + 1
		sess.Set("count", count)
		fmt.Fprintf(w, "You have visited %d times\n", count)
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, req *http.Request) {
		mgr.Get(req).Destroy()
		w.WriteHeader(http.StatusNoContent)
	})

	access := logger.New(logger.WithLogger(logrus.WithField("component", "http")))
	return access.Handler(mgr.Handler(mux))
}
