package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/bluescreen10/sessionstore"
)

var countHwd = &CountRunner{}

type CountRunner struct{}

func (r *CountRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:   "count",
		Usage:  "Print the number of stored sessions, expired but unswept ones included",
		Action: r.run,
	}
}

func (r *CountRunner) run(ctx context.Context, cmd *cli.Command) error {
	_, store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	return r.count(ctx, cmd.Root().Writer, store)
}

func (r *CountRunner) count(ctx context.Context, w io.Writer, store sessionstore.Store) error {
	n, err := store.Length(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, n)
	return nil
}
