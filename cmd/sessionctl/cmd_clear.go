package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/bluescreen10/sessionstore"
)

var clearHwd = &ClearRunner{}

type ClearRunner struct{}

func (r *ClearRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every stored session",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the deletion",
			},
		},
		Action: r.run,
	}
}

func (r *ClearRunner) run(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return errors.New("refusing to clear sessions without --yes")
	}

	_, store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	return r.clear(ctx, cmd.Root().Writer, store)
}

func (r *ClearRunner) clear(ctx context.Context, w io.Writer, store sessionstore.Store) error {
	n, err := store.Length(ctx)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "cleared %d sessions\n", n)
	return nil
}
