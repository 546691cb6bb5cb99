package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/bluescreen10/sessionstore"
)

var listHwd = &ListRunner{}

type ListRunner struct{}

func (r *ListRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "Print every stored payload as its size and base64 encoding",
		Action: r.run,
	}
}

func (r *ListRunner) run(ctx context.Context, cmd *cli.Command) error {
	_, store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	return r.list(ctx, cmd.Root().Writer, store)
}

func (r *ListRunner) list(ctx context.Context, w io.Writer, store sessionstore.Store) error {
	all, err := store.All(ctx)
	if err != nil {
		return err
	}
	for _, data := range all {
		fmt.Fprintf(w, "%d\t%s\n", len(data), base64.StdEncoding.EncodeToString(data))
	}
	return nil
}
