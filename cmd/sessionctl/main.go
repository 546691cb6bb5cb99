package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logrus.WithError(err).Error("command execution failed")
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "sessionctl",
		Usage: "Inspect and serve sessions kept in a MongoDB collection",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			countHwd.cmd(),
			listHwd.cmd(),
			clearHwd.cmd(),
			serveHwd.cmd(),
		},
	}
}
