package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/trainmesh-go/internal/infra/buildinfo"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:    "trainmesh-node",
		Usage:   "trainmesh coordinator, worker and loader process",
		Version: buildinfo.String(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run this rank of the group",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						EnvVars: []string{"TRAINMESH_CONFIG"},
					},
				},
				Action: runNode,
			},
			{
				Name:   "loader",
				Usage:  "Serve a worker's input buffer (spawned by the worker)",
				Hidden: true,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ctrl", Usage: "Worker control socket", Required: true},
					&cli.StringFlag{Name: "data-dir", Usage: "Directory relative batch files resolve against"},
					&cli.StringFlag{Name: "log-level", Value: "info"},
					&cli.StringFlag{Name: "log-format", Value: "json"},
				},
				Action: runLoader,
			},
		},
	}
}
