package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/trainmesh-go/internal/rendezvous"
)

// AddressCommand issues an "address" request to a coordinator.
func AddressCommand() *cli.Command {
	return &cli.Command{
		Name:  "address",
		Usage: "Ask a coordinator for its rendezvous address",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "coordinator",
				Aliases: []string{"c"},
				Usage:   "Coordinator rendezvous endpoint (host:port)",
				EnvVars: []string{"TRAINMESH_COORDINATOR"},
				Value:   "127.0.0.1:5555",
			},
		},
		Action: address,
	}
}

type addressResult struct {
	Coordinator string `json:"coordinator"`
	Address     string `json:"address"`
}

func address(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, ParseGlobalFlags(c).Timeout)
	defer cancel()

	endpoint := c.String("coordinator")
	client, err := rendezvous.Dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}
	defer client.Close()

	addr, err := client.Address(ctx)
	if err != nil {
		return fmt.Errorf("address request: %w", err)
	}
	return write(c, addressResult{Coordinator: endpoint, Address: addr})
}
