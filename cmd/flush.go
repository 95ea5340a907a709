package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli"

	"github.com/Gameaday/ia-helper-sub003/cmd/common"
)

var (
	flushOlderThan int

	flsFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "older-than, t",
			Usage:       "only flush records older than this many hours",
			Destination: &flushOlderThan,
		},
	}
)

func flush(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := newClient(context.Background())
	if err != nil {
		common.PrintRuntimeErr(ctx, "flush", "new_client", err)
		return nil
	}
	defer client.Close()

	res, err := client.Flush(context.Background(), flushOlderThan)
	if err != nil {
		common.PrintRuntimeErr(ctx, "flush", "rpc", err)
		return nil
	}
	fmt.Printf("flushed %d completed download(s)\n", res.Removed)
	return nil
}
