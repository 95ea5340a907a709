package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"

	"github.com/Gameaday/ia-helper-sub003/cmd/common"
)

var (
	listStatus string

	lsFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "status, s",
			Usage:       "only show tasks in this state (queued, downloading, paused, completed, error, cancelled)",
			Destination: &listStatus,
		},
	}
)

func list(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := newClient(context.Background())
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "new_client", err)
		return nil
	}
	defer client.Close()

	l, err := client.List(context.Background(), listStatus)
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "get_list", err)
		return nil
	}
	if len(l.Tasks) == 0 {
		fmt.Println("ia-helper: no downloads found")
		return nil
	}

	fmt.Printf("%-12s  %-32s  %-11s  %-8s  %s\n", "ID", "NAME", "STATUS", "PRIORITY", "PROGRESS")
	for _, task := range l.Tasks {
		name := task.FileName
		if len(name) > 32 {
			name = name[:29] + "..."
		}
		progress := humanize.Bytes(uint64(task.PartialBytes))
		if task.TotalBytes > 0 {
			progress = fmt.Sprintf("%s / %s",
				humanize.Bytes(uint64(task.PartialBytes)),
				humanize.Bytes(uint64(task.TotalBytes)))
		}
		id := task.ID
		if len(id) > 12 {
			id = id[:12]
		}
		fmt.Printf("%-12s  %-32s  %-11s  %-8s  %s\n", id, name, task.Status, task.Priority, progress)
	}
	return nil
}
