package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"

	"github.com/Gameaday/ia-helper-sub003/cmd/common"
)

func status(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" || id == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := newClient(context.Background())
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "new_client", err)
		return nil
	}
	defer client.Close()

	st, err := client.Status(context.Background(), id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "get_status", err)
		return nil
	}

	task := st.Task
	fmt.Printf("id:        %s\n", task.ID)
	fmt.Printf("file:      %s\n", task.FileName)
	if task.Source != "" {
		fmt.Printf("source:    %s\n", task.Source)
	}
	fmt.Printf("url:       %s\n", task.URL)
	fmt.Printf("status:    %s\n", task.Status)
	fmt.Printf("priority:  %s\n", task.Priority)
	if task.TotalBytes > 0 {
		fmt.Printf("progress:  %s / %s (%.1f%%)\n",
			humanize.Bytes(uint64(task.PartialBytes)),
			humanize.Bytes(uint64(task.TotalBytes)),
			st.Fraction*100)
	} else {
		fmt.Printf("progress:  %s\n", humanize.Bytes(uint64(task.PartialBytes)))
	}
	if task.Status == "downloading" {
		fmt.Printf("speed:     %s/s\n", humanize.Bytes(uint64(st.Speed)))
		if st.ETASeconds >= 0 {
			fmt.Printf("eta:       %s\n", time.Duration(st.ETASeconds*float64(time.Second)).Round(time.Second))
		}
	}
	if task.RetryCount > 0 {
		fmt.Printf("retries:   %d\n", task.RetryCount)
	}
	if task.ErrorMessage != "" {
		fmt.Printf("error:     %s\n", task.ErrorMessage)
	}
	if !task.ScheduledAt.IsZero() {
		fmt.Printf("starts at: %s\n", task.ScheduledAt.Local().Format(startAtLayout))
	}
	return nil
}
