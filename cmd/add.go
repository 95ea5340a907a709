package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/Gameaday/ia-helper-sub003/cmd/common"
	"github.com/Gameaday/ia-helper-sub003/pkg/iacli"
)

var (
	addFileName string
	addSource   string
	addPriority string
	addChecksum string
	addStartAt  string
	addStartIn  string
	addCron     string

	addFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "file-name, o",
			Usage:       "name to save the file as",
			Destination: &addFileName,
		},
		cli.StringFlag{
			Name:        "source, s",
			Usage:       "archive item identifier the file belongs to",
			Destination: &addSource,
		},
		cli.StringFlag{
			Name:        "priority, p",
			Usage:       "task priority: low, normal or high",
			Destination: &addPriority,
		},
		cli.StringFlag{
			Name:        "checksum, x",
			Usage:       "expected digest as algo:hex, e.g. sha256:ab12...",
			Destination: &addChecksum,
		},
		cli.StringFlag{
			Name:        "start-at",
			Usage:       "defer the download until YYYY-MM-DD HH:MM",
			Destination: &addStartAt,
		},
		cli.StringFlag{
			Name:        "start-in",
			Usage:       "defer the download by a duration like 2h or 30m",
			Destination: &addStartIn,
		},
		cli.StringFlag{
			Name:        "cron",
			Usage:       "defer the download until the next cron occurrence",
			Destination: &addCron,
		},
	}
)

func add(ctx *cli.Context) error {
	url := ctx.Args().First()
	if url == "" || url == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}

	scheduledAt, err := resolveSchedule(addStartAt, addStartIn, addCron)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	if !scheduledAt.IsZero() && scheduledAt.Before(time.Now()) {
		fmt.Println("warning: scheduled time is in the past, starting download immediately")
		scheduledAt = time.Time{}
	}

	client, err := newClient(context.Background())
	if err != nil {
		common.PrintRuntimeErr(ctx, "add", "new_client", err)
		return nil
	}
	defer client.Close()

	res, err := client.Add(context.Background(), url, &iacli.AddOpts{
		FileName:    addFileName,
		Source:      addSource,
		Priority:    addPriority,
		Checksum:    addChecksum,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "add", "queue_task", err)
		return nil
	}
	if scheduledAt.IsZero() {
		fmt.Printf("queued %s\n", res.ID)
	} else {
		fmt.Printf("queued %s, starts at %s\n", res.ID, scheduledAt.Format(startAtLayout))
	}
	return nil
}
