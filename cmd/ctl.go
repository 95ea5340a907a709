package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli"

	"github.com/Gameaday/ia-helper-sub003/cmd/common"
	"github.com/Gameaday/ia-helper-sub003/pkg/iacli"
)

// idAction runs one task-id RPC and prints a confirmation line.
func idAction(name string, call func(context.Context, *iacli.Client, string) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		id := ctx.Args().First()
		if id == "" || id == "help" {
			return cli.ShowCommandHelp(ctx, ctx.Command.Name)
		}
		client, err := newClient(context.Background())
		if err != nil {
			common.PrintRuntimeErr(ctx, name, "new_client", err)
			return nil
		}
		defer client.Close()

		if err := call(context.Background(), client, id); err != nil {
			common.PrintRuntimeErr(ctx, name, "rpc", err)
			return nil
		}
		fmt.Printf("%s: %s\n", name, id)
		return nil
	}
}

var (
	pause = idAction("pause", func(ctx context.Context, c *iacli.Client, id string) error {
		return c.Pause(ctx, id)
	})
	resume = idAction("resume", func(ctx context.Context, c *iacli.Client, id string) error {
		return c.Resume(ctx, id)
	})
	retry = idAction("retry", func(ctx context.Context, c *iacli.Client, id string) error {
		return c.Retry(ctx, id)
	})
	remove = idAction("remove", func(ctx context.Context, c *iacli.Client, id string) error {
		return c.Remove(ctx, id)
	})
	deleteTask = idAction("delete", func(ctx context.Context, c *iacli.Client, id string) error {
		return c.Delete(ctx, id)
	})
)

func priority(ctx *cli.Context) error {
	id := ctx.Args().First()
	level := ctx.Args().Get(1)
	if id == "" || id == "help" || level == "" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := newClient(context.Background())
	if err != nil {
		common.PrintRuntimeErr(ctx, "priority", "new_client", err)
		return nil
	}
	defer client.Close()

	if err := client.SetPriority(context.Background(), id, level); err != nil {
		common.PrintRuntimeErr(ctx, "priority", "rpc", err)
		return nil
	}
	fmt.Printf("priority: %s is now %s\n", id, level)
	return nil
}

func pauseAll(ctx *cli.Context) error {
	client, err := newClient(context.Background())
	if err != nil {
		common.PrintRuntimeErr(ctx, "pause-all", "new_client", err)
		return nil
	}
	defer client.Close()

	if err := client.PauseAll(context.Background()); err != nil {
		common.PrintRuntimeErr(ctx, "pause-all", "rpc", err)
		return nil
	}
	fmt.Println("paused all downloads")
	return nil
}

func resumeAll(ctx *cli.Context) error {
	client, err := newClient(context.Background())
	if err != nil {
		common.PrintRuntimeErr(ctx, "resume-all", "new_client", err)
		return nil
	}
	defer client.Close()

	if err := client.ResumeAll(context.Background()); err != nil {
		common.PrintRuntimeErr(ctx, "resume-all", "rpc", err)
		return nil
	}
	fmt.Println("resumed all downloads")
	return nil
}
