package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	"github.com/Gameaday/ia-helper-sub003/cmd/common"
)

// Build metadata, set by Execute for the daemon and version commands.
var (
	version   string
	commit    string
	buildType string
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

func Execute(args []string, bArgs BuildArgs) error {
	version, commit, buildType = bArgs.Version, bArgs.Commit, bArgs.BuildType
	app := cli.App{
		Name:                  "ia-helper",
		HelpName:              "ia-helper",
		Usage:                 "A download scheduler for bulk archive retrieval.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "ia-helper <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:               "daemon",
				Usage:              "run the download daemon in the foreground",
				Action:             daemon,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        DaemonDescription,
				Flags:              daemonFlags,
			},
			{
				Name:                   "add",
				Aliases:                []string{"a"},
				Usage:                  "queue a file for download",
				Action:                 add,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            AddDescription,
				UseShortOptionHandling: true,
				Flags:                  addFlags,
			},
			{
				Name:                   "list",
				Aliases:                []string{"l"},
				Usage:                  "display the download queue",
				Action:                 list,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            ListDescription,
				UseShortOptionHandling: true,
				Flags:                  lsFlags,
			},
			{
				Name:               "status",
				Aliases:            []string{"s"},
				Usage:              "show one download in detail",
				Action:             status,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StatusDescription,
			},
			{
				Name:               "pause",
				Usage:              "pause a download",
				Action:             pause,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        PauseDescription,
			},
			{
				Name:               "resume",
				Aliases:            []string{"r"},
				Usage:              "resume a paused download",
				Action:             resume,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ResumeDescription,
			},
			{
				Name:               "retry",
				Usage:              "re-queue a failed download",
				Action:             retry,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        RetryDescription,
			},
			{
				Name:               "remove",
				Aliases:            []string{"rm"},
				Usage:              "cancel a download",
				Action:             remove,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        RemoveDescription,
			},
			{
				Name:               "delete",
				Usage:              "erase a task record",
				Action:             deleteTask,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        DeleteDescription,
			},
			{
				Name:               "priority",
				Usage:              "change a task's priority",
				Action:             priority,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        PriorityDescription,
			},
			{
				Name:   "pause-all",
				Usage:  "pause every queued and running download",
				Action: pauseAll,
			},
			{
				Name:   "resume-all",
				Usage:  "resume every paused download",
				Action: resumeAll,
			},
			{
				Name:                   "flush",
				Aliases:                []string{"c"},
				Usage:                  "delete completed download records",
				Action:                 flush,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            FlushDescription,
				UseShortOptionHandling: true,
				Flags:                  flsFlags,
			},
			{
				Name:               "watch",
				Aliases:            []string{"w"},
				Usage:              "render live progress bars",
				Action:             watch,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        WatchDescription,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints the installed version",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:                 add,
		Flags:                  addFlags,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
