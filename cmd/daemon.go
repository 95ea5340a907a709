package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/Gameaday/ia-helper-sub003/cmd/common"
	"github.com/Gameaday/ia-helper-sub003/internal/config"
	"github.com/Gameaday/ia-helper-sub003/internal/server"
	"github.com/Gameaday/ia-helper-sub003/internal/store"
	"github.com/Gameaday/ia-helper-sub003/pkg/ialib"
	"github.com/Gameaday/ia-helper-sub003/pkg/logger"
)

var (
	configPath string

	daemonFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, C",
			Usage:       "path to the JSON config file",
			Destination: &configPath,
		},
	}
)

func daemon(ctx *cli.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "load_config", err)
		return nil
	}

	var l logger.Logger = logger.NewStandardLogger(log.Default())
	if cfg.Debug {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err == nil {
			if f, ferr := os.OpenFile(filepath.Join(cfg.DataDir, "daemon.log"),
				os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); ferr == nil {
				defer f.Close()
				l = logger.NewMultiLogger(l,
					logger.NewStandardLogger(log.New(f, "", log.LstdFlags)))
			}
		}
	}
	defer l.Close()

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "download_dir", err)
		return nil
	}

	client, err := ialib.NewHTTPClient(cfg.ProxyURL, 0)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "http_client", err)
		return nil
	}

	st, err := store.OpenSQLite(cfg.DataDir)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "open_store", err)
		return nil
	}
	defer st.Close()

	retry := ialib.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	sched, err := ialib.NewScheduler(st, &ialib.SchedulerOpts{
		MaxConcurrent:    cfg.MaxConcurrent,
		DownloadDir:      cfg.DownloadDir,
		Client:           client,
		ProgressInterval: cfg.ProgressInterval(),
		Retry:            &retry,
		UserAgent:        cfg.UserAgent,
		Logger:           l,
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "new_scheduler", err)
		return nil
	}
	sched.Start()
	defer sched.Close()

	runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.NewServer(l, sched, &server.RPCConfig{
		Secret:    cfg.Secret,
		Version:   version,
		Commit:    commit,
		BuildType: buildType,
	}, cfg.Port)
	if err := srv.Start(runCtx); err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "serve", err)
	}

	// Give in-flight RPC responses a moment to drain before the
	// deferred scheduler shutdown.
	time.Sleep(100 * time.Millisecond)
	return nil
}
