package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"deadline-desk/backend/config"
	"deadline-desk/backend/internal/app"
	"deadline-desk/backend/internal/commands"
	applogger "deadline-desk/backend/pkg/logger"
)

func main() {
	var (
		a      *app.App
		logger *zap.Logger
		flags  = &commands.Flags{}
	)

	root := &cli.Command{
		Name:      "deskctl",
		Usage:     "Deadline Desk 运维工具",
		UsageText: "deskctl [global options] command [command options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "配置文件路径",
				Sources:     cli.EnvVars("DESK_CONFIG"),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "覆盖 log.level",
				Destination: &flags.LogLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, err
			}
			if flags.LogLevel != "" {
				cfg.Log.Level = flags.LogLevel
			}

			logger, err = applogger.NewLogger(&cfg.Log)
			if err != nil {
				return ctx, err
			}

			a, err = app.New(cfg, logger)
			if err != nil {
				return ctx, err
			}

			flags.Runner = a.Scheduler
			flags.Schedule = a.Service.Schedule
			flags.Auth = a.Service.Auth
			flags.User = a.Service.User
			flags.Migrate = a.Migrate
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if a != nil {
				a.Close()
			}
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
	}

	root = commands.NewRunCmd(flags).Register(root)
	root = commands.NewSyncCmd(flags).Register(root)
	root = commands.NewTokenCmd(flags).Register(root)
	root = commands.NewUserCmd(flags).Register(root)
	root = commands.NewMigrateCmd(flags).Register(root)

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
