package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type SyncCmd struct {
	flags *Flags
}

// NewSyncCmd 同步单个用户的日历源
func NewSyncCmd(flags *Flags) *SyncCmd {
	return &SyncCmd{flags: flags}
}

func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sync",
		Usage:     "同步用户日历源",
		UsageText: "deskctl sync --user <id> [--url <ical_url>]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "用户 ID", Required: true},
			&cli.StringFlag{Name: "url", Usage: "先更新日历源地址"},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *SyncCmd) run(ctx context.Context, c *cli.Command) error {
	userID := c.String("user")
	if url := c.String("url"); url != "" {
		if err := cmd.flags.Schedule.SetFeedURL(ctx, userID, url); err != nil {
			return fmt.Errorf("更新日历源失败: %w", err)
		}
	}

	result, err := cmd.flags.Schedule.Sync(ctx, userID)
	if err != nil {
		if result != nil && result.Error != "" {
			return fmt.Errorf("同步失败（%s）: %w", result.Error, err)
		}
		return fmt.Errorf("同步失败: %w", err)
	}

	fmt.Fprintf(c.Root().Writer, "events=%d patterns=%d created=%d updated=%d\n",
		result.EventsParsed, result.PatternsFound, result.Created, result.Updated)
	return nil
}
