package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"deadline-desk/backend/pkg/redis"
)

type RunCmd struct {
	flags *Flags
}

// NewRunCmd 手动执行一次周期驱动
func NewRunCmd(flags *Flags) *RunCmd {
	return &RunCmd{flags: flags}
}

func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "立即执行一次周期驱动",
		UsageText: "deskctl run <reminders|work_generate|work_send|schedule_sync>",
		Description: `与定时触发共用同一把 Redis 锁；锁被其他进程持有时直接退出。

驱动名中的连字符等同于下划线，例如 work-generate。`,
		Action: cmd.run,
	})
	return app
}

func (cmd *RunCmd) run(ctx context.Context, c *cli.Command) error {
	name := strings.ReplaceAll(c.Args().First(), "-", "_")
	if name == "" {
		return fmt.Errorf("缺少驱动名，可选: %s", strings.Join(cmd.flags.Runner.Jobs(), ", "))
	}

	report, err := cmd.flags.Runner.RunOnce(ctx, name)
	if errors.Is(err, redis.ErrLockHeld) {
		fmt.Fprintf(c.Root().Writer, "%s 正由其他进程执行，跳过\n", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("执行 %s 失败: %w", name, err)
	}

	fmt.Fprintf(c.Root().Writer, "%s: processed=%d succeeded=%d failed=%d skipped=%d\n",
		report.Driver, report.Processed, report.Succeeded, report.Failed, report.Skipped)
	return nil
}
