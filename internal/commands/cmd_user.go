package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"deadline-desk/backend/internal/dto"
)

type UserCmd struct {
	flags *Flags
}

// NewUserCmd 按 Telegram 身份登记用户
func NewUserCmd(flags *Flags) *UserCmd {
	return &UserCmd{flags: flags}
}

func (cmd *UserCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "user",
		Usage: "用户管理",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "登记用户（已存在则更新资料）",
				UsageText: "deskctl user add --telegram <chat_id> [--username <u>] [--first-name <n>] [--group <g>] [--ical <url>]",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "telegram", Usage: "Telegram chat id", Required: true},
					&cli.StringFlag{Name: "username", Usage: "Telegram 用户名"},
					&cli.StringFlag{Name: "first-name", Usage: "封面上的姓名"},
					&cli.StringFlag{Name: "group", Usage: "班级"},
					&cli.StringFlag{Name: "ical", Usage: "课程表日历源地址"},
				},
				Action: cmd.add,
			},
		},
	})
	return app
}

func (cmd *UserCmd) add(ctx context.Context, c *cli.Command) error {
	req := &dto.RegisterUserRequest{
		TelegramID:  c.Int64("telegram"),
		Username:    optional(c.String("username")),
		FirstName:   optional(c.String("first-name")),
		GroupNumber: optional(c.String("group")),
	}
	result, err := cmd.flags.User.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("登记用户失败: %w", err)
	}

	if url := c.String("ical"); url != "" {
		if err := cmd.flags.Schedule.SetFeedURL(ctx, result.User.ID, url); err != nil {
			return fmt.Errorf("更新日历源失败: %w", err)
		}
	}

	action := "updated"
	if result.Created {
		action = "created"
	}
	fmt.Fprintf(c.Root().Writer, "%s user_id=%s telegram_id=%d\n", action, result.User.ID, result.User.TelegramID)
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
