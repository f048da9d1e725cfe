package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"deadline-desk/backend/internal/dto"
)

type TokenCmd struct {
	flags *Flags
}

// NewTokenCmd 为用户签发 API 访问令牌
func NewTokenCmd(flags *Flags) *TokenCmd {
	return &TokenCmd{flags: flags}
}

func (cmd *TokenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "token",
		Usage:     "签发访问令牌",
		UsageText: "deskctl token (--user <id> | --telegram <chat_id>)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "内部用户 ID"},
			&cli.Int64Flag{Name: "telegram", Usage: "Telegram chat id"},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *TokenCmd) run(ctx context.Context, c *cli.Command) error {
	var (
		token *dto.TokenResponse
		err   error
	)
	switch {
	case c.String("user") != "":
		token, err = cmd.flags.Auth.IssueToken(ctx, c.String("user"))
	case c.Int64("telegram") != 0:
		token, err = cmd.flags.Auth.IssueTokenForTelegram(ctx, c.Int64("telegram"))
	default:
		return errors.New("需要 --user 或 --telegram")
	}
	if err != nil {
		return fmt.Errorf("签发令牌失败: %w", err)
	}

	fmt.Fprintf(c.Root().Writer, "user_id=%s expires_in=%ds\n%s\n", token.UserID, token.ExpiresIn, token.AccessToken)
	return nil
}
