package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type MigrateCmd struct {
	flags *Flags
}

// NewMigrateCmd 执行数据库迁移
func NewMigrateCmd(flags *Flags) *MigrateCmd {
	return &MigrateCmd{flags: flags}
}

func (cmd *MigrateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "migrate",
		Usage:  "应用全部未执行的数据库迁移",
		Action: cmd.run,
	})
	return app
}

func (cmd *MigrateCmd) run(_ context.Context, c *cli.Command) error {
	if err := cmd.flags.Migrate(); err != nil {
		return err
	}
	fmt.Fprintln(c.Root().Writer, "migrations applied")
	return nil
}
