package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kairos-io/diskplan/internal/cmd"
	"github.com/kairos-io/diskplan/internal/version"
	"github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
)

// Render the install commands for a disk layout template.
func main() {
	app := cli.NewApp()
	app.Name = "diskplan"
	app.Usage = "plan a disk layout and print the commands that create it"
	app.Version = version.GetVersion()
	app.Authors = []*cli.Author{{Name: "Kairos authors"}}
	app.Copyright = "kairos authors"
	app.Flags = cmd.Flags
	app.Action = func(c *cli.Context) error {
		opts, err := cmd.OptionsFromContext(c)
		if err != nil {
			return err
		}
		return cmd.Plan(context.Background(), vfs.OSFS, opts, os.Stdout)
	}
	app.Commands = cmd.Commands

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
