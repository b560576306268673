package main

import (
	"context"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/co2/adapter"
	"github.com/mklimuk/co2/cmd/co2/console"
	"github.com/mklimuk/co2/snsctx"
)

var hidPathFlag = &cli.StringFlag{
	Name:  "hid-path",
	Usage: "HID path of the MCP2221 bridge when more than one is connected",
}

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "inspect the MCP2221 USB to I2C bridge",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Flags: []cli.Flag{hidPathFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithHIDPath(c.String("hid-path")))
		ctx := snsctx.SetVerbose(context.Background(), c.Bool("verbose"))
		status, err := a.Status(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return encodeStatus(c, status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a pending I2C transfer left by an interrupted transaction",
	Flags: []cli.Flag{
		hidPathFlag,
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		if !c.Bool("yes") {
			ok, err := console.Confirm("cancel the current I2C transfer?")
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if !ok {
				return nil
			}
		}
		a := adapter.NewMCP2221(adapter.WithHIDPath(c.String("hid-path")))
		ctx := snsctx.SetVerbose(context.Background(), c.Bool("verbose"))
		status, err := a.ReleaseBus(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return encodeStatus(c, status)
	},
}

func encodeStatus(c *cli.Context, status *adapter.MCP2221Status) error {
	enc := yaml.NewEncoder(c.App.Writer)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(status); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}
