package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/co2/adapter"
)

var usbCmd = cli.Command{
	Name: "usb",
	Subcommands: cli.Commands{
		&usbLsCmd,
	},
}

var usbLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list HID devices and mark supported I2C bridges",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "bridges", Usage: "only list supported I2C bridges"},
	},
	Action: func(c *cli.Context) error {
		vendor, product := uint16(0), uint16(0)
		if c.Bool("bridges") {
			vendor, product = adapter.VendorID, adapter.ProductID
		}
		devices := hid.Enumerate(vendor, product)

		w := tabwriter.NewWriter(c.App.Writer, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\tBRIDGE\n")
		for _, dev := range devices {
			bridge := ""
			if dev.VendorID == adapter.VendorID && dev.ProductID == adapter.ProductID {
				bridge = "MCP2221"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product, bridge)
		}
		return w.Flush()
	},
}
