package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/co2"
	"github.com/mklimuk/co2/adapter"
	"github.com/mklimuk/co2/cmd/co2/console"
	"github.com/mklimuk/co2/i2c"
	"github.com/mklimuk/co2/k30"
	"github.com/mklimuk/co2/metrics"
	"github.com/mklimuk/co2/snsctx"
)

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "read the CO2 concentration once",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "bus adapter: devfs, generic, mcp2221 or nanopi",
			Value:   "devfs",
		},
		&cli.IntFlag{
			Name:    "bus",
			Aliases: []string{"b"},
			Usage:   "i2c bus number",
			Value:   k30.DefaultBus,
		},
		&cli.StringFlag{
			Name:  "addr",
			Usage: "7-bit sensor address",
			Value: fmt.Sprintf("%#x", k30.DefaultAddress),
		},
		&cli.StringFlag{
			Name:  "hid-path",
			Usage: "HID path of the MCP2221 bridge when more than one is connected",
		},
		&cli.BoolFlag{
			Name:  "lenient",
			Usage: "report the value even if the response checksum does not match",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format: text or yaml",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:  "textfile",
			Usage: "write the result to a node_exporter textfile collector file",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := snsctx.SetVerbose(context.Background(), c.Bool("verbose"))
		address, err := parseAddress(c.String("addr"))
		if err != nil {
			return console.Exit(1, "invalid sensor address: %s", console.Red(err))
		}
		bus, closeAdapter, err := openAdapter(c)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer closeAdapter()

		opts := []k30.K30ConfigOption{k30.WithBus(c.Int("bus")), k30.WithAddress(address)}
		if c.Bool("lenient") {
			opts = append(opts, k30.WithChecksumPolicy(k30.ChecksumWarn))
		}
		m, err := k30.NewK30(bus, opts...).Measure(ctx)
		if path := c.String("textfile"); path != "" {
			tf := metrics.NewTextfile(path)
			tf.Record(c.Int("bus"), address, m.PPM, err)
			if werr := tf.Write(); werr != nil {
				console.Warnf("%s", werr)
			}
		}
		if err != nil {
			return console.Exit(1, "error getting CO2 read: %s", console.Red(err))
		}
		return printMeasurement(c.App.Writer, c.String("format"), c.Int("bus"), address, m)
	},
}

type reading struct {
	PPM           uint16    `yaml:"ppm"`
	Bus           int       `yaml:"bus"`
	Address       string    `yaml:"address"`
	Frame         string    `yaml:"frame"`
	ChecksumValid bool      `yaml:"checksum_valid"`
	Time          time.Time `yaml:"time"`
}

func printMeasurement(w io.Writer, format string, bus int, address byte, m k30.Measurement) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		err := enc.Encode(reading{
			PPM:           m.PPM,
			Bus:           bus,
			Address:       fmt.Sprintf("%#x", address),
			Frame:         m.Frame.String(),
			ChecksumValid: m.ChecksumValid,
			Time:          m.Time,
		})
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
	case "text":
		_, _ = fmt.Fprintf(w, "CO2: %dppm\n", m.PPM)
	default:
		return console.Exit(1, "unknown output format %q", format)
	}
	return nil
}

func parseAddress(s string) (byte, error) {
	addr, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%#x is not a 7-bit address", addr)
	}
	return byte(addr), nil
}

func openAdapter(c *cli.Context) (co2.BusAdapter, func(), error) {
	noop := func() {}
	switch c.String("adapter") {
	case "devfs":
		return i2c.NewDevBus(), noop, nil
	case "generic":
		return i2c.NewPeriphBus(), noop, nil
	case "mcp2221":
		return adapter.NewMCP2221(adapter.WithHIDPath(c.String("hid-path"))), noop, nil
	case "nanopi":
		npi := nanopi.NewNeoAdaptor()
		if err := npi.Connect(); err != nil {
			return nil, noop, fmt.Errorf("adaptor connect error: %w", err)
		}
		return adapter.NewGobot(npi), func() {
			if err := npi.Finalize(); err != nil {
				slog.Warn("could not finalize nanopi adaptor", "error", err)
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unknown adapter %q", c.String("adapter"))
	}
}
