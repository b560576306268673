package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run(os.Args, os.Stdout))
}

// run executes the app and prints a failure as a single line on out, next to where
// the measurement would have been.
func run(args []string, out io.Writer) int {
	app := newApp(out)
	err := app.Run(args)
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintln(out, err)
	var exerr cli.ExitCoder
	if errors.As(err, &exerr) {
		return exerr.ExitCode()
	}
	return 1
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "co2"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "Senseair K30 CO2 sensor cli"
	app.Writer = out
	app.ErrWriter = out
	// exit codes are resolved by run instead of urfave calling os.Exit
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging and bus traffic dumps",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		&readCmd,
		&decodeCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	return app
}
