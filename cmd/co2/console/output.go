package console

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

var errWriter io.Writer = os.Stderr

// SetOutput redirects warnings, stderr by default.
func SetOutput(w io.Writer) {
	errWriter = w
}

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

func Warnf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", Yellow("WARN"), fmt.Sprintf(msg, args...))
}
