package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/co2/cmd/co2/console"
	"github.com/mklimuk/co2/k30"
)

var decodeCmd = cli.Command{
	Name:      "decode",
	Usage:     "decode a captured K30 response frame",
	ArgsUsage: "<hex frame, e.g. 22012c4f00>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		frame, err := decodeFrame(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not decode frame: %s", console.Red(err))
		}
		w := c.App.Writer
		_, _ = fmt.Fprintf(w, "status:   0x%02x\n", frame.Status())
		_, _ = fmt.Fprintf(w, "value:    %s ppm\n", console.White(frame.Value()))
		_, _ = fmt.Fprintf(w, "checksum: 0x%02x (%s)\n", frame.Checksum(), console.Checksum(frame.Valid()))
		if !frame.Valid() {
			return console.Exit(1, "checksum mismatch: expected 0x%02x", k30.Checksum(frame[:3]))
		}
		return nil
	},
}

// decodeFrame accepts the 5 byte response with or without the trailing unused byte.
func decodeFrame(s string) (k30.ResponseFrame, error) {
	var frame k30.ResponseFrame
	s = strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "0x"), " ", "")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return frame, err
	}
	if len(raw) < 4 || len(raw) > len(frame) {
		return frame, fmt.Errorf("expected 4 or 5 bytes, got %d", len(raw))
	}
	copy(frame[:], raw)
	return frame, nil
}
