package adapter

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/co2"
	"github.com/mklimuk/co2/snsctx"
)

var _ co2.BusAdapter = &Gobot{}

// Gobot opens buses through a gobot platform adaptor, e.g. nanopi.NewNeoAdaptor().
// The adaptor must be connected before the first transaction.
type Gobot struct {
	dial func(address int, bus int) (io.ReadWriteCloser, error)
}

func NewGobot(connector i2c.Connector) *Gobot {
	return &Gobot{
		dial: func(address int, bus int) (io.ReadWriteCloser, error) {
			return connector.GetI2cConnection(address, bus)
		},
	}
}

func (g *Gobot) Open(ctx context.Context, path string) (co2.BusHandle, error) {
	var bus int
	if _, err := fmt.Sscanf(path, "/dev/i2c-%d", &bus); err != nil {
		return nil, fmt.Errorf("could not parse bus number from %q: %w", path, err)
	}
	return &gobotHandle{dial: g.dial, bus: bus}, nil
}

// gobot binds the slave address when the connection is created,
// so the connection is established on SelectSlave.
type gobotHandle struct {
	dial func(address int, bus int) (io.ReadWriteCloser, error)
	bus  int
	conn io.ReadWriteCloser
}

func (h *gobotHandle) SelectSlave(ctx context.Context, address byte) error {
	if h.conn != nil {
		if err := h.conn.Close(); err != nil {
			return fmt.Errorf("could not close previous connection: %w", err)
		}
		h.conn = nil
	}
	conn, err := h.dial(int(address), h.bus)
	if err != nil {
		return fmt.Errorf("could not get i2c connection to %#x on bus %d: %w", address, h.bus, err)
	}
	h.conn = conn
	return nil
}

func (h *gobotHandle) Write(ctx context.Context, buffer []byte) (int, error) {
	if h.conn == nil {
		return 0, fmt.Errorf("write: no slave address selected")
	}
	if snsctx.IsVerbose(ctx) {
		slog.Debug("gobot i2c write", "bus", h.bus, "data", hex.EncodeToString(buffer))
	}
	return h.conn.Write(buffer)
}

func (h *gobotHandle) Read(ctx context.Context, buffer []byte) (int, error) {
	if h.conn == nil {
		return 0, fmt.Errorf("read: no slave address selected")
	}
	return h.conn.Read(buffer)
}

func (h *gobotHandle) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}
