package i2c

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/co2"
	"github.com/mklimuk/co2/snsctx"
)

var _ co2.BusAdapter = &PeriphBus{}

var ErrNoSlave = fmt.Errorf("no slave address selected")

var initOnce sync.Once
var errInit error

func initHost() error {
	initOnce.Do(func() {
		state, err := host.Init()
		if err != nil {
			errInit = fmt.Errorf("could not init host: %w", err)
			return
		}
		for _, driver := range state.Loaded {
			slog.Debug("periph driver loaded", "driver", driver.String())
		}
	})
	return errInit
}

// PeriphBus opens buses through the periph.io host drivers.
type PeriphBus struct {
	open func(name string) (i2c.BusCloser, error)
}

func NewPeriphBus() *PeriphBus {
	return &PeriphBus{
		open: func(name string) (i2c.BusCloser, error) {
			if err := initHost(); err != nil {
				return nil, err
			}
			return i2creg.Open(name)
		},
	}
}

func (b *PeriphBus) Open(ctx context.Context, path string) (co2.BusHandle, error) {
	bus, err := b.open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus %s: %w", path, err)
	}
	return &periphHandle{bus: bus, name: path}, nil
}

type periphHandle struct {
	bus  i2c.BusCloser
	dev  *i2c.Dev
	name string
}

func (h *periphHandle) SelectSlave(ctx context.Context, address byte) error {
	h.dev = &i2c.Dev{Bus: h.bus, Addr: uint16(address)}
	return nil
}

func (h *periphHandle) Write(ctx context.Context, buffer []byte) (int, error) {
	if h.dev == nil {
		return 0, ErrNoSlave
	}
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c write", "bus", h.name, "addr", h.dev.Addr, "data", hex.EncodeToString(buffer))
	}
	if err := h.dev.Tx(buffer, nil); err != nil {
		return 0, fmt.Errorf("could not write to i2c bus %x: %w", h.dev.Addr, err)
	}
	return len(buffer), nil
}

func (h *periphHandle) Read(ctx context.Context, buffer []byte) (int, error) {
	if h.dev == nil {
		return 0, ErrNoSlave
	}
	if err := h.dev.Tx(nil, buffer); err != nil {
		return 0, fmt.Errorf("could not read from i2c bus %x: %w", h.dev.Addr, err)
	}
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c read", "bus", h.name, "addr", h.dev.Addr, "data", hex.EncodeToString(buffer))
	}
	return len(buffer), nil
}

func (h *periphHandle) Close() error {
	return h.bus.Close()
}
