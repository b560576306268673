//go:build !linux

package i2c

import (
	"context"
	"fmt"
	"runtime"

	"github.com/mklimuk/co2"
)

var ErrUnsupportedPlatform = fmt.Errorf("i2c-dev is not available on %s", runtime.GOOS)

// DevBus requires the Linux i2c-dev interface; use PeriphBus or an adapter elsewhere.
type DevBus struct{}

var _ co2.BusAdapter = &DevBus{}

func NewDevBus() *DevBus {
	return &DevBus{}
}

func (b *DevBus) Open(ctx context.Context, path string) (co2.BusHandle, error) {
	return nil, fmt.Errorf("could not open %s: %w", path, ErrUnsupportedPlatform)
}
