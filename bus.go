package co2

import (
	"context"
	"fmt"
	"io"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// DevicePath returns the i2c-dev character device path of the given bus number.
func DevicePath(bus int) string {
	return fmt.Sprintf("/dev/i2c-%d", bus)
}

type BusReader interface {
	// Read fills buffer with bytes received from the selected slave and returns
	// the number of bytes read. A partial read is reported together with an error.
	Read(ctx context.Context, buffer []byte) (int, error)
}

type BusWriter interface {
	// Write sends buffer to the selected slave and returns the number of bytes written.
	Write(ctx context.Context, buffer []byte) (int, error)
}

type SlaveSelector interface {
	SelectSlave(ctx context.Context, address byte) error
}

// BusHandle is an open bus device. It MUST be closed exactly once by its owner.
type BusHandle interface {
	SlaveSelector
	BusReader
	BusWriter
	io.Closer
}

// BusAdapter opens bus devices. Implementations live in the i2c and adapter packages.
type BusAdapter interface {
	Open(ctx context.Context, path string) (BusHandle, error)
}
