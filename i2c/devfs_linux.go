//go:build linux

package i2c

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/mklimuk/co2"
	"github.com/mklimuk/co2/snsctx"
)

// ioctl request binding a file descriptor to a slave address, see linux/i2c-dev.h
const ioctlI2CSlave = 0x0703

// syscalls is the subset of the kernel interface used by DevBus.
type syscalls struct {
	open  func(path string, mode int, perm uint32) (int, error)
	ioctl func(fd int, req uint, value int) error
	write func(fd int, p []byte) (int, error)
	read  func(fd int, p []byte) (int, error)
	close func(fd int) error
}

var unixSyscalls = syscalls{
	open:  unix.Open,
	ioctl: unix.IoctlSetInt,
	write: unix.Write,
	read:  unix.Read,
	close: unix.Close,
}

// DevBus talks to the kernel i2c-dev character devices (/dev/i2c-N) directly.
type DevBus struct {
	sys syscalls
}

var _ co2.BusAdapter = &DevBus{}

func NewDevBus() *DevBus {
	return &DevBus{sys: unixSyscalls}
}

func (b *DevBus) Open(ctx context.Context, path string) (co2.BusHandle, error) {
	fd, err := b.sys.open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	return &devHandle{sys: b.sys, fd: fd, path: path}, nil
}

type devHandle struct {
	sys  syscalls
	fd   int
	path string
}

func (h *devHandle) SelectSlave(ctx context.Context, address byte) error {
	if err := h.sys.ioctl(h.fd, ioctlI2CSlave, int(address)); err != nil {
		return fmt.Errorf("could not select slave %#x on %s: %w", address, h.path, err)
	}
	return nil
}

func (h *devHandle) Write(ctx context.Context, buffer []byte) (int, error) {
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c-dev write", "device", h.path, "data", hex.EncodeToString(buffer))
	}
	n, err := h.sys.write(h.fd, buffer)
	if err != nil {
		return 0, fmt.Errorf("write to %s failed: %w", h.path, err)
	}
	return n, nil
}

func (h *devHandle) Read(ctx context.Context, buffer []byte) (int, error) {
	n, err := h.sys.read(h.fd, buffer)
	if err != nil {
		return 0, fmt.Errorf("read from %s failed: %w", h.path, err)
	}
	if snsctx.IsVerbose(ctx) {
		slog.Debug("i2c-dev read", "device", h.path, "data", hex.EncodeToString(buffer[:n]))
	}
	return n, nil
}

func (h *devHandle) Close() error {
	return h.sys.close(h.fd)
}
