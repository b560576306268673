package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/co2"
	"github.com/mklimuk/co2/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const reportSize = 64

// MCP2221 HID commands, see DS20005565 section 3.1
const (
	cmdStatusSetParameters byte = 0x10
	cmdI2CWriteData        byte = 0x90
	cmdI2CReadData         byte = 0x91
	cmdI2CGetData          byte = 0x40
)

const (
	statusCancelTransfer byte = 0x10
	i2cReadError         byte = 0x41
	i2cInvalidSize       byte = 127
)

var ErrDeviceNotFound = errors.New("MCP2221 device not found")
var ErrAmbiguousDevice = errors.New("ambiguous device identification")
var ErrReadFailed = errors.New("error reading the I2C slave data from the I2C engine")

var _ co2.BusAdapter = &MCP2221{}

type hidDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type MCP2221Opts struct {
	// HIDPath selects one of several connected bridges, see hid.DeviceInfo.Path.
	HIDPath      string
	ResponseWait time.Duration
}

type MCP2221Opt func(*MCP2221Opts)

func WithHIDPath(path string) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.HIDPath = path
	}
}

func WithResponseWait(wait time.Duration) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.ResponseWait = wait
	}
}

// MCP2221 is a Microchip USB to I2C bridge. The bridge is the bus, so the device path
// passed to Open only labels log records; the USB device is chosen with WithHIDPath.
type MCP2221 struct {
	config MCP2221Opts
	open   func(path string) (hidDevice, error)
}

func NewMCP2221(opts ...MCP2221Opt) *MCP2221 {
	config := MCP2221Opts{
		ResponseWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &MCP2221{
		config: config,
		open:   openHID,
	}
}

func openHID(path string) (hidDevice, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, ErrDeviceNotFound
	}
	if path == "" {
		if len(devs) > 1 {
			return nil, ErrAmbiguousDevice
		}
		return devs[0].Open()
	}
	for _, d := range devs {
		if d.Path == path {
			return d.Open()
		}
	}
	return nil, fmt.Errorf("no MCP2221 at %s: %w", path, ErrDeviceNotFound)
}

func (d *MCP2221) Open(ctx context.Context, path string) (co2.BusHandle, error) {
	dev, err := d.open(d.config.HIDPath)
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return d.newHandle(dev, path), nil
}

func (d *MCP2221) newHandle(dev hidDevice, path string) *mcp2221Handle {
	return &mcp2221Handle{
		dev:          dev,
		path:         path,
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: d.config.ResponseWait,
	}
}

// Status reads the I2C engine state of the bridge.
func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	return d.status(ctx, false)
}

// ReleaseBus cancels the current I2C transfer and returns the resulting engine state.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	return d.status(ctx, true)
}

func (d *MCP2221) status(ctx context.Context, cancel bool) (*MCP2221Status, error) {
	dev, err := d.open(d.config.HIDPath)
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	h := d.newHandle(dev, "")
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Warn("could not close MCP2221", "error", err)
		}
	}()
	return h.status(ctx, cancel)
}

type mcp2221Handle struct {
	mx           sync.Mutex
	dev          hidDevice
	path         string
	address      byte
	selected     bool
	failed       bool
	request      []byte
	response     []byte
	responseWait time.Duration
}

func (h *mcp2221Handle) SelectSlave(ctx context.Context, address byte) error {
	h.mx.Lock()
	defer h.mx.Unlock()
	h.address = address
	h.selected = true
	return nil
}

func (h *mcp2221Handle) Write(ctx context.Context, buffer []byte) (int, error) {
	h.mx.Lock()
	defer h.mx.Unlock()
	if !h.selected {
		return 0, fmt.Errorf("write: no slave address selected")
	}
	if len(buffer) > reportSize-4 {
		return 0, fmt.Errorf("write of %d bytes exceeds a single report", len(buffer))
	}
	h.resetBuffers()
	h.request[0] = cmdI2CWriteData
	binary.LittleEndian.PutUint16(h.request[1:3], uint16(len(buffer)))
	h.request[3] = h.address << 1
	copy(h.request[4:], buffer)
	err := h.send(ctx)
	if err != nil {
		h.failed = true
		return 0, fmt.Errorf("write to %x failed: %w", h.address, err)
	}
	// write could not be performed
	if h.response[1] == 0x01 {
		h.failed = true
		slog.Debug("adapter busy", "device", snsctx.Device(ctx))
		return 0, co2.ErrBusBusy
	}
	return len(buffer), nil
}

func (h *mcp2221Handle) Read(ctx context.Context, buffer []byte) (int, error) {
	h.mx.Lock()
	defer h.mx.Unlock()
	if !h.selected {
		return 0, fmt.Errorf("read: no slave address selected")
	}
	h.resetBuffers()
	h.request[0] = cmdI2CReadData
	binary.LittleEndian.PutUint16(h.request[1:3], uint16(len(buffer)))
	h.request[3] = h.address<<1 + 1
	err := h.send(ctx)
	if err != nil {
		h.failed = true
		return 0, fmt.Errorf("bus read from %x failed: %w", h.address, err)
	}
	if h.response[1] == 0x01 {
		h.failed = true
		return 0, co2.ErrBusBusy
	}
	h.resetBuffers()
	h.request[0] = cmdI2CGetData
	err = h.send(ctx)
	if err != nil {
		h.failed = true
		return 0, fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if h.response[1] == i2cReadError {
		h.failed = true
		return 0, ErrReadFailed
	}
	size := int(h.response[3])
	if size == int(i2cInvalidSize) || size > reportSize-4 {
		h.failed = true
		return 0, fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), size)
	}
	n := copy(buffer, h.response[4:4+size])
	if n != len(buffer) {
		h.failed = true
		return n, fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), size)
	}
	return n, nil
}

// Close cancels a transfer left pending by a failed operation and closes the USB device.
func (h *mcp2221Handle) Close() error {
	h.mx.Lock()
	defer h.mx.Unlock()
	if h.failed {
		if _, err := h.status(context.Background(), true); err != nil {
			slog.Warn("could not cancel pending MCP2221 transfer", "error", err)
		}
	}
	return h.dev.Close()
}

func (h *mcp2221Handle) status(ctx context.Context, cancel bool) (*MCP2221Status, error) {
	h.resetBuffers()
	h.request[0] = cmdStatusSetParameters
	if cancel {
		h.request[2] = statusCancelTransfer
	}
	err := h.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(h.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (h *mcp2221Handle) send(ctx context.Context) error {
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending message to adapter", "device", snsctx.Device(ctx), "report", hex.EncodeToString(h.request))
	}
	n, err := h.dev.Write(h.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	time.Sleep(h.responseWait)
	n, err = h.dev.Read(h.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		slog.Debug("read message from adapter", "device", snsctx.Device(ctx), "report", hex.EncodeToString(h.response))
	}
	return nil
}

func (h *mcp2221Handle) resetBuffers() {
	clear(h.request)
	clear(h.response)
}
