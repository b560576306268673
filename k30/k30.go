package k30

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/co2"
	"github.com/mklimuk/co2/snsctx"
)

// Factory defaults of the K30 module.
const (
	DefaultBus     = 1
	DefaultAddress = 0x68
)

// ProcessingDelay is the time the sensor needs after a command before the response is ready.
const ProcessingDelay = 25 * time.Millisecond

// ChecksumPolicy decides what happens to a measurement whose response checksum does not match.
type ChecksumPolicy int

const (
	// ChecksumStrict fails the measurement with ChecksumMismatch.
	ChecksumStrict ChecksumPolicy = iota
	// ChecksumWarn logs the mismatch and returns the unverified value.
	ChecksumWarn
)

type K30Config struct {
	Bus      int
	Address  byte
	Checksum ChecksumPolicy
}

type K30ConfigOption func(*K30Config)

func WithBus(bus int) K30ConfigOption {
	return func(c *K30Config) {
		c.Bus = bus
	}
}

func WithAddress(address byte) K30ConfigOption {
	return func(c *K30Config) {
		c.Address = address
	}
}

func WithChecksumPolicy(policy ChecksumPolicy) K30ConfigOption {
	return func(c *K30Config) {
		c.Checksum = policy
	}
}

// Measurement is the outcome of a successful transaction.
type Measurement struct {
	PPM           uint16
	Frame         ResponseFrame
	ChecksumValid bool
	Time          time.Time
}

// K30 represents a Senseair K30 NDIR CO2 sensor on an i2c-dev bus.
// Every call runs one complete transaction and closes the bus device before returning.
//
// Typical usage:
//
//	s := NewK30(i2c.NewDevBus())
//	ppm, err := s.GetCO2(ctx)
//
// Transactions on the same bus must be serialized by the caller.
type K30 struct {
	adapter  co2.BusAdapter
	bus      int
	address  byte
	checksum ChecksumPolicy
	sleep    func(time.Duration)
}

func NewK30(adapter co2.BusAdapter, opts ...K30ConfigOption) *K30 {
	config := &K30Config{
		Bus:      DefaultBus,
		Address:  DefaultAddress,
		Checksum: ChecksumStrict,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &K30{
		adapter:  adapter,
		bus:      config.Bus,
		address:  config.Address,
		checksum: config.Checksum,
		sleep:    time.Sleep,
	}
}

// MeasureCO2 runs a single transaction with command against the sensor at address on the given bus
// and returns the CO2 concentration in ppm.
func MeasureCO2(ctx context.Context, adapter co2.BusAdapter, bus int, address byte, command CommandFrame) (uint16, error) {
	s := NewK30(adapter, WithBus(bus), WithAddress(address))
	m, err := s.measure(ctx, command)
	if err != nil {
		return 0, err
	}
	return m.PPM, nil
}

// GetCO2 returns the CO2 concentration in ppm.
func (s *K30) GetCO2(ctx context.Context) (uint16, error) {
	m, err := s.Measure(ctx)
	if err != nil {
		return 0, err
	}
	return m.PPM, nil
}

// Measure reads the CO2 concentration and returns it together with the raw response.
func (s *K30) Measure(ctx context.Context) (Measurement, error) {
	return s.measure(ctx, ReadCO2Command())
}

func (s *K30) measure(ctx context.Context, command CommandFrame) (Measurement, error) {
	resp, err := s.Transact(ctx, command)
	if err != nil {
		return Measurement{}, err
	}
	m := Measurement{
		PPM:           resp.Value(),
		Frame:         resp,
		ChecksumValid: resp.Valid(),
		Time:          time.Now(),
	}
	if m.ChecksumValid {
		return m, nil
	}
	expected := Checksum(resp[:3])
	if s.checksum == ChecksumWarn {
		slog.Warn("k30: response checksum mismatch", "frame", resp.String(), "expected", expected, "got", resp.Checksum(), "ppm", m.PPM)
		return m, nil
	}
	return Measurement{}, &TransactionError{
		Code:   ChecksumMismatch,
		Status: resp.Status(),
		Value:  m.PPM,
		Err:    fmt.Errorf("expected %#x, got %#x", expected, resp.Checksum()),
	}
}

// Transact writes command to the sensor and returns its raw response.
// The response checksum is not verified.
func (s *K30) Transact(ctx context.Context, command CommandFrame) (ResponseFrame, error) {
	var resp ResponseFrame
	path := co2.DevicePath(s.bus)
	ctx = snsctx.WithDevice(ctx, path)

	handle, err := s.adapter.Open(ctx, path)
	if err != nil {
		return resp, &TransactionError{Code: BusOpenFailed, Err: fmt.Errorf("open %s: %w", path, err)}
	}
	if err := handle.SelectSlave(ctx, s.address); err != nil {
		s.release(handle, path)
		return resp, &TransactionError{Code: SlaveSelectFailed, Err: fmt.Errorf("address %#x: %w", s.address, err)}
	}

	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("k30: writing command", "device", path, "address", fmt.Sprintf("%#x", s.address), "frame", command.String())
	}
	n, err := handle.Write(ctx, command[:])
	if err == nil && n != len(command) {
		err = fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(command))
	}
	if err != nil {
		s.release(handle, path)
		return resp, &TransactionError{Code: WriteFailed, Err: err}
	}

	s.sleep(ProcessingDelay)

	n, err = handle.Read(ctx, resp[:])
	s.release(handle, path)
	if err == nil && n != len(resp) {
		err = fmt.Errorf("%w: %d of %d bytes", ErrShortRead, n, len(resp))
	}
	if err != nil {
		slog.Error("k30: response read failed", "device", path, "status", resp.Status(), "error", err)
		return resp, &TransactionError{Code: ReadFailed, Status: resp.Status(), Err: err}
	}
	if verbose {
		slog.Debug("k30: response received", "device", path, "frame", resp.String())
	}
	return resp, nil
}

func (s *K30) release(handle co2.BusHandle, path string) {
	if err := handle.Close(); err != nil {
		slog.Warn("k30: could not close bus device", "device", path, "error", err)
	}
}
