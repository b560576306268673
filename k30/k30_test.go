package k30

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/co2"
)

// MockAdapter is a mock implementation of co2.BusAdapter using testify/mock
type MockAdapter struct {
	mock.Mock
	calls *[]string
}

func (m *MockAdapter) Open(ctx context.Context, path string) (co2.BusHandle, error) {
	*m.calls = append(*m.calls, "open")
	args := m.Called(ctx, path)
	handle, _ := args.Get(0).(co2.BusHandle)
	return handle, args.Error(1)
}

// MockHandle is a mock implementation of co2.BusHandle recording the call order
type MockHandle struct {
	mock.Mock
	calls *[]string
}

func (m *MockHandle) SelectSlave(ctx context.Context, address byte) error {
	*m.calls = append(*m.calls, "select")
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *MockHandle) Write(ctx context.Context, buffer []byte) (int, error) {
	*m.calls = append(*m.calls, "write")
	args := m.Called(ctx, buffer)
	return args.Int(0), args.Error(1)
}

func (m *MockHandle) Read(ctx context.Context, buffer []byte) (int, error) {
	*m.calls = append(*m.calls, "read")
	args := m.Called(ctx, buffer)
	if data, ok := args.Get(0).([]byte); ok {
		copy(buffer, data)
	}
	return args.Int(1), args.Error(2)
}

func (m *MockHandle) Close() error {
	*m.calls = append(*m.calls, "close")
	args := m.Called()
	return args.Error(0)
}

type fixture struct {
	calls   []string
	adapter *MockAdapter
	handle  *MockHandle
	sensor  *K30
}

func newFixture(opts ...K30ConfigOption) *fixture {
	f := &fixture{}
	f.adapter = &MockAdapter{calls: &f.calls}
	f.handle = &MockHandle{calls: &f.calls}
	f.sensor = NewK30(f.adapter, opts...)
	f.sensor.sleep = func(d time.Duration) {
		f.calls = append(f.calls, "delay")
	}
	return f
}

func (f *fixture) expectOpen() {
	f.adapter.On("Open", mock.Anything, "/dev/i2c-1").Return(f.handle, nil).Once()
}

func (f *fixture) expectRoundTrip(response []byte) {
	f.expectOpen()
	f.handle.On("SelectSlave", mock.Anything, byte(0x68)).Return(nil).Once()
	f.handle.On("Write", mock.Anything, []byte{0x22, 0x00, 0x08, 0x2A}).Return(4, nil).Once()
	f.handle.On("Read", mock.Anything, mock.Anything).Return(response, len(response), nil).Once()
	f.handle.On("Close").Return(nil).Once()
}

func TestK30_GetCO2(t *testing.T) {
	f := newFixture()
	f.expectRoundTrip([]byte{0x22, 0x01, 0x2C, 0x4F, 0x00})

	ppm, err := f.sensor.GetCO2(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(300), ppm)
	assert.Equal(t, []string{"open", "select", "write", "delay", "read", "close"}, f.calls)
	f.adapter.AssertExpectations(t)
	f.handle.AssertExpectations(t)
}

func TestK30_BigEndianValue(t *testing.T) {
	tests := []struct {
		name     string
		response []byte
		expected uint16
	}{
		{"low byte", []byte{0x22, 0x00, 0xFF, 0x21, 0x00}, 255},
		{"high byte", []byte{0x22, 0x01, 0x00, 0x23, 0x00}, 256},
		{"typical outdoor", []byte{0x22, 0x01, 0x9F, 0xC2, 0x00}, 415},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture()
			f.expectRoundTrip(test.response)
			ppm, err := f.sensor.GetCO2(context.Background())
			require.NoError(t, err)
			assert.Equal(t, test.expected, ppm)
		})
	}
}

func TestK30_OpenFailure(t *testing.T) {
	f := newFixture()
	cause := errors.New("permission denied")
	f.adapter.On("Open", mock.Anything, "/dev/i2c-1").Return(nil, cause).Once()

	ppm, err := f.sensor.GetCO2(context.Background())
	assert.Equal(t, uint16(0), ppm)
	assert.ErrorIs(t, err, BusOpenFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, BusOpenFailed, Code(err))
	assert.Equal(t, []string{"open"}, f.calls)
	f.handle.AssertNotCalled(t, "SelectSlave", mock.Anything, mock.Anything)
	f.handle.AssertNotCalled(t, "Close")
}

func TestK30_SelectFailure(t *testing.T) {
	f := newFixture()
	f.expectOpen()
	f.handle.On("SelectSlave", mock.Anything, byte(0x68)).Return(errors.New("device or resource busy")).Once()
	f.handle.On("Close").Return(nil).Once()

	_, err := f.sensor.GetCO2(context.Background())
	assert.ErrorIs(t, err, SlaveSelectFailed)
	assert.Equal(t, []string{"open", "select", "close"}, f.calls)
	f.handle.AssertExpectations(t)
}

func TestK30_WriteFailure(t *testing.T) {
	tests := []struct {
		name    string
		written int
		err     error
		target  error
	}{
		{"io error", 0, errors.New("remote I/O error"), WriteFailed},
		{"short write", 2, nil, ErrShortWrite},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture()
			f.expectOpen()
			f.handle.On("SelectSlave", mock.Anything, byte(0x68)).Return(nil).Once()
			f.handle.On("Write", mock.Anything, mock.Anything).Return(test.written, test.err).Once()
			f.handle.On("Close").Return(nil).Once()

			_, err := f.sensor.GetCO2(context.Background())
			assert.ErrorIs(t, err, WriteFailed)
			assert.ErrorIs(t, err, test.target)
			// no delay and no read after a failed write, bus released once
			assert.Equal(t, []string{"open", "select", "write", "close"}, f.calls)
			f.adapter.AssertNumberOfCalls(t, "Open", 1)
			f.handle.AssertNumberOfCalls(t, "Close", 1)
		})
	}
}

func TestK30_ReadFailure(t *testing.T) {
	f := newFixture()
	f.expectOpen()
	f.handle.On("SelectSlave", mock.Anything, byte(0x68)).Return(nil).Once()
	f.handle.On("Write", mock.Anything, mock.Anything).Return(4, nil).Once()
	f.handle.On("Read", mock.Anything, mock.Anything).Return([]byte{0x10}, 1, errors.New("remote I/O error")).Once()
	f.handle.On("Close").Return(nil).Once()

	_, err := f.sensor.GetCO2(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ReadFailed)
	var terr *TransactionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, byte(0x10), terr.Status)
	assert.Contains(t, err.Error(), "status 0x10")
	assert.Equal(t, []string{"open", "select", "write", "delay", "read", "close"}, f.calls)
	f.handle.AssertNumberOfCalls(t, "Close", 1)
}

func TestK30_ShortRead(t *testing.T) {
	f := newFixture()
	f.expectOpen()
	f.handle.On("SelectSlave", mock.Anything, byte(0x68)).Return(nil).Once()
	f.handle.On("Write", mock.Anything, mock.Anything).Return(4, nil).Once()
	f.handle.On("Read", mock.Anything, mock.Anything).Return([]byte{0x22, 0x01, 0x2C}, 3, nil).Once()
	f.handle.On("Close").Return(nil).Once()

	_, err := f.sensor.GetCO2(context.Background())
	assert.ErrorIs(t, err, ReadFailed)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestK30_CloseErrorDoesNotOverrideResult(t *testing.T) {
	f := newFixture()
	f.expectOpen()
	f.handle.On("SelectSlave", mock.Anything, byte(0x68)).Return(nil).Once()
	f.handle.On("Write", mock.Anything, mock.Anything).Return(4, nil).Once()
	f.handle.On("Read", mock.Anything, mock.Anything).Return([]byte{0x22, 0x01, 0x2C, 0x4F, 0x00}, 5, nil).Once()
	f.handle.On("Close").Return(errors.New("bad file descriptor")).Once()

	ppm, err := f.sensor.GetCO2(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(300), ppm)
}

func TestK30_ChecksumMismatch(t *testing.T) {
	response := []byte{0x22, 0x01, 0x2C, 0x00, 0x00}

	t.Run("strict", func(t *testing.T) {
		f := newFixture()
		f.expectRoundTrip(response)
		ppm, err := f.sensor.GetCO2(context.Background())
		assert.Equal(t, uint16(0), ppm)
		assert.ErrorIs(t, err, ChecksumMismatch)
		var terr *TransactionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, uint16(300), terr.Value)
		// the bus is released before validation
		assert.Equal(t, "close", f.calls[len(f.calls)-1])
	})

	t.Run("warn", func(t *testing.T) {
		f := newFixture(WithChecksumPolicy(ChecksumWarn))
		f.expectRoundTrip(response)
		m, err := f.sensor.Measure(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint16(300), m.PPM)
		assert.False(t, m.ChecksumValid)
	})
}

func TestK30_Options(t *testing.T) {
	f := newFixture(WithBus(3), WithAddress(0x69))
	f.adapter.On("Open", mock.Anything, "/dev/i2c-3").Return(f.handle, nil).Once()
	f.handle.On("SelectSlave", mock.Anything, byte(0x69)).Return(nil).Once()
	f.handle.On("Write", mock.Anything, mock.Anything).Return(4, nil).Once()
	f.handle.On("Read", mock.Anything, mock.Anything).Return([]byte{0x22, 0x01, 0x2C, 0x4F, 0x00}, 5, nil).Once()
	f.handle.On("Close").Return(nil).Once()

	m, err := f.sensor.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(300), m.PPM)
	assert.True(t, m.ChecksumValid)
	assert.Equal(t, ResponseFrame{0x22, 0x01, 0x2C, 0x4F, 0x00}, m.Frame)
	f.adapter.AssertExpectations(t)
	f.handle.AssertExpectations(t)
}

func TestMeasureCO2(t *testing.T) {
	var calls []string
	adapter := &MockAdapter{calls: &calls}
	handle := &MockHandle{calls: &calls}
	adapter.On("Open", mock.Anything, "/dev/i2c-2").Return(handle, nil).Once()
	handle.On("SelectSlave", mock.Anything, byte(0x68)).Return(nil).Once()
	handle.On("Write", mock.Anything, []byte{0x22, 0x00, 0x08, 0x2A}).Return(4, nil).Once()
	handle.On("Read", mock.Anything, mock.Anything).Return([]byte{0x22, 0x02, 0x00, 0x24, 0x00}, 5, nil).Once()
	handle.On("Close").Return(nil).Once()

	start := time.Now()
	ppm, err := MeasureCO2(context.Background(), adapter, 2, DefaultAddress, ReadCO2Command())
	require.NoError(t, err)
	assert.Equal(t, uint16(512), ppm)
	assert.GreaterOrEqual(t, time.Since(start), ProcessingDelay, "transaction should wait for the sensor")
	adapter.AssertExpectations(t)
	handle.AssertExpectations(t)
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrorCode(0), Code(nil))
	assert.Equal(t, ErrorCode(-1), Code(errors.New("foreign")))
	assert.Equal(t, WriteFailed, Code(&TransactionError{Code: WriteFailed}))
	assert.Equal(t, ReadFailed, Code(ReadFailed))
}

func TestTransactionError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *TransactionError
		expected string
	}{
		{"read with cause", &TransactionError{Code: ReadFailed, Status: 0x10, Err: ErrShortRead}, "k30: response read failed (status 0x10): short read"},
		{"read without cause", &TransactionError{Code: ReadFailed}, "k30: response read failed (status 0x00)"},
		{"open without cause", &TransactionError{Code: BusOpenFailed}, "k30: bus open failed"},
		{"write with cause", &TransactionError{Code: WriteFailed, Err: ErrShortWrite}, "k30: command write failed: short write"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.err.Error())
		})
	}
}

func TestMockCO2Sensor(t *testing.T) {
	val := uint16(400)
	s := NewMockCO2Sensor(func(ctx context.Context) (uint16, error) { return val, nil })
	v, err := s.GetCO2(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(400), v)

	s = NewMockCO2Sensor(func(ctx context.Context) (uint16, error) {
		return 0, &TransactionError{Code: ReadFailed}
	})
	_, err = s.GetCO2(context.Background())
	assert.ErrorIs(t, err, ReadFailed)
}
