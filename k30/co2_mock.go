package k30

import (
	"context"
)

// CO2BehaviorFunc returns a CO2 concentration in ppm or an error.
type CO2BehaviorFunc func(ctx context.Context) (uint16, error)

// MockCO2Sensor is a hardware-free CO2 sensor driven by a behavior function.
//
// Example usage:
//
//	sensor := NewMockCO2Sensor(func(ctx context.Context) (uint16, error) { return 415, nil })
//
//	// transaction failure
//	sensor := NewMockCO2Sensor(func(ctx context.Context) (uint16, error) {
//		return 0, &TransactionError{Code: ReadFailed}
//	})
type MockCO2Sensor struct {
	behavior CO2BehaviorFunc
}

func NewMockCO2Sensor(behavior CO2BehaviorFunc) *MockCO2Sensor {
	return &MockCO2Sensor{behavior: behavior}
}

// GetCO2 returns the value produced by the behavior function.
func (m *MockCO2Sensor) GetCO2(ctx context.Context) (uint16, error) {
	return m.behavior(ctx)
}
