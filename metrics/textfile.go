// Package metrics exports the outcome of a measurement in the Prometheus text format
// for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mklimuk/co2/k30"
)

type Textfile struct {
	path      string
	registry  *prometheus.Registry
	co2       *prometheus.GaugeVec
	timestamp *prometheus.GaugeVec
	errorCode *prometheus.GaugeVec
	now       func() time.Time
}

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"bus", "address"},
	)
}

func NewTextfile(path string) *Textfile {
	t := &Textfile{
		path:      path,
		registry:  prometheus.NewRegistry(),
		co2:       newGauge("k30_co2_ppm", "Air Carbon Dioxide level (units: ppm)"),
		timestamp: newGauge("k30_last_measurement_timestamp_seconds", "Unix time of the last successful measurement"),
		errorCode: newGauge("k30_transaction_error_code", "Error code of the last transaction, 0 on success"),
		now:       time.Now,
	}
	t.registry.MustRegister(t.co2, t.timestamp, t.errorCode)
	return t
}

// Record stores the result of one transaction. A failed transaction only updates the error code
// so the ppm series goes missing instead of repeating a stale value.
func (t *Textfile) Record(bus int, address byte, ppm uint16, err error) {
	labels := prometheus.Labels{
		"bus":     strconv.Itoa(bus),
		"address": fmt.Sprintf("%#x", address),
	}
	t.errorCode.With(labels).Set(float64(k30.Code(err)))
	if err != nil {
		return
	}
	t.co2.With(labels).Set(float64(ppm))
	t.timestamp.With(labels).Set(float64(t.now().Unix()))
}

// Write atomically replaces the textfile with the recorded metrics.
func (t *Textfile) Write() error {
	if err := prometheus.WriteToTextfile(t.path, t.registry); err != nil {
		return fmt.Errorf("could not write metrics to %s: %w", t.path, err)
	}
	return nil
}
