// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics constructor is given a nil meter.
var ErrMeterNil = errors.New("NewDispatchMetrics: meter cannot be nil")

// Common attribute keys for consistency across metrics.
var (
	AttrDestination = attribute.Key("destination")
	AttrOperation   = attribute.Key("operation")
)

// DispatchMetrics counts event dispatches per destination and operation.
// A nil *DispatchMetrics is valid and records nothing, so callers do not
// have to guard every call site when metrics are not wired.
type DispatchMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	dispatchedTotal metric.Int64Counter
	failedTotal     metric.Int64Counter
}

// NewDispatchMetrics creates a DispatchMetrics instance on the meter.
func NewDispatchMetrics(meter metric.Meter, logger *zap.Logger) (*DispatchMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dm := &DispatchMetrics{meter: meter, logger: logger}

	var err error
	dm.dispatchedTotal, err = meter.Int64Counter(
		"analytics_dispatched_total",
		metric.WithDescription("Total number of events dispatched to a destination"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter analytics_dispatched_total: %w", err)
	}

	dm.failedTotal, err = meter.Int64Counter(
		"analytics_dispatch_failed_total",
		metric.WithDescription("Total number of dispatches that a destination rejected"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter analytics_dispatch_failed_total: %w", err)
	}

	return dm, nil
}

// RecordDispatched counts one successful dispatch.
func (dm *DispatchMetrics) RecordDispatched(ctx context.Context, destination, operation string) {
	if dm == nil {
		return
	}
	dm.dispatchedTotal.Add(ctx, 1, metric.WithAttributes(
		AttrDestination.String(destination),
		AttrOperation.String(operation),
	))
}

// RecordFailed counts one failed dispatch.
func (dm *DispatchMetrics) RecordFailed(ctx context.Context, destination, operation string) {
	if dm == nil {
		return
	}
	dm.failedTotal.Add(ctx, 1, metric.WithAttributes(
		AttrDestination.String(destination),
		AttrOperation.String(operation),
	))
}
