// Copyright 2026 The Agentdesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: otel.Meter("noop"),
		}, nil
	}

	// Get meter from global meter provider
	// In production, configure a proper meter provider with exporters
	meter := otel.Meter(serviceName)

	return &Meter{
		meter: meter,
	}, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Dispatch holds the counters recorded by the message dispatch pipeline.
// All methods are nil-safe so the pipeline can run without a meter in tests.
type Dispatch struct {
	Dispatches metric.Int64Counter
	Deductions metric.Int64Counter
	Refunds    metric.Int64Counter
}

// NewDispatch builds the dispatch counter set from a meter
func NewDispatch(m *Meter) (*Dispatch, error) {
	dispatches, err := m.CreateCounter("dispatch_total", "Inbound messages dispatched")
	if err != nil {
		return nil, err
	}
	deductions, err := m.CreateCounter("credit_deductions_total", "Successful credit deductions")
	if err != nil {
		return nil, err
	}
	refunds, err := m.CreateCounter("credit_refunds_total", "Credit refunds after failed work")
	if err != nil {
		return nil, err
	}
	return &Dispatch{Dispatches: dispatches, Deductions: deductions, Refunds: refunds}, nil
}

// RecordDispatch counts one dispatched message tagged with its intent
func (d *Dispatch) RecordDispatch(ctx context.Context, intent string) {
	if d == nil || d.Dispatches == nil {
		return
	}
	d.Dispatches.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

// RecordDeduction counts one successful deduction
func (d *Dispatch) RecordDeduction(ctx context.Context, amount int64) {
	if d == nil || d.Deductions == nil {
		return
	}
	d.Deductions.Add(ctx, amount)
}

// RecordRefund counts one refund
func (d *Dispatch) RecordRefund(ctx context.Context, amount int64) {
	if d == nil || d.Refunds == nil {
		return
	}
	d.Refunds.Add(ctx, amount)
}
