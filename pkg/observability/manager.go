// Copyright 2025 Kadir Pekel
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

package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer and meter providers of the process.
type Manager struct {
	config  Config
	version string
	out     io.Writer

	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithVersion sets the service version reported on spans.
func WithVersion(v string) ManagerOption {
	return func(m *Manager) { m.version = v }
}

// WithSpanWriter redirects the stdout span exporter.
func WithSpanWriter(w io.Writer) ManagerOption {
	return func(m *Manager) { m.out = w }
}

func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		config:         cfg,
		tracerProvider: noop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitTracer(ctx, m.config.Tracing, m.version, m.out)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	mp, handler, err := InitMetrics(m.config.Metrics)
	if err != nil {
		return err
	}
	m.meterProvider = mp
	m.metricsHandler = handler

	slog.Debug("Observability initialized",
		"tracing", m.config.Tracing.Enabled,
		"exporter", m.config.Tracing.Exporter,
		"metrics", m.config.Metrics.Enabled)
	return nil
}

func (m *Manager) Tracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

func (m *Manager) Meter(name string) metric.Meter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meterProvider.Meter(name)
}

// MetricsHandler serves the Prometheus registry, or nil when metrics are
// disabled.
func (m *Manager) MetricsHandler() http.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metricsHandler
}

// MetricsPath is the route the handler is mounted on.
func (m *Manager) MetricsPath() string {
	return m.config.Metrics.Endpoint
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if s, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, s.Shutdown(ctx))
	}
	if s, ok := m.meterProvider.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, s.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
