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

// Package executor drives agent handlers and translates their output into
// A2A task events.
//
// Lifecycle per run:
//   - New task: publish the Task in the submitted state, then a working update
//   - Register the task in RunningTasks
//   - Parse extension fulfillments out of the incoming message
//   - Translate each handler Yield into a status or artifact event
//   - Before each handler step: if cancelled, publish canceled (final) and stop
//   - Handler exhausted: publish completed (final)
//   - Handler error or panic: publish failed (final), forget the task
//   - Always close the event queue
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

var (
	// ErrNoMessage is returned by Execute when the request carries no message.
	ErrNoMessage = errors.New("message not provided")

	// ErrNoHandler is returned by New when no handler is configured.
	ErrNoHandler = errors.New("handler is required")
)

const instrumentationName = "github.com/kadirpekel/agentext/pkg/executor"

// Option configures an Executor.
type Option func(*Executor)

// WithExtensions sets the extensions whose fulfillments are parsed out of
// every incoming message.
func WithExtensions(exts ...Extension) Option {
	return func(e *Executor) { e.extensions = append(e.extensions, exts...) }
}

// WithRunningTasks shares a registry between executors.
func WithRunningTasks(r *RunningTasks) Option {
	return func(e *Executor) { e.tasks = r }
}

// WithTracer sets the tracer used for run spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithMeter sets the meter used for run metrics.
func WithMeter(m metric.Meter) Option {
	return func(e *Executor) { e.meter = m }
}

// Executor implements a2asrv.AgentExecutor on top of a Handler.
type Executor struct {
	handler    Handler
	extensions []Extension
	tasks      *RunningTasks
	tracer     trace.Tracer
	meter      metric.Meter
	metrics    runMetrics
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)

// New creates an executor for handler.
func New(handler Handler, opts ...Option) (*Executor, error) {
	if handler == nil {
		return nil, ErrNoHandler
	}
	e := &Executor{handler: handler}
	for _, opt := range opts {
		opt(e)
	}
	if e.tasks == nil {
		e.tasks = NewRunningTasks()
	}
	if e.tracer == nil {
		e.tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	if e.meter == nil {
		e.meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	m, err := newRunMetrics(e.meter)
	if err != nil {
		return nil, err
	}
	e.metrics = m
	return e, nil
}

// RunningTasks returns the registry the executor tracks runs in.
func (e *Executor) RunningTasks() *RunningTasks { return e.tasks }

// CancelTask flags id for cancellation. An active loop publishes the
// canceled event at its next yield. Unknown ids are ignored.
func (e *Executor) CancelTask(id a2a.TaskID) {
	if e.tasks.Cancel(id) {
		slog.Debug("Cancellation requested", "taskID", string(id))
		e.metrics.cancellations.Add(context.Background(), 1)
	}
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) (err error) {
	defer func() {
		if cerr := queue.Close(); cerr != nil {
			slog.Debug("Execute: closing event queue failed", "taskID", string(reqCtx.TaskID), "error", cerr)
		}
	}()

	msg := reqCtx.Message
	if msg == nil {
		slog.Error("Execute: message not provided")
		return ErrNoMessage
	}

	ctx, span := e.tracer.Start(ctx, "agentext.execute", trace.WithAttributes(
		attribute.String("a2a.task_id", string(reqCtx.TaskID)),
		attribute.String("a2a.context_id", reqCtx.ContextID),
	))
	defer span.End()
	start := time.Now()

	task := reqCtx.StoredTask
	if task == nil {
		task = newSubmittedTask(reqCtx, msg)
		if err := queue.Write(ctx, task); err != nil {
			return fmt.Errorf("failed to write submitted task: %w", err)
		}
		if err := queue.Write(ctx, newStatusEvent(reqCtx, a2a.TaskStateWorking, nil, false)); err != nil {
			return fmt.Errorf("failed to write working event: %w", err)
		}
	}

	rc := RunContext{TaskID: reqCtx.TaskID, ContextID: reqCtx.ContextID, Task: task}
	e.tasks.Start(rc.TaskID)
	defer e.tasks.Finish(rc.TaskID)

	deps := resolveDependencies(e.extensions, msg)
	slog.Debug("Execute: running handler", "taskID", string(rc.TaskID), "contextID", rc.ContextID, "dependencies", deps.Len())

	state, err := e.run(ctx, queue, msg, rc, deps)

	attrs := metric.WithAttributes(attribute.String("state", string(state)))
	e.metrics.runs.Add(ctx, 1, attrs)
	e.metrics.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	span.SetAttributes(attribute.String("a2a.final_state", string(state)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if state == a2a.TaskStateFailed {
		span.SetStatus(codes.Error, "task failed")
	}
	return nil
}

// run consumes the handler and returns the last state it published. A
// non-nil error means publishing itself failed.
func (e *Executor) run(ctx context.Context, q eventqueue.Queue, msg *a2a.Message, rc RunContext, deps Dependencies) (state a2a.TaskState, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Handler panicked", "taskID", string(rc.TaskID), "panic", r)
			state, err = e.fail(ctx, q, rc, fmt.Errorf("handler panicked: %v", r))
		}
	}()

	for y, herr := range e.handler(ctx, msg, rc, deps) {
		if e.tasks.Cancelled(rc.TaskID) {
			slog.Debug("Run cancelled", "taskID", string(rc.TaskID))
			ev := newStatusEvent(rc, a2a.TaskStateCanceled, nil, true)
			return a2a.TaskStateCanceled, e.finish(ctx, q, rc, ev)
		}
		if herr != nil {
			return e.fail(ctx, q, rc, herr)
		}

		e.metrics.yields.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", y.kind.String())))
		ev, final := translate(rc, y)
		if ev == nil {
			slog.Debug("Dropping unknown yield", "taskID", string(rc.TaskID))
			continue
		}
		if final {
			return stateOf(ev), e.finish(ctx, q, rc, ev)
		}
		if err := writeEvent(ctx, q, ev); err != nil {
			return a2a.TaskStateUnknown, err
		}
	}

	ev := newStatusEvent(rc, a2a.TaskStateCompleted, nil, true)
	return a2a.TaskStateCompleted, e.finish(ctx, q, rc, ev)
}

// finish marks the run over, then publishes its final event. A Cancel seen
// after that point writes the canceled event itself.
func (e *Executor) finish(ctx context.Context, q eventqueue.Queue, rc RunContext, ev a2a.Event) error {
	e.tasks.Finish(rc.TaskID)
	return writeEvent(ctx, q, ev)
}

// fail publishes the failed status for a handler error and forgets the task.
func (e *Executor) fail(ctx context.Context, q eventqueue.Queue, rc RunContext, cause error) (a2a.TaskState, error) {
	slog.Error("Handler failed", "taskID", string(rc.TaskID), "error", cause)
	e.tasks.Remove(rc.TaskID)
	return a2a.TaskStateFailed, writeEvent(ctx, q, newFailedEvent(rc, cause))
}

// Cancel implements a2asrv.AgentExecutor.
//
// An active run is only flagged; its loop publishes the canceled event.
// Untracked tasks and tracked tasks whose run has ended, such as those paused
// in input-required, have no loop to observe the flag, so the canceled event
// is written here.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	if e.tasks.Cancel(reqCtx.TaskID) {
		e.metrics.cancellations.Add(ctx, 1)
		slog.Debug("Cancel: flagged running task", "taskID", string(reqCtx.TaskID))
		return nil
	}
	return queue.Write(ctx, newStatusEvent(reqCtx, a2a.TaskStateCanceled, nil, true))
}

func writeEvent(ctx context.Context, q eventqueue.Queue, ev a2a.Event) error {
	if err := q.Write(ctx, ev); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

type runMetrics struct {
	runs          metric.Int64Counter
	yields        metric.Int64Counter
	cancellations metric.Int64Counter
	duration      metric.Float64Histogram
}

func newRunMetrics(m metric.Meter) (runMetrics, error) {
	var rm runMetrics
	var err error
	if rm.runs, err = m.Int64Counter("agentext_runs_total",
		metric.WithDescription("Handler runs by final task state")); err != nil {
		return rm, fmt.Errorf("failed to create runs counter: %w", err)
	}
	if rm.yields, err = m.Int64Counter("agentext_yields_total",
		metric.WithDescription("Handler yields by kind")); err != nil {
		return rm, fmt.Errorf("failed to create yields counter: %w", err)
	}
	if rm.cancellations, err = m.Int64Counter("agentext_cancellations_total",
		metric.WithDescription("Cancellation requests for tracked tasks")); err != nil {
		return rm, fmt.Errorf("failed to create cancellations counter: %w", err)
	}
	if rm.duration, err = m.Float64Histogram("agentext_run_duration_seconds",
		metric.WithDescription("Handler run duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return rm, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return rm, nil
}
