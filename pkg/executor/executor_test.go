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

package executor

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingQueue is an eventqueue.Queue that records writes.
type recordingQueue struct {
	mu       sync.Mutex
	events   []a2a.Event
	closed   int
	writeErr error
}

func (q *recordingQueue) Read(ctx context.Context) (a2a.Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *recordingQueue) Write(_ context.Context, ev a2a.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.writeErr != nil {
		return q.writeErr
	}
	q.events = append(q.events, ev)
	return nil
}

func (q *recordingQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed++
	return nil
}

func (q *recordingQueue) snapshot() []a2a.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]a2a.Event, len(q.events))
	copy(out, q.events)
	return out
}

func newRequest(taskID a2a.TaskID, text string) *a2asrv.RequestContext {
	return &a2asrv.RequestContext{
		Message:   a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text}),
		TaskID:    taskID,
		ContextID: "ctx-" + string(taskID),
	}
}

func newTestExecutor(t *testing.T, h Handler, opts ...Option) *Executor {
	t.Helper()
	e, err := New(h, opts...)
	require.NoError(t, err)
	return e
}

func statusUpdates(t *testing.T, events []a2a.Event) []*a2a.TaskStatusUpdateEvent {
	t.Helper()
	var out []*a2a.TaskStatusUpdateEvent
	for _, ev := range events {
		if su, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
			out = append(out, su)
		}
	}
	return out
}

func messageText(t *testing.T, msg *a2a.Message) string {
	t.Helper()
	require.NotNil(t, msg)
	require.Len(t, msg.Parts, 1)
	tp, ok := msg.Parts[0].(a2a.TextPart)
	require.True(t, ok, "expected text part, got %T", msg.Parts[0])
	return tp.Text
}

func TestExecute_ThreeStrings(t *testing.T) {
	h := func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
		return Values(Text("one"), Text("two"), Text("three"))
	}
	e := newTestExecutor(t, h)
	q := &recordingQueue{}

	require.NoError(t, e.Execute(context.Background(), newRequest("t1", "hi"), q))

	events := q.snapshot()
	require.Len(t, events, 6)

	task, ok := events[0].(*a2a.Task)
	require.True(t, ok, "first event must be the submitted task, got %T", events[0])
	assert.Equal(t, a2a.TaskStateSubmitted, task.Status.State)
	assert.Equal(t, a2a.TaskID("t1"), task.ID)
	assert.Equal(t, "ctx-t1", task.ContextID)

	updates := statusUpdates(t, events[1:])
	require.Len(t, updates, 5)
	assert.Equal(t, a2a.TaskStateWorking, updates[0].Status.State)
	assert.Nil(t, updates[0].Status.Message)
	assert.False(t, updates[0].Final)

	for i, want := range []string{"one", "two", "three"} {
		u := updates[i+1]
		assert.Equal(t, a2a.TaskStateWorking, u.Status.State)
		assert.False(t, u.Final)
		assert.Equal(t, a2a.TaskID("t1"), u.TaskID)
		assert.Equal(t, want, messageText(t, u.Status.Message))
		assert.Equal(t, a2a.MessageRoleAgent, u.Status.Message.Role)
	}

	last := updates[4]
	assert.Equal(t, a2a.TaskStateCompleted, last.Status.State)
	assert.True(t, last.Final)
	assert.Equal(t, 1, q.closed)

	// Completed runs keep their registry entry.
	assert.True(t, e.RunningTasks().Has("t1"))
}

func TestExecute_ExistingTaskIsReused(t *testing.T) {
	h := func(_ context.Context, _ *a2a.Message, rc RunContext, _ Dependencies) iter.Seq2[Yield, error] {
		return Once(Text(string(rc.Task.Status.State)))
	}
	e := newTestExecutor(t, h)
	q := &recordingQueue{}
	req := newRequest("t2", "answer")
	req.StoredTask = &a2a.Task{ID: "t2", ContextID: "ctx-t2", Status: a2a.TaskStatus{State: a2a.TaskStateInputRequired}}

	require.NoError(t, e.Execute(context.Background(), req, q))

	events := q.snapshot()
	require.Len(t, events, 2)
	updates := statusUpdates(t, events)
	require.Len(t, updates, 2, "no task creation pair for a stored task")
	assert.Equal(t, "input-required", messageText(t, updates[0].Status.Message))
	assert.Equal(t, a2a.TaskStateCompleted, updates[1].Status.State)
}

func TestExecute_HandlerThrows(t *testing.T) {
	boom := errors.New("model unavailable")
	h := func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
		return func(yield func(Yield, error) bool) {
			if !yield(Text("starting"), nil) {
				return
			}
			yield(Yield{}, boom)
		}
	}
	e := newTestExecutor(t, h)
	q := &recordingQueue{}

	require.NoError(t, e.Execute(context.Background(), newRequest("t3", "hi"), q))

	updates := statusUpdates(t, q.snapshot())
	var failed []*a2a.TaskStatusUpdateEvent
	for _, u := range updates {
		if u.Status.State == a2a.TaskStateFailed {
			failed = append(failed, u)
		}
	}
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Final)
	assert.Equal(t, "model unavailable", messageText(t, failed[0].Status.Message))
	assert.Equal(t, a2a.TaskStateFailed, updates[len(updates)-1].Status.State)

	// Thrown failures forget the task; cancelling afterwards is a no-op.
	assert.False(t, e.RunningTasks().Has("t3"))
	assert.NotPanics(t, func() {
		e.CancelTask("t3")
		e.CancelTask("t3")
	})
	assert.False(t, e.RunningTasks().Has("t3"))
	assert.Equal(t, 1, q.closed)
}

func TestExecute_HandlerPanics(t *testing.T) {
	h := func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
		return func(yield func(Yield, error) bool) {
			panic("nil map write")
		}
	}
	e := newTestExecutor(t, h)
	q := &recordingQueue{}

	require.NoError(t, e.Execute(context.Background(), newRequest("t4", "hi"), q))

	updates := statusUpdates(t, q.snapshot())
	last := updates[len(updates)-1]
	assert.Equal(t, a2a.TaskStateFailed, last.Status.State)
	assert.True(t, last.Final)
	assert.Contains(t, messageText(t, last.Status.Message), "nil map write")
	assert.False(t, e.RunningTasks().Has("t4"))
}

func TestExecute_YieldedErrorKeepsEntry(t *testing.T) {
	resumed := false
	h := func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
		return func(yield func(Yield, error) bool) {
			if !yield(Error(errors.New("quota exceeded")), nil) {
				return
			}
			resumed = true
			yield(Text("unreachable"), nil)
		}
	}
	e := newTestExecutor(t, h)
	q := &recordingQueue{}

	require.NoError(t, e.Execute(context.Background(), newRequest("t5", "hi"), q))

	updates := statusUpdates(t, q.snapshot())
	last := updates[len(updates)-1]
	assert.Equal(t, a2a.TaskStateFailed, last.Status.State)
	assert.True(t, last.Final)
	assert.Equal(t, "quota exceeded", messageText(t, last.Status.Message))
	assert.False(t, resumed, "handler must not be resumed after a yielded error")

	// Soft failures leave the registry entry in place.
	assert.True(t, e.RunningTasks().Has("t5"))
	for _, u := range updates {
		assert.NotEqual(t, a2a.TaskStateCompleted, u.Status.State)
	}
}

func TestExecute_CancelBetweenYields(t *testing.T) {
	var e *Executor
	secondSent := false
	h := func(_ context.Context, _ *a2a.Message, rc RunContext, _ Dependencies) iter.Seq2[Yield, error] {
		return func(yield func(Yield, error) bool) {
			if !yield(Text("first"), nil) {
				return
			}
			e.CancelTask(rc.TaskID)
			if !yield(Text("second"), nil) {
				return
			}
			secondSent = true
		}
	}
	e = newTestExecutor(t, h)
	q := &recordingQueue{}

	require.NoError(t, e.Execute(context.Background(), newRequest("t6", "hi"), q))

	updates := statusUpdates(t, q.snapshot())
	// working, "first", canceled
	require.Len(t, updates, 3)
	assert.Equal(t, "first", messageText(t, updates[1].Status.Message))
	assert.Equal(t, a2a.TaskStateCanceled, updates[2].Status.State)
	assert.True(t, updates[2].Final)
	assert.False(t, secondSent)
	for _, u := range updates {
		if u.Status.Message != nil {
			assert.NotEqual(t, "second", messageText(t, u.Status.Message))
		}
	}
	assert.True(t, e.RunningTasks().Has("t6"), "cancelled runs keep their entry")
}

// A handler that stops yielding after cancellation is never interrupted:
// cancellation is only observed between handler steps, so no canceled event is
// published and the run completes normally once the handler returns.
func TestExecute_CancelWithoutFurtherYieldIsNotObserved(t *testing.T) {
	release := make(chan struct{})
	firstPublished := make(chan struct{})
	h := func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
		return func(yield func(Yield, error) bool) {
			if !yield(Text("working on it"), nil) {
				return
			}
			close(firstPublished)
			<-release
		}
	}
	e := newTestExecutor(t, h)
	q := &recordingQueue{}

	done := make(chan error, 1)
	go func() { done <- e.Execute(context.Background(), newRequest("t7", "hi"), q) }()

	<-firstPublished
	e.CancelTask("t7")

	select {
	case <-done:
		t.Fatal("Execute returned while the handler was blocked")
	case <-time.After(50 * time.Millisecond):
	}
	for _, u := range statusUpdates(t, q.snapshot()) {
		assert.NotEqual(t, a2a.TaskStateCanceled, u.Status.State)
	}

	close(release)
	require.NoError(t, <-done)

	updates := statusUpdates(t, q.snapshot())
	assert.Equal(t, a2a.TaskStateCompleted, updates[len(updates)-1].Status.State)
}

func TestExecute_YieldTranslation(t *testing.T) {
	custom := &a2a.TaskStatusUpdateEvent{
		TaskID:    "t8",
		ContextID: "ctx-t8",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
		Metadata:  map[string]any{"custom": true},
	}
	foreign := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "full message"})
	foreign.Metadata = map[string]any{"k": "v"}
	artifact := &a2a.Artifact{Name: "report.md", Parts: a2a.ContentParts{a2a.TextPart{Text: "# Report"}}}

	h := func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
		return Values(
			Message(foreign),
			Part(a2a.TextPart{Text: "a part"}),
			StatusUpdate(custom),
			Status(a2a.TaskStatus{State: a2a.TaskStateWorking}),
			Artifact(artifact),
			Data(map[string]any{"answer": 42}),
			Yield{},
			Text("cited").WithMetadata(map[string]any{"urn:x": map[string]any{}}),
		)
	}
	e := newTestExecutor(t, h)
	q := &recordingQueue{}
	require.NoError(t, e.Execute(context.Background(), newRequest("t8", "go"), q))

	events := q.snapshot()[2:] // skip task creation pair
	require.Len(t, events, 8, "zero yield is dropped")

	msgEv := events[0].(*a2a.TaskStatusUpdateEvent)
	assert.Equal(t, "full message", messageText(t, msgEv.Status.Message))
	assert.Equal(t, foreign.ID, msgEv.Status.Message.ID)
	assert.Equal(t, map[string]any{"k": "v"}, msgEv.Status.Message.Metadata)

	partEv := events[1].(*a2a.TaskStatusUpdateEvent)
	assert.Equal(t, "a part", messageText(t, partEv.Status.Message))

	assert.Same(t, custom, events[2], "status updates are published verbatim")

	statusEv := events[3].(*a2a.TaskStatusUpdateEvent)
	assert.Equal(t, a2a.TaskStateWorking, statusEv.Status.State)
	assert.False(t, statusEv.Final)

	artEv, ok := events[4].(*a2a.TaskArtifactUpdateEvent)
	require.True(t, ok)
	assert.True(t, artEv.LastChunk)
	assert.False(t, artEv.Append)
	assert.Equal(t, "report.md", artEv.Artifact.Name)
	assert.NotEmpty(t, artEv.Artifact.ID)
	assert.Equal(t, a2a.TaskID("t8"), artEv.TaskID)

	dataEv := events[5].(*a2a.TaskStatusUpdateEvent)
	require.Len(t, dataEv.Status.Message.Parts, 1)
	dp, ok := dataEv.Status.Message.Parts[0].(a2a.DataPart)
	require.True(t, ok)
	assert.Equal(t, 42, dp.Data["answer"])

	citedEv := events[6].(*a2a.TaskStatusUpdateEvent)
	assert.Contains(t, citedEv.Status.Message.Metadata, "urn:x")

	assert.Equal(t, a2a.TaskStateCompleted, events[7].(*a2a.TaskStatusUpdateEvent).Status.State)
}

func TestExecute_PauseStateEndsRun(t *testing.T) {
	tests := []struct {
		name  string
		state a2a.TaskState
	}{
		{"input required", a2a.TaskStateInputRequired},
		{"auth required", a2a.TaskStateAuthRequired},
		{"rejected", a2a.TaskStateRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
				return Values(Status(a2a.TaskStatus{State: tt.state}), Text("never"))
			}
			e := newTestExecutor(t, h)
			q := &recordingQueue{}
			require.NoError(t, e.Execute(context.Background(), newRequest("p", "hi"), q))

			updates := statusUpdates(t, q.snapshot())
			last := updates[len(updates)-1]
			assert.Equal(t, tt.state, last.Status.State)
			assert.True(t, last.Final)
			assert.Len(t, updates, 2)
		})
	}
}

func TestExecute_Dependencies(t *testing.T) {
	var got Dependencies
	h := func(_ context.Context, _ *a2a.Message, _ RunContext, deps Dependencies) iter.Seq2[Yield, error] {
		got = deps
		return Values()
	}
	e := newTestExecutor(t, h, WithExtensions(
		stubExtension{uri: "urn:present"},
		stubExtension{uri: "urn:absent"},
	))
	req := newRequest("t9", "hi")
	req.Message.Metadata = map[string]any{"urn:present": "value"}

	require.NoError(t, e.Execute(context.Background(), req, &recordingQueue{}))

	v, ok := got.Get("urn:present")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
	_, ok = got.Get("urn:absent")
	assert.False(t, ok)
	assert.Equal(t, 1, got.Len())
}

func TestExecute_NoMessage(t *testing.T) {
	e := newTestExecutor(t, func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
		return Values()
	})
	q := &recordingQueue{}
	err := e.Execute(context.Background(), &a2asrv.RequestContext{TaskID: "x"}, q)
	assert.ErrorIs(t, err, ErrNoMessage)
	assert.Empty(t, q.snapshot())
	assert.Equal(t, 1, q.closed)
}

func TestExecute_WriteErrorIsReturned(t *testing.T) {
	e := newTestExecutor(t, func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
		return Values(Text("x"))
	})
	q := &recordingQueue{writeErr: errors.New("queue closed")}
	err := e.Execute(context.Background(), newRequest("t10", "hi"), q)
	assert.Error(t, err)
	assert.Equal(t, 1, q.closed)
}

func TestCancel(t *testing.T) {
	e := newTestExecutor(t, func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
		return Values()
	})

	// Untracked task: the canceled event is written directly.
	q := &recordingQueue{}
	require.NoError(t, e.Cancel(context.Background(), newRequest("unknown", ""), q))
	updates := statusUpdates(t, q.snapshot())
	require.Len(t, updates, 1)
	assert.Equal(t, a2a.TaskStateCanceled, updates[0].Status.State)
	assert.True(t, updates[0].Final)

	// Active run: only the flag is set.
	e.RunningTasks().Start("tracked")
	q = &recordingQueue{}
	require.NoError(t, e.Cancel(context.Background(), newRequest("tracked", ""), q))
	assert.Empty(t, q.snapshot())
	assert.True(t, e.RunningTasks().Cancelled("tracked"))

	// Tracked but no loop left: the canceled event is written directly.
	e.RunningTasks().Start("paused")
	e.RunningTasks().Finish("paused")
	q = &recordingQueue{}
	require.NoError(t, e.Cancel(context.Background(), newRequest("paused", ""), q))
	updates = statusUpdates(t, q.snapshot())
	require.Len(t, updates, 1)
	assert.Equal(t, a2a.TaskStateCanceled, updates[0].Status.State)
	assert.True(t, updates[0].Final)
	assert.True(t, e.RunningTasks().Has("paused"))
}

func TestExecute_CancelBeforeThrownError(t *testing.T) {
	var e *Executor
	h := func(_ context.Context, _ *a2a.Message, rc RunContext, _ Dependencies) iter.Seq2[Yield, error] {
		return func(yield func(Yield, error) bool) {
			if !yield(Text("first"), nil) {
				return
			}
			e.CancelTask(rc.TaskID)
			yield(Yield{}, errors.New("upstream closed"))
		}
	}
	e = newTestExecutor(t, h)
	q := &recordingQueue{}

	require.NoError(t, e.Execute(context.Background(), newRequest("t11", "hi"), q))

	updates := statusUpdates(t, q.snapshot())
	last := updates[len(updates)-1]
	assert.Equal(t, a2a.TaskStateCanceled, last.Status.State)
	assert.True(t, last.Final)
	for _, u := range updates {
		assert.NotEqual(t, a2a.TaskStateFailed, u.Status.State)
	}
	assert.True(t, e.RunningTasks().Has("t11"))
}

func TestRequestHandler_CancelPausedTask(t *testing.T) {
	tests := []struct {
		name  string
		state a2a.TaskState
	}{
		{"input required", a2a.TaskStateInputRequired},
		{"auth required", a2a.TaskStateAuthRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExecutor(t, func(context.Context, *a2a.Message, RunContext, Dependencies) iter.Seq2[Yield, error] {
				return Once(Status(a2a.TaskStatus{State: tt.state}))
			})
			rh := a2asrv.NewHandler(e)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			res, err := rh.OnSendMessage(ctx, &a2a.MessageSendParams{
				Message: a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"}),
			})
			require.NoError(t, err)
			task, ok := res.(*a2a.Task)
			require.True(t, ok, "expected a task, got %T", res)
			assert.Equal(t, tt.state, task.Status.State)
			assert.True(t, e.RunningTasks().Has(task.ID))
			assert.False(t, e.RunningTasks().Active(task.ID))

			// A non-streaming send returns on auth-required before the
			// request handler drops the execution, so retry until it does.
			var canceled *a2a.Task
			require.Eventually(t, func() bool {
				cctx, ccancel := context.WithTimeout(ctx, time.Second)
				defer ccancel()
				got, cerr := rh.OnCancelTask(cctx, &a2a.TaskIDParams{ID: task.ID})
				if cerr != nil {
					return false
				}
				canceled = got
				return true
			}, 4*time.Second, 20*time.Millisecond)
			assert.Equal(t, a2a.TaskStateCanceled, canceled.Status.State)
		})
	}
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoHandler)
}

type stubExtension struct{ uri string }

func (s stubExtension) URI() string { return s.uri }

func (s stubExtension) Parse(meta map[string]any) (any, bool) {
	v, ok := meta[s.uri]
	return v, ok
}
