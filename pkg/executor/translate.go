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
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
)

// translate maps one yield to the event it publishes. final reports whether
// the event ends the run. A nil event means the yield is dropped.
func translate(rc RunContext, y Yield) (ev a2a.Event, final bool) {
	switch y.kind {
	case KindText:
		msg := agentMessage(rc, y.metadata, a2a.TextPart{Text: y.text})
		return newStatusEvent(rc, a2a.TaskStateWorking, msg, false), false

	case KindError:
		return newFailedEvent(rc, y.err), true

	case KindMessage:
		return newStatusEvent(rc, a2a.TaskStateWorking, restamp(rc, y.message), false), false

	case KindPart:
		msg := agentMessage(rc, y.metadata, y.part)
		return newStatusEvent(rc, a2a.TaskStateWorking, msg, false), false

	case KindStatusUpdate:
		return y.update, y.update.Final

	case KindStatus:
		status := y.status
		if status.State == "" {
			status.State = a2a.TaskStateWorking
		}
		final := endsRun(status.State)
		msg := status.Message
		if msg != nil {
			msg = restamp(rc, msg)
		}
		ev := newStatusEvent(rc, status.State, msg, final)
		if status.Timestamp != nil {
			ev.Status.Timestamp = status.Timestamp
		}
		return ev, final

	case KindArtifact:
		art := *y.artifact
		if art.ID == "" {
			art.ID = a2a.ArtifactID(uuid.NewString())
		}
		ev := a2a.NewArtifactEvent(rc)
		ev.Artifact = &art
		ev.Append = false
		ev.LastChunk = true
		return ev, false

	case KindData:
		msg := agentMessage(rc, y.metadata, a2a.DataPart{Data: y.data})
		return newStatusEvent(rc, a2a.TaskStateWorking, msg, false), false
	}
	return nil, false
}

// endsRun reports whether a handler-published state leaves no room for
// further output: terminal states, and the pause states that wait for the
// caller's next message.
func endsRun(s a2a.TaskState) bool {
	return s.Terminal() || s == a2a.TaskStateInputRequired || s == a2a.TaskStateAuthRequired
}

func stateOf(ev a2a.Event) a2a.TaskState {
	if su, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
		return su.Status.State
	}
	return a2a.TaskStateWorking
}

func newSubmittedTask(info a2a.TaskInfoProvider, msg *a2a.Message) *a2a.Task {
	ti := info.TaskInfo()
	now := time.Now()
	return &a2a.Task{
		ID:        ti.TaskID,
		ContextID: ti.ContextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: &now},
		History:   []*a2a.Message{msg},
	}
}

func newStatusEvent(info a2a.TaskInfoProvider, state a2a.TaskState, msg *a2a.Message, final bool) *a2a.TaskStatusUpdateEvent {
	ev := a2a.NewStatusUpdateEvent(info, state, msg)
	ev.Final = final
	return ev
}

func newFailedEvent(info a2a.TaskInfoProvider, cause error) *a2a.TaskStatusUpdateEvent {
	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, info, a2a.TextPart{Text: cause.Error()})
	return newStatusEvent(info, a2a.TaskStateFailed, msg, true)
}

func agentMessage(rc RunContext, meta map[string]any, parts ...a2a.Part) *a2a.Message {
	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, rc, parts...)
	if len(meta) > 0 {
		msg.Metadata = meta
	}
	return msg
}

// restamp copies src onto the running task's ids.
func restamp(rc RunContext, src *a2a.Message) *a2a.Message {
	role := src.Role
	if role == "" {
		role = a2a.MessageRoleAgent
	}
	msg := a2a.NewMessageForTask(role, rc, src.Parts...)
	if src.ID != "" {
		msg.ID = src.ID
	}
	msg.Metadata = src.Metadata
	msg.Extensions = src.Extensions
	return msg
}
