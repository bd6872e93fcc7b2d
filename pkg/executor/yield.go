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
	"github.com/a2aproject/a2a-go/a2a"
)

// YieldKind tags the variant held by a Yield.
type YieldKind int

const (
	// KindUnknown is the zero Yield. The executor drops it.
	KindUnknown YieldKind = iota
	KindText
	KindMessage
	KindPart
	KindStatus
	KindStatusUpdate
	KindArtifact
	KindError
	KindData
)

var yieldKindNames = [...]string{
	KindUnknown:      "unknown",
	KindText:         "text",
	KindMessage:      "message",
	KindPart:         "part",
	KindStatus:       "status",
	KindStatusUpdate: "status_update",
	KindArtifact:     "artifact",
	KindError:        "error",
	KindData:         "data",
}

func (k YieldKind) String() string {
	if k < 0 || int(k) >= len(yieldKindNames) {
		return yieldKindNames[KindUnknown]
	}
	return yieldKindNames[k]
}

// Yield is one step of handler output. Build it with the constructors below;
// each one sets exactly one variant.
type Yield struct {
	kind     YieldKind
	text     string
	message  *a2a.Message
	part     a2a.Part
	status   a2a.TaskStatus
	update   *a2a.TaskStatusUpdateEvent
	artifact *a2a.Artifact
	err      error
	data     map[string]any
	metadata map[string]any
}

// Text yields a working update carrying one text part.
func Text(s string) Yield { return Yield{kind: KindText, text: s} }

// Message yields a full message. Its task and context ids are overwritten
// with the running task's.
func Message(m *a2a.Message) Yield {
	if m == nil {
		return Yield{}
	}
	return Yield{kind: KindMessage, message: m}
}

// Part yields a single part wrapped in an agent message.
func Part(p a2a.Part) Yield {
	if p == nil {
		return Yield{}
	}
	return Yield{kind: KindPart, part: p}
}

// Status yields a bare task status. Pause and terminal states end the run.
func Status(s a2a.TaskStatus) Yield { return Yield{kind: KindStatus, status: s} }

// StatusUpdate yields a status event that is published as is.
func StatusUpdate(ev *a2a.TaskStatusUpdateEvent) Yield {
	if ev == nil {
		return Yield{}
	}
	return Yield{kind: KindStatusUpdate, update: ev}
}

// Artifact yields a complete artifact.
func Artifact(a *a2a.Artifact) Yield {
	if a == nil {
		return Yield{}
	}
	return Yield{kind: KindArtifact, artifact: a}
}

// Error yields a soft failure. The task fails with the error text and the
// handler is not resumed.
func Error(err error) Yield {
	if err == nil {
		return Yield{}
	}
	return Yield{kind: KindError, err: err}
}

// Data yields structured data wrapped in an agent message.
func Data(d map[string]any) Yield { return Yield{kind: KindData, data: d} }

// WithMetadata attaches extension metadata, such as citations or trajectory
// steps, to the message synthesized for a Text, Part or Data yield.
func (y Yield) WithMetadata(meta map[string]any) Yield {
	y.metadata = meta
	return y
}

// Kind returns the variant tag.
func (y Yield) Kind() YieldKind { return y.kind }

// AsStatus returns the status held by a Status yield.
func (y Yield) AsStatus() (a2a.TaskStatus, bool) {
	return y.status, y.kind == KindStatus
}
