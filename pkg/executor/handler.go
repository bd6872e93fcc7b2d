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
	"iter"

	"github.com/a2aproject/a2a-go/a2a"
)

// Handler is the agent logic driven by the Executor.
//
// The returned sequence is consumed strictly in order; the next step is not
// requested until the previous one is published. A non-nil error in the
// sequence fails the task and ends the run. Handlers must stop when yield
// returns false, which happens after cancellation or a terminal yield.
type Handler func(ctx context.Context, msg *a2a.Message, rc RunContext, deps Dependencies) iter.Seq2[Yield, error]

// RunContext identifies the task a handler invocation works on.
type RunContext struct {
	TaskID    a2a.TaskID
	ContextID string

	// Task is the stored task for follow-up messages, or the task created for
	// this run.
	Task *a2a.Task
}

// TaskInfo implements a2a.TaskInfoProvider.
func (rc RunContext) TaskInfo() a2a.TaskInfo {
	return a2a.TaskInfo{TaskID: rc.TaskID, ContextID: rc.ContextID}
}

// Values returns a sequence of ys.
func Values(ys ...Yield) iter.Seq2[Yield, error] {
	return func(yield func(Yield, error) bool) {
		for _, y := range ys {
			if !yield(y, nil) {
				return
			}
		}
	}
}

// Once returns a sequence of the single value y.
func Once(y Yield) iter.Seq2[Yield, error] { return Values(y) }

// Fail returns a sequence that fails immediately with err.
func Fail(err error) iter.Seq2[Yield, error] {
	return func(yield func(Yield, error) bool) {
		yield(Yield{}, err)
	}
}

// Extension parses one extension fulfillment out of incoming message
// metadata.
type Extension interface {
	URI() string
	Parse(meta map[string]any) (any, bool)
}

// Dependencies holds the fulfillments parsed for one run, keyed by extension
// URI. Extensions the caller did not fulfill are absent.
type Dependencies struct {
	values map[string]any
}

// NewDependencies returns dependencies holding values.
func NewDependencies(values map[string]any) Dependencies {
	return Dependencies{values: values}
}

// Get returns the parsed fulfillment for uri.
func (d Dependencies) Get(uri string) (any, bool) {
	v, ok := d.values[uri]
	return v, ok
}

// Len returns the number of fulfilled extensions.
func (d Dependencies) Len() int { return len(d.values) }

func resolveDependencies(exts []Extension, msg *a2a.Message) Dependencies {
	values := make(map[string]any, len(exts))
	var meta map[string]any
	if msg != nil {
		meta = msg.Metadata
	}
	for _, e := range exts {
		if v, ok := e.Parse(meta); ok {
			values[e.URI()] = v
		}
	}
	return Dependencies{values: values}
}
