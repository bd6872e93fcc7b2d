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
	"sync"

	"github.com/a2aproject/a2a-go/a2a"
)

// RunningTasks tracks the cancellation flag of every task an Executor has
// started. It is safe for concurrent use.
//
// Entries are inserted when a run starts and removed only when the handler
// fails outright. Runs that complete, are cancelled, or yield an Error keep
// their entry. An entry is active only while its run loop is consuming the
// handler.
type RunningTasks struct {
	mu    sync.RWMutex
	tasks map[a2a.TaskID]*runState
}

type runState struct {
	cancelled bool
	active    bool
}

// NewRunningTasks creates an empty registry.
func NewRunningTasks() *RunningTasks {
	return &RunningTasks{tasks: make(map[a2a.TaskID]*runState)}
}

// Start registers id as active with a cleared cancellation flag.
func (r *RunningTasks) Start(id a2a.TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[id] = &runState{active: true}
}

// Finish marks the run of id as over. The entry itself stays tracked.
func (r *RunningTasks) Finish(id a2a.TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.tasks[id]; ok {
		st.active = false
	}
}

// Cancel sets the cancellation flag of a tracked id and reports whether a
// run loop is active to observe it. Unknown ids are left alone.
func (r *RunningTasks) Cancel(id a2a.TaskID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.tasks[id]
	if !ok {
		return false
	}
	st.cancelled = true
	return st.active
}

// Active reports whether a run loop is consuming the handler of id.
func (r *RunningTasks) Active(id a2a.TaskID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.tasks[id]
	return ok && st.active
}

// Cancelled reports whether id is tracked and flagged.
func (r *RunningTasks) Cancelled(id a2a.TaskID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.tasks[id]
	return ok && st.cancelled
}

// Remove forgets id.
func (r *RunningTasks) Remove(id a2a.TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// Has reports whether id is tracked.
func (r *RunningTasks) Has(id a2a.TaskID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tasks[id]
	return ok
}

// Len returns the number of tracked tasks.
func (r *RunningTasks) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
