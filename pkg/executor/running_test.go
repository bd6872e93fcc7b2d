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
	"fmt"
	"sync"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
)

func TestRunningTasks(t *testing.T) {
	r := NewRunningTasks()

	if r.Cancel("missing") {
		t.Error("Cancel() on an unknown id reported true")
	}
	if r.Cancelled("missing") {
		t.Error("Cancelled() on an unknown id reported true")
	}

	r.Start("a")
	if !r.Has("a") || !r.Active("a") || r.Cancelled("a") {
		t.Fatal("Start() must register a cleared flag")
	}
	if !r.Cancel("a") || !r.Cancelled("a") {
		t.Fatal("Cancel() must set the flag")
	}

	// Restarting a task clears its flag.
	r.Start("a")
	if r.Cancelled("a") {
		t.Error("Start() must reset the flag")
	}

	r.Finish("a")
	if !r.Has("a") || r.Active("a") {
		t.Fatal("Finish() must keep the entry and clear the active mark")
	}
	if r.Cancel("a") {
		t.Error("Cancel() on a finished run reported an active loop")
	}
	if !r.Cancelled("a") {
		t.Error("Cancel() on a finished run must still set the flag")
	}
	r.Finish("missing")

	r.Remove("a")
	if r.Has("a") || r.Len() != 0 {
		t.Error("Remove() must forget the id")
	}
	r.Remove("a")
}

func TestRunningTasks_Concurrent(t *testing.T) {
	r := NewRunningTasks()
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := a2a.TaskID(fmt.Sprintf("task-%d", i))
			r.Start(id)
			r.Cancel(id)
			_ = r.Cancelled(id)
			if i%2 == 0 {
				r.Remove(id)
			}
		}()
	}
	wg.Wait()

	if got := r.Len(); got != 32 {
		t.Errorf("Len() = %d, want 32", got)
	}
}

func TestYieldKindString(t *testing.T) {
	tests := map[YieldKind]string{
		KindUnknown:      "unknown",
		KindText:         "text",
		KindStatusUpdate: "status_update",
		KindData:         "data",
		YieldKind(99):    "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("YieldKind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

func TestConstructorsRejectNil(t *testing.T) {
	for name, y := range map[string]Yield{
		"message":       Message(nil),
		"part":          Part(nil),
		"status update": StatusUpdate(nil),
		"artifact":      Artifact(nil),
		"error":         Error(nil),
	} {
		if y.Kind() != KindUnknown {
			t.Errorf("%s: Kind() = %v, want unknown", name, y.Kind())
		}
	}
}

func TestYieldAsStatus(t *testing.T) {
	if _, ok := Text("x").AsStatus(); ok {
		t.Error("Text yield reported a status")
	}
	st, ok := Status(a2a.TaskStatus{State: a2a.TaskStateAuthRequired}).AsStatus()
	if !ok || st.State != a2a.TaskStateAuthRequired {
		t.Errorf("AsStatus() = %v, %v", st, ok)
	}
}
