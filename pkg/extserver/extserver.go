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

// Package extserver is the agent side of extension negotiation. Each server
// declares a demand on the agent card, parses the caller's fulfillment out
// of incoming message metadata, and turns it into something a handler can
// use: a chat client, an MCP session, an OAuth token.
package extserver

import (
	"errors"
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
)

var (
	// ErrNotFulfilled is returned when the caller granted nothing for a
	// demand the handler needs.
	ErrNotFulfilled = errors.New("extension not fulfilled")

	// ErrStateMismatch is returned when an OAuth redirect does not belong to
	// the pending authorization.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrTokenExpired is returned for platform tokens past their expiry.
	ErrTokenExpired = errors.New("platform token expired")
)

// Server is an agent-side extension.
type Server interface {
	executor.Extension

	// Name is the short extension name.
	Name() string

	// Declare renders the agent card entry.
	Declare() (a2a.AgentExtension, error)
}

type base[D, F any] struct {
	entry    *ext.Entry[D, F]
	demand   *D
	required bool
}

func newBase[D, F any](e *ext.Entry[D, F], demand *D, required bool) base[D, F] {
	return base[D, F]{entry: e, demand: demand, required: required}
}

func (b *base[D, F]) URI() string  { return b.entry.URI() }
func (b *base[D, F]) Name() string { return b.entry.Name() }

func (b *base[D, F]) Declare() (a2a.AgentExtension, error) {
	return ext.Declare(b.entry, b.demand, b.required)
}

// Demand returns the declared demand.
func (b *base[D, F]) Demand() *D { return b.demand }

func (b *base[D, F]) Parse(meta map[string]any) (any, bool) {
	f, ok := ext.Fulfillment(b.entry, meta)
	if !ok {
		return nil, false
	}
	return f, true
}

// From returns the fulfillment the executor parsed for this run.
func (b *base[D, F]) From(deps executor.Dependencies) (*F, bool) {
	v, ok := deps.Get(b.entry.URI())
	if !ok {
		return nil, false
	}
	f, ok := v.(*F)
	return f, ok
}

func notFulfilled(name, key string) error {
	return fmt.Errorf("%s %q: %w", name, key, ErrNotFulfilled)
}

// statusYield builds a pause status whose agent message carries meta.
func statusYield(state a2a.TaskState, text string, meta map[string]any) executor.Yield {
	msg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: text})
	msg.Metadata = meta
	return executor.Status(a2a.TaskStatus{State: state, Message: msg})
}
