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

// Package client talks to an extension-aware agent: it negotiates the
// agent's demands before each message and tells the caller what follow-up a
// paused task needs.
package client

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"net/http"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"

	"github.com/kadirpekel/agentext/pkg/classify"
	"github.com/kadirpekel/agentext/pkg/negotiation"
)

// ErrEmptyMessage is returned by Send for a nil or empty message.
var ErrEmptyMessage = errors.New("message has no parts")

// Update is one event of a streamed run. FollowUps is set for status updates
// that pause the task.
type Update struct {
	Event     a2a.Event
	Status    *a2a.TaskStatusUpdateEvent
	FollowUps []classify.Result
}

// Client is an A2A client bound to one agent card.
type Client struct {
	card     *a2a.AgentCard
	pipeline *negotiation.Pipeline
	client   *a2aclient.Client
}

type dialOptions struct {
	httpClient *http.Client
}

// DialOption configures Dial.
type DialOption func(*dialOptions)

// WithHTTPClient resolves the agent card with c.
func WithHTTPClient(c *http.Client) DialOption {
	return func(o *dialOptions) {
		o.httpClient = c
	}
}

// Dial resolves the agent card served under url and connects to the agent.
func Dial(ctx context.Context, url string, opts ...DialOption) (*Client, error) {
	var o dialOptions
	for _, opt := range opts {
		opt(&o)
	}

	resolver := agentcard.DefaultResolver
	if o.httpClient != nil {
		resolver = agentcard.NewResolver(o.httpClient)
	}
	card, err := resolver.Resolve(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent card: %w", err)
	}
	return New(ctx, card)
}

// New connects to the agent described by card.
func New(ctx context.Context, card *a2a.AgentCard) (*Client, error) {
	c, err := a2aclient.NewFromCard(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to create a2a client: %w", err)
	}
	return &Client{card: card, pipeline: negotiation.New(card), client: c}, nil
}

// Card returns the agent card.
func (c *Client) Card() *a2a.AgentCard { return c.card }

// Demands returns what the agent asks callers for.
func (c *Client) Demands() negotiation.Demands { return c.pipeline.Demands() }

// NewMessage builds a user text message. Empty ids start a new context or
// task.
func NewMessage(text, contextID string, taskID a2a.TaskID) *a2a.Message {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})
	msg.ContextID = contextID
	msg.TaskID = taskID
	return msg
}

// SendText sends text within contextID and taskID. See Send.
func (c *Client) SendText(ctx context.Context, text string, provider negotiation.FulfillmentProvider, contextID string, taskID a2a.TaskID) iter.Seq2[Update, error] {
	return c.Send(ctx, NewMessage(text, contextID, taskID), provider)
}

// Send negotiates fulfillments with provider, attaches them to msg and
// streams the agent's response. Metadata already on msg takes precedence
// over negotiated values. The sequence ends after the first error.
func (c *Client) Send(ctx context.Context, msg *a2a.Message, provider negotiation.FulfillmentProvider) iter.Seq2[Update, error] {
	return func(yield func(Update, error) bool) {
		if msg == nil || len(msg.Parts) == 0 {
			yield(Update{}, ErrEmptyMessage)
			return
		}

		meta, err := c.pipeline.ResolveMetadata(ctx, provider)
		if err != nil {
			yield(Update{}, fmt.Errorf("negotiation failed: %w", err))
			return
		}
		out := *msg
		out.Metadata = make(map[string]any, len(meta)+len(msg.Metadata))
		maps.Copy(out.Metadata, meta)
		maps.Copy(out.Metadata, msg.Metadata)

		slog.Debug("Sending message", "agent", c.card.Name, "taskID", out.TaskID, "extensions", len(meta))

		for ev, err := range c.client.SendStreamingMessage(ctx, &a2a.MessageSendParams{Message: &out}) {
			if err != nil {
				yield(Update{}, err)
				return
			}
			u := Update{Event: ev}
			if st, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
				u.Status = st
				u.FollowUps = classify.Classify(st)
			}
			if !yield(u, nil) {
				return
			}
		}
	}
}

// Cancel asks the agent to cancel taskID.
func (c *Client) Cancel(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	return c.client.CancelTask(ctx, &a2a.TaskIDParams{ID: taskID})
}

// Task fetches the current state of taskID.
func (c *Client) Task(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	return c.client.GetTask(ctx, &a2a.TaskQueryParams{ID: taskID})
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.client.Destroy()
}
