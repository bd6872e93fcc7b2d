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

package ext

import "fmt"

// Display-only extensions. Agents attach them to the messages they yield;
// nothing is negotiated.
var (
	Approval         = newPayload[ApprovalRequest]("approval", "interactions/approval/v1")
	ApprovalDecision = newPayload[ApprovalResponse]("approval-response", "interactions/approval/response/v1")
	Citation         = newPayload[Citations]("citation", "ui/citation/v1")
	Trajectory       = newPayload[TrajectoryStep]("trajectory", "ui/trajectory/v1")
	Canvas           = newPayload[CanvasEdit]("canvas", "ui/canvas/v1")
	AgentDetail      = newPayload[AgentDetails]("agent-detail", "ui/agent-detail/v1")
	Error            = newPayload[ErrorDetail]("error", "ui/error/v1")
)

// Approval decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ApprovalTool identifies a tool call awaiting approval.
type ApprovalTool struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

type ApprovalRequest struct {
	Action      string        `json:"action" jsonschema:"required"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Tool        *ApprovalTool `json:"tool,omitempty"`
}

func (r *ApprovalRequest) Validate() error {
	if r.Action == "" {
		return fmt.Errorf("action: %w", ErrRequired)
	}
	return nil
}

type ApprovalResponse struct {
	Decision string `json:"decision" jsonschema:"required,enum=approve,enum=reject"`
}

func (r *ApprovalResponse) Validate() error {
	if r.Decision != DecisionApprove && r.Decision != DecisionReject {
		return fmt.Errorf("decision must be %q or %q, got %q", DecisionApprove, DecisionReject, r.Decision)
	}
	return nil
}

// Approved reports whether the caller approved.
func (r *ApprovalResponse) Approved() bool { return r.Decision == DecisionApprove }

type CitationItem struct {
	URL         string `json:"url,omitempty"`
	StartIndex  int    `json:"start_index,omitempty"`
	EndIndex    int    `json:"end_index,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type Citations struct {
	Citations []CitationItem `json:"citations" jsonschema:"required"`
}

func (c *Citations) Validate() error {
	for i, item := range c.Citations {
		if item.EndIndex < item.StartIndex {
			return fmt.Errorf("citations[%d]: end_index before start_index", i)
		}
	}
	return nil
}

type TrajectoryStep struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

type CanvasEdit struct {
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
	ArtifactID  string `json:"artifact_id" jsonschema:"required"`
	Description string `json:"description,omitempty"`
}

func (c *CanvasEdit) Validate() error {
	if c.ArtifactID == "" {
		return fmt.Errorf("artifact_id: %w", ErrRequired)
	}
	if c.EndIndex < c.StartIndex {
		return fmt.Errorf("end_index before start_index")
	}
	return nil
}

type AgentTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AgentDetails is published on the agent card to describe how a UI should
// present the agent.
type AgentDetails struct {
	InteractionMode string      `json:"interaction_mode,omitempty" jsonschema:"enum=single-turn,enum=multi-turn"`
	UserGreeting    string      `json:"user_greeting,omitempty"`
	Tools           []AgentTool `json:"tools,omitempty"`
	Framework       string      `json:"framework,omitempty"`
	License         string      `json:"license,omitempty"`
	SourceCodeURL   string      `json:"source_code_url,omitempty"`
}

type ErrorInfo struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type ErrorDetail struct {
	Error   ErrorInfo      `json:"error"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *ErrorDetail) Validate() error {
	if e.Error.Message == "" {
		return fmt.Errorf("error.message: %w", ErrRequired)
	}
	return nil
}
