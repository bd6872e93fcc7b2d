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

// Package classify tells a caller what follow-up a paused task needs.
package classify

import (
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/agentext/pkg/ext"
)

// Result is one follow-up requirement. The concrete types are OAuthRequired,
// SecretRequired, FormRequired, ApprovalRequired and TextInputRequired.
type Result interface {
	isResult()
}

// OAuthRequired asks the caller to visit URL and authorize.
type OAuthRequired struct {
	URL string
}

// SecretRequired asks the caller for the listed secrets.
type SecretRequired struct {
	Demands map[string]ext.SecretDemand
}

// FormRequired asks the caller to fill in Form.
type FormRequired struct {
	Form ext.FormRender
}

// ApprovalRequired asks the caller to approve or reject Request.
type ApprovalRequired struct {
	Request ext.ApprovalRequest
}

// TextInputRequired asks the caller a free-text question.
type TextInputRequired struct {
	Text string
}

func (OAuthRequired) isResult()     {}
func (SecretRequired) isResult()    {}
func (FormRequired) isResult()      {}
func (ApprovalRequired) isResult()  {}
func (TextInputRequired) isResult() {}

// Classify inspects a status update and returns the follow-ups it requests.
//
// auth-required may request OAuth and secrets at the same time, reported in
// that order. input-required requests exactly one of a form, an approval or
// a free-text answer, checked in that order. Every other state returns nil.
// Malformed payloads are treated as absent. Classify has no side effects.
func Classify(ev *a2a.TaskStatusUpdateEvent) []Result {
	if ev == nil {
		return nil
	}
	var meta map[string]any
	if ev.Status.Message != nil {
		meta = ev.Status.Message.Metadata
	}

	switch ev.Status.State {
	case a2a.TaskStateAuthRequired:
		var out []Result
		if req, ok := ext.OAuthRequest.Read(meta); ok {
			out = append(out, OAuthRequired{URL: req.AuthorizationEndpointURL})
		}
		if d, ok := ext.DemandFrom(ext.Secrets, meta); ok {
			out = append(out, SecretRequired{Demands: d.Demands})
		}
		return out

	case a2a.TaskStateInputRequired:
		if form, ok := ext.FormRequest.Read(meta); ok {
			return []Result{FormRequired{Form: *form}}
		}
		if req, ok := ext.Approval.Read(meta); ok {
			return []Result{ApprovalRequired{Request: *req}}
		}
		if text := Text(ev.Status.Message); text != "" {
			return []Result{TextInputRequired{Text: text}}
		}
	}
	return nil
}

// Text concatenates the text parts of msg.
func Text(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range msg.Parts {
		switch v := p.(type) {
		case a2a.TextPart:
			sb.WriteString(v.Text)
		case *a2a.TextPart:
			if v != nil {
				sb.WriteString(v.Text)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
