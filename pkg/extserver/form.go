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

package extserver

import (
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
)

// SettingsServer declares run settings.
type SettingsServer struct {
	base[ext.SettingsDemand, ext.SettingsFulfillment]
}

func NewSettingsServer(demand *ext.SettingsDemand, required bool) *SettingsServer {
	return &SettingsServer{base: newBase(ext.Settings, demand, required)}
}

// Value returns the caller's choice for field id, falling back to the
// declared default of a single select.
func (s *SettingsServer) Value(deps executor.Dependencies, id string) (ext.SettingsValue, bool) {
	if f, ok := s.From(deps); ok {
		if v, ok := f.Values[id]; ok {
			return v, true
		}
	}
	if s.demand == nil {
		return ext.SettingsValue{}, false
	}
	for _, field := range s.demand.Fields {
		if field.ID != id {
			continue
		}
		v := ext.SettingsValue{Type: field.Type, Value: field.DefaultVal}
		if field.Type == ext.FieldCheckboxGroup {
			v.Values = make(map[string]bool, len(field.Fields))
			for _, cb := range field.Fields {
				v.Values[cb.ID] = cb.Default
			}
		}
		return v, true
	}
	return ext.SettingsValue{}, false
}

// FormServer declares forms filled before the first message and asks for
// more mid-run.
type FormServer struct {
	base[ext.FormDemands, ext.FormFulfillments]
}

func NewFormServer(demand *ext.FormDemands, required bool) *FormServer {
	return &FormServer{base: newBase(ext.Form, demand, required)}
}

// Values returns the submitted values of the form declared under key.
func (s *FormServer) Values(deps executor.Dependencies, key string) (map[string]any, bool) {
	f, ok := s.From(deps)
	if !ok {
		return nil, false
	}
	v, ok := f.Fulfillments[key]
	return v.Values, ok
}

// Request pauses the task in input-required showing form.
func (s *FormServer) Request(text string, form ext.FormRender) executor.Yield {
	return statusYield(a2a.TaskStateInputRequired, text, ext.FormRequest.Metadata(&form))
}

// Submission reads the values answering a form request.
func (s *FormServer) Submission(msg *a2a.Message) (*ext.FormValues, bool) {
	if msg == nil {
		return nil, false
	}
	return ext.FormResponse.Read(msg.Metadata)
}

// RequestApproval pauses the task in input-required until the caller
// approves or rejects req.
func RequestApproval(text string, req ext.ApprovalRequest) executor.Yield {
	return statusYield(a2a.TaskStateInputRequired, text, ext.Approval.Metadata(&req))
}

// ApprovalFrom reads the caller's decision from a follow-up message.
func ApprovalFrom(msg *a2a.Message) (*ext.ApprovalResponse, bool) {
	if msg == nil {
		return nil, false
	}
	return ext.ApprovalDecision.Read(msg.Metadata)
}
