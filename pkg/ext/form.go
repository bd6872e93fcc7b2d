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

var (
	// Settings lets an agent declare run settings the caller fills in before
	// the first message.
	Settings = newEntry[SettingsDemand, SettingsFulfillment]("settings", "ui/settings/v1")

	// Form lets an agent declare forms the caller fills in up front.
	Form = newEntry[FormDemands, FormFulfillments]("form", "services/form/v1")

	// FormRequest is attached to an input-required status message when an
	// agent needs a form filled mid-run.
	FormRequest = newPayload[FormRender]("form-request", "ui/form_request/v1")

	// FormResponse carries the submitted values in the follow-up message.
	FormResponse = newPayload[FormValues]("form-response", "ui/form_response/v1")
)

// Settings field types.
const (
	FieldCheckboxGroup = "checkbox_group"
	FieldSingleSelect  = "single_select"
)

// Form field types.
const (
	FieldText        = "text"
	FieldDate        = "date"
	FieldFile        = "file"
	FieldMultiSelect = "multi_select"
	FieldCheckbox    = "checkbox"
)

type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Checkbox struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Default bool   `json:"default"`
}

type SettingsField struct {
	ID         string     `json:"id" jsonschema:"required"`
	Type       string     `json:"type" jsonschema:"required,enum=checkbox_group,enum=single_select"`
	Label      string     `json:"label,omitempty"`
	Fields     []Checkbox `json:"fields,omitempty"`
	Options    []Option   `json:"options,omitempty"`
	DefaultVal string     `json:"default_value,omitempty"`
}

type SettingsDemand struct {
	Fields []SettingsField `json:"fields" jsonschema:"required"`
}

func (d *SettingsDemand) Validate() error {
	if d.Fields == nil {
		return fmt.Errorf("fields: %w", ErrRequired)
	}
	seen := make(map[string]bool, len(d.Fields))
	for i, f := range d.Fields {
		if f.ID == "" {
			return fmt.Errorf("fields[%d].id: %w", i, ErrRequired)
		}
		if seen[f.ID] {
			return fmt.Errorf("fields[%d]: duplicate id %q", i, f.ID)
		}
		seen[f.ID] = true
		if f.Type != FieldCheckboxGroup && f.Type != FieldSingleSelect {
			return fmt.Errorf("fields[%d]: unknown type %q", i, f.Type)
		}
	}
	return nil
}

// SettingsValue is the caller's choice for one settings field. Checkbox groups
// fill Values; single selects fill Value.
type SettingsValue struct {
	Type   string          `json:"type"`
	Values map[string]bool `json:"values,omitempty"`
	Value  string          `json:"value,omitempty"`
}

type SettingsFulfillment struct {
	Values map[string]SettingsValue `json:"values" jsonschema:"required"`
}

func (f *SettingsFulfillment) Validate() error {
	if f.Values == nil {
		return fmt.Errorf("values: %w", ErrRequired)
	}
	return nil
}

type FormField struct {
	ID          string   `json:"id" jsonschema:"required"`
	Type        string   `json:"type" jsonschema:"required,enum=text,enum=date,enum=file,enum=single_select,enum=multi_select,enum=checkbox"`
	Label       string   `json:"label,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []Option `json:"options,omitempty"`
	ColSpan     int      `json:"col_span,omitempty"`
}

// FormRender describes a form to display.
type FormRender struct {
	ID          string      `json:"id,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Columns     int         `json:"columns,omitempty"`
	SubmitLabel string      `json:"submit_label,omitempty"`
	Fields      []FormField `json:"fields" jsonschema:"required"`
}

func (r *FormRender) Validate() error {
	if len(r.Fields) == 0 {
		return fmt.Errorf("fields: %w", ErrRequired)
	}
	for i, f := range r.Fields {
		if f.ID == "" {
			return fmt.Errorf("fields[%d].id: %w", i, ErrRequired)
		}
		switch f.Type {
		case FieldText, FieldDate, FieldFile, FieldSingleSelect, FieldMultiSelect, FieldCheckbox:
		default:
			return fmt.Errorf("fields[%d]: unknown type %q", i, f.Type)
		}
	}
	return nil
}

type FormDemands struct {
	Demands map[string]FormRender `json:"form_demands" jsonschema:"required"`
}

func (d *FormDemands) Validate() error {
	if d.Demands == nil {
		return fmt.Errorf("form_demands: %w", ErrRequired)
	}
	for key, r := range d.Demands {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("form_demands.%s: %w", key, err)
		}
	}
	return nil
}

// FormValues maps field ids to submitted values.
type FormValues struct {
	Values map[string]any `json:"values" jsonschema:"required"`
}

func (v *FormValues) Validate() error {
	if v.Values == nil {
		return fmt.Errorf("values: %w", ErrRequired)
	}
	return nil
}

type FormFulfillments struct {
	Fulfillments map[string]FormValues `json:"form_fulfillments" jsonschema:"required"`
}

func (f *FormFulfillments) Validate() error {
	if f.Fulfillments == nil {
		return fmt.Errorf("form_fulfillments: %w", ErrRequired)
	}
	return nil
}
