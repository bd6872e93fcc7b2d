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

import (
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"
)

// Extract returns the demand e declares in an agent card extension list.
//
// The first extension whose URI matches is decoded. When none matches the
// demand is decoded from empty params, so demands with required fields report
// absent while demands without any still resolve to their zero value. Decode
// and validation failures are logged and reported as absent.
func Extract[D, F any](e *Entry[D, F], extensions []a2a.AgentExtension) (*D, bool) {
	var params map[string]any
	declared := false
	for i := range extensions {
		if extensions[i].URI == e.uri {
			params = extensions[i].Params
			declared = true
			break
		}
	}

	d, err := e.DecodeDemand(params)
	if err != nil {
		if declared {
			slog.Warn("Ignoring malformed extension demand", "extension", e.name, "uri", e.uri, "error", err)
		} else {
			slog.Debug("Extension not demanded", "extension", e.name, "error", err)
		}
		return nil, false
	}
	return d, true
}

// Merge returns a copy of meta with fulfillment stored under e's URI.
//
// A fulfillment that fails to decode or validate is stored as an empty object
// and logged at warning level. Merge never fails and never touches other keys.
func Merge[D, F any](e *Entry[D, F], meta map[string]any, fulfillment any) map[string]any {
	return attach(e, meta, fulfillment, func(in any) (any, error) { return e.DecodeFulfillment(in) })
}

// Fulfillment reads the fulfillment for e out of incoming message metadata.
// Missing or invalid fulfillments report false.
func Fulfillment[D, F any](e *Entry[D, F], meta map[string]any) (*F, bool) {
	raw, ok := meta[e.uri]
	if !ok || raw == nil {
		return nil, false
	}
	f, err := e.DecodeFulfillment(raw)
	if err != nil {
		slog.Warn("Ignoring malformed extension fulfillment", "extension", e.name, "uri", e.uri, "error", err)
		return nil, false
	}
	return f, true
}

// Declare renders a demand as the extension entry an agent card publishes.
func Declare[D, F any](e *Entry[D, F], demand *D, required bool) (a2a.AgentExtension, error) {
	out := a2a.AgentExtension{URI: e.uri, Required: required}
	if demand == nil {
		return out, nil
	}
	if _, err := decode[D](demand); err != nil {
		return out, err
	}
	params, err := toObject(demand)
	if err != nil {
		return out, err
	}
	out.Params = params
	return out, nil
}

func attach(d Descriptor, meta map[string]any, value any, validate func(any) (any, error)) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}

	validated, err := validate(value)
	if err != nil {
		slog.Warn("Attaching empty extension value", "extension", d.Name(), "uri", d.URI(), "error", err)
		out[d.URI()] = map[string]any{}
		return out
	}
	obj, err := toObject(validated)
	if err != nil {
		slog.Warn("Attaching empty extension value", "extension", d.Name(), "uri", d.URI(), "error", err)
		obj = map[string]any{}
	}
	out[d.URI()] = obj
	return out
}

// DemandFrom reads a demand that an agent attached to message metadata under
// e's URI, as agents do when asking for secrets mid-run.
func DemandFrom[D, F any](e *Entry[D, F], meta map[string]any) (*D, bool) {
	raw, ok := meta[e.uri]
	if !ok || raw == nil {
		return nil, false
	}
	d, err := decode[D](raw)
	if err != nil {
		return nil, false
	}
	return d, true
}

// AttachDemand returns a copy of meta with demand stored under e's URI.
func AttachDemand[D, F any](e *Entry[D, F], meta map[string]any, demand *D) map[string]any {
	return attach(e, meta, demand, func(in any) (any, error) { return decode[D](in) })
}
