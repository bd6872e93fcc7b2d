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

// Package ext defines the A2A capability extensions an agent can demand and a
// caller can fulfill.
//
// Every extension is identified by a URI. The URI is the join key between an
// extension declared on an agent card, the demand parsed out of its params and
// the fulfillment a caller attaches to message metadata. Demands and
// fulfillments are plain structs decoded with mapstructure and checked with a
// Validate method. A value that fails to decode or validate is never fatal:
// demands degrade to "not present" and fulfillments degrade to an empty object.
package ext

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

const uriPrefix = "https://a2a-extensions.agentstack.beeai.dev/"

// Validator is implemented by demand and fulfillment types that carry
// constraints beyond their field types.
type Validator interface {
	Validate() error
}

// Descriptor is the type-erased view of a registered extension.
type Descriptor interface {
	URI() string
	Name() string
	Schemas() Schemas
}

// Entry pairs an extension URI with its demand type D and fulfillment type F.
// Entries are created at package init and never mutated.
type Entry[D, F any] struct {
	uri  string
	name string
}

func newEntry[D, F any](name, path string) *Entry[D, F] {
	e := &Entry[D, F]{uri: uriPrefix + path, name: name}
	register(e)
	return e
}

// URI returns the wire identifier of the extension.
func (e *Entry[D, F]) URI() string { return e.uri }

// Name returns the short human name of the extension.
func (e *Entry[D, F]) Name() string { return e.name }

// DecodeDemand decodes and validates agent card params into a demand.
func (e *Entry[D, F]) DecodeDemand(params map[string]any) (*D, error) {
	if params == nil {
		params = map[string]any{}
	}
	return decode[D](params)
}

// DecodeFulfillment decodes and validates a fulfillment. v may be an F, a *F
// or a generic map as found in message metadata.
func (e *Entry[D, F]) DecodeFulfillment(v any) (*F, error) {
	return decode[F](v)
}

// Payload is a single-value extension carried in message metadata, such as a
// form request or a citation list. It has no negotiation step.
type Payload[T any] struct {
	uri  string
	name string
}

func newPayload[T any](name, path string) *Payload[T] {
	p := &Payload[T]{uri: uriPrefix + path, name: name}
	register(p)
	return p
}

// URI returns the wire identifier of the payload.
func (p *Payload[T]) URI() string { return p.uri }

// Name returns the short human name of the payload.
func (p *Payload[T]) Name() string { return p.name }

// Decode decodes and validates v into T.
func (p *Payload[T]) Decode(v any) (*T, error) {
	return decode[T](v)
}

// Read returns the payload stored under the extension URI in meta. Missing or
// malformed payloads report false.
func (p *Payload[T]) Read(meta map[string]any) (*T, bool) {
	raw, ok := meta[p.uri]
	if !ok || raw == nil {
		return nil, false
	}
	v, err := decode[T](raw)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Attach returns a copy of meta with v stored under the extension URI. Invalid
// values are stored as an empty object.
func (p *Payload[T]) Attach(meta map[string]any, v *T) map[string]any {
	return attach(p, meta, v, func(in any) (any, error) { return decode[T](in) })
}

// Metadata returns a fresh metadata map holding only v.
func (p *Payload[T]) Metadata(v *T) map[string]any {
	return p.Attach(nil, v)
}

var decodeHook = mapstructure.ComposeDecodeHookFunc(
	mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	mapstructure.StringToTimeDurationHookFunc(),
)

// decode converts in into a validated *T. Values that already have type T or
// *T skip the mapstructure pass and are only validated.
func decode[T any](in any) (*T, error) {
	var out T
	switch v := in.(type) {
	case T:
		out = v
	case *T:
		if v == nil {
			return nil, fmt.Errorf("nil %T", v)
		}
		out = *v
	default:
		if in == nil || !isMapLike(in) {
			return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalid, in)
		}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			Result:           &out,
			WeaklyTypedInput: true,
			DecodeHook:       decodeHook,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(in); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if val, ok := any(&out).(Validator); ok {
		if err := val.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return &out, nil
}

func isMapLike(v any) bool {
	k := reflect.Indirect(reflect.ValueOf(v)).Kind()
	return k == reflect.Map || k == reflect.Struct
}

// toObject renders a validated value in its JSON object form so metadata only
// ever holds wire-shaped data.
func toObject(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
