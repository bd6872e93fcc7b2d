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
	"github.com/invopop/jsonschema"
)

// Schemas holds the JSON Schema documents of an extension. Payload extensions
// only set Payload.
type Schemas struct {
	URI         string             `json:"uri"`
	Name        string             `json:"name"`
	Demand      *jsonschema.Schema `json:"demand,omitempty"`
	Fulfillment *jsonschema.Schema `json:"fulfillment,omitempty"`
	Payload     *jsonschema.Schema `json:"payload,omitempty"`
}

func reflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
}

// Schemas reflects the demand and fulfillment types.
func (e *Entry[D, F]) Schemas() Schemas {
	r := reflector()
	var d D
	var f F
	return Schemas{
		URI:         e.uri,
		Name:        e.name,
		Demand:      r.Reflect(&d),
		Fulfillment: r.Reflect(&f),
	}
}

// Schemas reflects the payload type.
func (p *Payload[T]) Schemas() Schemas {
	var v T
	return Schemas{
		URI:     p.uri,
		Name:    p.name,
		Payload: reflector().Reflect(&v),
	}
}
