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
	// LLM lets an agent ask the caller for OpenAI-compatible model access.
	LLM = newEntry[LLMDemands, LLMFulfillments]("llm", "services/llm/v1")

	// Embedding lets an agent ask the caller for an embedding model.
	Embedding = newEntry[EmbeddingDemands, EmbeddingFulfillments]("embedding", "services/embedding/v1")
)

// ModelDemand describes one model an agent needs, keyed by the agent's own
// name for it (for example "default").
type ModelDemand struct {
	Description string   `json:"description,omitempty" jsonschema:"description=What the agent uses the model for"`
	Suggested   []string `json:"suggested,omitempty" jsonschema:"description=Preferred model identifiers in order"`
}

// ModelFulfillment is the concrete endpoint a caller grants for a demand.
type ModelFulfillment struct {
	Identifier string `json:"identifier,omitempty"`
	APIBase    string `json:"api_base" jsonschema:"required"`
	APIKey     string `json:"api_key"`
	APIModel   string `json:"api_model" jsonschema:"required"`
}

// Validate checks that the endpoint is usable.
func (f *ModelFulfillment) Validate() error {
	if f.APIBase == "" {
		return fmt.Errorf("api_base: %w", ErrRequired)
	}
	if f.APIModel == "" {
		return fmt.Errorf("api_model: %w", ErrRequired)
	}
	return nil
}

type LLMDemands struct {
	Demands map[string]ModelDemand `json:"llm_demands" jsonschema:"required"`
}

func (d *LLMDemands) Validate() error {
	if d.Demands == nil {
		return fmt.Errorf("llm_demands: %w", ErrRequired)
	}
	return nil
}

type LLMFulfillments struct {
	Fulfillments map[string]ModelFulfillment `json:"llm_fulfillments" jsonschema:"required"`
}

func (f *LLMFulfillments) Validate() error {
	return validateModels("llm_fulfillments", f.Fulfillments)
}

type EmbeddingDemands struct {
	Demands map[string]ModelDemand `json:"embedding_demands" jsonschema:"required"`
}

func (d *EmbeddingDemands) Validate() error {
	if d.Demands == nil {
		return fmt.Errorf("embedding_demands: %w", ErrRequired)
	}
	return nil
}

type EmbeddingFulfillments struct {
	Fulfillments map[string]ModelFulfillment `json:"embedding_fulfillments" jsonschema:"required"`
}

func (f *EmbeddingFulfillments) Validate() error {
	return validateModels("embedding_fulfillments", f.Fulfillments)
}

func validateModels(field string, m map[string]ModelFulfillment) error {
	if m == nil {
		return fmt.Errorf("%s: %w", field, ErrRequired)
	}
	for key, f := range m {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("%s.%s: %w", field, key, err)
		}
	}
	return nil
}
