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
	"fmt"
	"sort"
	"sync"
)

// Kind tags the extensions a caller negotiates with an agent card.
type Kind int

const (
	KindLLM Kind = iota
	KindEmbedding
	KindMCP
	KindOAuth
	KindSettings
	KindSecrets
	KindForm
)

// negotiationOrder is the only order in which kinds are ever resolved.
var negotiationOrder = []Kind{
	KindLLM,
	KindEmbedding,
	KindMCP,
	KindOAuth,
	KindSettings,
	KindSecrets,
	KindForm,
}

// Kinds returns the negotiable kinds in negotiation order.
func Kinds() []Kind {
	out := make([]Kind, len(negotiationOrder))
	copy(out, negotiationOrder)
	return out
}

func (k Kind) String() string {
	switch k {
	case KindLLM:
		return "llm"
	case KindEmbedding:
		return "embedding"
	case KindMCP:
		return "mcp"
	case KindOAuth:
		return "oauth"
	case KindSettings:
		return "settings"
	case KindSecrets:
		return "secrets"
	case KindForm:
		return "form"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	for _, k := range negotiationOrder {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown extension kind %q", s)
}

// Descriptor returns the registered extension for the kind.
func (k Kind) Descriptor() Descriptor {
	switch k {
	case KindLLM:
		return LLM
	case KindEmbedding:
		return Embedding
	case KindMCP:
		return MCP
	case KindOAuth:
		return OAuth
	case KindSettings:
		return Settings
	case KindSecrets:
		return Secrets
	case KindForm:
		return Form
	default:
		return nil
	}
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Descriptor{}
)

// register adds d to the process registry. URIs are unique; a duplicate is a
// programming error caught at init.
func register(d Descriptor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[d.URI()]; exists {
		panic(fmt.Sprintf("ext: duplicate extension uri %q", d.URI()))
	}
	registry[d.URI()] = d
}

// Lookup returns the extension registered under uri.
func Lookup(uri string) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[uri]
	return d, ok
}

// All returns every registered extension sorted by name.
func All() []Descriptor {
	registryMu.RLock()
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	registryMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
