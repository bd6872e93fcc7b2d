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

// Package negotiation turns the extension demands of an agent card into the
// message metadata a caller sends with every request.
package negotiation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/agentext/pkg/ext"
)

// Demands holds the demands parsed from an agent card. A nil field means the
// card does not demand that extension or declares it with invalid params.
type Demands struct {
	LLM       *ext.LLMDemands
	Embedding *ext.EmbeddingDemands
	MCP       *ext.MCPDemands
	OAuth     *ext.OAuthDemands
	Settings  *ext.SettingsDemand
	Secrets   *ext.SecretDemands
	Form      *ext.FormDemands
}

// Has reports whether the demand for k is present.
func (d Demands) Has(k ext.Kind) bool {
	switch k {
	case ext.KindLLM:
		return d.LLM != nil
	case ext.KindEmbedding:
		return d.Embedding != nil
	case ext.KindMCP:
		return d.MCP != nil
	case ext.KindOAuth:
		return d.OAuth != nil
	case ext.KindSettings:
		return d.Settings != nil
	case ext.KindSecrets:
		return d.Secrets != nil
	case ext.KindForm:
		return d.Form != nil
	}
	return false
}

// Present returns the demanded kinds in negotiation order.
func (d Demands) Present() []ext.Kind {
	var out []ext.Kind
	for _, k := range ext.Kinds() {
		if d.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// ParseDemands extracts every negotiable demand from an extension list.
func ParseDemands(extensions []a2a.AgentExtension) Demands {
	var d Demands
	d.LLM, _ = ext.Extract(ext.LLM, extensions)
	d.Embedding, _ = ext.Extract(ext.Embedding, extensions)
	d.MCP, _ = ext.Extract(ext.MCP, extensions)
	d.OAuth, _ = ext.Extract(ext.OAuth, extensions)
	d.Settings, _ = ext.Extract(ext.Settings, extensions)
	d.Secrets, _ = ext.Extract(ext.Secrets, extensions)
	d.Form, _ = ext.Extract(ext.Form, extensions)
	return d
}

// Pipeline negotiates extensions against one agent card. Demands are parsed
// once; ResolveMetadata can be called any number of times, concurrently.
type Pipeline struct {
	card    *a2a.AgentCard
	demands Demands
}

// New parses the demands of card.
func New(card *a2a.AgentCard) *Pipeline {
	var exts []a2a.AgentExtension
	if card != nil {
		exts = card.Capabilities.Extensions
	}
	p := &Pipeline{card: card, demands: ParseDemands(exts)}
	slog.Debug("Parsed agent card demands", "agent", cardName(card), "demands", p.demands.Present())
	return p
}

// Card returns the agent card the pipeline was built from.
func (p *Pipeline) Card() *a2a.AgentCard { return p.card }

// Demands returns the parsed demands.
func (p *Pipeline) Demands() Demands { return p.demands }

// ResolveMetadata builds the metadata for one outgoing message.
//
// The platform token is always attached first. Each present demand is then
// resolved strictly in ext.Kinds order, since later resolvers may depend on
// effects of earlier ones. Finally the caller's OAuth redirect, if any, is
// attached whether or not OAuth was demanded. A resolver error aborts the
// negotiation; a fulfillment that fails validation is attached as an empty
// object.
func (p *Pipeline) ResolveMetadata(ctx context.Context, provider FulfillmentProvider) (map[string]any, error) {
	tok := provider.ContextToken()
	meta := ext.Merge(ext.Platform, map[string]any{}, &ext.PlatformFulfillment{
		AuthToken: tok.Token,
		ExpiresAt: tok.ExpiresAt,
	})

	for _, k := range ext.Kinds() {
		if !p.demands.Has(k) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := p.resolve(ctx, k, provider, meta)
		if err != nil {
			return nil, fmt.Errorf("resolve %s fulfillment: %w", k, err)
		}
		meta = next
	}

	if uri := provider.OAuthRedirectURI(); uri != "" {
		meta = ext.OAuthResponse.Attach(meta, &ext.AuthResponse{RedirectURI: uri})
	}
	return meta, nil
}

func (p *Pipeline) resolve(ctx context.Context, k ext.Kind, provider FulfillmentProvider, meta map[string]any) (map[string]any, error) {
	d := p.demands
	switch k {
	case ext.KindLLM:
		f, err := provider.LLM(ctx, d.LLM)
		if err != nil {
			return nil, err
		}
		return ext.Merge(ext.LLM, meta, f), nil
	case ext.KindEmbedding:
		f, err := provider.Embedding(ctx, d.Embedding)
		if err != nil {
			return nil, err
		}
		return ext.Merge(ext.Embedding, meta, f), nil
	case ext.KindMCP:
		f, err := provider.MCP(ctx, d.MCP)
		if err != nil {
			return nil, err
		}
		return ext.Merge(ext.MCP, meta, f), nil
	case ext.KindOAuth:
		f, err := provider.OAuth(ctx, d.OAuth)
		if err != nil {
			return nil, err
		}
		return ext.Merge(ext.OAuth, meta, f), nil
	case ext.KindSettings:
		f, err := provider.Settings(ctx, d.Settings)
		if err != nil {
			return nil, err
		}
		return ext.Merge(ext.Settings, meta, f), nil
	case ext.KindSecrets:
		f, err := provider.Secrets(ctx, d.Secrets)
		if err != nil {
			return nil, err
		}
		return ext.Merge(ext.Secrets, meta, f), nil
	case ext.KindForm:
		f, err := provider.Form(ctx, d.Form)
		if err != nil {
			return nil, err
		}
		return ext.Merge(ext.Form, meta, f), nil
	}
	return meta, nil
}

func cardName(card *a2a.AgentCard) string {
	if card == nil {
		return ""
	}
	return card.Name
}
