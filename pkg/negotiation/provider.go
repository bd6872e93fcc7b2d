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

package negotiation

import (
	"context"
	"errors"
	"time"

	"github.com/kadirpekel/agentext/pkg/ext"
)

// ErrResolverMissing is returned by Funcs when a demand is present but no
// resolver was configured for its kind.
var ErrResolverMissing = errors.New("no resolver configured")

// ContextToken is the caller's platform API token.
type ContextToken struct {
	Token     string
	ExpiresAt *time.Time
}

// FulfillmentProvider resolves the demands of an agent card into concrete
// fulfillments. Resolvers are only called for demands the card declares.
type FulfillmentProvider interface {
	LLM(ctx context.Context, d *ext.LLMDemands) (*ext.LLMFulfillments, error)
	Embedding(ctx context.Context, d *ext.EmbeddingDemands) (*ext.EmbeddingFulfillments, error)
	MCP(ctx context.Context, d *ext.MCPDemands) (*ext.MCPFulfillments, error)
	OAuth(ctx context.Context, d *ext.OAuthDemands) (*ext.OAuthFulfillments, error)
	Settings(ctx context.Context, d *ext.SettingsDemand) (*ext.SettingsFulfillment, error)
	Secrets(ctx context.Context, d *ext.SecretDemands) (*ext.SecretFulfillments, error)
	Form(ctx context.Context, d *ext.FormDemands) (*ext.FormFulfillments, error)

	// OAuthRedirectURI returns the redirect the caller received from an
	// authorization server, or "" when there is none.
	OAuthRedirectURI() string

	// ContextToken returns the platform token attached to every message.
	ContextToken() ContextToken
}

// Funcs adapts plain functions to FulfillmentProvider. A nil resolver fails
// with ErrResolverMissing if its demand is present.
type Funcs struct {
	LLMFunc         func(context.Context, *ext.LLMDemands) (*ext.LLMFulfillments, error)
	EmbeddingFunc   func(context.Context, *ext.EmbeddingDemands) (*ext.EmbeddingFulfillments, error)
	MCPFunc         func(context.Context, *ext.MCPDemands) (*ext.MCPFulfillments, error)
	OAuthFunc       func(context.Context, *ext.OAuthDemands) (*ext.OAuthFulfillments, error)
	SettingsFunc    func(context.Context, *ext.SettingsDemand) (*ext.SettingsFulfillment, error)
	SecretsFunc     func(context.Context, *ext.SecretDemands) (*ext.SecretFulfillments, error)
	FormFunc        func(context.Context, *ext.FormDemands) (*ext.FormFulfillments, error)
	RedirectURIFunc func() string
	TokenFunc       func() ContextToken
}

var _ FulfillmentProvider = (*Funcs)(nil)

func call[D, F any](ctx context.Context, fn func(context.Context, *D) (*F, error), d *D) (*F, error) {
	if fn == nil {
		return nil, ErrResolverMissing
	}
	return fn(ctx, d)
}

func (f *Funcs) LLM(ctx context.Context, d *ext.LLMDemands) (*ext.LLMFulfillments, error) {
	return call(ctx, f.LLMFunc, d)
}

func (f *Funcs) Embedding(ctx context.Context, d *ext.EmbeddingDemands) (*ext.EmbeddingFulfillments, error) {
	return call(ctx, f.EmbeddingFunc, d)
}

func (f *Funcs) MCP(ctx context.Context, d *ext.MCPDemands) (*ext.MCPFulfillments, error) {
	return call(ctx, f.MCPFunc, d)
}

func (f *Funcs) OAuth(ctx context.Context, d *ext.OAuthDemands) (*ext.OAuthFulfillments, error) {
	return call(ctx, f.OAuthFunc, d)
}

func (f *Funcs) Settings(ctx context.Context, d *ext.SettingsDemand) (*ext.SettingsFulfillment, error) {
	return call(ctx, f.SettingsFunc, d)
}

func (f *Funcs) Secrets(ctx context.Context, d *ext.SecretDemands) (*ext.SecretFulfillments, error) {
	return call(ctx, f.SecretsFunc, d)
}

func (f *Funcs) Form(ctx context.Context, d *ext.FormDemands) (*ext.FormFulfillments, error) {
	return call(ctx, f.FormFunc, d)
}

func (f *Funcs) OAuthRedirectURI() string {
	if f.RedirectURIFunc == nil {
		return ""
	}
	return f.RedirectURIFunc()
}

func (f *Funcs) ContextToken() ContextToken {
	if f.TokenFunc == nil {
		return ContextToken{}
	}
	return f.TokenFunc()
}
