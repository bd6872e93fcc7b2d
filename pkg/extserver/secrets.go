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
	"fmt"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
)

// SecretsServer demands named secrets, up front or mid-run.
type SecretsServer struct {
	base[ext.SecretDemands, ext.SecretFulfillments]
}

func NewSecretsServer(demand *ext.SecretDemands, required bool) *SecretsServer {
	return &SecretsServer{base: newBase(ext.Secrets, demand, required)}
}

// Secret returns the secret granted under key.
func (s *SecretsServer) Secret(deps executor.Dependencies, key string) (string, bool) {
	f, ok := s.From(deps)
	if !ok {
		return "", false
	}
	v, ok := f.Fulfillments[key]
	return v.Secret, ok
}

// Request pauses the task in auth-required asking for demands. The caller
// answers with a secrets fulfillment in its next message.
func (s *SecretsServer) Request(text string, demands map[string]ext.SecretDemand) executor.Yield {
	meta := ext.AttachDemand(ext.Secrets, nil, &ext.SecretDemands{Demands: demands})
	return statusYield(a2a.TaskStateAuthRequired, text, meta)
}

// PlatformServer accepts the caller's platform API token.
type PlatformServer struct {
	base[ext.PlatformDemand, ext.PlatformFulfillment]
	now func() time.Time
}

func NewPlatformServer(required bool) *PlatformServer {
	return &PlatformServer{
		base: newBase(ext.Platform, &ext.PlatformDemand{}, required),
		now:  time.Now,
	}
}

// Claims is what the agent learns from the platform token.
type Claims struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
	BaseURL   string
}

// Claims inspects the platform token. The signature is not verified; the
// token is only forwarded to the platform, which does.
func (s *PlatformServer) Claims(deps executor.Dependencies) (*Claims, error) {
	f, ok := s.From(deps)
	if !ok || f.AuthToken == "" {
		return nil, fmt.Errorf("platform token: %w", ErrNotFulfilled)
	}
	now := s.now()
	if f.Expired(now) {
		return nil, ErrTokenExpired
	}

	tok, err := jwt.Parse([]byte(f.AuthToken), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, fmt.Errorf("failed to parse platform token: %w", err)
	}

	exp := tok.Expiration()
	if !exp.IsZero() && !exp.After(now) {
		return nil, ErrTokenExpired
	}
	return &Claims{
		Subject:   tok.Subject(),
		Issuer:    tok.Issuer(),
		ExpiresAt: exp,
		BaseURL:   f.BaseURL,
	}, nil
}
