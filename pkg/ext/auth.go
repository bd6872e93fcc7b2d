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
	"time"
)

var (
	// OAuth lets an agent ask the caller to take part in OAuth flows on its
	// behalf. The fulfillment tells the agent where the caller receives
	// authorization redirects.
	OAuth = newEntry[OAuthDemands, OAuthFulfillments]("oauth", "auth/oauth/v1")

	// OAuthRequest is attached to an auth-required status message and carries
	// the authorization URL the caller must visit.
	OAuthRequest = newPayload[AuthRequest]("oauth-request", "ui/oauth/v1")

	// OAuthResponse is attached to the follow-up user message and carries the
	// redirect URI the authorization server sent the caller back to.
	OAuthResponse = newPayload[AuthResponse]("oauth-response", "ui/oauth/response/v1")

	// Secrets lets an agent ask for named secrets such as API keys.
	Secrets = newEntry[SecretDemands, SecretFulfillments]("secrets", "auth/secrets/v1")

	// Platform carries the caller's platform API token. It is always attached.
	Platform = newEntry[PlatformDemand, PlatformFulfillment]("platform", "services/platform_api/v1")
)

type OAuthDemand struct {
	RedirectURI bool `json:"redirect_uri,omitempty" jsonschema:"description=Whether the agent needs a caller redirect URI"`
}

type OAuthDemands struct {
	Demands map[string]OAuthDemand `json:"oauth_demands" jsonschema:"required"`
}

func (d *OAuthDemands) Validate() error {
	if d.Demands == nil {
		return fmt.Errorf("oauth_demands: %w", ErrRequired)
	}
	return nil
}

type OAuthFulfillment struct {
	RedirectURI string `json:"redirect_uri" jsonschema:"required"`
}

type OAuthFulfillments struct {
	Fulfillments map[string]OAuthFulfillment `json:"oauth_fulfillments" jsonschema:"required"`
}

func (f *OAuthFulfillments) Validate() error {
	if f.Fulfillments == nil {
		return fmt.Errorf("oauth_fulfillments: %w", ErrRequired)
	}
	for key, v := range f.Fulfillments {
		if v.RedirectURI == "" {
			return fmt.Errorf("oauth_fulfillments.%s.redirect_uri: %w", key, ErrRequired)
		}
	}
	return nil
}

// AuthRequest asks the caller to authorize at an endpoint.
type AuthRequest struct {
	AuthorizationEndpointURL string `json:"authorization_endpoint_url" jsonschema:"required"`
}

func (r *AuthRequest) Validate() error {
	if r.AuthorizationEndpointURL == "" {
		return fmt.Errorf("authorization_endpoint_url: %w", ErrRequired)
	}
	return nil
}

// AuthResponse returns the redirect the caller received after authorizing.
type AuthResponse struct {
	RedirectURI string `json:"redirect_uri" jsonschema:"required"`
}

func (r *AuthResponse) Validate() error {
	if r.RedirectURI == "" {
		return fmt.Errorf("redirect_uri: %w", ErrRequired)
	}
	return nil
}

type SecretDemand struct {
	Name        string `json:"name" jsonschema:"required"`
	Description string `json:"description,omitempty"`
}

// SecretDemands is both the demand declared on the agent card and the payload
// of an auth-required status asking for secrets at run time.
type SecretDemands struct {
	Demands map[string]SecretDemand `json:"secret_demands" jsonschema:"required"`
}

func (d *SecretDemands) Validate() error {
	if d.Demands == nil {
		return fmt.Errorf("secret_demands: %w", ErrRequired)
	}
	for key, v := range d.Demands {
		if v.Name == "" {
			return fmt.Errorf("secret_demands.%s.name: %w", key, ErrRequired)
		}
	}
	return nil
}

type SecretFulfillment struct {
	Secret string `json:"secret" jsonschema:"required"`
}

type SecretFulfillments struct {
	Fulfillments map[string]SecretFulfillment `json:"secret_fulfillments" jsonschema:"required"`
}

func (f *SecretFulfillments) Validate() error {
	if f.Fulfillments == nil {
		return fmt.Errorf("secret_fulfillments: %w", ErrRequired)
	}
	for key, v := range f.Fulfillments {
		if v.Secret == "" {
			return fmt.Errorf("secret_fulfillments.%s.secret: %w", key, ErrRequired)
		}
	}
	return nil
}

// PlatformDemand has no parameters; every agent accepts the platform token.
type PlatformDemand struct{}

type PlatformFulfillment struct {
	AuthToken string     `json:"auth_token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	BaseURL   string     `json:"base_url,omitempty"`
}

// Expired reports whether the token has an expiry at or before now.
func (f *PlatformFulfillment) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && !f.ExpiresAt.After(now)
}
