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
	"context"
	"fmt"
	"net/url"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
)

// OAuthServer runs authorization code flows through the caller, who opens
// the authorization URL and reports back the redirect it received.
type OAuthServer struct {
	base[ext.OAuthDemands, ext.OAuthFulfillments]
}

func NewOAuthServer(demand *ext.OAuthDemands, required bool) *OAuthServer {
	return &OAuthServer{base: newBase(ext.OAuth, demand, required)}
}

// PendingAuth is an authorization the caller has been asked to complete.
// Handlers keep it across the auth-required pause.
type PendingAuth struct {
	Key      string
	State    string
	Verifier string
	Config   oauth2.Config
}

// Authorize starts a PKCE flow for the demand under key. The returned
// yield pauses the task in auth-required with the authorization URL
// attached.
func (s *OAuthServer) Authorize(deps executor.Dependencies, key string, cfg oauth2.Config) (*PendingAuth, executor.Yield, error) {
	f, ok := s.From(deps)
	if !ok {
		return nil, executor.Yield{}, notFulfilled(s.Name(), key)
	}
	grant, ok := f.Fulfillments[key]
	if !ok {
		return nil, executor.Yield{}, notFulfilled(s.Name(), key)
	}

	cfg.RedirectURL = grant.RedirectURI
	p := &PendingAuth{
		Key:      key,
		State:    uuid.NewString(),
		Verifier: oauth2.GenerateVerifier(),
		Config:   cfg,
	}
	authURL := cfg.AuthCodeURL(p.State, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(p.Verifier))

	meta := ext.OAuthRequest.Metadata(&ext.AuthRequest{AuthorizationEndpointURL: authURL})
	return p, statusYield(a2a.TaskStateAuthRequired, "Authorization required", meta), nil
}

// Exchange reads the redirect from the caller's follow-up message and
// trades the code for a token.
func (s *OAuthServer) Exchange(ctx context.Context, p *PendingAuth, msg *a2a.Message) (*oauth2.Token, error) {
	if msg == nil {
		return nil, fmt.Errorf("oauth response: %w", ErrNotFulfilled)
	}
	resp, ok := ext.OAuthResponse.Read(msg.Metadata)
	if !ok {
		return nil, fmt.Errorf("oauth response: %w", ErrNotFulfilled)
	}

	redirect, err := url.Parse(resp.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect uri: %w", err)
	}
	q := redirect.Query()
	if e := q.Get("error"); e != "" {
		return nil, fmt.Errorf("authorization denied: %s", e)
	}
	if q.Get("state") != p.State {
		return nil, ErrStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("redirect carries no code")
	}

	tok, err := p.Config.Exchange(ctx, code, oauth2.VerifierOption(p.Verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return tok, nil
}
