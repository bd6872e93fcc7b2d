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
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
)

func TestOAuthServer_Flow(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc", r.PostForm.Get("code"))
		assert.NotEmpty(t, r.PostForm.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	s := NewOAuthServer(&ext.OAuthDemands{Demands: map[string]ext.OAuthDemand{"github": {RedirectURI: true}}}, true)
	meta := ext.Merge(ext.OAuth, nil, &ext.OAuthFulfillments{Fulfillments: map[string]ext.OAuthFulfillment{
		"github": {RedirectURI: "http://localhost:9999/callback"},
	}})
	deps := depsFor(t, s, meta)

	cfg := oauth2.Config{
		ClientID: "client",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://auth.example.com/authorize",
			TokenURL: tokenSrv.URL + "/token",
		},
		Scopes: []string{"repo"},
	}
	pending, y, err := s.Authorize(deps, "github", cfg)
	require.NoError(t, err)

	status, ok := y.AsStatus()
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateAuthRequired, status.State)

	req, ok := ext.OAuthRequest.Read(status.Message.Metadata)
	require.True(t, ok)
	authURL, err := url.Parse(req.AuthorizationEndpointURL)
	require.NoError(t, err)
	q := authURL.Query()
	assert.Equal(t, pending.State, q.Get("state"))
	assert.Equal(t, "http://localhost:9999/callback", q.Get("redirect_uri"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))

	reply := a2a.NewMessage(a2a.MessageRoleUser)
	reply.Metadata = ext.OAuthResponse.Metadata(&ext.AuthResponse{
		RedirectURI: "http://localhost:9999/callback?code=abc&state=" + pending.State,
	})
	tok, err := s.Exchange(context.Background(), pending, reply)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
}

func TestOAuthServer_ExchangeRejects(t *testing.T) {
	s := NewOAuthServer(nil, false)
	pending := &PendingAuth{State: "s1", Verifier: oauth2.GenerateVerifier()}

	_, err := s.Exchange(context.Background(), pending, a2a.NewMessage(a2a.MessageRoleUser))
	assert.ErrorIs(t, err, ErrNotFulfilled)

	reply := a2a.NewMessage(a2a.MessageRoleUser)
	reply.Metadata = ext.OAuthResponse.Metadata(&ext.AuthResponse{RedirectURI: "http://cb?code=abc&state=forged"})
	_, err = s.Exchange(context.Background(), pending, reply)
	assert.ErrorIs(t, err, ErrStateMismatch)

	reply.Metadata = ext.OAuthResponse.Metadata(&ext.AuthResponse{RedirectURI: "http://cb?error=access_denied"})
	_, err = s.Exchange(context.Background(), pending, reply)
	assert.ErrorContains(t, err, "access_denied")

	_, _, err = s.Authorize(executor.NewDependencies(nil), "github", oauth2.Config{})
	assert.ErrorIs(t, err, ErrNotFulfilled)
}

func TestSecretsServer(t *testing.T) {
	s := NewSecretsServer(&ext.SecretDemands{Demands: map[string]ext.SecretDemand{"gh": {Name: "GitHub token"}}}, false)

	meta := ext.Merge(ext.Secrets, nil, &ext.SecretFulfillments{Fulfillments: map[string]ext.SecretFulfillment{
		"gh": {Secret: "ghp_x"},
	}})
	deps := depsFor(t, s, meta)

	v, ok := s.Secret(deps, "gh")
	assert.True(t, ok)
	assert.Equal(t, "ghp_x", v)

	_, ok = s.Secret(deps, "other")
	assert.False(t, ok)

	y := s.Request("Need a token", map[string]ext.SecretDemand{"slack": {Name: "Slack token"}})
	status, ok := y.AsStatus()
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateAuthRequired, status.State)

	d, ok := ext.DemandFrom(ext.Secrets, status.Message.Metadata)
	require.True(t, ok)
	assert.Equal(t, "Slack token", d.Demands["slack"].Name)
}

func platformToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject("user-1").Issuer("platform").Expiration(exp).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("secret")))
	require.NoError(t, err)
	return string(signed)
}

func TestPlatformServer_Claims(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewPlatformServer(false)
	s.now = func() time.Time { return now }

	meta := ext.Merge(ext.Platform, nil, &ext.PlatformFulfillment{
		AuthToken: platformToken(t, now.Add(time.Hour)),
		BaseURL:   "https://platform.example.com",
	})
	claims, err := s.Claims(depsFor(t, s, meta))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "platform", claims.Issuer)
	assert.Equal(t, "https://platform.example.com", claims.BaseURL)
	assert.True(t, claims.ExpiresAt.Equal(now.Add(time.Hour)))

	expired := ext.Merge(ext.Platform, nil, &ext.PlatformFulfillment{AuthToken: platformToken(t, now.Add(-time.Minute))})
	_, err = s.Claims(depsFor(t, s, expired))
	assert.ErrorIs(t, err, ErrTokenExpired)

	past := now.Add(-time.Second)
	stale := ext.Merge(ext.Platform, nil, &ext.PlatformFulfillment{AuthToken: "opaque", ExpiresAt: &past})
	_, err = s.Claims(depsFor(t, s, stale))
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = s.Claims(executor.NewDependencies(nil))
	assert.ErrorIs(t, err, ErrNotFulfilled)
}
