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

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/agentext/pkg/config"
	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
	"github.com/kadirpekel/agentext/pkg/httpclient"
)

// Set holds the servers an agent declares. Fields are nil for extensions
// the agent does not use.
type Set struct {
	LLM       *LLMServer
	Embedding *EmbeddingServer
	MCP       *MCPServer
	OAuth     *OAuthServer
	Settings  *SettingsServer
	Secrets   *SecretsServer
	Form      *FormServer
	Platform  *PlatformServer
}

// FromConfig builds the servers declared in cfg.
func FromConfig(cfg config.AgentConfig, opts ...httpclient.Option) (*Set, error) {
	s := &Set{}
	for name, ec := range cfg.Extensions {
		if ec == nil {
			continue
		}
		if name == config.PlatformExtension {
			s.Platform = NewPlatformServer(ec.Required)
			continue
		}
		kind, err := ext.ParseKind(name)
		if err != nil {
			return nil, err
		}
		if err := s.add(kind, ec, cfg, opts); err != nil {
			return nil, fmt.Errorf("extension %s: %w", name, err)
		}
	}
	return s, nil
}

func (s *Set) add(kind ext.Kind, ec *config.ExtensionConfig, cfg config.AgentConfig, opts []httpclient.Option) error {
	switch kind {
	case ext.KindLLM:
		d, err := ext.LLM.DecodeDemand(ec.Demand)
		if err != nil {
			return err
		}
		s.LLM = NewLLMServer(d, ec.Required, opts...)
	case ext.KindEmbedding:
		d, err := ext.Embedding.DecodeDemand(ec.Demand)
		if err != nil {
			return err
		}
		s.Embedding = NewEmbeddingServer(d, ec.Required)
	case ext.KindMCP:
		d, err := ext.MCP.DecodeDemand(ec.Demand)
		if err != nil {
			return err
		}
		s.MCP = NewMCPServer(d, ec.Required, cfg.Name, cfg.Version)
	case ext.KindOAuth:
		d, err := ext.OAuth.DecodeDemand(ec.Demand)
		if err != nil {
			return err
		}
		s.OAuth = NewOAuthServer(d, ec.Required)
	case ext.KindSettings:
		d, err := ext.Settings.DecodeDemand(ec.Demand)
		if err != nil {
			return err
		}
		s.Settings = NewSettingsServer(d, ec.Required)
	case ext.KindSecrets:
		d, err := ext.Secrets.DecodeDemand(ec.Demand)
		if err != nil {
			return err
		}
		s.Secrets = NewSecretsServer(d, ec.Required)
	case ext.KindForm:
		d, err := ext.Form.DecodeDemand(ec.Demand)
		if err != nil {
			return err
		}
		s.Form = NewFormServer(d, ec.Required)
	}
	return nil
}

// Servers returns the configured servers in negotiation order, platform
// last.
func (s *Set) Servers() []Server {
	var out []Server
	for _, srv := range []Server{s.LLM, s.Embedding, s.MCP, s.OAuth, s.Settings, s.Secrets, s.Form, s.Platform} {
		if !isNil(srv) {
			out = append(out, srv)
		}
	}
	return out
}

// Extensions returns the servers as executor extensions.
func (s *Set) Extensions() []executor.Extension {
	servers := s.Servers()
	out := make([]executor.Extension, len(servers))
	for i, srv := range servers {
		out[i] = srv
	}
	return out
}

// Declarations renders the agent card extension list.
func (s *Set) Declarations() ([]a2a.AgentExtension, error) {
	servers := s.Servers()
	out := make([]a2a.AgentExtension, 0, len(servers))
	for _, srv := range servers {
		d, err := srv.Declare()
		if err != nil {
			return nil, fmt.Errorf("declare %s: %w", srv.Name(), err)
		}
		out = append(out, d)
	}
	return out, nil
}

// isNil reports a typed nil pointer stored in the interface.
func isNil(srv Server) bool {
	switch v := srv.(type) {
	case *LLMServer:
		return v == nil
	case *EmbeddingServer:
		return v == nil
	case *MCPServer:
		return v == nil
	case *OAuthServer:
		return v == nil
	case *SettingsServer:
		return v == nil
	case *SecretsServer:
		return v == nil
	case *FormServer:
		return v == nil
	case *PlatformServer:
		return v == nil
	}
	return srv == nil
}
