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
	"net/url"
)

// MCP lets an agent ask the caller for Model Context Protocol tool servers.
var MCP = newEntry[MCPDemands, MCPFulfillments]("mcp", "services/mcp/v1")

// MCP transports.
const (
	TransportStreamableHTTP = "streamable_http"
	TransportSSE            = "sse"
)

type MCPDemand struct {
	Description       string   `json:"description,omitempty"`
	Suggested         []string `json:"suggested,omitempty"`
	AllowedTransports []string `json:"allowed_transports,omitempty" jsonschema:"enum=streamable_http,enum=sse"`
}

type MCPDemands struct {
	Demands map[string]MCPDemand `json:"mcp_demands" jsonschema:"required"`
}

func (d *MCPDemands) Validate() error {
	if d.Demands == nil {
		return fmt.Errorf("mcp_demands: %w", ErrRequired)
	}
	for key, demand := range d.Demands {
		for _, t := range demand.AllowedTransports {
			if !validTransport(t) {
				return fmt.Errorf("mcp_demands.%s: unknown transport %q", key, t)
			}
		}
	}
	return nil
}

// MCPServer is the address of a granted MCP server.
type MCPServer struct {
	URL       string            `json:"url" jsonschema:"required"`
	Transport string            `json:"transport,omitempty" jsonschema:"enum=streamable_http,enum=sse"`
	Headers   map[string]string `json:"headers,omitempty"`
}

func (s *MCPServer) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("url: %w", ErrRequired)
	}
	if _, err := url.ParseRequestURI(s.URL); err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if s.Transport != "" && !validTransport(s.Transport) {
		return fmt.Errorf("unknown transport %q", s.Transport)
	}
	return nil
}

type MCPFulfillments struct {
	Fulfillments map[string]MCPServer `json:"mcp_fulfillments" jsonschema:"required"`
}

func (f *MCPFulfillments) Validate() error {
	if f.Fulfillments == nil {
		return fmt.Errorf("mcp_fulfillments: %w", ErrRequired)
	}
	for key, s := range f.Fulfillments {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("mcp_fulfillments.%s: %w", key, err)
		}
	}
	return nil
}

func validTransport(t string) bool {
	return t == TransportStreamableHTTP || t == TransportSSE
}
