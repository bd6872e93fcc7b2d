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
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
)

// MCPServer demands access to MCP tool servers.
type MCPServer struct {
	base[ext.MCPDemands, ext.MCPFulfillments]
	info mcp.Implementation
}

func NewMCPServer(demand *ext.MCPDemands, required bool, clientName, clientVersion string) *MCPServer {
	return &MCPServer{
		base: newBase(ext.MCP, demand, required),
		info: mcp.Implementation{Name: clientName, Version: clientVersion},
	}
}

// MCPSession is an initialized connection to one granted MCP server.
type MCPSession struct {
	Key   string
	Tools []mcp.Tool

	client *client.Client
}

// Connect opens, initializes and lists the tools of the server granted
// under key.
func (s *MCPServer) Connect(ctx context.Context, deps executor.Dependencies, key string) (*MCPSession, error) {
	f, ok := s.From(deps)
	if !ok {
		return nil, notFulfilled(s.Name(), key)
	}
	srv, ok := f.Fulfillments[key]
	if !ok {
		return nil, notFulfilled(s.Name(), key)
	}

	c, err := newMCPClient(srv)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client for %q: %w", key, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to start MCP client for %q: %w", key, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = s.info
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize MCP server %q: %w", key, err)
	}

	list, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to list tools of %q: %w", key, err)
	}

	slog.Info("Connected to MCP server", "key", key, "url", srv.URL, "transport", transportOf(srv), "tools", len(list.Tools))
	return &MCPSession{Key: key, Tools: list.Tools, client: c}, nil
}

// ConnectAll connects every granted server concurrently. On failure the
// sessions already opened are closed.
func (s *MCPServer) ConnectAll(ctx context.Context, deps executor.Dependencies) (map[string]*MCPSession, error) {
	f, ok := s.From(deps)
	if !ok {
		return map[string]*MCPSession{}, nil
	}

	var (
		mu       sync.Mutex
		sessions = make(map[string]*MCPSession, len(f.Fulfillments))
	)
	// Sessions outlive this call, so they are bound to ctx rather than a
	// group context.
	var g errgroup.Group
	for key := range f.Fulfillments {
		g.Go(func() error {
			sess, err := s.Connect(ctx, deps, key)
			if err != nil {
				return err
			}
			mu.Lock()
			sessions[key] = sess
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, sess := range sessions {
			_ = sess.Close()
		}
		return nil, err
	}
	return sessions, nil
}

// Call invokes a tool and joins its text content.
func (m *MCPSession) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := m.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("tool %q failed: %w", name, err)
	}

	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			sb.WriteString(tc.Text)
		}
	}
	if res.IsError {
		return "", fmt.Errorf("tool %q returned an error: %s", name, sb.String())
	}
	return sb.String(), nil
}

func (m *MCPSession) Close() error {
	return m.client.Close()
}

func transportOf(srv ext.MCPServer) string {
	if srv.Transport == "" {
		return ext.TransportStreamableHTTP
	}
	return srv.Transport
}

func newMCPClient(srv ext.MCPServer) (*client.Client, error) {
	switch transportOf(srv) {
	case ext.TransportSSE:
		return client.NewSSEMCPClient(srv.URL, transport.WithHeaders(srv.Headers))
	default:
		return client.NewStreamableHttpClient(srv.URL, transport.WithHTTPHeaders(srv.Headers))
	}
}
