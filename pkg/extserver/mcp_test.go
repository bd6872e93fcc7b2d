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
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
)

func newToolServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := server.NewMCPServer("tools", "1.0.0", server.WithToolCapabilities(false))
	s.AddTool(
		mcp.NewTool("echo",
			mcp.WithDescription("Echo the input"),
			mcp.WithString("text", mcp.Required()),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text, _ := req.GetArguments()["text"].(string)
			return mcp.NewToolResultText("echo: " + text), nil
		},
	)
	ts := httptest.NewServer(server.NewStreamableHTTPServer(s))
	t.Cleanup(ts.Close)
	return ts
}

func TestMCPServer_Connect(t *testing.T) {
	ts := newToolServer(t)

	s := NewMCPServer(&ext.MCPDemands{Demands: map[string]ext.MCPDemand{"tools": {}}}, false, "agent", "test")
	meta := ext.Merge(ext.MCP, nil, &ext.MCPFulfillments{Fulfillments: map[string]ext.MCPServer{
		"tools": {URL: ts.URL + "/mcp", Transport: ext.TransportStreamableHTTP},
	}})
	deps := depsFor(t, s, meta)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := s.Connect(ctx, deps, "tools")
	require.NoError(t, err)
	defer sess.Close()

	require.Len(t, sess.Tools, 1)
	assert.Equal(t, "echo", sess.Tools[0].Name)

	out, err := sess.Call(ctx, "echo", map[string]any{"text": "ping"})
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", out)

	_, err = s.Connect(ctx, deps, "missing")
	assert.ErrorIs(t, err, ErrNotFulfilled)
}

func TestMCPServer_ConnectAll(t *testing.T) {
	ts := newToolServer(t)
	s := NewMCPServer(nil, false, "agent", "test")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions, err := s.ConnectAll(ctx, executor.NewDependencies(nil))
	require.NoError(t, err)
	assert.Empty(t, sessions)

	meta := ext.Merge(ext.MCP, nil, &ext.MCPFulfillments{Fulfillments: map[string]ext.MCPServer{
		"a": {URL: ts.URL + "/mcp"},
		"b": {URL: ts.URL + "/mcp"},
	}})
	sessions, err = s.ConnectAll(ctx, depsFor(t, s, meta))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, sess := range sessions {
		assert.NoError(t, sess.Close())
	}

	bad := ext.Merge(ext.MCP, nil, &ext.MCPFulfillments{Fulfillments: map[string]ext.MCPServer{
		"a": {URL: ts.URL + "/mcp"},
		"b": {URL: "http://127.0.0.1:1/mcp"},
	}})
	_, err = s.ConnectAll(ctx, depsFor(t, s, bad))
	assert.Error(t, err)
}
