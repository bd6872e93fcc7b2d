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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentext/pkg/config/provider"
	"github.com/kadirpekel/agentext/pkg/ext"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "assistant", cfg.Agent.Name)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "simple", cfg.Logger.Format)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Endpoint)
	assert.Empty(t, cfg.Agent.Extensions)
}

func TestParse_FullConfig(t *testing.T) {
	t.Setenv("AGENTEXT_TEST_PORT", "9191")
	t.Setenv("AGENTEXT_TEST_MODEL", "openai:gpt-4o")

	data := []byte(`
server:
  port: ${AGENTEXT_TEST_PORT}
  shutdown_timeout: 3s
agent:
  name: helper
  instruction: "be brief"
  extensions:
    llm:
      required: true
      demand:
        llm_demands:
          default:
            suggested: ["$AGENTEXT_TEST_MODEL"]
    secrets:
      demand:
        secret_demands:
          github:
            name: GitHub token
    platform: {}
logger:
  level: ${AGENTEXT_TEST_UNSET:-debug}
  format: json
observability:
  tracing:
    enabled: true
    exporter: stdout
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "helper", cfg.Agent.Name)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.True(t, cfg.Observability.Tracing.Enabled)

	llm := cfg.Agent.Extension(ext.KindLLM)
	require.NotNil(t, llm)
	assert.True(t, llm.Required)

	demand, err := ext.LLM.DecodeDemand(llm.Demand)
	require.NoError(t, err)
	assert.Equal(t, []string{"openai:gpt-4o"}, demand.Demands["default"].Suggested)

	secrets := cfg.Agent.Extension(ext.KindSecrets)
	require.NotNil(t, secrets)
	assert.False(t, secrets.Required)

	platform := cfg.Agent.Extensions[PlatformExtension]
	require.NotNil(t, platform)
	assert.NotNil(t, platform.Demand)

	assert.Nil(t, cfg.Agent.Extension(ext.KindMCP))
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"server": {"port": 7000}, "agent": {"name": "j"}}`))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "j", cfg.Agent.Name)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"unknown extension", "agent:\n  extensions:\n    telepathy: {}\n", "unknown extension kind"},
		{"empty extension", "agent:\n  extensions:\n    llm:\n", "is empty"},
		{"bad level", "logger:\n  level: loud\n", "invalid log level"},
		{"bad format", "logger:\n  format: xml\n", "invalid log format"},
		{"bad port", "server:\n  port: 70000\n", "port must be"},
		{"unknown key", "sever:\n  port: 1\n", "sever"},
		{"garbage", "::: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandEnvString(t *testing.T) {
	t.Setenv("AGENTEXT_A", "alpha")

	tests := map[string]string{
		"${AGENTEXT_A}":             "alpha",
		"$AGENTEXT_A/x":             "alpha/x",
		"${AGENTEXT_MISSING:-beta}": "beta",
		"${AGENTEXT_A:-beta}":       "alpha",
		"${AGENTEXT_MISSING}":       "",
		"plain":                     "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, expandEnvString(in), in)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  name: from-file\n"), 0o644))

	cfg, loader, err := LoadConfig(context.Background(), provider.Config{Path: path})
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, "from-file", cfg.Agent.Name)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, _, err := LoadConfig(context.Background(), provider.Config{Path: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
}

func TestLoader_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  name: v1\n"), 0o644))

	p, err := provider.NewFileProvider(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 4)
	loader := NewLoader(p, WithOnChange(func(c *Config) { reloaded <- c }))
	defer loader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid revision is skipped and the watch keeps going.
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: loud\n"), 0o644))
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  name: v2\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "v2", cfg.Agent.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AGENTEXT_DOTENV=fromfile\nAGENTEXT_PRESET=fromfile\n"), 0o644))

	t.Setenv("AGENTEXT_PRESET", "fromenv")
	t.Cleanup(func() { os.Unsetenv("AGENTEXT_DOTENV") })

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, ".env.local"), envFile))
	assert.Equal(t, "fromfile", os.Getenv("AGENTEXT_DOTENV"))
	assert.Equal(t, "fromenv", os.Getenv("AGENTEXT_PRESET"))
}
