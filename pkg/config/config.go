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

// Package config defines the agent server configuration and loads it from
// a provider.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/kadirpekel/agentext/pkg/ext"
	"github.com/kadirpekel/agentext/pkg/logger"
	"github.com/kadirpekel/agentext/pkg/observability"
)

// PlatformExtension names the platform token extension in agent config.
// It is not negotiated like the other kinds but may still be declared.
const PlatformExtension = "platform"

// Config is the root configuration.
//
// Example:
//
//	server:
//	  port: 8080
//	agent:
//	  name: assistant
//	  extensions:
//	    llm:
//	      required: true
//	      demand:
//	        llm_demands:
//	          default:
//	            suggested: [openai:gpt-4o-mini]
//	logger:
//	  level: info
type Config struct {
	Server        ServerConfig         `yaml:"server,omitempty"`
	Agent         AgentConfig          `yaml:"agent,omitempty"`
	Logger        LoggerConfig         `yaml:"logger,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty"`
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Agent.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section and reports all failures at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Agent.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("agent: %w", err))
	}
	if err := c.Logger.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logger: %w", err))
	}
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability: %w", err))
	}
	return errors.Join(errs...)
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Host to bind.
	// Default: 0.0.0.0
	Host string `yaml:"host,omitempty"`

	// Port to bind.
	// Default: 8080
	Port int `yaml:"port,omitempty"`

	// BaseURL is the public URL advertised in the agent card.
	// Default: http://localhost:<port>
	BaseURL string `yaml:"base_url,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AgentConfig describes the agent card and the extensions it demands.
type AgentConfig struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Version of the agent advertised on the card.
	// Default: 0.1.0
	Version string `yaml:"version,omitempty"`

	// Instruction is the system prompt of the built-in assistant.
	Instruction string `yaml:"instruction,omitempty"`

	// Extensions maps a kind name (llm, embedding, mcp, oauth, settings,
	// secrets, form, platform) to its declaration.
	Extensions map[string]*ExtensionConfig `yaml:"extensions,omitempty"`
}

// ExtensionConfig declares one extension on the agent card.
type ExtensionConfig struct {
	Required bool `yaml:"required,omitempty"`

	// Demand holds the demand params in wire form.
	Demand map[string]any `yaml:"demand,omitempty"`
}

func (c *AgentConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "assistant"
	}
	if c.Description == "" {
		c.Description = "A2A agent with capability extensions"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.Extensions == nil {
		c.Extensions = map[string]*ExtensionConfig{}
	}
	for _, e := range c.Extensions {
		if e != nil && e.Demand == nil {
			e.Demand = map[string]any{}
		}
	}
}

func (c *AgentConfig) Validate() error {
	for name, e := range c.Extensions {
		if e == nil {
			return fmt.Errorf("extension %q is empty", name)
		}
		if name == PlatformExtension {
			continue
		}
		if _, err := ext.ParseKind(name); err != nil {
			return err
		}
	}
	return nil
}

// Extension returns the declaration for kind, or nil.
func (c *AgentConfig) Extension(kind ext.Kind) *ExtensionConfig {
	return c.Extensions[kind.String()]
}

// LoggerConfig configures logging.
//
// Example:
//
//	logger:
//	  level: info
//	  file: agentext.log
//	  format: simple
type LoggerConfig struct {
	// Level specifies the log level (debug, info, warn, error).
	// Default: info
	Level string `yaml:"level,omitempty"`

	// File specifies the log file path. If empty, logs go to stderr.
	File string `yaml:"file,omitempty"`

	// Format is "simple", "verbose" or "json".
	// Default: simple
	Format string `yaml:"format,omitempty"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = logger.FormatSimple
	}
}

func (c *LoggerConfig) Validate() error {
	if _, err := logger.ParseLevel(c.Level); err != nil {
		return err
	}
	if !logger.ValidFormat(c.Format) {
		return fmt.Errorf("invalid log format %q (valid: simple, verbose, json)", c.Format)
	}
	return nil
}
