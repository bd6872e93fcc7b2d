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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/agentext/pkg/config"
	"github.com/kadirpekel/agentext/pkg/config/provider"
	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
	"github.com/kadirpekel/agentext/pkg/extserver"
	"github.com/kadirpekel/agentext/pkg/observability"
	"github.com/kadirpekel/agentext/pkg/server"
)

// ServeCmd starts the A2A server.
type ServeCmd struct {
	Provider  string   `help:"Config source (file, consul, etcd, zookeeper)." default:"file"`
	Endpoints []string `help:"Endpoints of the remote config store." sep:","`
	Port      int      `help:"Override the configured port."`
	Watch     bool     `help:"Reload logger settings when the config changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := c.loadConfig(ctx, cli)
	if err != nil {
		return err
	}
	if loader != nil {
		defer func() { _ = loader.Close() }()
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	cleanup, err := applyConfigLogger(cli, cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	obs := observability.NewManager(cfg.Observability, observability.WithVersion(version()))
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	exec, card, err := buildAgent(cfg, obs)
	if err != nil {
		return err
	}
	srv := server.New(cfg.Server, card, exec, server.WithObservability(obs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	if c.Watch && loader != nil {
		g.Go(func() error {
			err := loader.Watch(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	fmt.Printf("\nagentext serving %q\n", cfg.Agent.Name)
	fmt.Printf("   Agent Card:  %s%s\n", cfg.Server.BaseURL, a2asrv.WellKnownAgentCardPath)
	fmt.Printf("   Health:      %s/health\n", cfg.Server.BaseURL)
	if h := obs.MetricsHandler(); h != nil {
		fmt.Printf("   Metrics:     %s%s\n", cfg.Server.BaseURL, obs.MetricsPath())
	}
	fmt.Println()

	return g.Wait()
}

// loadConfig loads path through the selected provider. Without a path the
// defaults describe an echo agent with no extensions.
func (c *ServeCmd) loadConfig(ctx context.Context, cli *CLI) (*config.Config, *config.Loader, error) {
	path := cli.Config
	if path == "" {
		cfg := &config.Config{}
		cfg.SetDefaults()
		return cfg, nil, cfg.Validate()
	}

	typ, err := provider.ParseType(c.Provider)
	if err != nil {
		return nil, nil, err
	}

	var current *config.Config
	onChange := func(next *config.Config) {
		if !cmp.Equal(current.Agent, next.Agent) || !cmp.Equal(current.Server, next.Server) {
			slog.Warn("Agent or server settings changed; restart to apply them")
		}
		if !cmp.Equal(current.Logger, next.Logger) {
			// TODO: close the previous log file once reloads can change it.
			if _, err := applyConfigLogger(cli, next.Logger); err != nil {
				slog.Error("Failed to apply reloaded logger settings", "error", err)
			} else {
				slog.Info("Applied reloaded logger settings", "level", next.Logger.Level)
			}
		}
		current = next
	}

	cfg, loader, err := config.LoadConfig(ctx, provider.Config{
		Type:      typ,
		Path:      path,
		Endpoints: c.Endpoints,
	}, config.WithOnChange(onChange))
	if err != nil {
		return nil, nil, err
	}
	current = cfg
	return cfg, loader, nil
}

// buildAgent wires the configured extension servers into the built-in
// assistant and renders the agent card.
func buildAgent(cfg *config.Config, obs *observability.Manager) (*executor.Executor, *a2a.AgentCard, error) {
	set, err := extserver.FromConfig(cfg.Agent)
	if err != nil {
		return nil, nil, err
	}
	decls, err := set.Declarations()
	if err != nil {
		return nil, nil, err
	}
	decls = append(decls, extserver.AgentDetail(ext.AgentDetails{
		InteractionMode: "multi-turn",
		Framework:       "agentext",
	}))

	exec, err := executor.New(newAssistant(cfg.Agent.Instruction, set).Handle,
		executor.WithExtensions(set.Extensions()...),
		executor.WithTracer(obs.Tracer("agentext/executor")),
		executor.WithMeter(obs.Meter("agentext/executor")),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create executor: %w", err)
	}

	slog.Info("Agent ready", "name", cfg.Agent.Name, "extensions", len(set.Servers()))
	return exec, server.Card(cfg.Agent, cfg.Server.BaseURL, decls), nil
}
