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
	"iter"
	"log/slog"
	"sort"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/agentext/pkg/classify"
	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
	"github.com/kadirpekel/agentext/pkg/extserver"
)

const defaultModelKey = "default"

// assistant is the built-in handler. It answers with the caller's model
// when one is granted and echoes otherwise.
type assistant struct {
	instruction string
	servers     *extserver.Set
}

func newAssistant(instruction string, servers *extserver.Set) *assistant {
	return &assistant{instruction: instruction, servers: servers}
}

func (a *assistant) Handle(ctx context.Context, msg *a2a.Message, rc executor.RunContext, deps executor.Dependencies) iter.Seq2[executor.Yield, error] {
	return func(yield func(executor.Yield, error) bool) {
		if missing := a.missingSecrets(deps); len(missing) > 0 {
			names := make([]string, 0, len(missing))
			for _, d := range missing {
				names = append(names, d.Name)
			}
			sort.Strings(names)
			yield(a.servers.Secrets.Request("Please provide: "+strings.Join(names, ", "), missing), nil)
			return
		}

		if a.servers.Platform != nil {
			if claims, err := a.servers.Platform.Claims(deps); err == nil {
				slog.Debug("Platform caller", "taskID", string(rc.TaskID), "subject", claims.Subject)
			}
		}

		tools, err := a.listTools(ctx, deps)
		if err != nil {
			y := executor.Text("Tool servers are unavailable.").
				WithMetadata(extserver.ErrorMetadata("MCP", err))
			if !yield(y, nil) {
				return
			}
		} else if len(tools) > 0 {
			step := executor.Text("").WithMetadata(extserver.Trajectory("Tools", strings.Join(tools, ", ")))
			if !yield(step, nil) {
				return
			}
		}

		prompt := classify.Text(msg)
		chat, err := a.chatClient(deps)
		switch {
		case errors.Is(err, extserver.ErrNotFulfilled), err == nil && chat == nil:
			yield(executor.Text(prompt), nil)
			return
		case err != nil:
			yield(executor.Error(err), nil)
			return
		}

		if !yield(executor.Text("").WithMetadata(extserver.Trajectory("Thinking", "Asking "+chat.Model())), nil) {
			return
		}
		reply, err := chat.Complete(ctx, a.messages(deps, prompt))
		if err != nil {
			yield(executor.Error(fmt.Errorf("completion failed: %w", err)), nil)
			return
		}
		yield(executor.Text(reply), nil)
	}
}

// missingSecrets returns the declared secrets the caller did not send.
func (a *assistant) missingSecrets(deps executor.Dependencies) map[string]ext.SecretDemand {
	s := a.servers.Secrets
	if s == nil || s.Demand() == nil {
		return nil
	}
	missing := map[string]ext.SecretDemand{}
	for key, d := range s.Demand().Demands {
		if _, ok := s.Secret(deps, key); !ok {
			missing[key] = d
		}
	}
	return missing
}

func (a *assistant) listTools(ctx context.Context, deps executor.Dependencies) ([]string, error) {
	if a.servers.MCP == nil {
		return nil, nil
	}
	sessions, err := a.servers.MCP.ConnectAll(ctx, deps)
	if err != nil {
		return nil, err
	}
	var names []string
	for key, sess := range sessions {
		for _, t := range sess.Tools {
			names = append(names, key+"/"+t.Name)
		}
		if err := sess.Close(); err != nil {
			slog.Debug("Closing MCP session failed", "server", key, "error", err)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (a *assistant) chatClient(deps executor.Dependencies) (*extserver.ChatClient, error) {
	if a.servers.LLM == nil {
		return nil, nil
	}
	key := defaultModelKey
	if d := a.servers.LLM.Demand(); d != nil {
		if _, ok := d.Demands[key]; !ok {
			for k := range d.Demands {
				key = k
				break
			}
		}
	}
	return a.servers.LLM.Client(deps, key)
}

func (a *assistant) messages(deps executor.Dependencies, prompt string) []extserver.ChatMessage {
	system := a.instruction
	if a.servers.Settings != nil {
		if v, ok := a.servers.Settings.Value(deps, "tone"); ok && v.Value != "" {
			system = strings.TrimSpace(system + "\nRespond in a " + v.Value + " tone.")
		}
	}
	var out []extserver.ChatMessage
	if system != "" {
		out = append(out, extserver.ChatMessage{Role: "system", Content: system})
	}
	return append(out, extserver.ChatMessage{Role: "user", Content: prompt})
}
