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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"golang.org/x/term"

	"github.com/kadirpekel/agentext/pkg/classify"
	"github.com/kadirpekel/agentext/pkg/client"
	"github.com/kadirpekel/agentext/pkg/ext"
	"github.com/kadirpekel/agentext/pkg/negotiation"
)

const maxRounds = 8

// CallCmd sends a message to an agent and answers its follow-ups.
type CallCmd struct {
	URL     string `arg:"" help:"Base URL of the agent."`
	Message string `arg:"" help:"Message to send."`

	ContextID string `name:"context-id" help:"Continue a conversation."`
	TaskID    string `name:"task-id" help:"Resume a paused task."`

	LLMURL         string            `name:"llm-url" env:"OPENAI_BASE_URL" default:"https://api.openai.com/v1" help:"OpenAI-compatible API base granted to the agent."`
	LLMKey         string            `name:"llm-key" env:"OPENAI_API_KEY" help:"API key granted with the model."`
	LLMModel       string            `name:"llm-model" default:"gpt-4o-mini" help:"Chat model granted to the agent."`
	EmbeddingModel string            `name:"embedding-model" default:"text-embedding-3-small" help:"Embedding model granted to the agent."`
	MCP            map[string]string `name:"mcp" help:"MCP servers to grant (key=url)."`
	Secret         map[string]string `help:"Secrets to grant (key=value). Missing ones are prompted."`
	Setting        map[string]string `help:"Settings values (id=value)."`
	RedirectURI    string            `name:"redirect-uri" default:"http://localhost:8765/callback" help:"OAuth redirect URI granted to the agent."`
	Token          string            `env:"AGENTEXT_PLATFORM_TOKEN" help:"Platform API token sent with every message."`
}

func (c *CallCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cl, err := client.Dial(ctx, c.URL)
	if err != nil {
		return err
	}
	defer func() { _ = cl.Close() }()

	s := newSession(c, newTerminalPrompter(os.Stdin, os.Stdout))
	return s.run(ctx, cl, os.Stdout)
}

// session holds what the caller has granted so far across rounds.
type session struct {
	cmd      *CallCmd
	prompt   prompter
	secrets  map[string]string
	redirect string
}

func newSession(c *CallCmd, p prompter) *session {
	secrets := make(map[string]string, len(c.Secret))
	for k, v := range c.Secret {
		secrets[k] = v
	}
	return &session{cmd: c, prompt: p, secrets: secrets}
}

func (s *session) run(ctx context.Context, cl *client.Client, out io.Writer) error {
	msg := client.NewMessage(s.cmd.Message, s.cmd.ContextID, a2a.TaskID(s.cmd.TaskID))
	for range maxRounds {
		var last *a2a.TaskStatusUpdateEvent
		var followUps []classify.Result
		for u, err := range cl.Send(ctx, msg, s.provider()) {
			if err != nil {
				return err
			}
			printUpdate(out, u)
			if u.Status != nil {
				last = u.Status
				followUps = u.FollowUps
			}
		}
		if last == nil || len(followUps) == 0 {
			return nil
		}

		next, err := s.answer(followUps)
		if err != nil {
			return err
		}
		next.ContextID = last.ContextID
		next.TaskID = last.TaskID
		msg = next
	}
	return fmt.Errorf("agent still waiting after %d rounds", maxRounds)
}

// answer resolves follow-ups and builds the message that resumes the task.
// Granted secrets and OAuth redirects travel through negotiation; forms,
// approvals and questions travel in the message itself.
func (s *session) answer(followUps []classify.Result) (*a2a.Message, error) {
	text := "continue"
	var meta map[string]any
	for _, f := range followUps {
		switch r := f.(type) {
		case classify.SecretRequired:
			keys := make([]string, 0, len(r.Demands))
			for k := range r.Demands {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if s.secrets[k] != "" {
					continue
				}
				v, err := s.prompt.Secret(r.Demands[k].Name + ": ")
				if err != nil {
					return nil, err
				}
				s.secrets[k] = v
			}

		case classify.OAuthRequired:
			v, err := s.prompt.Line(fmt.Sprintf("Authorize at %s\nPaste the redirect URL: ", r.URL))
			if err != nil {
				return nil, err
			}
			s.redirect = v

		case classify.FormRequired:
			values := map[string]any{}
			for _, field := range r.Form.Fields {
				label := field.Label
				if label == "" {
					label = field.ID
				}
				v, err := s.prompt.Line(label + ": ")
				if err != nil {
					return nil, err
				}
				values[field.ID] = v
			}
			meta = ext.FormResponse.Attach(meta, &ext.FormValues{Values: values})

		case classify.ApprovalRequired:
			v, err := s.prompt.Line(approvalPrompt(r.Request))
			if err != nil {
				return nil, err
			}
			decision := ext.DecisionReject
			if strings.EqualFold(v, "y") || strings.EqualFold(v, "yes") {
				decision = ext.DecisionApprove
			}
			meta = ext.ApprovalDecision.Attach(meta, &ext.ApprovalResponse{Decision: decision})

		case classify.TextInputRequired:
			v, err := s.prompt.Line("> ")
			if err != nil {
				return nil, err
			}
			text = v
		}
	}
	msg := client.NewMessage(text, "", "")
	msg.Metadata = meta
	return msg, nil
}

func approvalPrompt(req ext.ApprovalRequest) string {
	title := req.Title
	if title == "" {
		title = req.Action
	}
	if req.Tool != nil {
		title += " (" + req.Tool.Name + ")"
	}
	return "Approve " + title + "? [y/N] "
}

// provider grants what the flags and earlier answers provide.
func (s *session) provider() negotiation.FulfillmentProvider {
	c := s.cmd
	model := func(m string) ext.ModelFulfillment {
		return ext.ModelFulfillment{APIBase: c.LLMURL, APIKey: c.LLMKey, APIModel: m}
	}
	return &negotiation.Funcs{
		LLMFunc: func(_ context.Context, d *ext.LLMDemands) (*ext.LLMFulfillments, error) {
			out := make(map[string]ext.ModelFulfillment, len(d.Demands))
			for k := range d.Demands {
				out[k] = model(c.LLMModel)
			}
			return &ext.LLMFulfillments{Fulfillments: out}, nil
		},
		EmbeddingFunc: func(_ context.Context, d *ext.EmbeddingDemands) (*ext.EmbeddingFulfillments, error) {
			out := make(map[string]ext.ModelFulfillment, len(d.Demands))
			for k := range d.Demands {
				out[k] = model(c.EmbeddingModel)
			}
			return &ext.EmbeddingFulfillments{Fulfillments: out}, nil
		},
		MCPFunc: func(_ context.Context, d *ext.MCPDemands) (*ext.MCPFulfillments, error) {
			out := map[string]ext.MCPServer{}
			for k := range d.Demands {
				if u, ok := c.MCP[k]; ok {
					out[k] = ext.MCPServer{URL: u}
				}
			}
			return &ext.MCPFulfillments{Fulfillments: out}, nil
		},
		OAuthFunc: func(_ context.Context, d *ext.OAuthDemands) (*ext.OAuthFulfillments, error) {
			out := make(map[string]ext.OAuthFulfillment, len(d.Demands))
			for k := range d.Demands {
				out[k] = ext.OAuthFulfillment{RedirectURI: c.RedirectURI}
			}
			return &ext.OAuthFulfillments{Fulfillments: out}, nil
		},
		SettingsFunc: func(_ context.Context, d *ext.SettingsDemand) (*ext.SettingsFulfillment, error) {
			return &ext.SettingsFulfillment{Values: settingsValues(d, c.Setting)}, nil
		},
		SecretsFunc: func(_ context.Context, d *ext.SecretDemands) (*ext.SecretFulfillments, error) {
			out := map[string]ext.SecretFulfillment{}
			for k := range d.Demands {
				if v := s.secrets[k]; v != "" {
					out[k] = ext.SecretFulfillment{Secret: v}
				}
			}
			return &ext.SecretFulfillments{Fulfillments: out}, nil
		},
		FormFunc: func(context.Context, *ext.FormDemands) (*ext.FormFulfillments, error) {
			return &ext.FormFulfillments{Fulfillments: map[string]ext.FormValues{}}, nil
		},
		RedirectURIFunc: func() string { return s.redirect },
		TokenFunc:       func() negotiation.ContextToken { return negotiation.ContextToken{Token: c.Token} },
	}
}

// settingsValues answers each declared field from flags, falling back to
// the declared defaults. Checkbox groups take a comma-separated list of the
// boxes to check.
func settingsValues(d *ext.SettingsDemand, flags map[string]string) map[string]ext.SettingsValue {
	out := make(map[string]ext.SettingsValue, len(d.Fields))
	for _, f := range d.Fields {
		raw, set := flags[f.ID]
		switch f.Type {
		case ext.FieldCheckboxGroup:
			checked := map[string]bool{}
			for _, id := range strings.Split(raw, ",") {
				checked[strings.TrimSpace(id)] = true
			}
			values := make(map[string]bool, len(f.Fields))
			for _, cb := range f.Fields {
				values[cb.ID] = cb.Default
				if set {
					values[cb.ID] = checked[cb.ID]
				}
			}
			out[f.ID] = ext.SettingsValue{Type: f.Type, Values: values}
		default:
			v := f.DefaultVal
			if set {
				v = raw
			}
			out[f.ID] = ext.SettingsValue{Type: f.Type, Value: v}
		}
	}
	return out
}

func printUpdate(w io.Writer, u client.Update) {
	if u.Status == nil {
		return
	}
	st := u.Status.Status
	text := classify.Text(st.Message)
	switch {
	case text != "":
		fmt.Fprintf(w, "[%s] %s\n", st.State, text)
	case st.Message != nil:
		if step, ok := ext.Trajectory.Read(st.Message.Metadata); ok {
			fmt.Fprintf(w, "[%s] %s: %s\n", st.State, step.Title, step.Content)
		}
	case u.Status.Final:
		fmt.Fprintf(w, "[%s]\n", st.State)
	}
}

// prompter asks the user for input.
type prompter interface {
	Line(prompt string) (string, error)
	Secret(prompt string) (string, error)
}

type terminalPrompter struct {
	in     *os.File
	reader *bufio.Reader
	out    io.Writer
}

func newTerminalPrompter(in *os.File, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: in, reader: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) Line(prompt string) (string, error) {
	return readLine(p.reader, p.out, prompt)
}

// Secret reads without echo on a terminal.
func (p *terminalPrompter) Secret(prompt string) (string, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		return p.Line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func readLine(r *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
