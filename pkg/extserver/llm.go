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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/kadirpekel/agentext/pkg/executor"
	"github.com/kadirpekel/agentext/pkg/ext"
	"github.com/kadirpekel/agentext/pkg/httpclient"
)

// LLMServer demands OpenAI-compatible chat models.
type LLMServer struct {
	base[ext.LLMDemands, ext.LLMFulfillments]
	http *httpclient.Client
}

func NewLLMServer(demand *ext.LLMDemands, required bool, opts ...httpclient.Option) *LLMServer {
	return &LLMServer{
		base: newBase(ext.LLM, demand, required),
		http: httpclient.New(opts...),
	}
}

// Client returns a chat client for the model granted under key.
func (s *LLMServer) Client(deps executor.Dependencies, key string) (*ChatClient, error) {
	f, ok := s.From(deps)
	if !ok {
		return nil, notFulfilled(s.Name(), key)
	}
	m, ok := f.Fulfillments[key]
	if !ok {
		return nil, notFulfilled(s.Name(), key)
	}
	return &ChatClient{
		baseURL: strings.TrimRight(m.APIBase, "/"),
		apiKey:  m.APIKey,
		model:   m.APIModel,
		http:    s.http,
	}, nil
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ChatClient calls /chat/completions on a granted endpoint.
type ChatClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *httpclient.Client
}

func (c *ChatClient) Model() string { return c.model }

// Complete returns the first choice for messages.
func (c *ChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("chat API error (HTTP %d): %s", resp.StatusCode, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned HTTP %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// EmbeddingServer demands OpenAI-compatible embedding models.
type EmbeddingServer struct {
	base[ext.EmbeddingDemands, ext.EmbeddingFulfillments]
}

func NewEmbeddingServer(demand *ext.EmbeddingDemands, required bool) *EmbeddingServer {
	return &EmbeddingServer{base: newBase(ext.Embedding, demand, required)}
}

// EmbeddingFunc embeds text with the model granted under key.
func (s *EmbeddingServer) EmbeddingFunc(deps executor.Dependencies, key string) (chromem.EmbeddingFunc, error) {
	f, ok := s.From(deps)
	if !ok {
		return nil, notFulfilled(s.Name(), key)
	}
	m, ok := f.Fulfillments[key]
	if !ok {
		return nil, notFulfilled(s.Name(), key)
	}
	return chromem.NewEmbeddingFuncOpenAICompat(strings.TrimRight(m.APIBase, "/"), m.APIKey, m.APIModel, nil), nil
}

// NewCollection returns an in-memory collection embedding documents with
// the model granted under key.
func (s *EmbeddingServer) NewCollection(deps executor.Dependencies, key, name string) (*chromem.Collection, error) {
	fn, err := s.EmbeddingFunc(deps, key)
	if err != nil {
		return nil, err
	}
	col, err := chromem.NewDB().CreateCollection(name, nil, fn)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return col, nil
}
