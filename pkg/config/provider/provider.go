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

// Package provider reads raw agent configuration from a file or a
// distributed key-value store and signals when it changes.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Type names a configuration source.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// ErrClosed is returned by providers used after Close.
var ErrClosed = errors.New("provider is closed")

// ParseType parses a provider name. The empty string means file.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	case "zookeeper", "zk":
		return TypeZookeeper, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// Provider is a source of raw configuration bytes.
type Provider interface {
	Type() Type

	// Load reads the current configuration.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel whenever the configuration
	// changes. The channel is closed when ctx is done or the source goes
	// away. A nil channel means the provider cannot watch.
	Watch(ctx context.Context) (<-chan struct{}, error)

	Close() error
}

// Config selects and configures a provider.
type Config struct {
	Type Type

	// Path is a file path for file providers and a key for the others.
	Path string

	// Endpoints of the remote store.
	Endpoints []string

	// Timeout bounds connection setup of remote stores.
	Timeout time.Duration
}

const defaultTimeout = 10 * time.Second

// New creates the provider described by cfg.
func New(cfg Config) (Provider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	switch cfg.Type {
	case TypeFile, "":
		return NewFileProvider(cfg.Path)
	case TypeConsul:
		return NewConsulProvider(cfg.Endpoints, cfg.Path)
	case TypeEtcd:
		return NewEtcdProvider(cfg.Endpoints, cfg.Path, cfg.Timeout)
	case TypeZookeeper:
		return NewZookeeperProvider(cfg.Endpoints, cfg.Path, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// notify performs a non-blocking send; a pending signal already covers the
// change.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
