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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/agentext/pkg/config"
	"github.com/kadirpekel/agentext/pkg/ext"
)

// SchemaCmd prints the JSON Schemas of the registered extensions, or of the
// config file with --config-schema.
type SchemaCmd struct {
	Name         string `arg:"" optional:"" help:"Extension name (all when empty)."`
	ConfigSchema bool   `name:"config-schema" help:"Print the config file schema instead."`
	Compact      bool   `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	return c.write(os.Stdout)
}

func (c *SchemaCmd) write(w io.Writer) error {
	enc := json.NewEncoder(w)
	if !c.Compact {
		enc.SetIndent("", "  ")
	}

	if c.ConfigSchema {
		r := &jsonschema.Reflector{
			FieldNameTag:   "yaml",
			DoNotReference: true,
		}
		schema := r.Reflect(&config.Config{})
		schema.Title = "agentext configuration"
		return enc.Encode(schema)
	}

	if c.Name == "" {
		all := ext.All()
		out := make([]ext.Schemas, 0, len(all))
		for _, d := range all {
			out = append(out, d.Schemas())
		}
		return enc.Encode(out)
	}
	for _, d := range ext.All() {
		if d.Name() == c.Name {
			return enc.Encode(d.Schemas())
		}
	}
	return fmt.Errorf("unknown extension %q", c.Name)
}
