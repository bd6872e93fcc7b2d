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
	"fmt"
	"io"
	"os"

	"github.com/kadirpekel/agentext/pkg/config"
	"github.com/kadirpekel/agentext/pkg/logger"
)

const defaultLogFormat = logger.FormatSimple

// initLogger installs the process logger. Empty arguments mean info level,
// stderr and the simple format.
func initLogger(level, file, format string) (func(), error) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = defaultLogFormat
	}
	if !logger.ValidFormat(format) {
		return nil, fmt.Errorf("invalid log format %q (valid: simple, verbose, json)", format)
	}

	var (
		output  io.Writer = os.Stderr
		cleanup func()
	)
	if file != "" {
		f, closeFn, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, err
		}
		output = f
		cleanup = closeFn
	}

	logger.Init(lvl, output, format)
	return cleanup, nil
}

// applyConfigLogger switches to the config file's logger settings for the
// values the command line left empty.
func applyConfigLogger(cli *CLI, cfg config.LoggerConfig) (func(), error) {
	if cli.LogLevel != "" && cli.LogFile != "" && cli.LogFormat != "" {
		return nil, nil
	}
	level, file, format := cli.LogLevel, cli.LogFile, cli.LogFormat
	if level == "" {
		level = cfg.Level
	}
	if file == "" {
		file = cfg.File
	}
	if format == "" {
		format = cfg.Format
	}
	return initLogger(level, file, format)
}
