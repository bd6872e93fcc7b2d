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
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/agentext/pkg/ext"
)

// Citations returns message metadata citing sources of the yielded text.
func Citations(items ...ext.CitationItem) map[string]any {
	return ext.Citation.Metadata(&ext.Citations{Citations: items})
}

// Trajectory returns message metadata describing one reasoning step.
func Trajectory(title, content string) map[string]any {
	return ext.Trajectory.Metadata(&ext.TrajectoryStep{Title: title, Content: content})
}

// ErrorMetadata returns message metadata describing err for display.
func ErrorMetadata(title string, err error) map[string]any {
	return ext.Error.Metadata(&ext.ErrorDetail{Error: ext.ErrorInfo{Title: title, Message: err.Error()}})
}

// AgentDetail renders details as an agent card extension.
func AgentDetail(d ext.AgentDetails) a2a.AgentExtension {
	params, _ := ext.AgentDetail.Metadata(&d)[ext.AgentDetail.URI()].(map[string]any)
	return a2a.AgentExtension{URI: ext.AgentDetail.URI(), Params: params}
}
