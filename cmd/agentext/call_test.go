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
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentext/pkg/classify"
	"github.com/kadirpekel/agentext/pkg/ext"
)

type scriptedPrompter struct {
	lines   []string
	secrets []string
	asked   []string
}

func (p *scriptedPrompter) Line(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.lines) == 0 {
		return "", errors.New("no more input")
	}
	v := p.lines[0]
	p.lines = p.lines[1:]
	return v, nil
}

func (p *scriptedPrompter) Secret(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.secrets) == 0 {
		return "", errors.New("no more secrets")
	}
	v := p.secrets[0]
	p.secrets = p.secrets[1:]
	return v, nil
}

func TestSessionAnswer_FormAndApproval(t *testing.T) {
	p := &scriptedPrompter{lines: []string{"Oslo", "y"}}
	s := newSession(&CallCmd{}, p)

	msg, err := s.answer([]classify.Result{
		classify.FormRequired{Form: ext.FormRender{Fields: []ext.FormField{{ID: "city", Label: "City", Type: ext.FieldText}}}},
		classify.ApprovalRequired{Request: ext.ApprovalRequest{Action: "tool_call", Tool: &ext.ApprovalTool{Name: "rm"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"City: ", "Approve tool_call (rm)? [y/N] "}, p.asked)

	form, ok := ext.FormResponse.Read(msg.Metadata)
	require.True(t, ok)
	assert.Equal(t, "Oslo", form.Values["city"])

	dec, ok := ext.ApprovalDecision.Read(msg.Metadata)
	require.True(t, ok)
	assert.True(t, dec.Approved())
}

func TestSessionAnswer_OAuthAndText(t *testing.T) {
	p := &scriptedPrompter{lines: []string{"http://localhost:8765/callback?code=c&state=s"}}
	s := newSession(&CallCmd{}, p)

	_, err := s.answer([]classify.Result{classify.OAuthRequired{URL: "https://auth.example.com/authorize"}})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8765/callback?code=c&state=s", s.redirect)
	assert.Equal(t, s.redirect, s.provider().OAuthRedirectURI())

	p.lines = []string{"blue"}
	msg, err := s.answer([]classify.Result{classify.TextInputRequired{Text: "Favorite color?"}})
	require.NoError(t, err)
	assert.Equal(t, "blue", classify.Text(msg))
}

func TestSessionAnswer_PromptError(t *testing.T) {
	s := newSession(&CallCmd{}, &scriptedPrompter{})
	_, err := s.answer([]classify.Result{classify.SecretRequired{Demands: map[string]ext.SecretDemand{"k": {Name: "Key"}}}})
	assert.Error(t, err)
}

func TestSettingsValues(t *testing.T) {
	d := &ext.SettingsDemand{Fields: []ext.SettingsField{
		{ID: "tone", Type: ext.FieldSingleSelect, DefaultVal: "friendly"},
		{ID: "features", Type: ext.FieldCheckboxGroup, Fields: []ext.Checkbox{
			{ID: "search", Default: true},
			{ID: "code"},
		}},
	}}

	defaults := settingsValues(d, nil)
	assert.Equal(t, "friendly", defaults["tone"].Value)
	assert.Equal(t, map[string]bool{"search": true, "code": false}, defaults["features"].Values)

	set := settingsValues(d, map[string]string{"tone": "formal", "features": "code"})
	assert.Equal(t, "formal", set["tone"].Value)
	assert.Equal(t, map[string]bool{"search": false, "code": true}, set["features"].Values)
}

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("  answer \nrest"))
	v, err := readLine(r, &out, "q? ")
	require.NoError(t, err)
	assert.Equal(t, "answer", v)
	assert.Equal(t, "q? ", out.String())

	v, err = readLine(r, &out, "")
	require.NoError(t, err)
	assert.Equal(t, "rest", v)

	_, err = readLine(r, &out, "")
	assert.Error(t, err)
}

func TestSchemaCmd(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&SchemaCmd{Name: "secrets", Compact: true}).write(&buf))
	assert.Contains(t, buf.String(), ext.Secrets.URI())

	buf.Reset()
	require.NoError(t, (&SchemaCmd{ConfigSchema: true}).write(&buf))
	assert.Contains(t, buf.String(), "extensions")

	assert.Error(t, (&SchemaCmd{Name: "telepathy"}).write(&buf))
}

func TestInitLogger(t *testing.T) {
	_, err := initLogger("loud", "", "")
	assert.Error(t, err)
	_, err = initLogger("info", "", "xml")
	assert.Error(t, err)

	cleanup, err := initLogger("debug", t.TempDir()+"/agentext.log", "json")
	require.NoError(t, err)
	require.NotNil(t, cleanup)
	cleanup()

	restore, err := initLogger("", "", "")
	require.NoError(t, err)
	assert.Nil(t, restore)
}
