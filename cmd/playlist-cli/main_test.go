// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gorse-io/playlist/client"
	"github.com/gorse-io/playlist/common/log"
	"github.com/gorse-io/playlist/config"
	"github.com/gorse-io/playlist/engine"
	"github.com/gorse-io/playlist/model"
	"github.com/gorse-io/playlist/server"
	"github.com/stretchr/testify/assert"
)

func execute(args ...string) (string, error) {
	var buf bytes.Buffer
	cliCommand.SetOut(&buf)
	cliCommand.SetErr(&buf)
	cliCommand.SetArgs(args)
	err := cliCommand.Execute()
	return buf.String(), err
}

func TestCLI(t *testing.T) {
	log.CloseLogger()
	cfg := config.GetDefaultConfig()
	e := engine.NewEngine(cfg.Server.DefaultN, cfg.Server.MaxN)
	s := server.NewServer(cfg, e, nil)
	s.DisableLog = true
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, err := execute("health", "--url", ts.URL)
	assert.Error(t, err)
	_, err = execute("--url", ts.URL, "A")
	assert.True(t, client.IsNotReady(err))

	e.Publish(model.NewModel(model.Params{MinSupport: 0.5, MinConfidence: 0.5}, model.Stats{}, []model.Rule{
		{Antecedent: []string{"A"}, Consequent: []string{"Hotel California"}, Confidence: 1, Support: 0.5},
	}))
	out, err := execute("health", "--url", ts.URL)
	assert.NoError(t, err)
	assert.Contains(t, out, "Model Loaded: true")

	out, err = execute("--url", ts.URL+"/api/recommend", "A")
	assert.NoError(t, err)
	assert.Contains(t, out, "Number of Recommendations: 1")
	assert.Contains(t, out, "Hotel California")

	out, err = execute("recommend", "--url", ts.URL, "--json", "Z")
	assert.NoError(t, err)
	var resp client.RecommendResponse
	assert.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Songs)
	assert.Equal(t, []string{"Z"}, resp.InputSongs)

	out, err = execute("model", "--url", ts.URL, "--json=false")
	assert.NoError(t, err)
	assert.Contains(t, out, "rules")

	_, err = execute("reload", "--url", ts.URL)
	assert.Error(t, err)
}
