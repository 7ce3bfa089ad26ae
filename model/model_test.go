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

package model

import (
	"bytes"
	"slices"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func newTestModel() *Model {
	return NewModel(Params{
		MinSupport:     0.5,
		MinConfidence:  0.6,
		SampleSize:     10000,
		SampleSeed:     42,
		MaxItemsetSize: 12,
	}, Stats{
		Dataset:         "playlists.csv",
		NumPlaylists:    4,
		NumTransactions: 4,
		NumTracks:       3,
		NumItemsets:     3,
		TrainTime:       time.Second,
	}, []Rule{
		{Antecedent: []string{"A"}, Consequent: []string{"B"}, Confidence: 1, Support: 0.75},
		{Antecedent: []string{"B"}, Consequent: []string{"A"}, Confidence: 0.75, Support: 0.75},
	})
}

func TestMarshal(t *testing.T) {
	m := newTestModel()
	assert.Equal(t, 2, m.Stats.NumRules)
	assert.NotEmpty(t, m.Version)
	buf := bytes.NewBuffer(nil)
	err := Marshal(buf, m)
	assert.NoError(t, err)
	assert.Equal(t, []byte("PLRM"), buf.Bytes()[:4])
	loaded, err := Unmarshal(buf)
	assert.NoError(t, err)
	assert.Equal(t, m.Version, loaded.Version)
	assert.True(t, m.CreatedAt.Equal(loaded.CreatedAt))
	assert.Equal(t, m.Params, loaded.Params)
	assert.Equal(t, m.Stats, loaded.Stats)
	assert.Equal(t, m.Rules, loaded.Rules)
	assert.Equal(t, FormatVersion, loaded.FormatVersion)
}

func TestMarshalEmpty(t *testing.T) {
	m := NewModel(Params{MinSupport: 1, MinConfidence: 1}, Stats{}, nil)
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, Marshal(buf, m))
	loaded, err := Unmarshal(buf)
	assert.NoError(t, err)
	assert.Empty(t, loaded.Rules)
}

func TestUnmarshalCorrupted(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, Marshal(buf, newTestModel()))
	data := buf.Bytes()

	// truncated
	for _, n := range []int{0, 3, 6, len(data) / 2, len(data) - 1} {
		_, err := Unmarshal(bytes.NewReader(data[:n]))
		assert.True(t, errors.Is(err, errors.NotValid), "truncated at %d: %v", n, err)
	}
	// magic
	corrupted := slices.Clone(data)
	corrupted[0] = 'X'
	_, err := Unmarshal(bytes.NewReader(corrupted))
	assert.True(t, errors.Is(err, errors.NotValid))
	// format version
	corrupted = slices.Clone(data)
	corrupted[4] = 2
	_, err = Unmarshal(bytes.NewReader(corrupted))
	assert.True(t, errors.Is(err, errors.NotSupported))
	// checksum
	corrupted = slices.Clone(data)
	corrupted[len(corrupted)-1] ^= 0xff
	_, err = Unmarshal(bytes.NewReader(corrupted))
	assert.True(t, errors.Is(err, errors.NotValid))
	// payload
	corrupted = slices.Clone(data)
	corrupted[len(corrupted)/2] ^= 0xff
	_, err = Unmarshal(bytes.NewReader(corrupted))
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestMarshalInvalid(t *testing.T) {
	m := newTestModel()
	m.Rules = append(m.Rules, Rule{Antecedent: []string{"A"}, Consequent: []string{"A"}, Confidence: 1, Support: 0.5})
	err := Marshal(bytes.NewBuffer(nil), m)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, newTestModel().Validate())
	cases := []func(*Model){
		func(m *Model) { m.Version = "" },
		func(m *Model) { m.Params.MinSupport = 0 },
		func(m *Model) { m.Params.MinConfidence = 1.5 },
		func(m *Model) { m.Rules[0].Confidence = 0 },
		func(m *Model) { m.Rules[0].Confidence = 1.01 },
		func(m *Model) { m.Rules[0].Support = -1 },
		func(m *Model) { m.Rules[0].Antecedent = nil },
		func(m *Model) { m.Rules[0].Consequent = nil },
		func(m *Model) { m.Rules[0].Consequent = []string{""} },
		func(m *Model) { m.Rules[0].Consequent = []string{"B", "A"} },
	}
	for i, mutate := range cases {
		m := newTestModel()
		mutate(m)
		assert.True(t, errors.Is(m.Validate(), errors.NotValid), "case %d", i)
	}
	m := newTestModel()
	m.FormatVersion = 9
	assert.True(t, errors.Is(m.Validate(), errors.NotSupported))
}

func TestCompareRules(t *testing.T) {
	rules := []Rule{
		{Antecedent: []string{"B"}, Consequent: []string{"A"}, Confidence: 0.5, Support: 0.5},
		{Antecedent: []string{"A"}, Consequent: []string{"C"}, Confidence: 0.5, Support: 0.5},
		{Antecedent: []string{"A"}, Consequent: []string{"B"}, Confidence: 0.5, Support: 0.5},
		{Antecedent: []string{"C"}, Consequent: []string{"A"}, Confidence: 0.5, Support: 0.6},
		{Antecedent: []string{"D"}, Consequent: []string{"A"}, Confidence: 0.9, Support: 0.1},
	}
	slices.SortFunc(rules, CompareRules)
	assert.Equal(t, []string{"D"}, rules[0].Antecedent)
	assert.Equal(t, []string{"C"}, rules[1].Antecedent)
	assert.Equal(t, []string{"A"}, rules[2].Antecedent)
	assert.Equal(t, []string{"B"}, rules[2].Consequent)
	assert.Equal(t, []string{"C"}, rules[3].Consequent)
	assert.Equal(t, []string{"B"}, rules[4].Antecedent)
	assert.Equal(t, "{D} => {A} (confidence=0.9000, support=0.1000)", rules[0].String())
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key([]string{"a", "b"}), Key([]string{"a", "b"}))
	assert.NotEqual(t, Key([]string{"ab"}), Key([]string{"a", "b"}))
}
