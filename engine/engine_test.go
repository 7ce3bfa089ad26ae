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

package engine

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/gorse-io/playlist/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func newModel(rules ...model.Rule) *model.Model {
	return model.NewModel(model.Params{MinSupport: 0.1, MinConfidence: 0.1}, model.Stats{}, rules)
}

func rule(antecedent, consequent []string, confidence, support float64) model.Rule {
	return model.Rule{Antecedent: antecedent, Consequent: consequent, Confidence: confidence, Support: support}
}

func TestRecommend(t *testing.T) {
	e := NewEngine(10, 100)
	e.Publish(newModel(
		rule([]string{"A"}, []string{"B"}, 0.8, 0.5),
		rule([]string{"A"}, []string{"C"}, 0.6, 0.5),
	))
	songs, err := e.Recommend([]string{"A"}, 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, songs)

	// no matching rule
	songs, err = e.Recommend([]string{"Z"}, 10)
	assert.NoError(t, err)
	assert.NotNil(t, songs)
	assert.Empty(t, songs)
}

func TestRecommendScored(t *testing.T) {
	e := NewEngine(10, 100)
	m := newModel(
		rule([]string{"A"}, []string{"B"}, 0.5, 0.4),
		rule([]string{"C"}, []string{"B"}, 0.5, 0.4),
		rule([]string{"A", "C"}, []string{"D"}, 1, 0.3),
		rule([]string{"A", "E"}, []string{"F"}, 1, 0.9),
		rule([]string{"A"}, []string{"C", "G"}, 0.5, 0.2),
	)
	e.Publish(m)
	recommendations, used, err := e.RecommendScored([]string{"C", "A"}, 0)
	assert.NoError(t, err)
	assert.Equal(t, m.Version, used.Version)
	assert.Equal(t, []Recommendation{
		{Song: "B", Score: 0.4},
		{Song: "D", Score: 0.3},
		{Song: "G", Score: 0.1},
	}, recommendations)
}

func TestRecommendTies(t *testing.T) {
	e := NewEngine(10, 100)
	e.Publish(newModel(
		rule([]string{"A"}, []string{"Y"}, 0.5, 0.5),
		rule([]string{"A"}, []string{"X"}, 0.5, 0.5),
		rule([]string{"A"}, []string{"Z"}, 0.5, 0.5),
	))
	songs, err := e.Recommend([]string{"A"}, 2)
	assert.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, songs)
}

func TestRecommendSeedInvariance(t *testing.T) {
	var rules []model.Rule
	for i := 0; i < 20; i++ {
		for j := 0; j < 20; j++ {
			if i != j {
				a, c := fmt.Sprintf("s%02d", i), fmt.Sprintf("s%02d", j)
				rules = append(rules, rule([]string{a}, []string{c}, float64((i*j)%10+1)/10, float64((i+j)%7+1)/10))
			}
		}
	}
	e := NewEngine(10, 100)
	e.Publish(newModel(rules...))
	seeds := []string{"s03", "s11", "s07", "s03", "s19"}
	expected, err := e.Recommend(seeds, 100)
	assert.NoError(t, err)
	assert.Len(t, expected, 16)
	for _, song := range expected {
		assert.NotContains(t, seeds, song)
	}
	reversed := slices.Clone(seeds)
	slices.Reverse(reversed)
	actual, err := e.Recommend(reversed, 100)
	assert.NoError(t, err)
	assert.Equal(t, expected, actual)
	actual, err = e.Recommend([]string{" s19 ", "s07", "s11", "s03"}, 100)
	assert.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestRecommendLimit(t *testing.T) {
	var rules []model.Rule
	for i := 0; i < 30; i++ {
		rules = append(rules, rule([]string{"A"}, []string{fmt.Sprintf("s%02d", i)}, 0.5, 0.5))
	}
	e := NewEngine(5, 20)
	e.Publish(newModel(rules...))
	songs, err := e.Recommend([]string{"A"}, 0)
	assert.NoError(t, err)
	assert.Len(t, songs, 5)
	songs, err = e.Recommend([]string{"A"}, -1)
	assert.NoError(t, err)
	assert.Len(t, songs, 5)
	songs, err = e.Recommend([]string{"A"}, 7)
	assert.NoError(t, err)
	assert.Len(t, songs, 7)
	songs, err = e.Recommend([]string{"A"}, 1000)
	assert.NoError(t, err)
	assert.Len(t, songs, 20)
}

func TestRecommendErrors(t *testing.T) {
	e := NewEngine(10, 100)
	assert.False(t, e.Ready())
	assert.Nil(t, e.Snapshot())

	// input errors take precedence
	_, err := e.Recommend(nil, 10)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = e.Recommend([]string{"", "  "}, 10)
	assert.True(t, errors.Is(err, errors.NotValid))

	// not ready
	_, err = e.Recommend([]string{"A"}, 10)
	assert.ErrorIs(t, err, ErrNotReady)

	e.Publish(newModel())
	assert.True(t, e.Ready())
	songs, err := e.Recommend([]string{"A"}, 10)
	assert.NoError(t, err)
	assert.Empty(t, songs)
	_, err = e.Recommend([]string{}, 10)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestConcurrentPublish(t *testing.T) {
	// every model recommends a single song named after its version
	models := make([]*model.Model, 10)
	for i := range models {
		m := newModel()
		m.Rules = []model.Rule{rule([]string{"A"}, []string{"song-" + m.Version}, 1, 1)}
		for j := 0; j < 100; j++ {
			m.Rules = append(m.Rules, rule([]string{"A"}, []string{fmt.Sprintf("%s-%03d", m.Version, j)}, 0.5, 0.5))
		}
		models[i] = m
	}
	e := NewEngine(3, 3)
	e.Publish(models[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Go(func() {
			for {
				select {
				case <-stop:
					return
				default:
				}
				recommendations, used, err := e.RecommendScored([]string{"A"}, 3)
				if !assert.NoError(t, err) {
					return
				}
				if !assert.Len(t, recommendations, 3) {
					return
				}
				assert.Equal(t, "song-"+used.Version, recommendations[0].Song)
				assert.Equal(t, used.Version+"-000", recommendations[1].Song)
				assert.Equal(t, used.Version+"-001", recommendations[2].Song)
			}
		})
	}
	for i := 0; i < 1000; i++ {
		e.Publish(models[i%len(models)])
	}
	close(stop)
	wg.Wait()
}
