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

// Package engine ranks songs for a set of seed songs using the rules of the active model.
//
// The active model is held behind a single atomic pointer. Every call loads the pointer
// once and works on that snapshot only, so a concurrent Publish never exposes a mix of
// two models and readers never take a lock. A replaced snapshot is reclaimed by the
// garbage collector after the last call holding it returns.
package engine

import (
	"cmp"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/playlist/common/heap"
	"github.com/gorse-io/playlist/model"
	"github.com/juju/errors"
	"go.uber.org/atomic"
)

// ErrNotReady is returned before the first model is published.
var ErrNotReady = errors.New("no recommendation model loaded")

// Snapshot is a published model with its lookup index.
type Snapshot struct {
	Model       *model.Model
	PublishedAt time.Time
	// rules indexed by the smallest item of their antecedent
	index map[string][]int32
}

func newSnapshot(m *model.Model) *Snapshot {
	index := make(map[string][]int32)
	for i, rule := range m.Rules {
		first := slices.Min(rule.Antecedent)
		index[first] = append(index[first], int32(i))
	}
	return &Snapshot{Model: m, PublishedAt: time.Now(), index: index}
}

// Recommendation is a candidate song with its aggregated score.
type Recommendation struct {
	Song  string  `json:"song"`
	Score float64 `json:"score"`
}

type Engine struct {
	current  atomic.Pointer[Snapshot]
	defaultN int
	maxN     int
}

// NewEngine creates an engine without a model. Requests without a positive limit get
// defaultN results and no request gets more than maxN.
func NewEngine(defaultN, maxN int) *Engine {
	defaultN = max(defaultN, 1)
	return &Engine{defaultN: defaultN, maxN: max(maxN, defaultN)}
}

// Publish replaces the active model. m must not be modified afterwards.
func (e *Engine) Publish(m *model.Model) {
	snapshot := newSnapshot(m)
	e.current.Store(snapshot)
	ActiveRules.Set(float64(len(m.Rules)))
	PublishedTimestamp.Set(float64(snapshot.PublishedAt.Unix()))
}

// Snapshot returns the active snapshot or nil.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Ready reports whether a model has been published.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// Recommend returns songs ranked for seeds.
func (e *Engine) Recommend(seeds []string, limit int) ([]string, error) {
	recommendations, _, err := e.RecommendScored(seeds, limit)
	if err != nil {
		return nil, err
	}
	songs := make([]string, len(recommendations))
	for i, recommendation := range recommendations {
		songs[i] = recommendation.Song
	}
	return songs, nil
}

// RecommendScored returns scored songs for seeds and the model that produced them.
// Every rule whose antecedent is contained in the seeds contributes confidence × support
// to each song of its consequent that is not a seed. Songs are ranked by descending score
// with ties broken by name. No matching rule yields an empty, non-nil result.
func (e *Engine) RecommendScored(seeds []string, limit int) ([]Recommendation, *model.Model, error) {
	start := time.Now()
	defer func() {
		RecommendSeconds.Observe(time.Since(start).Seconds())
	}()

	seedSet := mapset.NewThreadUnsafeSet[string]()
	for _, seed := range seeds {
		if seed = strings.TrimSpace(seed); seed != "" {
			seedSet.Add(seed)
		}
	}
	if seedSet.Cardinality() == 0 {
		RecommendTotal.WithLabelValues(ResultInvalid).Inc()
		return nil, nil, errors.NotValidf("empty seed songs")
	}
	snapshot := e.current.Load()
	if snapshot == nil {
		RecommendTotal.WithLabelValues(ResultNotReady).Inc()
		return nil, nil, ErrNotReady
	}
	if limit <= 0 {
		limit = e.defaultN
	}
	limit = min(limit, e.maxN)

	// sorted seeds fix the order in which scores are summed
	sortedSeeds := seedSet.ToSlice()
	slices.Sort(sortedSeeds)
	scores := make(map[string]float64)
	matched := 0
	for _, seed := range sortedSeeds {
		for _, i := range snapshot.index[seed] {
			rule := &snapshot.Model.Rules[i]
			if !seedSet.Contains(rule.Antecedent...) {
				continue
			}
			matched++
			for _, song := range rule.Consequent {
				if !seedSet.Contains(song) {
					scores[song] += rule.Confidence * rule.Support
				}
			}
		}
	}
	MatchedRules.Observe(float64(matched))

	filter := heap.NewTopKFilter(limit, compareRecommendations)
	for song, score := range scores {
		filter.Push(Recommendation{Song: song, Score: score})
	}
	recommendations := filter.PopAll()
	if len(recommendations) == 0 {
		RecommendTotal.WithLabelValues(ResultEmpty).Inc()
	} else {
		RecommendTotal.WithLabelValues(ResultOK).Inc()
	}
	return recommendations, snapshot.Model, nil
}

// compareRecommendations ranks higher scores first and breaks ties by song name.
func compareRecommendations(a, b Recommendation) int {
	if c := cmp.Compare(a.Score, b.Score); c != 0 {
		return c
	}
	return strings.Compare(b.Song, a.Song)
}
