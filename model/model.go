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
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

// FormatVersion is the artifact layout written by this build.
const FormatVersion uint32 = 1

// Itemset is a set of songs that co-occur in at least Support of all transactions.
// Items are sorted lexicographically.
type Itemset struct {
	Items   []string
	Support float64
}

// Key returns the canonical key of a sorted item list.
func Key(items []string) string {
	return strings.Join(items, "\x00")
}

// Rule states that playlists containing Antecedent tend to contain Consequent.
// Support is the support of the union of both sides.
type Rule struct {
	Antecedent []string `json:"antecedent"`
	Consequent []string `json:"consequent"`
	Confidence float64  `json:"confidence"`
	Support    float64  `json:"support"`
}

func (r Rule) String() string {
	return fmt.Sprintf("{%s} => {%s} (confidence=%.4f, support=%.4f)",
		strings.Join(r.Antecedent, ", "), strings.Join(r.Consequent, ", "), r.Confidence, r.Support)
}

// CompareRules orders rules by descending confidence, descending support, then antecedent
// and consequent.
func CompareRules(a, b Rule) int {
	if a.Confidence != b.Confidence {
		if a.Confidence > b.Confidence {
			return -1
		}
		return 1
	}
	if a.Support != b.Support {
		if a.Support > b.Support {
			return -1
		}
		return 1
	}
	if c := slices.Compare(a.Antecedent, b.Antecedent); c != 0 {
		return c
	}
	return slices.Compare(a.Consequent, b.Consequent)
}

// Params are the training parameters a model was built with.
type Params struct {
	MinSupport     float64 `json:"min_support"`
	MinConfidence  float64 `json:"min_confidence"`
	SampleSize     int     `json:"sample_size"`
	SampleSeed     int64   `json:"sample_seed"`
	MaxItemsetSize int     `json:"max_itemset_size"`
	MaxLength      int     `json:"max_length"`
}

// Validate checks thresholds.
func (p Params) Validate() error {
	if !(p.MinSupport > 0 && p.MinSupport <= 1) {
		return errors.NotValidf("min_support %v outside (0, 1]", p.MinSupport)
	}
	if !(p.MinConfidence > 0 && p.MinConfidence <= 1) {
		return errors.NotValidf("min_confidence %v outside (0, 1]", p.MinConfidence)
	}
	if p.SampleSize < 0 {
		return errors.NotValidf("sample_size %v", p.SampleSize)
	}
	if p.MaxLength < 0 {
		return errors.NotValidf("max_length %v", p.MaxLength)
	}
	return nil
}

// Stats describe the training run.
type Stats struct {
	Dataset         string        `json:"dataset"`
	NumPlaylists    int           `json:"num_playlists"`
	NumTransactions int           `json:"num_transactions"`
	NumTracks       int           `json:"num_tracks"`
	NumItemsets     int           `json:"num_itemsets"`
	NumRules        int           `json:"num_rules"`
	SkippedItemsets int           `json:"skipped_itemsets"`
	TrainTime       time.Duration `json:"train_time"`
}

// Model is an immutable snapshot of mined rules. A training run creates a new Model
// instead of mutating an existing one.
type Model struct {
	Version       string
	FormatVersion uint32
	CreatedAt     time.Time
	Params        Params
	Stats         Stats
	Rules         []Rule
}

// NewModel creates a model with a fresh version tag.
func NewModel(params Params, stats Stats, rules []Rule) *Model {
	stats.NumRules = len(rules)
	return &Model{
		Version:       uuid.NewString(),
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Params:        params,
		Stats:         stats,
		Rules:         rules,
	}
}

// Validate checks every rule of the model.
func (m *Model) Validate() error {
	if m.Version == "" {
		return errors.NotValidf("empty model version")
	}
	if m.FormatVersion != FormatVersion {
		return errors.NotSupportedf("model format version %d", m.FormatVersion)
	}
	if err := m.Params.Validate(); err != nil {
		return errors.Trace(err)
	}
	for i, rule := range m.Rules {
		if err := validateRule(rule); err != nil {
			return errors.Annotatef(err, "rule %d", i)
		}
	}
	return nil
}

func validateRule(rule Rule) error {
	if len(rule.Antecedent) == 0 || len(rule.Consequent) == 0 {
		return errors.NotValidf("empty side in rule %v", rule)
	}
	if !validRatio(rule.Confidence) {
		return errors.NotValidf("confidence %v", rule.Confidence)
	}
	if !validRatio(rule.Support) {
		return errors.NotValidf("support %v", rule.Support)
	}
	seen := make(map[string]struct{}, len(rule.Antecedent))
	for _, item := range rule.Antecedent {
		if item == "" {
			return errors.NotValidf("empty song in rule %v", rule)
		}
		seen[item] = struct{}{}
	}
	for _, item := range rule.Consequent {
		if item == "" {
			return errors.NotValidf("empty song in rule %v", rule)
		}
		if _, exist := seen[item]; exist {
			return errors.NotValidf("overlapping rule %v", rule)
		}
	}
	return nil
}

func validRatio(v float64) bool {
	return !math.IsNaN(v) && v > 0 && v <= 1
}
