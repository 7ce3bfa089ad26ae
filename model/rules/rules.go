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

package rules

import (
	"context"
	"math"
	"slices"

	"github.com/gorse-io/playlist/common/parallel"
	"github.com/gorse-io/playlist/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

const (
	epsilon = 1e-9
	// MaxSplitSize bounds MaxItemsetSize since an itemset of size k has 2^k-2 splits.
	MaxSplitSize = 24
)

// Generator derives association rules from frequent itemsets.
type Generator struct {
	minConfidence  float64
	maxItemsetSize int
	jobs           int
}

// Result holds generated rules. Itemsets larger than the size limit are counted in
// SkippedItemsets instead of being split.
type Result struct {
	Rules           []model.Rule
	SkippedItemsets int
}

func NewGenerator(minConfidence float64, maxItemsetSize, jobs int) (*Generator, error) {
	if math.IsNaN(minConfidence) || minConfidence <= 0 || minConfidence > 1 {
		return nil, errors.NotValidf("min_confidence %v outside (0, 1]", minConfidence)
	}
	if maxItemsetSize < 2 || maxItemsetSize > MaxSplitSize {
		return nil, errors.NotValidf("max_itemset_size %v outside [2, %d]", maxItemsetSize, MaxSplitSize)
	}
	return &Generator{
		minConfidence:  minConfidence,
		maxItemsetSize: maxItemsetSize,
		jobs:           max(jobs, 1),
	}, nil
}

// Generate splits every itemset of size two or more into antecedent and consequent in
// all possible ways and keeps rules reaching the confidence threshold. The supports of
// all subsets must be present in itemsets. Rules are sorted by model.CompareRules.
func (g *Generator) Generate(ctx context.Context, itemsets []model.Itemset) (*Result, error) {
	supports := make(map[string]float64, len(itemsets))
	var candidates []model.Itemset
	result := &Result{}
	for _, itemset := range itemsets {
		key := model.Key(itemset.Items)
		if _, exist := supports[key]; exist {
			continue
		}
		supports[key] = itemset.Support
		if len(itemset.Items) < 2 {
			continue
		}
		if len(itemset.Items) > g.maxItemsetSize {
			result.SkippedItemsets++
			continue
		}
		candidates = append(candidates, itemset)
	}

	generated := make([][]model.Rule, len(candidates))
	err := parallel.Parallel(ctx, len(candidates), g.jobs, func(_, jobId int) error {
		rules, err := g.split(candidates[jobId], supports)
		if err != nil {
			return errors.Trace(err)
		}
		generated[jobId] = rules
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	result.Rules = lo.Flatten(generated)
	slices.SortFunc(result.Rules, model.CompareRules)
	return result, nil
}

func (g *Generator) split(itemset model.Itemset, supports map[string]float64) ([]model.Rule, error) {
	var (
		rules []model.Rule
		n     = len(itemset.Items)
	)
	for mask := 1; mask < 1<<n-1; mask++ {
		antecedent := make([]string, 0, n)
		consequent := make([]string, 0, n)
		for i, item := range itemset.Items {
			if mask&(1<<i) != 0 {
				antecedent = append(antecedent, item)
			} else {
				consequent = append(consequent, item)
			}
		}
		support, exist := supports[model.Key(antecedent)]
		if !exist || support <= 0 {
			return nil, errors.NotFoundf("support of itemset %v", antecedent)
		}
		confidence := min(itemset.Support/support, 1)
		if confidence+epsilon >= g.minConfidence {
			rules = append(rules, model.Rule{
				Antecedent: antecedent,
				Consequent: consequent,
				Confidence: confidence,
				Support:    itemset.Support,
			})
		}
	}
	return rules, nil
}
