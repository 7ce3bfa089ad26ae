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

package trainer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StepLoad     = "load"
	StepMine     = "mine"
	StepGenerate = "generate"
	StepSave     = "save"
)

var (
	StepSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "playlist",
		Subsystem: "trainer",
		Name:      "step_seconds",
	}, []string{"step"})
	NumItemsets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "playlist",
		Subsystem: "trainer",
		Name:      "itemsets",
	})
	NumRules = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "playlist",
		Subsystem: "trainer",
		Name:      "rules",
	})
)
