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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelResult = "result"

	ResultOK       = "ok"
	ResultEmpty    = "empty"
	ResultInvalid  = "invalid"
	ResultNotReady = "not_ready"
)

var (
	RecommendSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "playlist",
		Subsystem: "engine",
		Name:      "recommend_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	RecommendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playlist",
		Subsystem: "engine",
		Name:      "recommend_total",
	}, []string{LabelResult})
	MatchedRules = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "playlist",
		Subsystem: "engine",
		Name:      "matched_rules",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})
	ActiveRules = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "playlist",
		Subsystem: "engine",
		Name:      "active_rules",
	})
	PublishedTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "playlist",
		Subsystem: "engine",
		Name:      "published_timestamp_seconds",
	})
)
